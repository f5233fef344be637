package toolbox

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports an invalid construction or training parameter.
	ErrConfig = errors.New("invalid configuration")

	// ErrDimension reports a buffer or parameter whose length disagrees with
	// the layer or network it was handed to.
	ErrDimension = errors.New("dimension mismatch")

	// ErrParameterCount reports a flat parameter sequence that cannot be
	// redistributed over the network's layers.
	ErrParameterCount = errors.New("parameter count mismatch")

	// ErrNotForwarded reports an update against a layer whose caches have not
	// been written by Forward yet.
	ErrNotForwarded = errors.New("update before forward")

	// ErrLabel reports a training label outside {0, 1}.
	ErrLabel = errors.New("label must be 0 or 1")
)

// SampleError identifies the sample that aborted a Train or Evaluate call.
// Epoch is 1-based for training and 0 for evaluation.
type SampleError struct {
	Epoch int
	Index int
	Err   error
}

func (e *SampleError) Error() string {
	if e.Epoch == 0 {
		return fmt.Sprintf("sample %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("epoch %d sample %d: %v", e.Epoch, e.Index, e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}
