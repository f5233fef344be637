package toolbox

import (
	"fmt"
	"math/rand"
)

type LayerKind int

const (
	// InputKind copies (or truncates) its input into a wider buffer and has
	// no learnable transform.
	InputKind LayerKind = iota
	// HiddenKind is an affine transform followed by ReLU.
	HiddenKind
	// OutputKind is an affine transform followed by sigmoid, with a single
	// output neuron.
	OutputKind
)

func (k LayerKind) String() string {
	switch k {
	case InputKind:
		return "input"
	case HiddenKind:
		return "hidden"
	case OutputKind:
		return "output"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// InitBound is the half-width of the uniform range new weights are drawn from.
const InitBound = float32(0.5)

// Pre-activations are clipped to this magnitude in the hidden layer so that
// downstream exponentials cannot overflow float32.
const preActivationLimit = float32(88)

// Layer is one stage of the network.  Kind selects the forward, update and
// derivative behavior.
//
// The caches hold the input consumed and the output produced by the most
// recent Forward call.  UpdateWeights and OutputDerivative read them, so for
// each sample Forward must finish before those are called.
type Layer struct {
	Kind LayerKind

	W []float32 // Shape (OutputSize, InputSize), row i feeds output neuron i
	B []float32 // Shape (OutputSize)

	InputSize  int
	OutputSize int

	inputCache  []float32
	outputCache []float32
	forwarded   bool
}

func makeLayer(kind LayerKind, inputSize, outputSize int, r *rand.Rand) (*Layer, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("%w: %v layer sizes must be positive (got %d -> %d)", ErrConfig, kind, inputSize, outputSize)
	}

	l := &Layer{
		Kind:        kind,
		InputSize:   inputSize,
		OutputSize:  outputSize,
		W:           make([]float32, inputSize*outputSize),
		B:           make([]float32, outputSize),
		inputCache:  make([]float32, inputSize),
		outputCache: make([]float32, outputSize),
	}
	if r != nil {
		l.Randomize(r, InitBound)
	}
	return l, nil
}

// MakeInput builds the identity stage.  It still owns an
// inputSize*outputSize weight buffer, which is never used by Forward but is
// part of the persisted parameter layout.
func MakeInput(inputSize, outputSize int, r *rand.Rand) (*Layer, error) {
	return makeLayer(InputKind, inputSize, outputSize, r)
}

func MakeHidden(inputSize, outputSize int, r *rand.Rand) (*Layer, error) {
	return makeLayer(HiddenKind, inputSize, outputSize, r)
}

func MakeOutput(inputSize int, r *rand.Rand) (*Layer, error) {
	return makeLayer(OutputKind, inputSize, 1, r)
}

// Randomize draws every weight uniformly from [-bound, bound) and zeroes the
// biases.
func (lay *Layer) Randomize(r *rand.Rand, bound float32) {
	for i := range lay.W {
		lay.W[i] = (2*r.Float32() - 1) * bound
	}
	for i := range lay.B {
		lay.B[i] = 0
	}
}

// ParameterCount returns the number of weights and biases the layer owns.
func (lay *Layer) ParameterCount() (weights, biases int) {
	return lay.InputSize * lay.OutputSize, lay.OutputSize
}

// Forward applies the layer.
//
// x (input) has length lay.InputSize.
// a (output) has length lay.OutputSize and is fully overwritten.
//
// The result is staged in the output cache before it is copied out, so x and
// a may share storage.
func (lay *Layer) Forward(x, a []float32) error {
	if x == nil || a == nil {
		return fmt.Errorf("%w: nil buffer in %v layer forward", ErrDimension, lay.Kind)
	}
	if len(x) != lay.InputSize {
		return fmt.Errorf("%w: %v layer input has length %d, want %d", ErrDimension, lay.Kind, len(x), lay.InputSize)
	}
	if len(a) != lay.OutputSize {
		return fmt.Errorf("%w: %v layer output has length %d, want %d", ErrDimension, lay.Kind, len(a), lay.OutputSize)
	}

	switch lay.Kind {
	case InputKind:
		copy(lay.inputCache, x)
		if lay.InputSize <= lay.OutputSize {
			copy(lay.outputCache, x)
			clear(lay.outputCache[lay.InputSize:])
		} else {
			// Inputs past OutputSize are dropped.
			copy(lay.outputCache, x[:lay.OutputSize])
		}
	case HiddenKind, OutputKind:
		if err := lay.checkParameters(); err != nil {
			return err
		}
		copy(lay.inputCache, x)
		lay.applyAffine()
	default:
		panic("unhandled layer kind")
	}

	copy(a, lay.outputCache)
	lay.forwarded = true
	return nil
}

func (lay *Layer) checkParameters() error {
	if len(lay.W) != lay.InputSize*lay.OutputSize {
		return fmt.Errorf("%w: %v layer has %d weights, want %d", ErrDimension, lay.Kind, len(lay.W), lay.InputSize*lay.OutputSize)
	}
	if len(lay.B) != lay.OutputSize {
		return fmt.Errorf("%w: %v layer has %d biases, want %d", ErrDimension, lay.Kind, len(lay.B), lay.OutputSize)
	}
	return nil
}

// applyAffine computes the activated affine transform of the input cache into
// the output cache.
func (lay *Layer) applyAffine() {
	inputSize := lay.InputSize
	x := lay.inputCache

	for i := 0; i < lay.OutputSize; i++ {
		row := lay.W[i*inputSize : i*inputSize+inputSize]
		var z float32
		for j := range row {
			z += x[j] * row[j]
		}
		z += lay.B[i]

		switch lay.Kind {
		case HiddenKind:
			lay.outputCache[i] = ReLU(Clip(z, -preActivationLimit, preActivationLimit))
		case OutputKind:
			lay.outputCache[i] = Sigmoid(z)
		}
	}
}

// UpdateWeights takes one gradient step using the input cached by the
// preceding Forward call.  The same scalar error is applied to every output
// neuron of the layer.
func (lay *Layer) UpdateWeights(e, learningRate float32) error {
	if lay.Kind == InputKind {
		return nil
	}
	if !lay.forwarded {
		return fmt.Errorf("%w: %v layer", ErrNotForwarded, lay.Kind)
	}

	inputSize := lay.InputSize
	step := learningRate * e
	for i := 0; i < lay.OutputSize; i++ {
		row := lay.W[i*inputSize : i*inputSize+inputSize]
		for j := range row {
			row[j] -= step * lay.inputCache[j]
		}
		lay.B[i] -= step
	}
	return nil
}

// OutputDerivative returns the activation derivative used to scale the error
// signal on its way back through the network.
//
// For the hidden layer this is the fraction of cached outputs that are
// strictly positive, an average-ReLU-activity proxy rather than a per-neuron
// derivative.  For the output layer it is y*(1-y) of the cached output.
func (lay *Layer) OutputDerivative() float32 {
	switch lay.Kind {
	case InputKind:
		return 1
	case HiddenKind:
		if !lay.forwarded {
			return 0
		}
		active := 0
		for _, v := range lay.outputCache {
			if v > 0 {
				active++
			}
		}
		return float32(active) / float32(len(lay.outputCache))
	case OutputKind:
		if !lay.forwarded {
			return 0
		}
		y := lay.outputCache[0]
		return y * (1 - y)
	default:
		panic("unhandled layer kind")
	}
}

// Input returns the cached input of the last Forward call.  The slice is
// owned by the layer and overwritten by the next Forward.
func (lay *Layer) Input() []float32 {
	return lay.inputCache
}

// Output returns the cached output of the last Forward call.  The slice is
// owned by the layer and overwritten by the next Forward.
func (lay *Layer) Output() []float32 {
	return lay.outputCache
}

// Forwarded reports whether the caches hold the result of a Forward call.
func (lay *Layer) Forwarded() bool {
	return lay.forwarded
}
