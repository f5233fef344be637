package dataset

import (
	"errors"
	"math/rand"

	"github.com/ahmedtd/binmlp/toolbox"
)

// Normalize scales features into [0, 1] by their maximum and appends a parity
// flag for the last raw value: 1 if it is odd, 0 if even.  The result is one
// longer than the input, so networks fed by it need Topology.ParityFeature.
//
// A sequence whose maximum is not positive is left unscaled.
func Normalize(features []float32) ([]float32, error) {
	if len(features) == 0 {
		return nil, errors.New("input vector is empty")
	}

	maxv := features[0]
	for _, v := range features[1:] {
		if v > maxv {
			maxv = v
		}
	}

	normalized := make([]float32, len(features)+1)
	for i, v := range features {
		if maxv > 0 {
			normalized[i] = v / maxv
		} else {
			normalized[i] = v
		}
	}

	if int(features[len(features)-1])%2 != 0 {
		normalized[len(features)] = 1
	}
	return normalized, nil
}

// NormalizeAll applies Normalize to every sample, returning new samples.
func NormalizeAll(samples []toolbox.Sample) ([]toolbox.Sample, error) {
	out := make([]toolbox.Sample, len(samples))
	for k, s := range samples {
		features, err := Normalize(s.Features)
		if err != nil {
			return nil, err
		}
		out[k] = toolbox.Sample{Features: features, Label: s.Label}
	}
	return out, nil
}

// Synthetic generates n digit sequences of the given width, labeled 1 iff the
// digit sum exceeds threshold.
func Synthetic(n, width int, threshold float32, r *rand.Rand) []toolbox.Sample {
	samples := make([]toolbox.Sample, n)
	for k := range samples {
		features := make([]float32, width)
		var sum float32
		for j := range features {
			features[j] = float32(r.Intn(10))
			sum += features[j]
		}

		label := 0
		if sum > threshold {
			label = 1
		}
		samples[k] = toolbox.Sample{Features: features, Label: label}
	}
	return samples
}

// Balance counts the labels in samples.
func Balance(samples []toolbox.Sample) (zeros, ones int) {
	for _, s := range samples {
		if s.Label == 1 {
			ones++
		} else {
			zeros++
		}
	}
	return zeros, ones
}
