package toolbox

import "github.com/chewxy/math32"

// DefaultLeakyAlpha is the negative-side slope used by LeakyReLU callers that
// have no opinion.
const DefaultLeakyAlpha = float32(0.01)

func ReLU(x float32) float32 {
	if x > 0 {
		return x
	}
	return 0
}

func LeakyReLU(x, alpha float32) float32 {
	if x > 0 {
		return x
	}
	return alpha * x
}

func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func Tanh(x float32) float32 {
	return math32.Tanh(x)
}

// Clip returns x limited to [lo, hi].
func Clip(x, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(x, hi))
}

// ClipGradient limits g to [-m, m].
func ClipGradient(g, m float32) float32 {
	return Clip(g, -m, m)
}

// Softmax writes the softmax of in into out.  Only the first
// min(len(in), len(out)) entries are touched.
//
// For stability, use the identity softmax(v) = softmax(v - c), and subtract
// the maximum element before exponentiating.  Entries that would underflow
// to zero are held at the smallest positive float32.
func Softmax(in, out []float32) {
	n := min(len(in), len(out))
	if n == 0 {
		return
	}
	in = in[:n]
	out = out[:n]

	maxv := in[0]
	for _, v := range in[1:] {
		if v > maxv {
			maxv = v
		}
	}

	var sum float32
	for i, v := range in {
		out[i] = math32.Exp(v - maxv)
		sum += out[i]
	}

	for i := range out {
		out[i] = math32.Max(out[i]/sum, math32.SmallestNonzeroFloat32)
	}
}
