package toolbox

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func TestSigmoidBounds(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	// Beyond |x| ~ 17 the float32 result saturates to exactly 0 or 1.
	for i := 0; i < 10000; i++ {
		x := (r.Float32() - 0.5) * 30
		if got := Sigmoid(x); got <= 0 || got >= 1 {
			t.Fatalf("Sigmoid(%v) = %v, want value in (0, 1)", x, got)
		}
	}
	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
}

func TestReLUNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	for i := 0; i < 10000; i++ {
		x := (r.Float32() - 0.5) * 200
		if got := ReLU(x); got < 0 {
			t.Fatalf("ReLU(%v) = %v, want >= 0", x, got)
		}
	}
	if got := ReLU(3); got != 3 {
		t.Errorf("ReLU(3) = %v, want 3", got)
	}
}

func TestLeakyReLU(t *testing.T) {
	if got := LeakyReLU(2, DefaultLeakyAlpha); got != 2 {
		t.Errorf("LeakyReLU(2) = %v, want 2", got)
	}
	if got := LeakyReLU(-2, DefaultLeakyAlpha); math32.Abs(got-(-0.02)) > 1e-7 {
		t.Errorf("LeakyReLU(-2) = %v, want -0.02", got)
	}
}

func TestTanh(t *testing.T) {
	if got := Tanh(0); got != 0 {
		t.Errorf("Tanh(0) = %v, want 0", got)
	}
	if got := Tanh(20); math32.Abs(got-1) > 1e-6 {
		t.Errorf("Tanh(20) = %v, want ~1", got)
	}
}

func TestClipGradient(t *testing.T) {
	testCases := []struct {
		g, m, want float32
	}{
		{5.0, 1.0, 1.0},
		{-5.0, 1.0, -1.0},
		{0.3, 1.0, 0.3},
		{1.0, 1.0, 1.0},
		{-0.75, 0.5, -0.5},
	}
	for _, tc := range testCases {
		if got := ClipGradient(tc.g, tc.m); got != tc.want {
			t.Errorf("ClipGradient(%v, %v) = %v, want %v", tc.g, tc.m, got, tc.want)
		}
	}

	r := rand.New(rand.NewSource(12345))
	for i := 0; i < 10000; i++ {
		g := (r.Float32() - 0.5) * 10
		m := r.Float32() * 3
		got := ClipGradient(g, m)
		if got < -m || got > m {
			t.Fatalf("ClipGradient(%v, %v) = %v, outside [-m, m]", g, m, got)
		}
		if math32.Abs(g) <= m && got != g {
			t.Fatalf("ClipGradient(%v, %v) = %v, want unchanged", g, m, got)
		}
	}
}

func TestSoftmax(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	for trial := 0; trial < 200; trial++ {
		n := 1 + r.Intn(16)
		in := make([]float32, n)
		for i := range in {
			in[i] = (r.Float32() - 0.5) * 100
		}
		out := make([]float32, n)
		Softmax(in, out)

		var sum float32
		for i, v := range out {
			if v <= 0 || v > 1 {
				t.Fatalf("Softmax(%v)[%d] = %v, want value in (0, 1]", in, i, v)
			}
			sum += v
		}
		if math32.Abs(sum-1) > 1e-5 {
			t.Fatalf("Softmax(%v) sums to %v, want 1", in, sum)
		}
	}
}

func TestSoftmaxDistantEntriesStayPositive(t *testing.T) {
	testCases := [][]float32{
		{0, -100},
		{-100, 0, 0},
		{50, -50, -50, -50},
		{1e4, -1e4},
	}
	for _, in := range testCases {
		out := make([]float32, len(in))
		Softmax(in, out)

		var sum float32
		for i, v := range out {
			if v <= 0 || v > 1 {
				t.Fatalf("Softmax(%v)[%d] = %v, want value in (0, 1]", in, i, v)
			}
			sum += v
		}
		if math32.Abs(sum-1) > 1e-5 {
			t.Fatalf("Softmax(%v) sums to %v, want 1", in, sum)
		}
	}
}

func TestSoftmaxLargeInputsStayFinite(t *testing.T) {
	in := []float32{1000, 1000, 999}
	out := make([]float32, 3)
	Softmax(in, out)
	for i, v := range out {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			t.Fatalf("Softmax(%v)[%d] = %v", in, i, v)
		}
	}
	if out[0] != out[1] || out[0] <= out[2] {
		t.Errorf("Softmax(%v) = %v, want out[0] == out[1] > out[2]", in, out)
	}
}
