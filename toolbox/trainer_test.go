package toolbox

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateSeparableDataset labels a sample 1 iff its feature sum exceeds half
// the width.
func generateSeparableDataset(m, width int, r *rand.Rand) []Sample {
	samples := make([]Sample, m)
	for k := range samples {
		features := make([]float32, width)
		var sum float32
		for j := range features {
			features[j] = r.Float32()
			sum += features[j]
		}
		label := 0
		if sum > float32(width)/2 {
			label = 1
		}
		samples[k] = Sample{Features: features, Label: label}
	}
	return samples
}

func TestNewTrainerValidatesConfig(t *testing.T) {
	net := makeTestNetwork(t, DefaultTopology(3))

	testCases := []struct {
		desc string
		cfg  TrainConfig
	}{
		{"zero epochs", TrainConfig{Epochs: 0, LearningRate: 0.1}},
		{"negative epochs", TrainConfig{Epochs: -3, LearningRate: 0.1}},
		{"zero learning rate", TrainConfig{Epochs: 1, LearningRate: 0}},
		{"unit learning rate", TrainConfig{Epochs: 1, LearningRate: 1}},
		{"negative learning rate", TrainConfig{Epochs: 1, LearningRate: -0.01}},
		{"negative clip", TrainConfig{Epochs: 1, LearningRate: 0.1, ClipValue: -1}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewTrainer(net, tc.cfg)
			require.ErrorIs(t, err, ErrConfig)
		})
	}

	_, err := NewTrainer(nil, DefaultTrainConfig())
	require.ErrorIs(t, err, ErrConfig)

	tr, err := NewTrainer(net, TrainConfig{Epochs: 1, LearningRate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, DefaultAccuracyThreshold, tr.Config().AccuracyThreshold)
	assert.Equal(t, DefaultClipValue, tr.Config().ClipValue)
}

func TestTrainRejectsEmptySet(t *testing.T) {
	tr, err := NewTrainer(makeTestNetwork(t, DefaultTopology(3)), DefaultTrainConfig())
	require.NoError(t, err)
	_, err = tr.Train(nil)
	require.ErrorIs(t, err, ErrConfig)
}

func TestTrainStopsAtAccuracyThreshold(t *testing.T) {
	net, err := MakeNetwork(DefaultTopology(3), nil)
	require.NoError(t, err)

	// Zero parameters predict 0.5, which counts as correct for label 0.
	samples := []Sample{
		{Features: []float32{1, 2, 3}, Label: 0},
		{Features: []float32{3, 2, 1}, Label: 0},
		{Features: []float32{0, 0, 1}, Label: 0},
	}

	tr, err := NewTrainer(net, TrainConfig{Epochs: 10, LearningRate: 0.01})
	require.NoError(t, err)
	result, err := tr.Train(samples)
	require.NoError(t, err)

	assert.Equal(t, AccuracyThresholdMet, result.Reason)
	require.Len(t, result.Epochs, 1)
	assert.Equal(t, float32(1), result.Final().Accuracy)
	assert.Equal(t, State{Epoch: 1, Stopped: true, Reason: AccuracyThresholdMet}, tr.State())
}

func TestTrainRunsToMaxEpochs(t *testing.T) {
	net := makeTestNetwork(t, DefaultTopology(3))

	// Contradictory pairs keep accuracy at or below one half.
	samples := []Sample{
		{Features: []float32{1, 1, 1}, Label: 0},
		{Features: []float32{1, 1, 1}, Label: 1},
		{Features: []float32{2, 0, 2}, Label: 0},
		{Features: []float32{2, 0, 2}, Label: 1},
	}

	tr, err := NewTrainer(net, TrainConfig{Epochs: 3, LearningRate: 0.01})
	require.NoError(t, err)
	result, err := tr.Train(samples)
	require.NoError(t, err)

	assert.Equal(t, MaxEpochsReached, result.Reason)
	require.Len(t, result.Epochs, 3)
	for i, stats := range result.Epochs {
		assert.Equal(t, i+1, stats.Epoch)
		assert.Equal(t, 4, stats.Total)
		assert.LessOrEqual(t, stats.Accuracy, float32(0.5))
		assert.InDelta(t, stats.TotalLoss/4, stats.MeanLoss, 1e-6)
	}
	assert.Equal(t, State{Epoch: 3, Stopped: true, Reason: MaxEpochsReached}, tr.State())
}

func TestTrainAbortsOnBadLabel(t *testing.T) {
	net := makeTestNetwork(t, DefaultTopology(3))
	before := net.Parameters()

	samples := []Sample{
		{Features: []float32{1, 2, 3}, Label: 1},
		{Features: []float32{1, 0, 0}, Label: 0},
		{Features: []float32{1, 0, 0}, Label: 2},
		{Features: []float32{1, 1, 0}, Label: 1},
	}

	tr, err := NewTrainer(net, TrainConfig{Epochs: 5, LearningRate: 0.1})
	require.NoError(t, err)
	result, err := tr.Train(samples)
	require.ErrorIs(t, err, ErrLabel)

	var sampleErr *SampleError
	require.True(t, errors.As(err, &sampleErr))
	assert.Equal(t, 1, sampleErr.Epoch)
	assert.Equal(t, 2, sampleErr.Index)
	assert.Empty(t, result.Epochs)

	// The first two samples were already applied.
	if diff := cmp.Diff(net.Parameters(), before); diff == "" {
		t.Fatalf("Expected updates from the samples before the bad one")
	}
}

func TestTrainAbortsOnBadLength(t *testing.T) {
	net := makeTestNetwork(t, DefaultTopology(3))
	samples := []Sample{
		{Features: []float32{1, 2, 3}, Label: 1},
		{Features: []float32{1, 2, 3, 4}, Label: 0},
	}

	tr, err := NewTrainer(net, TrainConfig{Epochs: 5, LearningRate: 0.1})
	require.NoError(t, err)
	_, err = tr.Train(samples)
	require.ErrorIs(t, err, ErrDimension)

	samples[1].Features = nil
	_, err = tr.Train(samples)
	require.ErrorIs(t, err, ErrDimension)
}

func TestTrainingLossImproves(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	samples := generateSeparableDataset(500, 9, r)

	net, err := MakeNetwork(DefaultTopology(9), r)
	require.NoError(t, err)

	// A threshold of 1 can never be exceeded, so all 20 epochs run.
	tr, err := NewTrainer(net, TrainConfig{Epochs: 20, LearningRate: 0.01, AccuracyThreshold: 1, LogEvery: -1})
	require.NoError(t, err)
	result, err := tr.Train(samples)
	require.NoError(t, err)
	require.Len(t, result.Epochs, 20)

	first := result.Epochs[0].MeanLoss
	last := result.Final().MeanLoss
	t.Logf("mean loss epoch 1 = %v, epoch 20 = %v, accuracy = %v", first, last, result.Final().Accuracy)
	if !(last < first) {
		t.Errorf("Loss did not improve; epoch 1 = %v, epoch 20 = %v", first, last)
	}
}

// handTrain is a scalar re-implementation of the epoch loop for a network
// whose every layer is one neuron wide.
func handTrain(xs []float32, ts []int, epochs int, lr, wh, bh, wo, bo float32) (float32, float32, float32, float32) {
	for epoch := 0; epoch < epochs; epoch++ {
		for k := range xs {
			var zh float32
			zh += xs[k] * wh
			zh += bh
			h := ReLU(Clip(zh, -88, 88))

			var zo float32
			zo += h * wo
			zo += bo
			y := Sigmoid(zo)

			e0 := ClipGradient(y-float32(ts[k]), 1)
			e1 := e0 * (y * (1 - y))

			step := lr * e0
			wo -= step * h
			bo -= step

			step = lr * e1
			wh -= step * xs[k]
			bh -= step
		}
	}
	return wh, bh, wo, bo
}

func TestAgreesWithHandcodedUpdates(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	xs := make([]float32, 50)
	ts := make([]int, 50)
	samples := make([]Sample, 50)
	for k := range xs {
		xs[k] = r.Float32()
		if xs[k] > 0.4 {
			ts[k] = 1
		}
		samples[k] = Sample{Features: []float32{xs[k]}, Label: ts[k]}
	}

	net, err := MakeNetwork(Topology{MaxInputSize: 1, HiddenWidth: 1, HiddenOutputs: 1}, nil)
	require.NoError(t, err)
	net.HiddenLayer().W[0] = 0.8
	net.HiddenLayer().B[0] = 0.1
	net.OutputLayer().W[0] = -0.3

	lr := float32(0.05)
	tr, err := NewTrainer(net, TrainConfig{Epochs: 30, LearningRate: lr, AccuracyThreshold: 1, LogEvery: -1})
	require.NoError(t, err)
	_, err = tr.Train(samples)
	require.NoError(t, err)

	wh, bh, wo, bo := handTrain(xs, ts, 30, lr, 0.8, 0.1, -0.3, 0)
	t.Logf("toolbox wh=%v bh=%v wo=%v bo=%v", net.HiddenLayer().W[0], net.HiddenLayer().B[0], net.OutputLayer().W[0], net.OutputLayer().B[0])
	t.Logf("hand wh=%v bh=%v wo=%v bo=%v", wh, bh, wo, bo)

	checks := []struct {
		name      string
		got, want float32
	}{
		{"hidden weight", net.HiddenLayer().W[0], wh},
		{"hidden bias", net.HiddenLayer().B[0], bh},
		{"output weight", net.OutputLayer().W[0], wo},
		{"output bias", net.OutputLayer().B[0], bo},
	}
	for _, c := range checks {
		if math32.Abs(c.got-c.want) > 1e-5 {
			t.Errorf("Disagreement on %s; got %v, want %v", c.name, c.got, c.want)
		}
	}
}
