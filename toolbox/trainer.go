package toolbox

import (
	"fmt"
	"log"
	"time"
)

// Sample is one labeled feature sequence.
type Sample struct {
	Features []float32
	Label    int
}

const (
	DefaultAccuracyThreshold = float32(0.96)
	DefaultClipValue         = float32(1)
)

type TrainConfig struct {
	Epochs       int
	LearningRate float32

	// Training stops early once an epoch's accuracy is strictly above this.
	// Zero selects DefaultAccuracyThreshold.
	AccuracyThreshold float32

	// Output errors are clipped to [-ClipValue, ClipValue] before they drive
	// any update.
	ClipValue float32

	// LogEvery controls how often epoch summaries are logged.  Zero logs
	// every epoch, negative disables logging.
	LogEvery int
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:            40,
		LearningRate:      0.0001,
		AccuracyThreshold: DefaultAccuracyThreshold,
		ClipValue:         DefaultClipValue,
	}
}

func (c TrainConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: number of epochs must be positive (got %d)", ErrConfig, c.Epochs)
	}
	if c.LearningRate <= 0 || c.LearningRate >= 1 {
		return fmt.Errorf("%w: learning rate must be between 0 and 1 (got %v)", ErrConfig, c.LearningRate)
	}
	if c.ClipValue <= 0 {
		return fmt.Errorf("%w: clip value must be positive (got %v)", ErrConfig, c.ClipValue)
	}
	return nil
}

type StopReason int

const (
	NotStopped StopReason = iota
	MaxEpochsReached
	AccuracyThresholdMet
)

func (s StopReason) String() string {
	switch s {
	case NotStopped:
		return "running"
	case MaxEpochsReached:
		return "max-epochs-reached"
	case AccuracyThresholdMet:
		return "accuracy-threshold-met"
	default:
		return fmt.Sprintf("StopReason(%d)", int(s))
	}
}

// State is the trainer's position in the epoch loop.  Epoch counts completed
// epochs.
type State struct {
	Epoch   int
	Stopped bool
	Reason  StopReason
}

type EpochStats struct {
	Epoch     int // 1-based
	TotalLoss float32
	MeanLoss  float32
	Correct   int
	Total     int
	Accuracy  float32

	// MeanHiddenActivation averages the first hidden output over the epoch.
	MeanHiddenActivation float32

	Duration time.Duration
}

type Result struct {
	Epochs []EpochStats
	Reason StopReason
}

// Final returns the statistics of the last completed epoch.
func (r *Result) Final() EpochStats {
	if len(r.Epochs) == 0 {
		return EpochStats{}
	}
	return r.Epochs[len(r.Epochs)-1]
}

// Trainer drives per-sample gradient updates over a Network.
type Trainer struct {
	net   *Network
	cfg   TrainConfig
	state State
}

func NewTrainer(net *Network, cfg TrainConfig) (*Trainer, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", ErrConfig)
	}
	if cfg.AccuracyThreshold == 0 {
		cfg.AccuracyThreshold = DefaultAccuracyThreshold
	}
	if cfg.ClipValue == 0 {
		cfg.ClipValue = DefaultClipValue
	}
	if cfg.LogEvery == 0 {
		cfg.LogEvery = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{net: net, cfg: cfg}, nil
}

func (t *Trainer) Config() TrainConfig { return t.cfg }

func (t *Trainer) State() State { return t.state }

// epochRun is the transient state of one pass over the samples.
type epochRun struct {
	lossSum       float32
	correct       int
	activationSum float32

	// errors holds the output error, the hidden error, and the signal that
	// would feed the input layer.
	errors [3]float32
}

// Train runs the epoch loop until the epoch budget is spent or the accuracy
// threshold is exceeded.  A malformed sample aborts the whole call with a
// *SampleError; updates already applied are kept.
func (t *Trainer) Train(samples []Sample) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no training samples", ErrConfig)
	}

	t.state = State{}
	result := &Result{}

	for !t.state.Stopped {
		start := time.Now()
		stats, err := t.runEpoch(samples)
		if err != nil {
			return result, err
		}
		stats.Duration = time.Since(start)
		result.Epochs = append(result.Epochs, stats)

		t.state.Epoch++
		t.advance(stats)

		if t.cfg.LogEvery > 0 && (stats.Epoch%t.cfg.LogEvery == 0 || t.state.Stopped) {
			log.Printf("epoch=%d/%d loss=%f mean-loss=%f accuracy=%.2f%% mean-hidden-activation=%f",
				stats.Epoch,
				t.cfg.Epochs,
				stats.TotalLoss,
				stats.MeanLoss,
				stats.Accuracy*100,
				stats.MeanHiddenActivation,
			)
		}
	}

	if t.state.Reason == AccuracyThresholdMet {
		log.Printf("early stopping after epoch %d: accuracy %.2f%% > %.2f%%", t.state.Epoch, result.Final().Accuracy*100, t.cfg.AccuracyThreshold*100)
	}
	result.Reason = t.state.Reason
	return result, nil
}

// advance applies the end-of-epoch transition.
func (t *Trainer) advance(stats EpochStats) {
	switch {
	case stats.Accuracy > t.cfg.AccuracyThreshold:
		t.state.Stopped = true
		t.state.Reason = AccuracyThresholdMet
	case t.state.Epoch >= t.cfg.Epochs:
		t.state.Stopped = true
		t.state.Reason = MaxEpochsReached
	}
}

func (t *Trainer) runEpoch(samples []Sample) (EpochStats, error) {
	var run epochRun
	for k, s := range samples {
		if err := t.step(&run, s); err != nil {
			return EpochStats{}, &SampleError{Epoch: t.state.Epoch + 1, Index: k, Err: err}
		}
	}

	total := len(samples)
	return EpochStats{
		Epoch:                t.state.Epoch + 1,
		TotalLoss:            run.lossSum,
		MeanLoss:             run.lossSum / float32(total),
		Correct:              run.correct,
		Total:                total,
		Accuracy:             float32(run.correct) / float32(total),
		MeanHiddenActivation: run.activationSum / float32(total),
	}, nil
}

func (t *Trainer) step(run *epochRun, s Sample) error {
	if s.Label != 0 && s.Label != 1 {
		return fmt.Errorf("%w (got %d)", ErrLabel, s.Label)
	}

	// Forward validates the feature length.
	if err := t.net.Forward(s.Features); err != nil {
		return err
	}

	y := t.net.Output()
	target := float32(s.Label)
	diff := y - target
	run.lossSum += 0.5 * diff * diff

	if (y > 0.5 && s.Label == 1) || (y <= 0.5 && s.Label == 0) {
		run.correct++
	}

	run.errors[0] = ClipGradient(diff, t.cfg.ClipValue)
	run.errors[1] = run.errors[0] * t.net.OutputLayer().OutputDerivative()
	run.errors[2] = run.errors[1] * t.net.HiddenLayer().OutputDerivative()

	if err := t.net.OutputLayer().UpdateWeights(run.errors[0], t.cfg.LearningRate); err != nil {
		return fmt.Errorf("while updating output layer: %w", err)
	}
	if err := t.net.HiddenLayer().UpdateWeights(run.errors[1], t.cfg.LearningRate); err != nil {
		return fmt.Errorf("while updating hidden layer: %w", err)
	}
	if err := t.net.InputLayer().UpdateWeights(run.errors[2], t.cfg.LearningRate); err != nil {
		return fmt.Errorf("while updating input layer: %w", err)
	}

	run.activationSum += t.net.HiddenLayer().Output()[0]
	return nil
}
