package toolbox

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Evaluation summarizes predictions over a labeled set.
type Evaluation struct {
	Correct  int
	Total    int
	Accuracy float32
	MeanLoss float32

	MeanProbability   float64
	StdDevProbability float64

	TruePositive  int
	TrueNegative  int
	FalsePositive int
	FalseNegative int
}

// Evaluate predicts every sample without updating the network.
func Evaluate(net *Network, samples []Sample) (*Evaluation, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no evaluation samples", ErrConfig)
	}

	ev := &Evaluation{Total: len(samples)}
	probs := make([]float64, 0, len(samples))
	var lossSum float32

	for k, s := range samples {
		if s.Label != 0 && s.Label != 1 {
			return nil, &SampleError{Index: k, Err: fmt.Errorf("%w (got %d)", ErrLabel, s.Label)}
		}
		p, err := net.Predict(s.Features)
		if err != nil {
			return nil, &SampleError{Index: k, Err: err}
		}
		probs = append(probs, float64(p))

		diff := p - float32(s.Label)
		lossSum += 0.5 * diff * diff

		predicted := p > 0.5
		switch {
		case predicted && s.Label == 1:
			ev.TruePositive++
		case !predicted && s.Label == 0:
			ev.TrueNegative++
		case predicted && s.Label == 0:
			ev.FalsePositive++
		default:
			ev.FalseNegative++
		}
	}

	ev.Correct = ev.TruePositive + ev.TrueNegative
	ev.Accuracy = float32(ev.Correct) / float32(ev.Total)
	ev.MeanLoss = lossSum / float32(ev.Total)
	ev.MeanProbability, ev.StdDevProbability = stat.MeanStdDev(probs, nil)
	return ev, nil
}
