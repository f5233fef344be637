package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ahmedtd/binmlp/config"
	"github.com/ahmedtd/binmlp/dataset"
	"github.com/google/subcommands"
)

type PredictCommand struct {
	configFile     string
	checkpointFile string
	overrides      config.Overrides
	input          string
}

var _ subcommands.Command = (*PredictCommand)(nil)

func (*PredictCommand) Name() string {
	return "predict"
}

func (*PredictCommand) Synopsis() string {
	return "Predict the class of one input"
}

func (*PredictCommand) Usage() string {
	return `predict --input=472915 [flags]
`
}

func (c *PredictCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "Path to a YAML run config; defaults are used when empty")
	f.StringVar(&c.checkpointFile, "checkpoint", "", "Load parameters from this safetensors file instead of the weights and biases files")
	setOverrideFlags(f, &c.overrides)
	f.StringVar(&c.input, "input", "", "Digits, or comma-separated floats with --format=floats")
}

func (c *PredictCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *PredictCommand) executeErr(ctx context.Context) error {
	cfg, err := loadConfig(c.configFile, c.overrides)
	if err != nil {
		return err
	}

	features, err := dataset.ParseFeatures(c.input, cfg.SampleFormat())
	if err != nil {
		return fmt.Errorf("while parsing input: %w", err)
	}
	if cfg.Normalize {
		features, err = dataset.Normalize(features)
		if err != nil {
			return err
		}
	}

	net, err := loadTrained(cfg, c.checkpointFile)
	if err != nil {
		return err
	}

	p, err := net.Predict(features)
	if err != nil {
		return fmt.Errorf("while predicting: %w", err)
	}
	class := 0
	if p > 0.5 {
		class = 1
	}
	fmt.Printf("probability=%f class=%d\n", p, class)
	return nil
}
