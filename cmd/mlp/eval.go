package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ahmedtd/binmlp/config"
	"github.com/ahmedtd/binmlp/toolbox"
	"github.com/google/subcommands"
)

type EvalCommand struct {
	configFile     string
	checkpointFile string
	overrides      config.Overrides
}

var _ subcommands.Command = (*EvalCommand)(nil)

func (*EvalCommand) Name() string {
	return "eval"
}

func (*EvalCommand) Synopsis() string {
	return "Evaluate saved parameters on the test file"
}

func (*EvalCommand) Usage() string {
	return `eval [--config=run.yaml] [--test-file=test.txt] [flags]
`
}

func (c *EvalCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "Path to a YAML run config; defaults are used when empty")
	f.StringVar(&c.checkpointFile, "checkpoint", "", "Load parameters from this safetensors file instead of the weights and biases files")
	setOverrideFlags(f, &c.overrides)
}

func (c *EvalCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *EvalCommand) executeErr(ctx context.Context) error {
	cfg, err := loadConfig(c.configFile, c.overrides)
	if err != nil {
		return err
	}
	if cfg.TestFile == "" {
		return fmt.Errorf("no test file set")
	}

	net, err := loadTrained(cfg, c.checkpointFile)
	if err != nil {
		return err
	}
	samples, err := loadSamples(cfg, cfg.TestFile)
	if err != nil {
		return err
	}

	ev, err := toolbox.Evaluate(net, samples)
	if err != nil {
		return fmt.Errorf("while evaluating: %w", err)
	}
	logEvaluation(cfg.TestFile, ev)
	return nil
}
