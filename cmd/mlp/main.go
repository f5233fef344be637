// Command mlp trains and runs the binary classifier.
//
// To train: `go run ./cmd/mlp train --config=run.yaml`
//
// To predict: `go run ./cmd/mlp predict --input=472915`
//
// To make a data set: `go run ./cmd/mlp generate --out=train.txt -n=1000`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ahmedtd/binmlp/config"
	"github.com/ahmedtd/binmlp/dataset"
	"github.com/ahmedtd/binmlp/paramio"
	"github.com/ahmedtd/binmlp/toolbox"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&PredictCommand{}, "")
	subcommands.Register(&EvalCommand{}, "")
	subcommands.Register(&GenerateCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type TrainCommand struct {
	configFile         string
	fromCheckpointFile string
	overrides          config.Overrides
	learningRate       float64

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model"
}

func (*TrainCommand) Usage() string {
	return `train [--config=run.yaml] [flags]

Trains on the train file, writes the weights and biases files, and reports
accuracy on the test file when one is set.  Existing weights and biases files
are loaded as the starting point.
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "Path to a YAML run config; defaults are used when empty")
	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to initial parameters to load for training (safetensors format)")
	setOverrideFlags(f, &c.overrides)
	f.IntVar(&c.overrides.Epochs, "epochs", 0, "Override the maximum number of epochs")
	f.Float64Var(&c.learningRate, "learning-rate", 0, "Override the learning rate")
	f.Int64Var(&c.overrides.Seed, "seed", 0, "Override the parameter initialization seed")
	f.IntVar(&c.overrides.LogEvery, "log-every", 0, "Log every N epochs; negative disables epoch logging")
	f.StringVar(&c.overrides.CheckpointFile, "checkpoint", "", "Also save trained parameters here (safetensors format)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	c.overrides.LearningRate = float32(c.learningRate)
	cfg, err := loadConfig(c.configFile, c.overrides)
	if err != nil {
		return err
	}

	samples, err := loadSamples(cfg, cfg.TrainFile)
	if err != nil {
		return err
	}
	zeros, ones := dataset.Balance(samples)
	log.Printf("training set has %d 1s and %d 0s", ones, zeros)

	r := rand.New(rand.NewSource(cfg.Seed))
	net, err := toolbox.MakeNetwork(cfg.Topology(), r)
	if err != nil {
		return fmt.Errorf("while making network: %w", err)
	}

	switch {
	case c.fromCheckpointFile != "":
		if err := loadCheckpoint(net, c.fromCheckpointFile); err != nil {
			return err
		}
		log.Printf("loaded initial parameters from %s", c.fromCheckpointFile)
	case fileExists(cfg.WeightsFile) && fileExists(cfg.BiasesFile):
		if err := loadParameters(net, cfg); err != nil {
			return err
		}
		log.Printf("loaded initial parameters from %s and %s", cfg.WeightsFile, cfg.BiasesFile)
	default:
		log.Printf("no saved parameters, initialized %d parameters with seed %d", net.ParameterCount(), cfg.Seed)
	}

	trainer, err := toolbox.NewTrainer(net, cfg.TrainConfig())
	if err != nil {
		return fmt.Errorf("while making trainer: %w", err)
	}
	result, err := trainer.Train(samples)
	if err != nil {
		return fmt.Errorf("while training: %w", err)
	}
	final := result.Final()
	log.Printf("training finished reason=%v epochs=%d accuracy=%.2f%% mean-loss=%f", result.Reason, final.Epoch, final.Accuracy*100, final.MeanLoss)

	if err := paramio.Save(cfg.WeightsFile, net.Weights()); err != nil {
		return err
	}
	if err := paramio.Save(cfg.BiasesFile, net.Biases()); err != nil {
		return err
	}
	log.Printf("saved parameters to %s and %s", cfg.WeightsFile, cfg.BiasesFile)

	if cfg.CheckpointFile != "" {
		if err := saveCheckpoint(net, cfg.CheckpointFile); err != nil {
			return err
		}
		log.Printf("saved checkpoint to %s", cfg.CheckpointFile)
	}

	if cfg.TestFile == "" {
		return nil
	}
	testSamples, err := loadSamples(cfg, cfg.TestFile)
	if err != nil {
		log.Printf("Warning: skipping evaluation: %v", err)
		return nil
	}
	ev, err := toolbox.Evaluate(net, testSamples)
	if err != nil {
		return fmt.Errorf("while evaluating: %w", err)
	}
	logEvaluation(cfg.TestFile, ev)
	return nil
}

// setOverrideFlags registers the file flags shared by every command that
// reads a config.
func setOverrideFlags(f *flag.FlagSet, o *config.Overrides) {
	f.StringVar(&o.TrainFile, "train-file", "", "Override the training sample file")
	f.StringVar(&o.TestFile, "test-file", "", "Override the test sample file")
	f.StringVar(&o.Format, "format", "", "Override the sample format (digits, floats, npz)")
	f.StringVar(&o.WeightsFile, "weights", "", "Override the weights file")
	f.StringVar(&o.BiasesFile, "biases", "", "Override the biases file")
}

func loadConfig(path string, o config.Overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("while loading config: %w", err)
		}
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadSamples(cfg *config.Config, path string) ([]toolbox.Sample, error) {
	samples := dataset.Load(path, cfg.SampleFormat())
	if len(samples) == 0 {
		return nil, fmt.Errorf("no usable samples in %s", path)
	}
	if cfg.Normalize {
		var err error
		samples, err = dataset.NormalizeAll(samples)
		if err != nil {
			return nil, fmt.Errorf("while normalizing %s: %w", path, err)
		}
	}
	return samples, nil
}

func logEvaluation(path string, ev *toolbox.Evaluation) {
	log.Printf("evaluation file=%s correct=%d/%d accuracy=%.2f%% mean-loss=%f", path, ev.Correct, ev.Total, ev.Accuracy*100, ev.MeanLoss)
	log.Printf("evaluation tp=%d tn=%d fp=%d fn=%d mean-p=%f stddev-p=%f", ev.TruePositive, ev.TrueNegative, ev.FalsePositive, ev.FalseNegative, ev.MeanProbability, ev.StdDevProbability)
}
