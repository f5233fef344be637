// Package config holds the knobs for a training run of the binary classifier.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ahmedtd/binmlp/dataset"
	"github.com/ahmedtd/binmlp/toolbox"
	"gopkg.in/yaml.v3"
)

type Config struct {
	MaxInputSize  int  `yaml:"max_input_size"`
	// ParityFeature widens the input by one slot.  Normalize implies it.
	ParityFeature bool `yaml:"parity_feature"`
	HiddenWidth   int  `yaml:"hidden_width"`
	HiddenOutputs int  `yaml:"hidden_outputs"`

	Epochs            int     `yaml:"epochs"`
	LearningRate      float32 `yaml:"learning_rate"`
	AccuracyThreshold float32 `yaml:"accuracy_threshold"` // in (0, 1]
	ClipValue         float32 `yaml:"clip_value"`
	Seed              int64   `yaml:"seed"`
	LogEvery          int     `yaml:"log_every"`

	TrainFile string `yaml:"train_file"`
	TestFile  string `yaml:"test_file"`
	Format    string `yaml:"format"`
	Normalize bool   `yaml:"normalize"`

	WeightsFile    string `yaml:"weights_file"`
	BiasesFile     string `yaml:"biases_file"`
	CheckpointFile string `yaml:"checkpoint_file"`
}

// Overrides captures CLI supplied values.  Zero values leave the config alone.
type Overrides struct {
	TrainFile      string
	TestFile       string
	Format         string
	WeightsFile    string
	BiasesFile     string
	CheckpointFile string
	Epochs         int
	LearningRate   float32
	Seed           int64
	LogEvery       int
}

func Default() *Config {
	topology := toolbox.DefaultTopology(toolbox.MaxInputSize)
	train := toolbox.DefaultTrainConfig()
	return &Config{
		MaxInputSize:      topology.MaxInputSize,
		ParityFeature:     topology.ParityFeature,
		HiddenWidth:       topology.HiddenWidth,
		HiddenOutputs:     topology.HiddenOutputs,
		Epochs:            train.Epochs,
		LearningRate:      train.LearningRate,
		AccuracyThreshold: train.AccuracyThreshold,
		ClipValue:         train.ClipValue,
		Seed:              42,
		LogEvery:          1,
		TrainFile:         "train.txt",
		TestFile:          "test.txt",
		Format:            dataset.DigitFormat.String(),
		WeightsFile:       "weights.txt",
		BiasesFile:        "biases.txt",
	}
}

// Load reads and validates a Config from a YAML file.  Keys missing from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default.  Unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainFile != "" {
		c.TrainFile = o.TrainFile
	}
	if o.TestFile != "" {
		c.TestFile = o.TestFile
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.WeightsFile != "" {
		c.WeightsFile = o.WeightsFile
	}
	if o.BiasesFile != "" {
		c.BiasesFile = o.BiasesFile
	}
	if o.CheckpointFile != "" {
		c.CheckpointFile = o.CheckpointFile
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery != 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", toolbox.ErrConfig)
	}
	if err := c.Topology().Validate(); err != nil {
		return err
	}
	if err := c.TrainConfig().Validate(); err != nil {
		return err
	}
	if c.AccuracyThreshold <= 0 || c.AccuracyThreshold > 1 {
		return fmt.Errorf("%w: accuracy_threshold must be in (0, 1] (got %v)", toolbox.ErrConfig, c.AccuracyThreshold)
	}
	if _, err := dataset.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %v", toolbox.ErrConfig, err)
	}
	if c.WeightsFile == "" || c.BiasesFile == "" {
		return fmt.Errorf("%w: weights_file and biases_file must be set", toolbox.ErrConfig)
	}
	if c.WeightsFile == c.BiasesFile {
		return fmt.Errorf("%w: weights_file and biases_file must differ (both %s)", toolbox.ErrConfig, c.WeightsFile)
	}
	return nil
}

// Topology describes the network the config trains.  Normalized samples carry
// a parity flag, so Normalize turns on ParityFeature.
func (c *Config) Topology() toolbox.Topology {
	return toolbox.Topology{
		MaxInputSize:  c.MaxInputSize,
		ParityFeature: c.ParityFeature || c.Normalize,
		HiddenWidth:   c.HiddenWidth,
		HiddenOutputs: c.HiddenOutputs,
	}
}

func (c *Config) TrainConfig() toolbox.TrainConfig {
	return toolbox.TrainConfig{
		Epochs:            c.Epochs,
		LearningRate:      c.LearningRate,
		AccuracyThreshold: c.AccuracyThreshold,
		ClipValue:         c.ClipValue,
		LogEvery:          c.LogEvery,
	}
}

// SampleFormat returns the parsed Format.  Call Validate first.
func (c *Config) SampleFormat() dataset.Format {
	f, _ := dataset.ParseFormat(c.Format)
	return f
}
