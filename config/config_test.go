package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmedtd/binmlp/dataset"
	"github.com/ahmedtd/binmlp/toolbox"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	if diff := cmp.Diff(cfg.Topology(), toolbox.DefaultTopology(9)); diff != "" {
		t.Errorf("Wrong default topology; diff (-got +want)\n%s", diff)
	}
	want := toolbox.DefaultTrainConfig()
	want.LogEvery = 1
	if diff := cmp.Diff(cfg.TrainConfig(), want); diff != "" {
		t.Errorf("Wrong default train config; diff (-got +want)\n%s", diff)
	}
	assert.Equal(t, dataset.DigitFormat, cfg.SampleFormat())
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
epochs: 5
learning_rate: 0.01
parity_feature: true
format: floats
checkpoint_file: net.safetensors
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, float32(0.01), cfg.LearningRate)
	assert.True(t, cfg.ParityFeature)
	assert.Equal(t, 10, cfg.Topology().InputWidth())
	assert.Equal(t, dataset.FloatFormat, cfg.SampleFormat())
	assert.Equal(t, "net.safetensors", cfg.CheckpointFile)

	assert.Equal(t, 64, cfg.HiddenWidth)
	assert.Equal(t, "weights.txt", cfg.WeightsFile)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, Default()); diff != "" {
		t.Fatalf("Empty document changed defaults; diff (-got +want)\n%s", diff)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("epochs: 3\nbatch_size: 8\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("epochs: lots\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(c *Config)
	}{
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"learning rate too big", func(c *Config) { c.LearningRate = 2 }},
		{"input too wide", func(c *Config) { c.MaxInputSize = 12 }},
		{"no hidden width", func(c *Config) { c.HiddenWidth = 0 }},
		{"threshold above one", func(c *Config) { c.AccuracyThreshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.AccuracyThreshold = 0 }},
		{"negative clip", func(c *Config) { c.ClipValue = -1 }},
		{"bad format", func(c *Config) { c.Format = "parquet" }},
		{"no weights file", func(c *Config) { c.WeightsFile = "" }},
		{"same parameter files", func(c *Config) { c.BiasesFile = c.WeightsFile }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), toolbox.ErrConfig)
		})
	}

	var nilConfig *Config
	require.ErrorIs(t, nilConfig.Validate(), toolbox.ErrConfig)
}

func TestNormalizeWidensInput(t *testing.T) {
	cfg, err := Parse(strings.NewReader("normalize: true\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.ParityFeature)
	assert.True(t, cfg.Topology().ParityFeature)
	assert.Equal(t, 10, cfg.Topology().InputWidth())

	// Nine normalized digits fit the network the config builds.
	net, err := toolbox.MakeNetwork(cfg.Topology(), nil)
	require.NoError(t, err)
	features, err := dataset.Normalize([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	_, err = net.Predict(features)
	require.NoError(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		TrainFile:    "a.txt",
		Epochs:       7,
		LearningRate: 0.5,
		LogEvery:     -1,
	})

	assert.Equal(t, "a.txt", cfg.TrainFile)
	assert.Equal(t, "test.txt", cfg.TestFile)
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, float32(0.5), cfg.LearningRate)
	assert.Equal(t, -1, cfg.LogEvery)
	assert.Equal(t, int64(42), cfg.Seed)

	before := *cfg
	cfg.ApplyOverrides(Overrides{})
	assert.Equal(t, before, *cfg)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 12\nseed: 7\nhidden_width: 16\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Epochs)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 16, cfg.HiddenWidth)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("epochs: -1\n"), 0o644))
	_, err = Load(bad)
	require.ErrorIs(t, err, toolbox.ErrConfig)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
