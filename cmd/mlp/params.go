package main

import (
	"fmt"
	"os"

	"github.com/ahmedtd/binmlp/config"
	"github.com/ahmedtd/binmlp/paramio"
	"github.com/ahmedtd/binmlp/toolbox"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadParameters(net *toolbox.Network, cfg *config.Config) error {
	weights := paramio.Load(cfg.WeightsFile)
	biases := paramio.Load(cfg.BiasesFile)
	if err := net.SetWeightsBiases(weights, biases); err != nil {
		return fmt.Errorf("while loading %s and %s: %w", cfg.WeightsFile, cfg.BiasesFile, err)
	}
	return nil
}

func loadCheckpoint(net *toolbox.Network, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("while opening checkpoint: %w", err)
	}
	defer f.Close()

	tensors, err := toolbox.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading checkpoint %s: %w", path, err)
	}
	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while loading checkpoint %s: %w", path, err)
	}
	return nil
}

func saveCheckpoint(net *toolbox.Network, path string) error {
	tensors := map[string]*toolbox.Tensor{}
	net.DumpTensors(tensors)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing checkpoint file: %w", err)
	}
	return nil
}

// loadTrained loads parameters for inference, preferring a checkpoint.
func loadTrained(cfg *config.Config, checkpoint string) (*toolbox.Network, error) {
	net, err := toolbox.MakeNetwork(cfg.Topology(), nil)
	if err != nil {
		return nil, fmt.Errorf("while making network: %w", err)
	}
	if checkpoint != "" {
		if err := loadCheckpoint(net, checkpoint); err != nil {
			return nil, err
		}
		return net, nil
	}
	if !fileExists(cfg.WeightsFile) || !fileExists(cfg.BiasesFile) {
		return nil, fmt.Errorf("no trained parameters at %s and %s", cfg.WeightsFile, cfg.BiasesFile)
	}
	if err := loadParameters(net, cfg); err != nil {
		return nil, err
	}
	return net, nil
}
