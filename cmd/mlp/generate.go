package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/ahmedtd/binmlp/dataset"
	"github.com/ahmedtd/binmlp/toolbox"
	"github.com/google/subcommands"
)

type GenerateCommand struct {
	outFile   string
	n         int
	width     int
	threshold float64
	seed      int64
}

var _ subcommands.Command = (*GenerateCommand)(nil)

func (*GenerateCommand) Name() string {
	return "generate"
}

func (*GenerateCommand) Synopsis() string {
	return "Write a synthetic digit data set"
}

func (*GenerateCommand) Usage() string {
	return `generate --out=train.txt [-n=1000] [--width=9]

Each sample is a string of random digits labeled 1 iff the digit sum is
above the threshold.
`
}

func (c *GenerateCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outFile, "out", "train.txt", "Path to write samples to")
	f.IntVar(&c.n, "n", 1000, "Number of samples")
	f.IntVar(&c.width, "width", toolbox.MaxInputSize, "Digits per sample")
	f.Float64Var(&c.threshold, "threshold", -1, "Digit sum above which a sample is labeled 1; defaults to 4.5 per digit")
	f.Int64Var(&c.seed, "seed", 12345, "Random seed")
}

func (c *GenerateCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *GenerateCommand) executeErr(ctx context.Context) error {
	if c.n <= 0 {
		return fmt.Errorf("sample count must be positive (got %d)", c.n)
	}
	if c.width < toolbox.MinInputSize || c.width > toolbox.MaxInputSize {
		return fmt.Errorf("width must be between %d and %d (got %d)", toolbox.MinInputSize, toolbox.MaxInputSize, c.width)
	}
	threshold := float32(c.threshold)
	if c.threshold < 0 {
		threshold = 4.5 * float32(c.width)
	}

	samples := dataset.Synthetic(c.n, c.width, threshold, rand.New(rand.NewSource(c.seed)))
	zeros, ones := dataset.Balance(samples)
	log.Printf("generated data set has %d 1s and %d 0s", ones, zeros)

	f, err := os.Create(c.outFile)
	if err != nil {
		return fmt.Errorf("while creating output file: %w", err)
	}
	defer f.Close()

	if err := dataset.WriteDigits(f, samples); err != nil {
		return fmt.Errorf("while writing samples: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing output file: %w", err)
	}
	log.Printf("wrote %d samples to %s", len(samples), c.outFile)
	return nil
}
