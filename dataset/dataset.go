// Package dataset reads labeled samples for the toolbox trainer.
//
// Two line-oriented text shapes are understood:
//
//	DigitFormat  "472915,1"  each digit before the comma is one feature
//	FloatFormat  "0.5,1.25,3,0"  comma-separated floats, the last is the label
//
// Malformed lines are logged and skipped; a load never fails as a whole.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/binmlp/toolbox"
)

type Format int

const (
	DigitFormat Format = iota
	FloatFormat
	NPZFormat
)

func (f Format) String() string {
	switch f {
	case DigitFormat:
		return "digits"
	case FloatFormat:
		return "floats"
	case NPZFormat:
		return "npz"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "digits", "digit", "":
		return DigitFormat, nil
	case "floats", "float", "csv":
		return FloatFormat, nil
	case "npz":
		return NPZFormat, nil
	default:
		return 0, fmt.Errorf("unknown sample format %q", s)
	}
}

// ReadDigits parses DigitFormat lines.
func ReadDigits(r io.Reader) []toolbox.Sample {
	samples := []toolbox.Sample{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		digits, rest, found := strings.Cut(line, ",")
		if !found {
			log.Printf("Warning: no label at line %d", lineNo)
			continue
		}

		features := []float32{}
		for _, c := range digits {
			if c < '0' || c > '9' {
				log.Printf("Warning: non-digit character %q found in input at line %d", c, lineNo)
				continue
			}
			features = append(features, float32(c-'0'))
		}

		label, err := parseLabel(rest)
		if err != nil {
			log.Printf("Warning: %v at line %d", err, lineNo)
			continue
		}

		if len(features) == 0 {
			log.Printf("Warning: empty input at line %d", lineNo)
			continue
		}

		samples = append(samples, toolbox.Sample{Features: features, Label: label})
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Warning: stopped reading samples after line %d: %v", lineNo, err)
	}
	return samples
}

// parseLabel reads the leading integer of s, ignoring anything after it.
func parseLabel(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("unable to read label")
	}
	label, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("unable to read label %q", fields[0])
	}
	if label != 0 && label != 1 {
		return 0, fmt.Errorf("invalid label %d, expected 0 or 1", label)
	}
	return label, nil
}

// ReadFloats parses FloatFormat lines.  The label token is truncated toward
// zero before the {0, 1} check.
func ReadFloats(r io.Reader) []toolbox.Sample {
	samples := []toolbox.Sample{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		values := []float32{}
		if line != "" {
			for _, tok := range strings.Split(line, ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(tok), 32)
				if err != nil {
					log.Printf("Warning: invalid float value %q found in input at line %d", tok, lineNo)
					continue
				}
				values = append(values, float32(v))
			}
		}

		if len(values) == 0 {
			log.Printf("Warning: empty input at line %d", lineNo)
			continue
		}

		label := int(values[len(values)-1])
		values = values[:len(values)-1]
		if label != 0 && label != 1 {
			log.Printf("Warning: invalid label %d at line %d, expected 0 or 1", label, lineNo)
			continue
		}
		if len(values) == 0 {
			log.Printf("Warning: no features at line %d", lineNo)
			continue
		}

		samples = append(samples, toolbox.Sample{Features: values, Label: label})
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Warning: stopped reading samples after line %d: %v", lineNo, err)
	}
	return samples
}

// ParseFeatures reads an unlabeled feature string: a run of digits for
// DigitFormat, comma-separated floats for FloatFormat.  Unlike the file
// readers, any bad character is an error.
func ParseFeatures(s string, format Format) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty input")
	}

	features := []float32{}
	switch format {
	case DigitFormat:
		for _, c := range s {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("non-digit character %q in %q", c, s)
			}
			features = append(features, float32(c-'0'))
		}
	case FloatFormat:
		for _, tok := range strings.Split(s, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 32)
			if err != nil {
				return nil, fmt.Errorf("invalid float value %q in %q", tok, s)
			}
			features = append(features, float32(v))
		}
	default:
		return nil, fmt.Errorf("format %v has no single-sample text form", format)
	}
	return features, nil
}

func LoadDigits(path string) []toolbox.Sample {
	return loadText(path, ReadDigits)
}

func LoadFloats(path string) []toolbox.Sample {
	return loadText(path, ReadFloats)
}

func loadText(path string, read func(io.Reader) []toolbox.Sample) []toolbox.Sample {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Error: unable to open sample file %s: %v", path, err)
		return []toolbox.Sample{}
	}
	defer f.Close()

	samples := read(f)
	log.Printf("read %d samples from %s", len(samples), path)
	return samples
}

// Load reads path in the given format.  NPZ files use the "x" and "y" arrays.
// Like the text loaders, failures are logged and produce an empty result.
func Load(path string, format Format) []toolbox.Sample {
	switch format {
	case DigitFormat:
		return LoadDigits(path)
	case FloatFormat:
		return LoadFloats(path)
	case NPZFormat:
		samples, err := LoadNPZ(path, "x", "y")
		if err != nil {
			log.Printf("Error: %v", err)
			return []toolbox.Sample{}
		}
		return samples
	default:
		log.Printf("Error: unknown sample format %v", format)
		return []toolbox.Sample{}
	}
}

// WriteDigits writes samples in DigitFormat.  Features are truncated to
// integers; values outside 0..9 are an error.
func WriteDigits(w io.Writer, samples []toolbox.Sample) error {
	bw := bufio.NewWriter(w)
	for k, s := range samples {
		var line strings.Builder
		for _, v := range s.Features {
			d := int(v)
			if d < 0 || d > 9 {
				return fmt.Errorf("sample %d: feature %v is not a digit", k, v)
			}
			line.WriteByte(byte('0' + d))
		}
		fmt.Fprintf(&line, ",%d\n", s.Label)
		if _, err := bw.WriteString(line.String()); err != nil {
			return fmt.Errorf("while writing sample %d: %w", k, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while flushing samples: %w", err)
	}
	return nil
}
