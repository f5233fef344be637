// Package paramio stores flat parameter sequences as plain text, one value
// per line with no header or length prefix.
package paramio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

func Write(w io.Writer, values []float32) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		if _, err := bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32)); err != nil {
			return fmt.Errorf("while writing value: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("while writing value: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while flushing values: %w", err)
	}
	return nil
}

func Save(path string, values []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating parameter file: %w", err)
	}
	if err := Write(f, values); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing parameter file: %w", err)
	}
	return nil
}

// Read parses values in order.  Blank lines are skipped; reading stops at the
// first line that is not a number, and the values before it are returned
// along with an error describing the bad line.
func Read(r io.Reader) ([]float32, error) {
	values := []float32{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 32)
		if err != nil {
			return values, fmt.Errorf("line %d: %w", lineNo, err)
		}
		values = append(values, float32(v))
	}
	if err := scanner.Err(); err != nil {
		return values, fmt.Errorf("while scanning values: %w", err)
	}
	return values, nil
}

// Load reads the parameter file at path.  Failures are logged, not returned:
// an unreadable file yields an empty result, and a malformed file yields the
// values before the first bad line.  Callers must check the length against
// what their network expects.
func Load(path string) []float32 {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Error: unable to open parameter file %s: %v", path, err)
		return []float32{}
	}
	defer f.Close()

	values, err := Read(f)
	if err != nil {
		log.Printf("Warning: stopped reading %s after %d values: %v", path, len(values), err)
	}
	return values
}
