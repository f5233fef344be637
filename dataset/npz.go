package dataset

import (
	"fmt"
	"log"
	"strings"

	"github.com/ahmedtd/binmlp/toolbox"
	"github.com/sbinet/npyio/npz"
)

// LoadNPZ reads samples from a NumPy .npz archive.  xKey names a 2-D array
// with one row per sample; yKey names a 1-D array of labels.  Rows whose
// label is not 0 or 1 are skipped with a warning.
func LoadNPZ(path, xKey, yKey string) ([]toolbox.Sample, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()

	xKey, ok := resolveKey(r, xKey)
	if !ok {
		return nil, fmt.Errorf("no array %s in %s", xKey, path)
	}
	yKey, ok = resolveKey(r, yKey)
	if !ok {
		return nil, fmt.Errorf("no array %s in %s", yKey, path)
	}

	// numpy writes C-style layouts, so each row is contiguous.
	xHeader := r.Header(xKey)
	if len(xHeader.Descr.Shape) != 2 {
		return nil, fmt.Errorf("array %s has shape %v, want 2 dimensions", xKey, xHeader.Descr.Shape)
	}
	rows, cols := xHeader.Descr.Shape[0], xHeader.Descr.Shape[1]

	x, err := readFloat32s(r, xKey)
	if err != nil {
		return nil, err
	}
	y, err := readFloat32s(r, yKey)
	if err != nil {
		return nil, err
	}
	if len(x) != rows*cols {
		return nil, fmt.Errorf("array %s has %d values, want %d", xKey, len(x), rows*cols)
	}
	if len(y) != rows {
		return nil, fmt.Errorf("array %s has %d labels for %d rows", yKey, len(y), rows)
	}

	samples := make([]toolbox.Sample, 0, rows)
	for k := 0; k < rows; k++ {
		label := int(y[k])
		if label != 0 && label != 1 {
			log.Printf("Warning: invalid label %v at row %d of %s, expected 0 or 1", y[k], k, path)
			continue
		}
		features := make([]float32, cols)
		copy(features, x[k*cols:(k+1)*cols])
		samples = append(samples, toolbox.Sample{Features: features, Label: label})
	}
	return samples, nil
}

// resolveKey accepts array names with or without the .npy suffix numpy adds
// inside the archive.
func resolveKey(r *npz.Reader, name string) (string, bool) {
	if r.Header(name) != nil {
		return name, true
	}
	if !strings.HasSuffix(name, ".npy") && r.Header(name+".npy") != nil {
		return name + ".npy", true
	}
	return name, false
}

func readFloat32s(r *npz.Reader, name string) ([]float32, error) {
	header := r.Header(name)
	if header == nil {
		return nil, fmt.Errorf("no array %s", name)
	}

	switch header.Descr.Type {
	case "<f4":
		var raw []float32
		if err := r.Read(name, &raw); err != nil {
			return nil, fmt.Errorf("while reading float32 array %s: %w", name, err)
		}
		return raw, nil
	case "<f8":
		var raw []float64
		if err := r.Read(name, &raw); err != nil {
			return nil, fmt.Errorf("while reading float64 array %s: %w", name, err)
		}
		return convert(raw), nil
	case "|u1":
		var raw []uint8
		if err := r.Read(name, &raw); err != nil {
			return nil, fmt.Errorf("while reading uint8 array %s: %w", name, err)
		}
		return convert(raw), nil
	case "<i8":
		var raw []int64
		if err := r.Read(name, &raw); err != nil {
			return nil, fmt.Errorf("while reading int64 array %s: %w", name, err)
		}
		return convert(raw), nil
	default:
		return nil, fmt.Errorf("array %s has unsupported dtype %s", name, header.Descr.Type)
	}
}

func convert[T float64 | uint8 | int64](raw []T) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}
