package toolbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Tensor is a named parameter block as stored in a checkpoint.
type Tensor struct {
	V     []float32
	Shape []int
}

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// Headers larger than this are rejected rather than allocated.
const maxSafeTensorsHeader = 1 << 24

// WriteSafeTensors encodes tensors as little-endian F32 in key order.  Every
// tensor is checked against its shape before anything is written.
func WriteSafeTensors(w io.Writer, tensors map[string]*Tensor) error {
	keys := slices.Sorted(maps.Keys(tensors))

	header := make(map[string]SafeTensorInfo, len(keys))
	end := 0
	for _, k := range keys {
		t := tensors[k]
		size, err := tensorSize(t.Shape)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", k, err)
		}
		if size != len(t.V) {
			return fmt.Errorf("tensor %s has %d values but shape %v", k, len(t.V), t.Shape)
		}
		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       t.Shape,
			DataOffsets: []int{end, end + 4*size},
		}
		end += 4 * size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	buf := make([]byte, 0, 8+len(headerBytes)+end)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	for _, k := range keys {
		buf, err = binary.Append(buf, binary.LittleEndian, tensors[k].V)
		if err != nil {
			return fmt.Errorf("while encoding %s values: %w", k, err)
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("while writing safetensors: %w", err)
	}
	return nil
}

// tensorSize is the element count of shape.  A scalar has an empty shape.
func tensorSize(shape []int) (int, error) {
	size := 1
	for _, s := range shape {
		if s < 1 {
			return 0, fmt.Errorf("bad shape %v", shape)
		}
		size *= s
	}
	return size, nil
}

func ReadSafeTensors(r io.Reader) (map[string]*Tensor, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLen > maxSafeTensorsHeader {
		return nil, fmt.Errorf("header length %d exceeds %d", headerLen, maxSafeTensorsHeader)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	header := map[string]SafeTensorInfo{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("while parsing header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("while reading tensor data: %w", err)
	}

	tensors := map[string]*Tensor{}
	for k, hdr := range header {
		if hdr.DType != "F32" {
			return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
		}

		size, err := tensorSize(hdr.Shape)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", k, err)
		}

		if len(hdr.DataOffsets) != 2 {
			return nil, fmt.Errorf("bad data offsets %v for %s", hdr.DataOffsets, k)
		}
		begin, end := hdr.DataOffsets[0], hdr.DataOffsets[1]
		if begin < 0 || end > len(data) || end-begin != size*4 {
			return nil, fmt.Errorf("data offsets %v for %s do not match shape %v", hdr.DataOffsets, k, hdr.Shape)
		}

		raw := data[begin:end]
		v := make([]float32, size)
		if _, err := binary.Decode(raw, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("while decoding %s values: %w", k, err)
		}

		tensors[k] = &Tensor{
			V:     v,
			Shape: hdr.Shape,
		}
	}

	return tensors, nil
}
