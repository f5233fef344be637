package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
)

const (
	MinInputSize = 1
	MaxInputSize = 9

	DefaultHiddenWidth   = 64
	DefaultHiddenOutputs = 1

	maxHiddenWidth = 4096
)

// Topology fixes the widths of the three layers.
type Topology struct {
	// MaxInputSize is the longest raw feature sequence accepted, 1 through 9.
	MaxInputSize int

	// ParityFeature widens the input by one slot for the parity flag
	// appended by feature normalization.
	ParityFeature bool

	// HiddenWidth is the width of the input layer's output and of the shared
	// buffer the hidden and output layers read from.
	HiddenWidth int

	// HiddenOutputs is the number of hidden neurons actually computed.  They
	// overwrite the front of the shared buffer.
	HiddenOutputs int
}

func DefaultTopology(maxInputSize int) Topology {
	return Topology{
		MaxInputSize:  maxInputSize,
		HiddenWidth:   DefaultHiddenWidth,
		HiddenOutputs: DefaultHiddenOutputs,
	}
}

// InputWidth is the padded width fed to the input layer.
func (t Topology) InputWidth() int {
	if t.ParityFeature {
		return t.MaxInputSize + 1
	}
	return t.MaxInputSize
}

func (t Topology) Validate() error {
	if t.MaxInputSize < MinInputSize || t.MaxInputSize > MaxInputSize {
		return fmt.Errorf("%w: max input size must be between %d and %d (got %d)", ErrConfig, MinInputSize, MaxInputSize, t.MaxInputSize)
	}
	if t.HiddenWidth < 1 || t.HiddenWidth > maxHiddenWidth {
		return fmt.Errorf("%w: hidden width must be between 1 and %d (got %d)", ErrConfig, maxHiddenWidth, t.HiddenWidth)
	}
	if t.HiddenOutputs < 1 || t.HiddenOutputs > t.HiddenWidth {
		return fmt.Errorf("%w: hidden outputs must be between 1 and the hidden width %d (got %d)", ErrConfig, t.HiddenWidth, t.HiddenOutputs)
	}
	return nil
}

// Network is the fixed Input -> Hidden -> Output pipeline.  It is not safe
// for concurrent use.
type Network struct {
	Topology Topology

	input  *Layer
	hidden *Layer
	output *Layer

	padded       []float32 // Shape (InputWidth)
	intermediate []float32 // Shape (max(HiddenWidth, HiddenOutputs))
	out          []float32 // Shape (1)
}

// MakeNetwork builds a network with parameters drawn from r.  A nil r leaves
// every parameter zero, which is useful before SetParameters.
func MakeNetwork(topology Topology, r *rand.Rand) (*Network, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}

	input, err := MakeInput(topology.InputWidth(), topology.HiddenWidth, r)
	if err != nil {
		return nil, fmt.Errorf("while making input layer: %w", err)
	}
	hidden, err := MakeHidden(topology.HiddenWidth, topology.HiddenOutputs, r)
	if err != nil {
		return nil, fmt.Errorf("while making hidden layer: %w", err)
	}
	output, err := MakeOutput(topology.HiddenWidth, r)
	if err != nil {
		return nil, fmt.Errorf("while making output layer: %w", err)
	}

	return &Network{
		Topology:     topology,
		input:        input,
		hidden:       hidden,
		output:       output,
		padded:       make([]float32, topology.InputWidth()),
		intermediate: make([]float32, max(topology.HiddenWidth, topology.HiddenOutputs)),
		out:          make([]float32, 1),
	}, nil
}

func (net *Network) InputLayer() *Layer  { return net.input }
func (net *Network) HiddenLayer() *Layer { return net.hidden }
func (net *Network) OutputLayer() *Layer { return net.output }

func (net *Network) layers() []*Layer {
	return []*Layer{net.input, net.hidden, net.output}
}

// Forward runs features through the three layers.  The features are
// zero-padded to the input width; the result is available from Output.
func (net *Network) Forward(features []float32) error {
	width := net.Topology.InputWidth()
	if len(features) < 1 || len(features) > width {
		return fmt.Errorf("%w: input size must be between 1 and %d (got %d)", ErrDimension, width, len(features))
	}

	clear(net.padded)
	copy(net.padded, features)

	hiddenWidth := net.Topology.HiddenWidth
	if err := net.input.Forward(net.padded, net.intermediate[:hiddenWidth]); err != nil {
		return fmt.Errorf("while applying input layer: %w", err)
	}
	if err := net.hidden.Forward(net.intermediate[:hiddenWidth], net.intermediate[:net.Topology.HiddenOutputs]); err != nil {
		return fmt.Errorf("while applying hidden layer: %w", err)
	}
	if err := net.output.Forward(net.intermediate[:hiddenWidth], net.out); err != nil {
		return fmt.Errorf("while applying output layer: %w", err)
	}
	return nil
}

// Output returns the scalar produced by the last Forward call.
func (net *Network) Output() float32 {
	return net.out[0]
}

// Predict returns a probability-like value in (0, 1).
func (net *Network) Predict(features []float32) (float32, error) {
	if err := net.Forward(features); err != nil {
		return 0, err
	}
	return net.out[0], nil
}

// Classify thresholds Predict at 0.5.
func (net *Network) Classify(features []float32) (int, error) {
	p, err := net.Predict(features)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// Weights concatenates the weights of the input, hidden and output layers in
// that order.
func (net *Network) Weights() []float32 {
	var all []float32
	for _, l := range net.layers() {
		all = append(all, l.W...)
	}
	return all
}

// Biases concatenates the biases of the input, hidden and output layers in
// that order.
func (net *Network) Biases() []float32 {
	var all []float32
	for _, l := range net.layers() {
		all = append(all, l.B...)
	}
	return all
}

// Parameters flattens the network in its persistence order: for each layer
// in order, its weights followed by its biases.
func (net *Network) Parameters() []float32 {
	all := make([]float32, 0, net.ParameterCount())
	for _, l := range net.layers() {
		all = append(all, l.W...)
		all = append(all, l.B...)
	}
	return all
}

func (net *Network) ParameterCount() int {
	total := 0
	for _, l := range net.layers() {
		w, b := l.ParameterCount()
		total += w + b
	}
	return total
}

// SetParameters is the inverse of Parameters.  On a length mismatch the
// network is left unchanged.
func (net *Network) SetParameters(params []float32) error {
	if len(params) != net.ParameterCount() {
		return fmt.Errorf("%w: got %d values, network needs %d", ErrParameterCount, len(params), net.ParameterCount())
	}

	offset := 0
	for _, l := range net.layers() {
		w, b := l.ParameterCount()
		copy(l.W, params[offset:offset+w])
		offset += w
		copy(l.B, params[offset:offset+b])
		offset += b
	}
	return nil
}

// SetWeightsBiases is the inverse of Weights and Biases.  On a length
// mismatch the network is left unchanged.
func (net *Network) SetWeightsBiases(weights, biases []float32) error {
	wantW, wantB := 0, 0
	for _, l := range net.layers() {
		w, b := l.ParameterCount()
		wantW += w
		wantB += b
	}
	if len(weights) != wantW {
		return fmt.Errorf("%w: got %d weights, network needs %d", ErrParameterCount, len(weights), wantW)
	}
	if len(biases) != wantB {
		return fmt.Errorf("%w: got %d biases, network needs %d", ErrParameterCount, len(biases), wantB)
	}

	wOffset, bOffset := 0, 0
	for _, l := range net.layers() {
		w, b := l.ParameterCount()
		copy(l.W, weights[wOffset:wOffset+w])
		copy(l.B, biases[bOffset:bOffset+b])
		wOffset += w
		bOffset += b
	}
	return nil
}

// Randomize redraws every layer's weights from r and zeroes the biases.
func (net *Network) Randomize(r *rand.Rand, bound float32) {
	for _, l := range net.layers() {
		l.Randomize(r, bound)
	}
}

func (net *Network) DumpTensors(tensors map[string]*Tensor) {
	for _, l := range net.layers() {
		tensors[l.Kind.String()+".weights"] = &Tensor{
			V:     slices.Clone(l.W),
			Shape: []int{l.OutputSize, l.InputSize},
		}
		tensors[l.Kind.String()+".biases"] = &Tensor{
			V:     slices.Clone(l.B),
			Shape: []int{l.OutputSize},
		}
	}
}

// LoadTensors restores parameters written by DumpTensors.  Every tensor is
// checked before any layer is modified.
func (net *Network) LoadTensors(tensors map[string]*Tensor) error {
	for _, l := range net.layers() {
		weightKey := l.Kind.String() + ".weights"
		weightTensor, ok := tensors[weightKey]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey)
		}
		wantWeightShape := []int{l.OutputSize, l.InputSize}
		if !slices.Equal(weightTensor.Shape, wantWeightShape) || len(weightTensor.V) != len(l.W) {
			return fmt.Errorf("%w: %s has shape %v, want %v", ErrParameterCount, weightKey, weightTensor.Shape, wantWeightShape)
		}

		biasKey := l.Kind.String() + ".biases"
		biasTensor, ok := tensors[biasKey]
		if !ok {
			return fmt.Errorf("no entry for %s", biasKey)
		}
		wantBiasShape := []int{l.OutputSize}
		if !slices.Equal(biasTensor.Shape, wantBiasShape) || len(biasTensor.V) != len(l.B) {
			return fmt.Errorf("%w: %s has shape %v, want %v", ErrParameterCount, biasKey, biasTensor.Shape, wantBiasShape)
		}
	}

	for _, l := range net.layers() {
		copy(l.W, tensors[l.Kind.String()+".weights"].V)
		copy(l.B, tensors[l.Kind.String()+".biases"].V)
	}
	return nil
}
