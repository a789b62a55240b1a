package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// LayerWeights is one dense layer as exported from training: Weight is
// out x in (row-major), Bias has out elements.
type LayerWeights struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias"`
}

// MLPWeights is the on-disk weights format.
type MLPWeights struct {
	Activation string         `json:"activation"`
	Layers     []LayerWeights `json:"layers"`
}

type dense struct {
	w *mat.Dense
	b *mat.VecDense
}

// MLP is a feed-forward actor network. Hidden layers apply the activation,
// the output layer is linear.
type MLP struct {
	layers     []dense
	activation func(float64) float64
	actName    string
}

const maxWeightsSize = 256 * 1024 * 1024

// LoadMLP reads a JSON weights file.
func LoadMLP(path string) (*MLP, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("weights file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat weights file: %w", err)
	}
	if info.Size() > maxWeightsSize {
		return nil, fmt.Errorf("weights file too large: %d bytes (max %d)", info.Size(), maxWeightsSize)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	var w MLPWeights
	if err := json.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse weights JSON: %w", err)
	}
	return NewMLP(w)
}

// NewMLP builds an MLP, checking that every layer is rectangular and that
// each layer's input width matches the previous layer's output.
func NewMLP(w MLPWeights) (*MLP, error) {
	act, err := activationByName(w.Activation)
	if err != nil {
		return nil, err
	}
	if len(w.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrShape)
	}

	m := &MLP{activation: act, actName: w.Activation}
	prevOut := 0
	for i, l := range w.Layers {
		rows := len(l.Weight)
		if rows == 0 {
			return nil, fmt.Errorf("%w: layer %d has no rows", ErrShape, i)
		}
		cols := len(l.Weight[0])
		if i > 0 && cols != prevOut {
			return nil, fmt.Errorf("%w: layer %d takes %d inputs, previous layer yields %d", ErrShape, i, cols, prevOut)
		}
		if len(l.Bias) != rows {
			return nil, fmt.Errorf("%w: layer %d bias has %d elements, want %d", ErrShape, i, len(l.Bias), rows)
		}
		data := make([]float64, 0, rows*cols)
		for r, row := range l.Weight {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: layer %d row %d has %d columns, want %d", ErrShape, i, r, len(row), cols)
			}
			data = append(data, row...)
		}
		bias := make([]float64, rows)
		copy(bias, l.Bias)
		m.layers = append(m.layers, dense{w: mat.NewDense(rows, cols, data), b: mat.NewVecDense(rows, bias)})
		prevOut = rows
	}
	return m, nil
}

// InSize returns the expected observation length.
func (m *MLP) InSize() int {
	_, c := m.layers[0].w.Dims()
	return c
}

// OutSize returns the action length.
func (m *MLP) OutSize() int {
	r, _ := m.layers[len(m.layers)-1].w.Dims()
	return r
}

// Sizes returns the width of every layer boundary, input first.
func (m *MLP) Sizes() []int {
	sizes := []int{m.InSize()}
	for _, l := range m.layers {
		r, _ := l.w.Dims()
		sizes = append(sizes, r)
	}
	return sizes
}

// Activation returns the hidden-layer activation name.
func (m *MLP) Activation() string {
	if m.actName == "" {
		return "elu"
	}
	return m.actName
}

// Infer runs the forward pass. The returned slice is freshly allocated.
func (m *MLP) Infer(obs []float64) ([]float64, error) {
	if len(obs) != m.InSize() {
		return nil, fmt.Errorf("%w: observation has %d elements, want %d", ErrShape, len(obs), m.InSize())
	}
	in := make([]float64, len(obs))
	copy(in, obs)
	x := mat.NewVecDense(len(in), in)

	for i, l := range m.layers {
		r, _ := l.w.Dims()
		y := mat.NewVecDense(r, nil)
		y.MulVec(l.w, x)
		y.AddVec(y, l.b)
		if i < len(m.layers)-1 {
			for j := 0; j < r; j++ {
				y.SetVec(j, m.activation(y.AtVec(j)))
			}
		}
		x = y
	}

	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

func activationByName(name string) (func(float64) float64, error) {
	switch name {
	case "", "elu":
		return elu, nil
	case "relu":
		return func(v float64) float64 { return math.Max(v, 0) }, nil
	case "tanh":
		return math.Tanh, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}

func elu(v float64) float64 {
	if v > 0 {
		return v
	}
	return math.Expm1(v)
}
