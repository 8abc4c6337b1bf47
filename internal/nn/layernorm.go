package nn

import (
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// LayerNorm normalises over the last dimension and applies a learnable
// scale (initialised to ones) and shift (initialised to zeros).
type LayerNorm struct {
	normShape tensor.Shape
	eps       float64
	weight    *Parameter
	bias      *Parameter
}

// NewLayerNorm creates a LayerNorm over a trailing dimension of size dim.
func NewLayerNorm(name string, dim int, device tensor.Device) *LayerNorm {
	shape := tensor.Shape{dim}
	return &LayerNorm{
		normShape: shape,
		eps:       1e-5,
		weight:    NewParameter(name+".weight", tensor.Ones(shape, tensor.Float32, device)),
		bias:      NewParameter(name+".bias", tensor.Zeros(shape, tensor.Float32, device)),
	}
}

// Forward normalises x.
func (ln *LayerNorm) Forward(g *graph.Graph, x *graph.Value) *graph.Value {
	return x.LayerNorm(ln.weight.Value(g), ln.bias.Value(g), ln.normShape, ln.eps)
}

// Parameters returns the scale and shift.
func (ln *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{ln.weight, ln.bias}
}
