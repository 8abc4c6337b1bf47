package nn

import (
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// Parameter is a named tensor owned by a module.
//
// Example:
//
//	weight := nn.NewParameter("linear.weight", raw)
//	w := weight.Value(g) // usable inside Forward
type Parameter struct {
	name string
	data *tensor.RawTensor
}

// NewParameter creates a parameter around an initialised tensor.
func NewParameter(name string, data *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, data: data}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.data
}

// Value exposes the parameter to a forward pass.
func (p *Parameter) Value(g *graph.Graph) *graph.Value {
	return g.Param(p.name, p.data)
}

// MoveTo replaces the tensor with a copy on device.
func (p *Parameter) MoveTo(device tensor.Device) {
	p.data = p.data.To(device)
}
