package nn

import (
	"fmt"

	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights use Xavier initialisation and biases U(-1/sqrt(in), 1/sqrt(in)),
// both drawn from the supplied generator so fixtures are reproducible.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a Linear layer whose parameters are named
// "<name>.weight" and "<name>.bias".
func NewLinear(name string, inFeatures, outFeatures int, device tensor.Device, gen *tensor.Generator) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, device, gen)),
		bias:        NewParameter(name+".bias", FanInUniform(inFeatures, tensor.Shape{outFeatures}, device, gen)),
	}
}

// NewLinearFrom builds a Linear layer from existing tensors. bias may be nil.
func NewLinearFrom(name string, weight, bias *tensor.RawTensor) *Linear {
	shape := weight.Shape()
	l := &Linear{
		inFeatures:  shape[1],
		outFeatures: shape[0],
		weight:      NewParameter(name+".weight", weight),
	}
	if bias != nil {
		l.bias = NewParameter(name+".bias", bias)
	}
	return l
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(g *graph.Graph, x *graph.Value) *graph.Value {
	shape := x.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != l.inFeatures {
		g.SetErr(fmt.Errorf("linear: expected last dimension %d, got shape %v", l.inFeatures, shape))
	}
	y := x.MatMul(l.weight.Value(g).T())
	if l.bias != nil {
		y = y.Add(l.bias.Value(g))
	}
	return y
}

// Parameters returns the weight and, if present, the bias.
func (l *Linear) Parameters() []*Parameter {
	if l.bias == nil {
		return []*Parameter{l.weight}
	}
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter {
	return l.bias
}
