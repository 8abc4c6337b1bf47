package nn

import (
	"github.com/born-ml/golden/internal/graph"
)

// ReLU applies max(x, 0).
type ReLU struct{}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

// Forward applies the activation.
func (r *ReLU) Forward(_ *graph.Graph, x *graph.Value) *graph.Value { return x.ReLU() }

// Parameters returns nil.
func (r *ReLU) Parameters() []*Parameter { return nil }

// Sigmoid applies 1/(1+e^-x).
type Sigmoid struct{}

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// Forward applies the activation.
func (s *Sigmoid) Forward(_ *graph.Graph, x *graph.Value) *graph.Value { return x.Sigmoid() }

// Parameters returns nil.
func (s *Sigmoid) Parameters() []*Parameter { return nil }

// Tanh applies the hyperbolic tangent.
type Tanh struct{}

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return &Tanh{} }

// Forward applies the activation.
func (t *Tanh) Forward(_ *graph.Graph, x *graph.Value) *graph.Value { return x.Tanh() }

// Parameters returns nil.
func (t *Tanh) Parameters() []*Parameter { return nil }

// Dropout zeroes activations with probability P while training and is the
// identity in evaluation mode.
type Dropout struct {
	P        float64
	training bool
}

// NewDropout creates a Dropout layer in training mode.
func NewDropout(p float64) *Dropout {
	return &Dropout{P: p, training: true}
}

// SetTraining switches between training and evaluation behaviour.
func (d *Dropout) SetTraining(training bool) { d.training = training }

// Forward applies dropout when training.
func (d *Dropout) Forward(_ *graph.Graph, x *graph.Value) *graph.Value {
	if !d.training || d.P == 0 {
		return x
	}
	return x.Dropout(d.P)
}

// Parameters returns nil.
func (d *Dropout) Parameters() []*Parameter { return nil }
