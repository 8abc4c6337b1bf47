// Package nn implements the neural network modules used by model fixtures.
//
// Modules are written against *graph.Graph, so one module definition serves
// both the eager reference interpreter and the tracer:
//   - Module interface: Forward plus the parameters it owns
//   - Parameter: a named tensor captured by the tracer as a program constant
//   - Linear, LayerNorm: layers with parameters
//   - ReLU, Sigmoid, Tanh, Dropout: parameter-free layers
//   - Sequential: container for stacking layers
package nn

import (
	"github.com/born-ml/golden/internal/graph"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input value.
	Forward(g *graph.Graph, x *graph.Value) *graph.Value

	// Parameters returns all parameters of this module, including those of
	// nested modules. Modules without parameters return nil.
	Parameters() []*Parameter
}

// AsModel adapts a single-input Module to graph.Model.
func AsModel(m Module) graph.Model {
	return graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		x, ok := args[0].(*graph.Value)
		if !ok {
			panic("nn module expects a single tensor input")
		}
		return m.Forward(g, x)
	})
}
