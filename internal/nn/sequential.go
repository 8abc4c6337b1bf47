package nn

import (
	"github.com/born-ml/golden/internal/graph"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. A module may appear
// more than once; its parameters are then shared.
//
// Example:
//
//	ln := nn.NewLayerNorm("ln", 10, device)
//	model := nn.NewSequential(ln, nn.NewReLU(), ln, nn.NewReLU())
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(g *graph.Graph, x *graph.Value) *graph.Value {
	out := x
	for _, m := range s.modules {
		out = m.Forward(g, out)
	}
	return out
}

// Parameters returns the parameters of every module, each shared parameter
// listed once.
func (s *Sequential) Parameters() []*Parameter {
	seen := make(map[*Parameter]bool)
	var params []*Parameter
	for _, m := range s.modules {
		for _, p := range m.Parameters() {
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
		}
	}
	return params
}

// Eval puts every module that supports it into evaluation mode.
func (s *Sequential) Eval() *Sequential {
	s.setTraining(false)
	return s
}

// Train puts every module that supports it into training mode.
func (s *Sequential) Train() *Sequential {
	s.setTraining(true)
	return s
}

func (s *Sequential) setTraining(training bool) {
	for _, m := range s.modules {
		if t, ok := m.(interface{ SetTraining(bool) }); ok {
			t.SetTraining(training)
		}
	}
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}
