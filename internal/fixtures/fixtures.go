// Package fixtures is the zoo of named models the harness checks.
//
// Every fixture builds its parameters and example inputs from one seeded
// generator, so a (name, device, seed) triple always yields the same
// scenario.
package fixtures

import (
	"fmt"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// Scenario is a model together with the inputs and settings it is checked
// with.
type Scenario struct {
	Name  string
	Model graph.Model

	// Inputs are the example inputs the model is compiled with.
	Inputs []any
	// Extra holds further input sets served by the same compiled artifact.
	Extra [][]any

	Constraints []compiler.Constraint
	Options     map[string]any
}

// InputSets returns Inputs followed by Extra.
func (s *Scenario) InputSets() [][]any {
	return append([][]any{s.Inputs}, s.Extra...)
}

// Builder creates a scenario on device from seed.
type Builder func(device tensor.Device, seed int64) *Scenario

type entry struct {
	name  string
	build Builder
}

var registry []entry

func register(name string, build Builder) {
	for _, e := range registry {
		if e.name == name {
			panic("fixtures: duplicate fixture " + name)
		}
	}
	registry = append(registry, entry{name: name, build: build})
}

// Names lists every fixture in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	return names
}

// Build creates the named scenario.
func Build(name string, device tensor.Device, seed int64) (*Scenario, error) {
	for _, e := range registry {
		if e.name == name {
			s := e.build(device, seed)
			s.Name = name
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown fixture %q", name)
}

func randn(gen *tensor.Generator, device tensor.Device, shape ...int) *tensor.RawTensor {
	return tensor.Randn(tensor.Shape(shape), tensor.Float32, device, gen)
}

func rand(gen *tensor.Generator, device tensor.Device, shape ...int) *tensor.RawTensor {
	return tensor.Rand(tensor.Shape(shape), tensor.Float32, device, gen)
}

func args(g *graph.Graph, in []any, n int) []*graph.Value {
	if len(in) != n {
		g.SetErr(fmt.Errorf("expected %d inputs, got %d", n, len(in)))
		return nil
	}
	out := make([]*graph.Value, n)
	for i, a := range in {
		v, ok := a.(*graph.Value)
		if !ok {
			g.SetErr(fmt.Errorf("input %d is %T, not a tensor", i, a))
			return nil
		}
		out[i] = v
	}
	return out
}

// model2 adapts a two-tensor forward function.
func model2(f func(g *graph.Graph, x, y *graph.Value) any) graph.Model {
	return graph.ModelFunc(func(g *graph.Graph, in ...any) any {
		v := args(g, in, 2)
		if v == nil {
			return nil
		}
		return f(g, v[0], v[1])
	})
}

// model1 adapts a single-tensor forward function.
func model1(f func(g *graph.Graph, x *graph.Value) any) graph.Model {
	return graph.ModelFunc(func(g *graph.Graph, in ...any) any {
		v := args(g, in, 1)
		if v == nil {
			return nil
		}
		return f(g, v[0])
	})
}
