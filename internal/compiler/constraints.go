package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

// Dim names one dimension of one flat example input.
type Dim struct {
	Input int
	Axis  int
}

// DynamicDim refers to dimension axis of flat input input. A dimension
// mentioned by any constraint is compiled as dynamic.
func DynamicDim(input, axis int) Dim {
	return Dim{Input: input, Axis: axis}
}

// String formats the dimension like dynamic_dim(0, 1).
func (d Dim) String() string {
	return fmt.Sprintf("dynamic_dim(%d, %d)", d.Input, d.Axis)
}

// GE constrains the dimension to be at least n.
func (d Dim) GE(n int) Constraint {
	return Constraint{Dim: d, Kind: ConstraintGE, Bound: n}
}

// LE constrains the dimension to be at most n.
func (d Dim) LE(n int) Constraint {
	return Constraint{Dim: d, Kind: ConstraintLE, Bound: n}
}

// Eq constrains the dimension to equal other at every call.
func (d Dim) Eq(other Dim) Constraint {
	return Constraint{Dim: d, Kind: ConstraintEq, Other: other}
}

// ConstraintKind is the relation a Constraint expresses.
type ConstraintKind int

// Constraint kinds.
const (
	ConstraintGE ConstraintKind = iota
	ConstraintLE
	ConstraintEq
)

// Constraint is one dynamic-shape relation.
type Constraint struct {
	Dim   Dim
	Kind  ConstraintKind
	Bound int
	Other Dim
}

// String formats the constraint like dynamic_dim(0, 0) >= 1.
func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintGE:
		return fmt.Sprintf("%s >= %d", c.Dim, c.Bound)
	case ConstraintLE:
		return fmt.Sprintf("%s <= %d", c.Dim, c.Bound)
	default:
		return fmt.Sprintf("%s == %s", c.Dim, c.Other)
	}
}

type dimClass struct {
	symbol   string
	min, max int // max 0 means unbounded
	size     int
	from     Dim
}

// resolveInputs builds the input specifications for flat example inputs.
// Dimensions linked by Eq share a symbol; bounds on linked dimensions are
// intersected. Every example size must satisfy its class's bounds.
func resolveInputs(inputs []*tensor.RawTensor, names []string, constraints []Constraint) ([]artifact.InputSpec, error) {
	check := func(c Constraint, d Dim) error {
		if d.Input < 0 || d.Input >= len(inputs) {
			return &ConstraintViolationError{Constraint: c.String(), Reason: fmt.Sprintf("no input %d", d.Input)}
		}
		if d.Axis < 0 || d.Axis >= len(inputs[d.Input].Shape()) {
			return &ConstraintViolationError{Constraint: c.String(), Reason: fmt.Sprintf("input %d has rank %d", d.Input, len(inputs[d.Input].Shape()))}
		}
		return nil
	}

	// Union-find over the dimensions mentioned by constraints.
	parent := make(map[Dim]Dim)
	var order []Dim
	var find func(d Dim) Dim
	find = func(d Dim) Dim {
		p, ok := parent[d]
		if !ok {
			parent[d] = d
			order = append(order, d)
			return d
		}
		if p == d {
			return d
		}
		root := find(p)
		parent[d] = root
		return root
	}

	for _, c := range constraints {
		if err := check(c, c.Dim); err != nil {
			return nil, err
		}
		a := find(c.Dim)
		if c.Kind != ConstraintEq {
			continue
		}
		if err := check(c, c.Other); err != nil {
			return nil, err
		}
		b := find(c.Other)
		sa, sb := inputs[c.Dim.Input].Shape()[c.Dim.Axis], inputs[c.Other.Input].Shape()[c.Other.Axis]
		if sa != sb {
			return nil, &ConstraintViolationError{Constraint: c.String(), Reason: fmt.Sprintf("example sizes differ: %d vs %d", sa, sb)}
		}
		if a != b {
			parent[b] = a
		}
	}

	classes := make(map[Dim]*dimClass)
	for _, d := range order {
		root := find(d)
		if _, ok := classes[root]; ok {
			continue
		}
		classes[root] = &dimClass{
			symbol: fmt.Sprintf("s%d", len(classes)),
			min:    1,
			size:   inputs[root.Input].Shape()[root.Axis],
			from:   root,
		}
	}

	for _, c := range constraints {
		cls := classes[find(c.Dim)]
		switch c.Kind {
		case ConstraintGE:
			if c.Bound > cls.min {
				cls.min = c.Bound
			}
		case ConstraintLE:
			if cls.max == 0 || c.Bound < cls.max {
				cls.max = c.Bound
			}
		}
		if cls.max > 0 && cls.min > cls.max {
			return nil, &ConstraintViolationError{Constraint: c.String(), Reason: fmt.Sprintf("empty range [%d, %d]", cls.min, cls.max)}
		}
		if cls.size < cls.min || (cls.max > 0 && cls.size > cls.max) {
			return nil, &ConstraintViolationError{Constraint: c.String(), Reason: fmt.Sprintf("example size %d of %s is outside [%d, %d]", cls.size, cls.from, cls.min, cls.max)}
		}
	}

	specs := make([]artifact.InputSpec, len(inputs))
	for i, in := range inputs {
		spec := artifact.InputSpec{Name: names[i], DType: in.DType()}
		for axis, size := range in.Shape() {
			d := Dim{Input: i, Axis: axis}
			if _, ok := parent[d]; !ok {
				spec.Dims = append(spec.Dims, artifact.DimSpec{Size: size})
				continue
			}
			cls := classes[find(d)]
			spec.Dims = append(spec.Dims, artifact.DimSpec{Size: size, Symbol: cls.symbol, Min: cls.min, Max: cls.max})
		}
		specs[i] = spec
	}
	return specs, nil
}

// checkDynamic re-traces model with every dynamic dimension moved to
// another size inside its bounds. The program must come out the same apart
// from the shapes of computed nodes; a trace failure, a different op
// sequence, different attributes or a constant whose shape follows the
// input means the model specialised a dynamic dimension.
func checkDynamic(model graph.Model, device tensor.Device, example []any, specs []artifact.InputSpec, prog *graph.Program) error {
	sizes := make(map[string]int)
	var moved []string
	for i, spec := range specs {
		for axis, d := range spec.Dims {
			if !d.Dynamic() {
				continue
			}
			if _, ok := sizes[d.Symbol]; ok {
				continue
			}
			next := d.Size + 1
			if d.Max > 0 && next > d.Max {
				next = d.Size - 1
			}
			if next < d.Min {
				// The bounds pin the dimension to its example size.
				sizes[d.Symbol] = d.Size
				continue
			}
			sizes[d.Symbol] = next
			moved = append(moved, fmt.Sprintf("%s (%s=%d)", DynamicDim(i, axis), d.Symbol, next))
		}
	}
	if len(moved) == 0 {
		return nil
	}
	violation := func(reason string) error {
		return &ConstraintViolationError{
			Constraint: strings.Join(moved, ", "),
			Reason:     "dim specialized to constant: " + reason,
		}
	}

	index := 0
	perturbed, err := pytree.MapLeaves(pytree.Tuple(example), func(leaf any) (any, error) {
		spec := specs[index]
		index++
		shape := make(tensor.Shape, len(spec.Dims))
		for axis, d := range spec.Dims {
			shape[axis] = d.Size
			if d.Dynamic() {
				shape[axis] = sizes[d.Symbol]
			}
		}
		return tensor.Zeros(shape, spec.DType, device), nil
	})
	if err != nil {
		return err
	}

	traced, err := graph.Trace(model, device, perturbed.(pytree.Tuple)...)
	if err != nil {
		return violation(err.Error())
	}
	return sameProgram(prog, traced.Program, violation)
}

func sameProgram(want, got *graph.Program, violation func(string) error) error {
	if len(want.Nodes) != len(got.Nodes) || len(want.Outputs) != len(got.Outputs) {
		return violation(fmt.Sprintf("program has %d nodes, %d with other sizes", len(want.Nodes), len(got.Nodes)))
	}
	for i, w := range want.Nodes {
		g := got.Nodes[i]
		if w.Op != g.Op || !slices.Equal(w.Inputs, g.Inputs) {
			return violation(fmt.Sprintf("node %%%d is %s, %s with other sizes", i, w.Op, g.Op))
		}
		wa, _ := json.Marshal(w.Attrs)
		ga, _ := json.Marshal(g.Attrs)
		if !bytes.Equal(wa, ga) {
			return violation(fmt.Sprintf("node %%%d (%s) attributes depend on the input shape", i, w.Op))
		}
		if w.Op == graph.OpConst && !w.Shape.Equal(g.Shape) {
			return violation(fmt.Sprintf("constant %%%d has shape %s, %s with other sizes", i, w.Shape, g.Shape))
		}
	}
	for i, id := range want.Outputs {
		if got.Outputs[i] != id {
			return violation(fmt.Sprintf("output %d moved from %%%d to %%%d", i, id, got.Outputs[i]))
		}
	}
	return nil
}
