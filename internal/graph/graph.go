// Package graph runs models in one of two modes.
//
// In eager mode every operation executes immediately on the CPU backend;
// this is the reference interpreter. In tracing mode the same operations
// also execute (on the example inputs) and are recorded into a Program that
// the compiler turns into an artifact. A model is written once against
// *Graph and *Value and is oblivious to the mode it runs in.
//
// Errors follow a sticky style: the first failing operation records its
// error on the Graph, later operations become no-ops returning invalid
// values, and Eval/Trace report the error once the forward pass returns.
package graph

import (
	"errors"
	"fmt"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

// Model is a computation with a fixed input and output arity.
//
// args holds one *Value per input tensor, nested in the same pytree
// containers the caller passed. The result may be a single *Value or any
// pytree container of values.
type Model interface {
	Forward(g *Graph, args ...any) any
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(g *Graph, args ...any) any

// Forward calls f.
func (f ModelFunc) Forward(g *Graph, args ...any) any {
	return f(g, args...)
}

// Mode selects how a Graph executes operations.
type Mode int

// Execution modes.
const (
	Eager Mode = iota
	Tracing
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Tracing {
		return "tracing"
	}
	return "eager"
}

// ErrInvalidValue is reported when an operation receives a value produced
// after the graph had already failed or a value from another graph.
var ErrInvalidValue = errors.New("invalid value")

// Graph is the execution context handed to Model.Forward.
type Graph struct {
	mode    Mode
	device  tensor.Device
	backend *cpu.Backend
	gen     *tensor.Generator
	err     error

	program   *Program
	constants map[int]*tensor.RawTensor
	params    map[*tensor.RawTensor]*Value
	paramRefs []ParamRef
}

// Value is a tensor flowing through a Graph.
type Value struct {
	g   *Graph
	id  int
	raw *tensor.RawTensor
}

// ParamRef records a model parameter captured during tracing.
type ParamRef struct {
	Node   int
	Name   string
	Device tensor.Device
}

func newGraph(mode Mode, device tensor.Device, gen *tensor.Generator) (*Graph, error) {
	if device.Kind != tensor.CPU {
		return nil, fmt.Errorf("cannot execute on %s: only cpu devices can run programs", device)
	}
	if gen == nil {
		gen = tensor.NewGenerator(0)
	}
	g := &Graph{
		mode:    mode,
		device:  device,
		backend: cpu.New(device),
		gen:     gen,
	}
	if mode == Tracing {
		g.program = &Program{}
		g.constants = make(map[int]*tensor.RawTensor)
		g.params = make(map[*tensor.RawTensor]*Value)
	}
	return g, nil
}

// Mode returns the graph's execution mode.
func (g *Graph) Mode() Mode {
	return g.mode
}

// Device returns the device all values of the graph live on.
func (g *Graph) Device() tensor.Device {
	return g.device
}

// Ok reports whether no operation has failed yet.
func (g *Graph) Ok() bool {
	return g.err == nil
}

// Err returns the first recorded error.
func (g *Graph) Err() error {
	return g.err
}

// SetErr records err unless an earlier error is already recorded. Models use
// it to reject inputs they cannot handle.
func (g *Graph) SetErr(err error) {
	if g.err == nil && err != nil {
		g.err = err
	}
}

// Shape returns the value's shape, or nil for an invalid value.
func (v *Value) Shape() tensor.Shape {
	if v == nil || v.raw == nil {
		return nil
	}
	return v.raw.Shape()
}

// DType returns the value's data type.
func (v *Value) DType() tensor.DataType {
	if v == nil || v.raw == nil {
		return tensor.Float32
	}
	return v.raw.DType()
}

// Graph returns the graph that produced the value.
func (v *Value) Graph() *Graph {
	return v.g
}

// Raw returns the concrete tensor computed for this value. In tracing mode
// this is the result on the example inputs.
func (v *Value) Raw() *tensor.RawTensor {
	return v.raw
}

// ID returns the program node ID in tracing mode and -1 otherwise.
func (v *Value) ID() int {
	return v.id
}

func (g *Graph) invalid() *Value {
	return &Value{g: g, id: -1}
}

// record executes compute and, when tracing, appends a node for it.
func (g *Graph) record(op string, attrs Attrs, compute func() *tensor.RawTensor, inputs ...*Value) *Value {
	if g.err != nil {
		return g.invalid()
	}
	ids := make([]int, len(inputs))
	for i, in := range inputs {
		if in == nil || in.g != g || in.raw == nil {
			g.SetErr(fmt.Errorf("%s: operand %d: %w", op, i, ErrInvalidValue))
			return g.invalid()
		}
		if in.raw.Device() != g.device {
			g.SetErr(fmt.Errorf("%s: %w", op, &tensor.DeviceMismatchError{
				Where:    fmt.Sprintf("operand %d", i),
				Expected: g.device,
				Actual:   in.raw.Device(),
			}))
			return g.invalid()
		}
		ids[i] = in.id
	}

	raw, err := safely(compute)
	if err != nil {
		g.SetErr(fmt.Errorf("%s: %w", op, err))
		return g.invalid()
	}

	v := &Value{g: g, id: -1, raw: raw}
	if g.mode == Tracing {
		v.id = g.addNode(&Node{Op: op, Inputs: ids, Attrs: attrs, Shape: raw.Shape().Clone(), DType: raw.DType()})
	}
	return v
}

func (g *Graph) addNode(n *Node) int {
	n.ID = len(g.program.Nodes)
	g.program.Nodes = append(g.program.Nodes, n)
	return n.ID
}

// safely runs a kernel, converting its panic into an error.
func safely(compute func() *tensor.RawTensor) (raw *tensor.RawTensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return compute(), nil
}

// Param exposes a model parameter to the forward pass.
//
// In eager mode the tensor is used in place. In tracing mode its data is
// copied into a program constant at the time of the call, so mutating the
// model afterwards does not affect the compiled program. Passing the same
// tensor twice yields the same value.
func (g *Graph) Param(name string, raw *tensor.RawTensor) *Value {
	if g.err != nil {
		return g.invalid()
	}
	if raw == nil {
		g.SetErr(fmt.Errorf("parameter %q is nil", name))
		return g.invalid()
	}
	if g.mode == Eager {
		return &Value{g: g, id: -1, raw: raw}
	}
	if v, ok := g.params[raw]; ok {
		return v
	}
	g.paramRefs = append(g.paramRefs, ParamRef{Name: name, Device: raw.Device()})
	if raw.Device() != g.device {
		g.SetErr(&tensor.DeviceMismatchError{Where: "parameter " + name, Expected: g.device, Actual: raw.Device()})
		return g.invalid()
	}
	data := raw.Clone()
	id := g.addNode(&Node{Op: OpConst, Name: name, Param: true, Shape: data.Shape().Clone(), DType: data.DType()})
	g.constants[id] = data
	g.paramRefs[len(g.paramRefs)-1].Node = id
	v := &Value{g: g, id: id, raw: data}
	g.params[raw] = v
	return v
}

// Constant embeds a tensor created inside the forward pass. The data is
// copied onto the graph's device.
func (g *Graph) Constant(raw *tensor.RawTensor) *Value {
	if g.err != nil {
		return g.invalid()
	}
	data := raw.To(g.device)
	if g.mode == Eager {
		return &Value{g: g, id: -1, raw: data}
	}
	id := g.addNode(&Node{
		Op:    OpConst,
		Name:  fmt.Sprintf("_tensor_constant%d", len(g.constants)),
		Shape: data.Shape().Clone(),
		DType: data.DType(),
	})
	g.constants[id] = data
	return &Value{g: g, id: id, raw: data}
}

// Zeros creates a zero-filled constant.
func (g *Graph) Zeros(shape tensor.Shape, dtype tensor.DataType) *Value {
	return g.Constant(tensor.Zeros(shape, dtype, g.device))
}

// Ones creates a constant filled with ones.
func (g *Graph) Ones(shape tensor.Shape, dtype tensor.DataType) *Value {
	return g.Constant(tensor.Ones(shape, dtype, g.device))
}

// wrapInputs turns every tensor leaf of args into a graph value.
func (g *Graph) wrapInputs(args pytree.Tuple) (pytree.Tuple, error) {
	index := 0
	wrapped, err := pytree.MapLeaves(args, func(leaf any) (any, error) {
		raw, ok := leaf.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("input %d is %T, not a tensor", index, leaf)
		}
		if raw.Device() != g.device {
			return nil, &tensor.DeviceMismatchError{Where: fmt.Sprintf("input %d", index), Expected: g.device, Actual: raw.Device()}
		}
		v := &Value{g: g, id: -1, raw: raw}
		if g.mode == Tracing {
			v.id = g.addNode(&Node{
				Op:    OpInput,
				Name:  fmt.Sprintf("arg%d", index),
				Attrs: Attrs{Index: index},
				Shape: raw.Shape().Clone(),
				DType: raw.DType(),
			})
			g.program.Inputs = append(g.program.Inputs, v.id)
		}
		index++
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return wrapped.(pytree.Tuple), nil
}

func (g *Graph) forward(model Model, args pytree.Tuple) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("forward pass panicked: %v", r)
		}
	}()
	out = model.Forward(g, args...)
	if g.err != nil {
		return nil, g.err
	}
	return out, nil
}

// outputValues checks that every leaf of out is a valid value of g.
func (g *Graph) outputValues(out any) ([]*Value, *pytree.Spec, error) {
	leaves, spec := pytree.Flatten(out)
	values := make([]*Value, len(leaves))
	for i, l := range leaves {
		v, ok := l.(*Value)
		if !ok {
			return nil, nil, fmt.Errorf("output %d is %T, not a *graph.Value", i, l)
		}
		if v.g != g || v.raw == nil {
			return nil, nil, fmt.Errorf("output %d: %w", i, ErrInvalidValue)
		}
		values[i] = v
	}
	return values, spec, nil
}

// Eval runs model eagerly on args and returns its outputs with every value
// replaced by its tensor. gen supplies randomness for stochastic ops.
func Eval(model Model, device tensor.Device, gen *tensor.Generator, args ...any) (any, error) {
	g, err := newGraph(Eager, device, gen)
	if err != nil {
		return nil, err
	}
	inputs, err := g.wrapInputs(pytree.Tuple(args))
	if err != nil {
		return nil, err
	}
	out, err := g.forward(model, inputs)
	if err != nil {
		return nil, err
	}
	values, spec, err := g.outputValues(out)
	if err != nil {
		return nil, err
	}
	raws := make([]any, len(values))
	for i, v := range values {
		raws[i] = v.raw
	}
	return pytree.Unflatten(raws, spec)
}

// Traced is the result of tracing a model.
type Traced struct {
	Program   *Program
	Constants map[int]*tensor.RawTensor
	InSpec    *pytree.Spec
	OutSpec   *pytree.Spec
	Params    []ParamRef
	Device    tensor.Device
}

// Trace runs model on the example args in tracing mode and returns the
// recorded program. Stochastic ops draw from a private generator; their
// values in the trace are placeholders.
func Trace(model Model, device tensor.Device, args ...any) (*Traced, error) {
	g, err := newGraph(Tracing, device, tensor.NewGenerator(0))
	if err != nil {
		return nil, err
	}
	_, inSpec := pytree.Flatten(pytree.Tuple(args))
	inputs, err := g.wrapInputs(pytree.Tuple(args))
	if err != nil {
		return nil, err
	}
	out, err := g.forward(model, inputs)
	if err != nil {
		return nil, err
	}
	values, outSpec, err := g.outputValues(out)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		g.program.Outputs = append(g.program.Outputs, v.id)
	}
	return &Traced{
		Program:   g.program,
		Constants: g.constants,
		InSpec:    inSpec,
		OutSpec:   outSpec,
		Params:    g.paramRefs,
		Device:    device,
	}, nil
}
