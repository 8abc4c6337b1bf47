package runtime

import (
	"fmt"
	"sort"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// OpHandler executes one program node and returns its output tensors.
type OpHandler func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Context provides the backend and random state to operators.
type Context struct {
	Backend   *cpu.Backend
	Generator *tensor.Generator
}

// Registry maps program op names to handler functions.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry creates a registry with every op the tracer can record.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]OpHandler),
	}

	r.registerMathOps()
	r.registerShapeOps()
	r.registerReduceOps()
	r.registerRandomOps()

	return r
}

// Register adds a custom operator handler.
func (r *Registry) Register(op string, handler OpHandler) {
	r.handlers[op] = handler
}

// Get returns the handler for an op.
func (r *Registry) Get(op string) (OpHandler, bool) {
	h, ok := r.handlers[op]
	return h, ok
}

// Execute runs a node's handler. Kernel panics are returned as errors.
func (r *Registry) Execute(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) (out []*tensor.RawTensor, err error) {
	handler, ok := r.handlers[node.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %s", node.Op)
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%v", p)
		}
	}()
	return handler(ctx, node, inputs)
}

// SupportedOps returns every registered op name, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func arity(node *graph.Node, inputs []*tensor.RawTensor, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%s requires %d inputs, got %d", node.Op, want, len(inputs))
	}
	return nil
}

func one(t *tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{t}
}
