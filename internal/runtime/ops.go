package runtime

import (
	"fmt"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

func (r *Registry) registerMathOps() {
	binary := map[string]func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor{
		graph.OpAdd:     func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor { return b.Add },
		graph.OpSub:     func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor { return b.Sub },
		graph.OpMul:     func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor { return b.Mul },
		graph.OpDiv:     func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor { return b.Div },
		graph.OpMaximum: func(b *cpu.Backend) func(x, y *tensor.RawTensor) *tensor.RawTensor { return b.Maximum },
	}
	for op, kernel := range binary {
		r.Register(op, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			if err := arity(node, inputs, 2); err != nil {
				return nil, err
			}
			return one(kernel(ctx.Backend)(inputs[0], inputs[1])), nil
		})
	}

	for _, op := range []string{
		cpu.OpNeg, cpu.OpAbs, cpu.OpReLU, cpu.OpSin, cpu.OpCos,
		cpu.OpExp, cpu.OpLog, cpu.OpSqrt, cpu.OpSigmoid, cpu.OpTanh,
	} {
		r.Register(op, handleUnary)
	}

	r.Register(graph.OpAddScalar, handleAddScalar)
	r.Register(graph.OpMulScalar, handleMulScalar)
	r.Register(graph.OpMatMul, handleMatMul)
	r.Register(graph.OpClone, handleClone)
	r.Register(graph.OpCast, handleCast)
}

func handleUnary(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	return one(ctx.Backend.Unary(node.Op, inputs[0])), nil
}

func handleAddScalar(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	return one(ctx.Backend.AddScalar(inputs[0], node.Attrs.Scalar)), nil
}

func handleMulScalar(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	return one(ctx.Backend.MulScalar(inputs[0], node.Attrs.Scalar)), nil
}

// handleMatMul runs the kernel picked by autotuning, or the default one.
func handleMatMul(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 2); err != nil {
		return nil, err
	}
	if node.Attrs.Kernel == "" {
		return one(ctx.Backend.MatMul(inputs[0], inputs[1])), nil
	}
	kernel, err := cpu.ParseMatMulKernel(node.Attrs.Kernel)
	if err != nil {
		return nil, err
	}
	return one(ctx.Backend.MatMulWith(kernel, inputs[0], inputs[1])), nil
}

func handleClone(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	return one(ctx.Backend.Clone(inputs[0])), nil
}

func handleCast(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	dtype, err := tensor.ParseDataType(node.Attrs.DType)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	return one(ctx.Backend.Cast(inputs[0], dtype)), nil
}

func (r *Registry) registerShapeOps() {
	r.Register(graph.OpTranspose, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Transpose(inputs[0], node.Attrs.Axes...)), nil
	})
	r.Register(graph.OpReshape, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Reshape(inputs[0], node.Attrs.Axes...)), nil
	})
	r.Register(graph.OpUnsqueeze, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Unsqueeze(inputs[0], node.Attrs.Axis)), nil
	})
	r.Register(graph.OpSqueeze, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Squeeze(inputs[0], node.Attrs.Axis)), nil
	})
	r.Register(graph.OpCat, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) == 0 {
			return nil, fmt.Errorf("cat requires at least 1 input")
		}
		return one(ctx.Backend.Cat(inputs, node.Attrs.Axis)), nil
	})
	r.Register(graph.OpSlice, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		a := node.Attrs
		return one(ctx.Backend.Slice(inputs[0], a.Axis, a.Start, a.End, a.Step)), nil
	})
	r.Register(graph.OpSelect, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Select(inputs[0], node.Attrs.Axis, node.Attrs.Index)), nil
	})
}

func (r *Registry) registerReduceOps() {
	r.Register(graph.OpSum, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Sum(inputs[0])), nil
	})
	r.Register(graph.OpSumDim, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.SumDim(inputs[0], node.Attrs.Axis, node.Attrs.KeepDim)), nil
	})
	r.Register(graph.OpMeanDim, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.MeanDim(inputs[0], node.Attrs.Axis, node.Attrs.KeepDim)), nil
	})
	r.Register(graph.OpSoftmax, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Softmax(inputs[0], node.Attrs.Axis)), nil
	})
	r.Register(graph.OpLayerNorm, handleLayerNorm)
}

// handleLayerNorm takes x followed by the optional weight and bias flagged
// in the node attributes.
func handleLayerNorm(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	want := 1
	if node.Attrs.HasWeight {
		want++
	}
	if node.Attrs.HasBias {
		want++
	}
	if err := arity(node, inputs, want); err != nil {
		return nil, err
	}
	var weight, bias *tensor.RawTensor
	next := 1
	if node.Attrs.HasWeight {
		weight = inputs[next]
		next++
	}
	if node.Attrs.HasBias {
		bias = inputs[next]
	}
	out := ctx.Backend.LayerNorm(inputs[0], weight, bias, tensor.Shape(node.Attrs.Axes), node.Attrs.Eps)
	return one(out), nil
}

func (r *Registry) registerRandomOps() {
	r.Register(graph.OpDropout, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return one(ctx.Backend.Dropout(inputs[0], node.Attrs.P, ctx.Generator)), nil
	})
	r.Register(graph.OpNormalLike, func(ctx *Context, node *graph.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		x := inputs[0]
		return one(ctx.Backend.Normal(x.Shape(), x.DType(), node.Attrs.Mean, node.Attrs.Std, ctx.Generator)), nil
	})
}
