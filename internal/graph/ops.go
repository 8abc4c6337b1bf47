package graph

import (
	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/tensor"
)

func (v *Value) binary(op string, other *Value, f func(a, b *tensor.RawTensor) *tensor.RawTensor) *Value {
	return v.g.record(op, Attrs{}, func() *tensor.RawTensor { return f(v.raw, other.raw) }, v, other)
}

// Add returns v + other with broadcasting.
func (v *Value) Add(other *Value) *Value {
	return v.binary(OpAdd, other, v.g.backend.Add)
}

// Sub returns v - other with broadcasting.
func (v *Value) Sub(other *Value) *Value {
	return v.binary(OpSub, other, v.g.backend.Sub)
}

// Mul returns v * other with broadcasting.
func (v *Value) Mul(other *Value) *Value {
	return v.binary(OpMul, other, v.g.backend.Mul)
}

// Div returns v / other with broadcasting.
func (v *Value) Div(other *Value) *Value {
	return v.binary(OpDiv, other, v.g.backend.Div)
}

// Maximum returns the element-wise maximum of v and other.
func (v *Value) Maximum(other *Value) *Value {
	return v.binary(OpMaximum, other, v.g.backend.Maximum)
}

// AddScalar returns v + s.
func (v *Value) AddScalar(s float64) *Value {
	return v.g.record(OpAddScalar, Attrs{Scalar: s}, func() *tensor.RawTensor {
		return v.g.backend.AddScalar(v.raw, s)
	}, v)
}

// MulScalar returns v * s.
func (v *Value) MulScalar(s float64) *Value {
	return v.g.record(OpMulScalar, Attrs{Scalar: s}, func() *tensor.RawTensor {
		return v.g.backend.MulScalar(v.raw, s)
	}, v)
}

func (v *Value) unary(op string) *Value {
	return v.g.record(op, Attrs{}, func() *tensor.RawTensor { return v.g.backend.Unary(op, v.raw) }, v)
}

// Neg returns -v.
func (v *Value) Neg() *Value { return v.unary(cpu.OpNeg) }

// Abs returns |v|.
func (v *Value) Abs() *Value { return v.unary(cpu.OpAbs) }

// ReLU returns max(v, 0).
func (v *Value) ReLU() *Value { return v.unary(cpu.OpReLU) }

// Sin returns sin(v).
func (v *Value) Sin() *Value { return v.unary(cpu.OpSin) }

// Cos returns cos(v).
func (v *Value) Cos() *Value { return v.unary(cpu.OpCos) }

// Exp returns e^v.
func (v *Value) Exp() *Value { return v.unary(cpu.OpExp) }

// Log returns ln(v).
func (v *Value) Log() *Value { return v.unary(cpu.OpLog) }

// Sqrt returns √v.
func (v *Value) Sqrt() *Value { return v.unary(cpu.OpSqrt) }

// Sigmoid returns 1/(1+e^-v).
func (v *Value) Sigmoid() *Value { return v.unary(cpu.OpSigmoid) }

// Tanh returns tanh(v).
func (v *Value) Tanh() *Value { return v.unary(cpu.OpTanh) }

// MatMul returns v @ other. See cpu.Backend.MatMulWith for the supported
// layouts.
func (v *Value) MatMul(other *Value) *Value {
	return v.g.record(OpMatMul, Attrs{}, func() *tensor.RawTensor {
		return v.g.backend.MatMul(v.raw, other.raw)
	}, v, other)
}

// Transpose permutes dimensions. With no arguments the dimensions are
// reversed.
func (v *Value) Transpose(perm ...int) *Value {
	return v.g.record(OpTranspose, Attrs{Axes: perm}, func() *tensor.RawTensor {
		return v.g.backend.Transpose(v.raw, perm...)
	}, v)
}

// T swaps the last two dimensions.
func (v *Value) T() *Value {
	rank := len(v.Shape())
	if rank < 2 {
		v.g.SetErr(&shapeError{op: "t", shape: v.Shape()})
		return v.g.invalid()
	}
	perm := make([]int, rank)
	for i := range perm {
		perm[i] = i
	}
	perm[rank-2], perm[rank-1] = perm[rank-1], perm[rank-2]
	return v.Transpose(perm...)
}

// Reshape returns v with a new shape; one dimension may be -1.
func (v *Value) Reshape(shape ...int) *Value {
	return v.g.record(OpReshape, Attrs{Axes: shape}, func() *tensor.RawTensor {
		return v.g.backend.Reshape(v.raw, shape...)
	}, v)
}

// Unsqueeze inserts a size-1 dimension at dim.
func (v *Value) Unsqueeze(dim int) *Value {
	return v.g.record(OpUnsqueeze, Attrs{Axis: dim}, func() *tensor.RawTensor {
		return v.g.backend.Unsqueeze(v.raw, dim)
	}, v)
}

// Squeeze removes the size-1 dimension dim.
func (v *Value) Squeeze(dim int) *Value {
	return v.g.record(OpSqueeze, Attrs{Axis: dim}, func() *tensor.RawTensor {
		return v.g.backend.Squeeze(v.raw, dim)
	}, v)
}

// Cat concatenates values along dim.
func (g *Graph) Cat(dim int, values ...*Value) *Value {
	return g.record(OpCat, Attrs{Axis: dim}, func() *tensor.RawTensor {
		raws := make([]*tensor.RawTensor, len(values))
		for i, v := range values {
			raws[i] = v.raw
		}
		return g.backend.Cat(raws, dim)
	}, values...)
}

// Slice keeps [start, end) of dimension dim with the given step.
func (v *Value) Slice(dim, start, end, step int) *Value {
	return v.g.record(OpSlice, Attrs{Axis: dim, Start: start, End: end, Step: step}, func() *tensor.RawTensor {
		return v.g.backend.Slice(v.raw, dim, start, end, step)
	}, v)
}

// Select indexes dimension dim and drops it, like x[i] for dim 0.
func (v *Value) Select(dim, index int) *Value {
	return v.g.record(OpSelect, Attrs{Axis: dim, Index: index}, func() *tensor.RawTensor {
		return v.g.backend.Select(v.raw, dim, index)
	}, v)
}

// Sum reduces all elements to a scalar.
func (v *Value) Sum() *Value {
	return v.g.record(OpSum, Attrs{}, func() *tensor.RawTensor { return v.g.backend.Sum(v.raw) }, v)
}

// SumDim sums along dim.
func (v *Value) SumDim(dim int, keepDim bool) *Value {
	return v.g.record(OpSumDim, Attrs{Axis: dim, KeepDim: keepDim}, func() *tensor.RawTensor {
		return v.g.backend.SumDim(v.raw, dim, keepDim)
	}, v)
}

// MeanDim averages along dim.
func (v *Value) MeanDim(dim int, keepDim bool) *Value {
	return v.g.record(OpMeanDim, Attrs{Axis: dim, KeepDim: keepDim}, func() *tensor.RawTensor {
		return v.g.backend.MeanDim(v.raw, dim, keepDim)
	}, v)
}

// Softmax normalises along dim.
func (v *Value) Softmax(dim int) *Value {
	return v.g.record(OpSoftmax, Attrs{Axis: dim}, func() *tensor.RawTensor {
		return v.g.backend.Softmax(v.raw, dim)
	}, v)
}

// LayerNorm normalises over the trailing dimensions covered by the weight
// (or by normShape when weight is nil). weight and bias may be nil.
func (v *Value) LayerNorm(weight, bias *Value, normShape tensor.Shape, eps float64) *Value {
	inputs := []*Value{v}
	attrs := Attrs{Axes: normShape, Eps: eps}
	if weight != nil {
		inputs = append(inputs, weight)
		attrs.HasWeight = true
	}
	if bias != nil {
		inputs = append(inputs, bias)
		attrs.HasBias = true
	}
	return v.g.record(OpLayerNorm, attrs, func() *tensor.RawTensor {
		var w, b *tensor.RawTensor
		if weight != nil {
			w = weight.raw
		}
		if bias != nil {
			b = bias.raw
		}
		return v.g.backend.LayerNorm(v.raw, w, b, normShape, eps)
	}, inputs...)
}

// Dropout zeroes elements with probability p using the graph's generator.
func (v *Value) Dropout(p float64) *Value {
	return v.g.record(OpDropout, Attrs{P: p}, func() *tensor.RawTensor {
		return v.g.backend.Dropout(v.raw, p, v.g.gen)
	}, v)
}

// NormalLike samples N(mean, std) with v's shape and dtype.
func (v *Value) NormalLike(mean, std float64) *Value {
	return v.g.record(OpNormalLike, Attrs{Mean: mean, Std: std}, func() *tensor.RawTensor {
		return v.g.backend.Normal(v.raw.Shape(), v.raw.DType(), mean, std, v.g.gen)
	}, v)
}

// Clone returns a copy of v that never aliases its source.
func (v *Value) Clone() *Value {
	return v.g.record(OpClone, Attrs{}, func() *tensor.RawTensor { return v.g.backend.Clone(v.raw) }, v)
}

// Cast converts v to dtype.
func (v *Value) Cast(dtype tensor.DataType) *Value {
	return v.g.record(OpCast, Attrs{DType: dtype.String()}, func() *tensor.RawTensor {
		return v.g.backend.Cast(v.raw, dtype)
	}, v)
}

type shapeError struct {
	op    string
	shape tensor.Shape
}

func (e *shapeError) Error() string {
	return e.op + ": unsupported shape " + e.shape.String()
}
