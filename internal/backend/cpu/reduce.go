package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/golden/internal/tensor"
)

// Sum reduces every element to a scalar (shape []).
func (cpu *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	flat := cpu.Reshape(x, x.NumElements())
	return cpu.SumDim(flat, 0, false)
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	if ts, promoted := cpu.promoteHalf(x); promoted {
		return cpu.Cast(cpu.SumDim(ts[0], dim, keepDim), tensor.Float16)
	}
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	out := cpu.result("sumdim", reducedShape(shape, axis, keepDim), x.DType())
	switch x.DType() {
	case tensor.Float32:
		sumAxis(out.AsFloat32(), x.AsFloat32(), shape, axis)
	case tensor.Float64:
		sumAxis(out.AsFloat64(), x.AsFloat64(), shape, axis)
	case tensor.Int32:
		sumAxis(out.AsInt32(), x.AsInt32(), shape, axis)
	case tensor.Int64:
		sumAxis(out.AsInt64(), x.AsInt64(), shape, axis)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}
	return out
}

// MeanDim computes the mean of tensor elements along the specified dimension.
func (cpu *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("meandim: requires a floating point tensor, got %s", x.DType()))
	}
	axis, err := tensor.NormalizeAxis(dim, len(x.Shape()))
	if err != nil {
		panic(fmt.Sprintf("meandim: %v", err))
	}
	sum := cpu.SumDim(x, axis, keepDim)
	return cpu.MulScalar(sum, 1/float64(x.Shape()[axis]))
}

func reducedShape(shape tensor.Shape, axis int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[axis] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	out = append(out, shape[:axis]...)
	return append(out, shape[axis+1:]...)
}

// axisLayout splits shape around axis into outer * size * inner.
func axisLayout(shape tensor.Shape, axis int) (outer, size, inner int) {
	outer, inner = 1, 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	for d := axis + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	return outer, shape[axis], inner
}

func sumAxis[T number](out, in []T, shape tensor.Shape, axis int) {
	outer, size, inner := axisLayout(shape, axis)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var s T
			for k := 0; k < size; k++ {
				s += in[(o*size+k)*inner+i]
			}
			out[o*inner+i] = s
		}
	}
}

// Softmax normalises x along dim using the max-subtraction trick.
func (cpu *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if ts, promoted := cpu.promoteHalf(x); promoted {
		return cpu.Cast(cpu.Softmax(ts[0], dim), tensor.Float16)
	}
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}
	out := cpu.result("softmax", shape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		softmaxAxis(out.AsFloat32(), x.AsFloat32(), shape, axis)
	case tensor.Float64:
		softmaxAxis(out.AsFloat64(), x.AsFloat64(), shape, axis)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}
	return out
}

func softmaxAxis[T float](out, in []T, shape tensor.Shape, axis int) {
	outer, size, inner := axisLayout(shape, axis)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			at := func(k int) int { return (o*size+k)*inner + i }
			peak := math.Inf(-1)
			for k := 0; k < size; k++ {
				peak = math.Max(peak, float64(in[at(k)]))
			}
			var sum float64
			for k := 0; k < size; k++ {
				e := math.Exp(float64(in[at(k)]) - peak)
				out[at(k)] = T(e)
				sum += e
			}
			for k := 0; k < size; k++ {
				out[at(k)] = T(float64(out[at(k)]) / sum)
			}
		}
	}
}

// LayerNorm normalises over the trailing len(normShape) dimensions and then
// applies the optional elementwise affine weight and bias.
func (cpu *Backend) LayerNorm(x, weight, bias *tensor.RawTensor, normShape tensor.Shape, eps float64) *tensor.RawTensor {
	if ts, promoted := cpu.promoteHalf(x, weight, bias); promoted {
		return cpu.Cast(cpu.LayerNorm(ts[0], ts[1], ts[2], normShape, eps), tensor.Float16)
	}
	shape := x.Shape()
	if len(normShape) > len(shape) || !shape[len(shape)-len(normShape):].Equal(normShape) {
		panic(fmt.Sprintf("layernorm: normalized shape %v does not match input %v", normShape, shape))
	}
	for _, p := range []*tensor.RawTensor{weight, bias} {
		if p != nil && (!p.Shape().Equal(normShape) || p.DType() != x.DType()) {
			panic(fmt.Sprintf("layernorm: parameter %s does not match %v of %s", p, normShape, x.DType()))
		}
	}

	inner := normShape.NumElements()
	outer := 0
	if inner > 0 {
		outer = x.NumElements() / inner
	}
	out := cpu.result("layernorm", shape, x.DType())
	for o := 0; o < outer; o++ {
		var mean, variance float64
		for i := 0; i < inner; i++ {
			mean += x.Float64At(o*inner + i)
		}
		mean /= float64(inner)
		for i := 0; i < inner; i++ {
			d := x.Float64At(o*inner+i) - mean
			variance += d * d
		}
		variance /= float64(inner)
		inv := 1 / math.Sqrt(variance+eps)
		for i := 0; i < inner; i++ {
			v := (x.Float64At(o*inner+i) - mean) * inv
			if weight != nil {
				v *= weight.Float64At(i)
			}
			if bias != nil {
				v += bias.Float64At(i)
			}
			out.SetFloat64At(o*inner+i, v)
		}
	}
	return out
}
