package cpu

import (
	"fmt"

	"github.com/born-ml/golden/internal/tensor"
)

// The layout kernels below move whole elements and never look at values, so
// they work on the raw byte buffers and support every dtype.

// Transpose permutes the dimensions of x. An empty perm reverses them.
//
// Example:
//
//	x := ... // shape [2, 3, 4]
//	y := backend.Transpose(x, 2, 0, 1) // shape [4, 2, 3]
func (cpu *Backend) Transpose(x *tensor.RawTensor, perm ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if len(perm) == 0 {
		perm = make([]int, ndim)
		for i := range perm {
			perm[i] = ndim - 1 - i
		}
	} else {
		perm = append([]int(nil), perm...)
	}
	if len(perm) != ndim {
		panic(fmt.Sprintf("transpose: perm %v does not match rank %d", perm, ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, p := range perm {
		axis, err := tensor.NormalizeAxis(p, ndim)
		if err != nil || seen[axis] {
			panic(fmt.Sprintf("transpose: invalid perm %v", perm))
		}
		seen[axis] = true
		perm[i] = axis
		outShape[i] = shape[axis]
	}

	out := cpu.result("transpose", outShape, x.DType())
	es := x.DType().Size()
	src, dst := x.Data(), out.Data()
	inStrides := shape.ComputeStrides()

	// Walk the output in row-major order, tracking the matching input offset.
	idx := make([]int, ndim)
	srcOff := 0
	for i := 0; i < out.NumElements(); i++ {
		copy(dst[i*es:(i+1)*es], src[srcOff*es:(srcOff+1)*es])
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			srcOff += inStrides[perm[d]]
			if idx[d] < outShape[d] {
				break
			}
			srcOff -= inStrides[perm[d]] * outShape[d]
			idx[d] = 0
		}
	}
	return out
}

// Reshape returns a copy of x with a new shape. A single -1 is inferred.
func (cpu *Backend) Reshape(x *tensor.RawTensor, shape ...int) *tensor.RawTensor {
	target, err := tensor.InferReshape(shape, x.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	out := cpu.result("reshape", target, x.DType())
	copy(out.Data(), x.Data())
	return out
}

// Unsqueeze inserts a size-1 dimension at dim. dim may be in [-rank-1, rank].
func (cpu *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape)+1)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}
	outShape := make([]int, 0, len(shape)+1)
	outShape = append(outShape, shape[:axis]...)
	outShape = append(outShape, 1)
	outShape = append(outShape, shape[axis:]...)
	return cpu.Reshape(x, outShape...)
}

// Squeeze removes dimension dim, which must have size 1.
func (cpu *Backend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("squeeze: %v", err))
	}
	if shape[axis] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d", axis, shape[axis]))
	}
	outShape := make([]int, 0, len(shape)-1)
	outShape = append(outShape, shape[:axis]...)
	outShape = append(outShape, shape[axis+1:]...)
	return cpu.Reshape(x, outShape...)
}

// Cat concatenates tensors along dim.
//
// All tensors must have the same shape except along the concatenation dimension.
func (cpu *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()
	axis, err := tensor.NormalizeAxis(dim, ndim)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	total := 0
	for i, t := range tensors {
		ts := t.Shape()
		if len(ts) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(ts), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == axis {
				total += ts[d]
			} else if ts[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, ts[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[axis] = total
	out := cpu.result("cat", outShape, dtype)

	es := dtype.Size()
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	inner := es
	for d := axis + 1; d < ndim; d++ {
		inner *= shape[d]
	}

	dst := out.Data()
	rowBytes := total * inner
	colOff := 0
	for _, t := range tensors {
		chunk := t.Shape()[axis] * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+colOff:o*rowBytes+colOff+chunk], src[o*chunk:(o+1)*chunk])
		}
		colOff += chunk
	}
	return out
}

// Slice keeps indices [start, end) of dimension dim, stepping by step.
// Negative bounds count from the end and are clamped to the dimension size.
func (cpu *Backend) Slice(x *tensor.RawTensor, dim, start, end, step int) *tensor.RawTensor {
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("slice: %v", err))
	}
	if step <= 0 {
		panic(fmt.Sprintf("slice: step must be positive, got %d", step))
	}
	size := shape[axis]
	start, end = clampBound(start, size), clampBound(end, size)
	n := 0
	if end > start {
		n = (end - start + step - 1) / step
	}

	outShape := shape.Clone()
	outShape[axis] = n
	out := cpu.result("slice", outShape, x.DType())

	es := x.DType().Size()
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	inner := es
	for d := axis + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	src, dst := x.Data(), out.Data()
	w := 0
	for o := 0; o < outer; o++ {
		base := o * size * inner
		for i := 0; i < n; i++ {
			off := base + (start+i*step)*inner
			copy(dst[w:w+inner], src[off:off+inner])
			w += inner
		}
	}
	return out
}

func clampBound(v, size int) int {
	if v < 0 {
		v += size
	}
	return min(max(v, 0), size)
}

// Select picks index along dim and removes that dimension.
func (cpu *Backend) Select(x *tensor.RawTensor, dim, index int) *tensor.RawTensor {
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("select: %v", err))
	}
	idx, err := tensor.NormalizeAxis(index, shape[axis])
	if err != nil {
		panic(fmt.Sprintf("select: index %d out of range for dimension of size %d", index, shape[axis]))
	}
	return cpu.Squeeze(cpu.Slice(x, axis, idx, idx+1, 1), axis)
}
