package cpu

import (
	"fmt"

	"github.com/born-ml/golden/internal/tensor"
)

// Dropout zeroes each element with probability p and scales survivors by
// 1/(1-p). One uniform draw is consumed per element, in row-major order, so
// two backends fed identically seeded generators produce the same mask.
func (cpu *Backend) Dropout(x *tensor.RawTensor, p float64, gen *tensor.Generator) *tensor.RawTensor {
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("dropout: probability %v out of [0, 1]", p))
	}
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("dropout: requires a floating point tensor, got %s", x.DType()))
	}
	out := cpu.result("dropout", x.Shape(), x.DType())
	scale := 0.0
	if p < 1 {
		scale = 1 / (1 - p)
	}
	for i := 0; i < x.NumElements(); i++ {
		if gen.Float64() >= p {
			out.SetFloat64At(i, x.Float64At(i)*scale)
		}
	}
	return out
}

// Normal samples a fresh tensor from N(mean, std).
func (cpu *Backend) Normal(shape tensor.Shape, dtype tensor.DataType, mean, std float64, gen *tensor.Generator) *tensor.RawTensor {
	if !dtype.IsFloat() {
		panic(fmt.Sprintf("normal: requires a floating point dtype, got %s", dtype))
	}
	out := cpu.result("normal", shape, dtype)
	gen.FillNormal(out, mean, std)
	return out
}
