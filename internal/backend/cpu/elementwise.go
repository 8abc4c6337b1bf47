package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/golden/internal/tensor"
)

type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

type float interface {
	~float32 | ~float64
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b)
}

// Div performs element-wise division with broadcasting.
func (cpu *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b)
}

// Maximum returns the element-wise maximum with broadcasting.
func (cpu *Backend) Maximum(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("maximum", a, b)
}

func (cpu *Backend) binary(op string, a, b *tensor.RawTensor) *tensor.RawTensor {
	sameDType(op, a, b)
	if ts, promoted := cpu.promoteHalf(a, b); promoted {
		return cpu.Cast(cpu.binary(op, ts[0], ts[1]), tensor.Float16)
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	out := cpu.result(op, outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		applyBinary(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), outShape, a.Shape(), b.Shape(), arith[float32](op))
	case tensor.Float64:
		applyBinary(out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), outShape, a.Shape(), b.Shape(), arith[float64](op))
	case tensor.Int32:
		applyBinary(out.AsInt32(), a.AsInt32(), b.AsInt32(), outShape, a.Shape(), b.Shape(), arith[int32](op))
	case tensor.Int64:
		applyBinary(out.AsInt64(), a.AsInt64(), b.AsInt64(), outShape, a.Shape(), b.Shape(), arith[int64](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return out
}

func arith[T number](op string) func(x, y T) T {
	switch op {
	case "add":
		return func(x, y T) T { return x + y }
	case "sub":
		return func(x, y T) T { return x - y }
	case "mul":
		return func(x, y T) T { return x * y }
	case "div":
		return func(x, y T) T { return x / y }
	case "maximum":
		return func(x, y T) T {
			if x != x || x > y { // NaN propagates
				return x
			}
			return y
		}
	default:
		panic(fmt.Sprintf("unknown binary op %q", op))
	}
}

// broadcastStrides returns the strides of in aligned to out's rank, with 0
// for every broadcast dimension.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for i := range in {
		if in[i] != 1 {
			strides[offset+i] = inStrides[i]
		}
	}
	return strides
}

func applyBinary[T number](out, a, b []T, outShape, aShape, bShape tensor.Shape, f func(x, y T) T) {
	if aShape.Equal(bShape) {
		for i := range out {
			out[i] = f(a[i], b[i])
		}
		return
	}

	as := broadcastStrides(aShape, outShape)
	bs := broadcastStrides(bShape, outShape)
	idx := make([]int, len(outShape))
	ao, bo := 0, 0
	for i := range out {
		out[i] = f(a[ao], b[bo])
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			ao += as[d]
			bo += bs[d]
			if idx[d] < outShape[d] {
				break
			}
			ao -= as[d] * outShape[d]
			bo -= bs[d] * outShape[d]
			idx[d] = 0
		}
	}
}

// AddScalar adds a scalar to every element.
func (cpu *Backend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.scalar("add_scalar", x, s)
}

// MulScalar multiplies every element by a scalar.
func (cpu *Backend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.scalar("mul_scalar", x, s)
}

func (cpu *Backend) scalar(op string, x *tensor.RawTensor, s float64) *tensor.RawTensor {
	if ts, promoted := cpu.promoteHalf(x); promoted {
		return cpu.Cast(cpu.scalar(op, ts[0], s), tensor.Float16)
	}
	name := "add"
	if op == "mul_scalar" {
		name = "mul"
	}
	out := cpu.result(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		applyScalar(out.AsFloat32(), x.AsFloat32(), float32(s), arith[float32](name))
	case tensor.Float64:
		applyScalar(out.AsFloat64(), x.AsFloat64(), s, arith[float64](name))
	case tensor.Int32:
		applyScalar(out.AsInt32(), x.AsInt32(), int32(s), arith[int32](name))
	case tensor.Int64:
		applyScalar(out.AsInt64(), x.AsInt64(), int64(s), arith[int64](name))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return out
}

func applyScalar[T number](out, in []T, s T, f func(x, y T) T) {
	for i := range out {
		out[i] = f(in[i], s)
	}
}

// Unary ops understood by Unary.
const (
	OpNeg     = "neg"
	OpAbs     = "abs"
	OpReLU    = "relu"
	OpSin     = "sin"
	OpCos     = "cos"
	OpExp     = "exp"
	OpLog     = "log"
	OpSqrt    = "sqrt"
	OpSigmoid = "sigmoid"
	OpTanh    = "tanh"
)

// IsUnary reports whether op names an element-wise unary kernel.
func IsUnary(op string) bool {
	switch op {
	case OpNeg, OpAbs, OpReLU, OpSin, OpCos, OpExp, OpLog, OpSqrt, OpSigmoid, OpTanh:
		return true
	}
	return false
}

// Unary applies an element-wise unary op. Neg, Abs and ReLU accept integer
// tensors; the transcendental ops require floating point input.
func (cpu *Backend) Unary(op string, x *tensor.RawTensor) *tensor.RawTensor {
	if ts, promoted := cpu.promoteHalf(x); promoted {
		return cpu.Cast(cpu.Unary(op, ts[0]), tensor.Float16)
	}
	out := cpu.result(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		applyUnary(out.AsFloat32(), x.AsFloat32(), unaryFloat[float32](op))
	case tensor.Float64:
		applyUnary(out.AsFloat64(), x.AsFloat64(), unaryFloat[float64](op))
	case tensor.Int32:
		applyUnary(out.AsInt32(), x.AsInt32(), unaryInt[int32](op))
	case tensor.Int64:
		applyUnary(out.AsInt64(), x.AsInt64(), unaryInt[int64](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return out
}

func applyUnary[T number](out, in []T, f func(T) T) {
	for i := range out {
		out[i] = f(in[i])
	}
}

func unaryInt[T ~int32 | ~int64](op string) func(T) T {
	switch op {
	case OpNeg:
		return func(x T) T { return -x }
	case OpAbs:
		return func(x T) T {
			if x < 0 {
				return -x
			}
			return x
		}
	case OpReLU:
		return func(x T) T { return max(x, 0) }
	default:
		panic(fmt.Sprintf("%s: requires a floating point tensor", op))
	}
}

func unaryFloat[T float](op string) func(T) T {
	switch op {
	case OpNeg:
		return func(x T) T { return -x }
	case OpAbs:
		return func(x T) T { return T(math.Abs(float64(x))) }
	case OpReLU:
		return func(x T) T {
			if x > 0 || x != x {
				return x
			}
			return 0
		}
	case OpSin:
		return func(x T) T { return T(math.Sin(float64(x))) }
	case OpCos:
		return func(x T) T { return T(math.Cos(float64(x))) }
	case OpExp:
		return func(x T) T { return T(math.Exp(float64(x))) }
	case OpLog:
		return func(x T) T { return T(math.Log(float64(x))) }
	case OpSqrt:
		return func(x T) T { return T(math.Sqrt(float64(x))) }
	case OpSigmoid:
		return func(x T) T { return T(1 / (1 + math.Exp(-float64(x)))) }
	case OpTanh:
		return func(x T) T { return T(math.Tanh(float64(x))) }
	default:
		panic(fmt.Sprintf("unknown unary op %q", op))
	}
}

// Cast converts x to dtype. Casting to the same dtype returns a copy.
func (cpu *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.To(cpu.device)
	}
	out := cpu.result("cast", x.Shape(), dtype)
	for i := 0; i < x.NumElements(); i++ {
		out.SetFloat64At(i, x.Float64At(i))
	}
	return out
}

// Clone copies x onto the backend's device.
func (cpu *Backend) Clone(x *tensor.RawTensor) *tensor.RawTensor {
	return x.To(cpu.device)
}
