package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/golden/internal/tensor"
)

func newBackend() *Backend {
	return New(tensor.DefaultDevice)
}

func f32(data []float32, shape ...int) *tensor.RawTensor {
	return tensor.MustFromSlice(data, tensor.Shape(shape), tensor.DefaultDevice)
}

func assertClose(t *testing.T, got *tensor.RawTensor, want []float64, tol float64) {
	t.Helper()
	if got.NumElements() != len(want) {
		t.Fatalf("got %d elements, want %d", got.NumElements(), len(want))
	}
	for i, w := range want {
		if g := got.Float64At(i); math.Abs(g-w) > tol {
			t.Errorf("element %d = %v, want %v", i, g, w)
		}
	}
}

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

func TestNewRejectsNonCPU(t *testing.T) {
	expectPanic(t, "New(cuda)", func() { New(tensor.Device{Kind: tensor.CUDA}) })
}

func TestAddBroadcast(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	y := f32([]float32{10, 20, 30}, 3)

	out := b.Add(x, y)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{11, 22, 33, 14, 25, 36}, 0)

	col := f32([]float32{1, 2}, 2, 1)
	assertClose(t, b.Mul(x, col), []float64{1, 2, 3, 8, 10, 12}, 0)
}

func TestBinaryDTypeMismatchPanics(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1}, 1)
	y := tensor.MustFromSlice([]float64{1}, tensor.Shape{1}, tensor.DefaultDevice)
	expectPanic(t, "add", func() { b.Add(x, y) })
}

func TestIntArithmetic(t *testing.T) {
	b := newBackend()
	x := tensor.MustFromSlice([]int64{7, -3}, tensor.Shape{2}, tensor.DefaultDevice)
	y := tensor.MustFromSlice([]int64{2, 2}, tensor.Shape{2}, tensor.DefaultDevice)
	assertClose(t, b.Div(x, y), []float64{3, -1}, 0)
	assertClose(t, b.Unary(OpReLU, x), []float64{7, 0}, 0)
	expectPanic(t, "exp(int)", func() { b.Unary(OpExp, x) })
}

func TestUnary(t *testing.T) {
	b := newBackend()
	x := tensor.MustFromSlice([]float64{-1, 0, 2}, tensor.Shape{3}, tensor.DefaultDevice)
	assertClose(t, b.Unary(OpReLU, x), []float64{0, 0, 2}, 0)
	assertClose(t, b.Unary(OpSigmoid, x), []float64{1 / (1 + math.E), 0.5, 1 / (1 + math.Exp(-2))}, 1e-12)
	assertClose(t, b.Unary(OpNeg, x), []float64{1, 0, -2}, 0)
}

func TestFloat16Promotes(t *testing.T) {
	b := newBackend()
	x := tensor.Full(tensor.Shape{2}, tensor.Float16, 1.5, tensor.DefaultDevice)
	out := b.Add(x, x)
	if out.DType() != tensor.Float16 {
		t.Fatalf("dtype = %s, want float16", out.DType())
	}
	assertClose(t, out, []float64{3, 3}, 0)
}

func TestCast(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1.7, -2.2}, 2)
	out := b.Cast(x, tensor.Int32)
	if out.DType() != tensor.Int32 {
		t.Fatalf("dtype = %s", out.DType())
	}
	assertClose(t, out, []float64{1, -2}, 0)
}

func TestMatMulKernelsAgree(t *testing.T) {
	b := newBackend()
	gen := tensor.NewGenerator(1)
	x := tensor.Randn(tensor.Shape{37, 45}, tensor.Float64, tensor.DefaultDevice, gen)
	y := tensor.Randn(tensor.Shape{45, 19}, tensor.Float64, tensor.DefaultDevice, gen)

	ref := b.MatMulWith(KernelNaive, x, y)
	if !ref.Shape().Equal(tensor.Shape{37, 19}) {
		t.Fatalf("shape = %v", ref.Shape())
	}
	for _, k := range []MatMulKernel{KernelBlocked, KernelParallel} {
		assertClose(t, b.MatMulWith(k, x, y), ref.Float64s(), 1e-9)
	}
}

func TestMatMulBatched(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	eye := f32([]float32{1, 0, 0, 1}, 2, 2)

	out := b.MatMul(x, eye)
	if !out.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, x.Float64s(), 0)

	out = b.MatMul(x, x)
	assertClose(t, out, []float64{7, 10, 15, 22, 67, 78, 91, 106}, 0)

	expectPanic(t, "k mismatch", func() { b.MatMul(f32(make([]float32, 6), 2, 3), eye) })
}

func TestParseMatMulKernel(t *testing.T) {
	if k, err := ParseMatMulKernel("parallel"); err != nil || k != KernelParallel {
		t.Errorf("ParseMatMulKernel(parallel) = %q, %v", k, err)
	}
	if _, err := ParseMatMulKernel("cublas"); err == nil {
		t.Error("expected unknown kernel error")
	}
}
