package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/golden/internal/tensor"
)

func TestSumDim_2D_LastDim(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	result := b.SumDim(x, -1, true)
	if !result.Shape().Equal(tensor.Shape{2, 1}) {
		t.Errorf("Expected shape [2, 1], got %v", result.Shape())
	}
	assertClose(t, result, []float64{6, 15}, 0)

	result = b.SumDim(x, 0, false)
	if !result.Shape().Equal(tensor.Shape{3}) {
		t.Errorf("Expected shape [3], got %v", result.Shape())
	}
	assertClose(t, result, []float64{5, 7, 9}, 0)
}

func TestSumAll(t *testing.T) {
	b := newBackend()
	result := b.Sum(f32([]float32{1, 2, 3, 4}, 2, 2))
	if len(result.Shape()) != 0 {
		t.Errorf("Expected scalar shape, got %v", result.Shape())
	}
	assertClose(t, result, []float64{10}, 0)
}

func TestMeanDim(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assertClose(t, b.MeanDim(x, 1, false), []float64{2, 5}, 1e-6)
}

func TestSoftmax(t *testing.T) {
	b := newBackend()
	x := tensor.MustFromSlice([]float64{1, 2, 3, 1000, 1000, 1000}, tensor.Shape{2, 3}, tensor.DefaultDevice)
	out := b.Softmax(x, -1)

	e1, e2, e3 := math.Exp(-2), math.Exp(-1), 1.0
	s := e1 + e2 + e3
	assertClose(t, out, []float64{e1 / s, e2 / s, e3 / s, 1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-12)
}

func TestLayerNorm(t *testing.T) {
	b := newBackend()
	x := tensor.MustFromSlice([]float64{1, 3, 0, 4}, tensor.Shape{2, 2}, tensor.DefaultDevice)
	w := tensor.MustFromSlice([]float64{2, 2}, tensor.Shape{2}, tensor.DefaultDevice)
	bias := tensor.MustFromSlice([]float64{0, 1}, tensor.Shape{2}, tensor.DefaultDevice)

	out := b.LayerNorm(x, w, bias, tensor.Shape{2}, 0)
	assertClose(t, out, []float64{-2, 3, -2, 3}, 1e-12)

	out = b.LayerNorm(x, nil, nil, tensor.Shape{2}, 0)
	assertClose(t, out, []float64{-1, 1, -1, 1}, 1e-12)

	expectPanic(t, "bad norm shape", func() { b.LayerNorm(x, nil, nil, tensor.Shape{3}, 1e-5) })
}

func TestDropoutDeterministic(t *testing.T) {
	b := newBackend()
	x := tensor.Ones(tensor.Shape{64}, tensor.Float32, tensor.DefaultDevice)

	a := b.Dropout(x, 0.5, tensor.NewGenerator(11))
	c := b.Dropout(x, 0.5, tensor.NewGenerator(11))
	assertClose(t, a, c.Float64s(), 0)

	zeros := 0
	for _, v := range a.AsFloat32() {
		switch v {
		case 0:
			zeros++
		case 2:
		default:
			t.Fatalf("unexpected dropout value %v", v)
		}
	}
	if zeros == 0 || zeros == 64 {
		t.Errorf("dropout zeroed %d of 64 elements", zeros)
	}

	all := b.Dropout(x, 1, tensor.NewGenerator(0))
	assertClose(t, all, make([]float64, 64), 0)
}

func TestNormal(t *testing.T) {
	b := newBackend()
	a := b.Normal(tensor.Shape{3}, tensor.Float32, 0, 1, tensor.NewGenerator(5))
	c := tensor.Randn(tensor.Shape{3}, tensor.Float32, tensor.DefaultDevice, tensor.NewGenerator(5))
	assertClose(t, a, c.Float64s(), 0)
	expectPanic(t, "int normal", func() { b.Normal(tensor.Shape{1}, tensor.Int32, 0, 1, tensor.NewGenerator(0)) })
}
