package cpu

import (
	"testing"

	"github.com/born-ml/golden/internal/tensor"
)

func TestTranspose(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	out := b.Transpose(x)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{1, 4, 2, 5, 3, 6}, 0)

	y := f32([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 2, 3, 2)
	out = b.Transpose(y, 2, 0, 1)
	if !out.Shape().Equal(tensor.Shape{2, 2, 3}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{0, 2, 4, 6, 8, 10, 1, 3, 5, 7, 9, 11}, 0)

	expectPanic(t, "duplicate perm", func() { b.Transpose(y, 0, 0, 1) })
}

func TestReshapeCopies(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4}, 2, 2)
	out := b.Reshape(x, -1)
	if !out.Shape().Equal(tensor.Shape{4}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	out.AsFloat32()[0] = 9
	if x.AsFloat32()[0] != 1 {
		t.Error("Reshape must not alias its input")
	}
}

func TestUnsqueezeSqueeze(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3}, 3)
	u := b.Unsqueeze(x, 0)
	if !u.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("unsqueeze shape = %v", u.Shape())
	}
	u = b.Unsqueeze(x, -1)
	if !u.Shape().Equal(tensor.Shape{3, 1}) {
		t.Fatalf("unsqueeze(-1) shape = %v", u.Shape())
	}
	s := b.Squeeze(u, 1)
	if !s.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("squeeze shape = %v", s.Shape())
	}
	expectPanic(t, "squeeze non-1", func() { b.Squeeze(u, 0) })
}

func TestCat(t *testing.T) {
	b := newBackend()
	x := f32([]float32{1, 2, 3, 4}, 2, 2)
	y := f32([]float32{5, 6}, 2, 1)

	out := b.Cat([]*tensor.RawTensor{x, y}, 1)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{1, 2, 5, 3, 4, 6}, 0)

	out = b.Cat([]*tensor.RawTensor{x, x}, 0)
	assertClose(t, out, []float64{1, 2, 3, 4, 1, 2, 3, 4}, 0)

	expectPanic(t, "mismatched", func() { b.Cat([]*tensor.RawTensor{x, y}, 0) })
}

func TestSliceAndSelect(t *testing.T) {
	b := newBackend()
	x := f32([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 2, 5)

	out := b.Slice(x, 1, 1, 5, 2)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{1, 3, 6, 8}, 0)

	out = b.Slice(x, -1, -2, 100, 1)
	assertClose(t, out, []float64{3, 4, 8, 9}, 0)

	out = b.Select(x, 0, -1)
	if !out.Shape().Equal(tensor.Shape{5}) {
		t.Fatalf("select shape = %v", out.Shape())
	}
	assertClose(t, out, []float64{5, 6, 7, 8, 9}, 0)

	expectPanic(t, "select out of range", func() { b.Select(x, 0, 2) })
}
