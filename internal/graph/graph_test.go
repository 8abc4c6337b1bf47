package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

func randn(seed int64, shape ...int) *tensor.RawTensor {
	return tensor.Randn(tensor.Shape(shape), tensor.Float32, tensor.DefaultDevice, tensor.NewGenerator(seed))
}

type affine struct {
	w, b *tensor.RawTensor
}

func (m *affine) Forward(g *Graph, args ...any) any {
	x := args[0].(*Value)
	return x.MatMul(g.Param("w", m.w).T()).Add(g.Param("b", m.b))
}

func TestEvalComputesEagerly(t *testing.T) {
	m := &affine{
		w: tensor.MustFromSlice([]float32{1, 0, 0, 2}, tensor.Shape{2, 2}, tensor.DefaultDevice),
		b: tensor.MustFromSlice([]float32{1, 1}, tensor.Shape{2}, tensor.DefaultDevice),
	}
	x := tensor.MustFromSlice([]float32{3, 4}, tensor.Shape{1, 2}, tensor.DefaultDevice)

	out, err := Eval(m, tensor.DefaultDevice, nil, x)
	require.NoError(t, err)
	raw := out.(*tensor.RawTensor)
	assert.Equal(t, []float32{4, 9}, raw.AsFloat32())
}

func TestTraceRecordsProgram(t *testing.T) {
	m := &affine{w: randn(1, 3, 4), b: randn(2, 3)}
	x := randn(3, 5, 4)

	traced, err := Trace(m, tensor.DefaultDevice, x)
	require.NoError(t, err)
	require.NoError(t, traced.Program.Validate())

	ops := make([]string, len(traced.Program.Nodes))
	for i, n := range traced.Program.Nodes {
		ops[i] = n.Op
	}
	assert.Equal(t, []string{OpInput, OpConst, OpTranspose, OpMatMul, OpConst, OpAdd}, ops)
	assert.Equal(t, []int{0}, traced.Program.Inputs)
	assert.Equal(t, []int{5}, traced.Program.Outputs)
	assert.Equal(t, tensor.Shape{5, 3}, traced.Program.Nodes[5].Shape)
	assert.Len(t, traced.Constants, 2)
	assert.Equal(t, "T(*)", traced.InSpec.String())
	assert.Equal(t, "*", traced.OutSpec.String())
}

func TestTraceCopiesParameters(t *testing.T) {
	w := randn(1, 2, 2)
	m := &affine{w: w, b: randn(2, 2)}

	traced, err := Trace(m, tensor.DefaultDevice, randn(3, 1, 2))
	require.NoError(t, err)

	before := traced.Constants[1].AsFloat32()[0]
	w.AsFloat32()[0] = 1000
	assert.Equal(t, before, traced.Constants[1].AsFloat32()[0])
}

func TestTraceDeduplicatesSharedParameters(t *testing.T) {
	p := randn(1, 6)
	model := ModelFunc(func(g *Graph, args ...any) any {
		x := args[0].(*Value)
		return g.Param("p", p).Mul(x).Add(g.Param("q", p))
	})

	traced, err := Trace(model, tensor.DefaultDevice, randn(2, 6))
	require.NoError(t, err)
	assert.Len(t, traced.Constants, 1)
	assert.Len(t, traced.Params, 1)
}

func TestTraceParameterDeviceMismatch(t *testing.T) {
	p := randn(1, 2).To(tensor.OnCPU(1))
	model := ModelFunc(func(g *Graph, args ...any) any {
		return args[0].(*Value).Add(g.Param("p", p))
	})

	_, err := Trace(model, tensor.DefaultDevice, randn(2, 2))
	var dm *tensor.DeviceMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, tensor.OnCPU(1), dm.Actual)
}

func TestEvalInputDeviceMismatch(t *testing.T) {
	model := ModelFunc(func(_ *Graph, args ...any) any { return args[0] })
	_, err := Eval(model, tensor.DefaultDevice, nil, randn(1, 2).To(tensor.OnCPU(1)))
	var dm *tensor.DeviceMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestKernelErrorIsSticky(t *testing.T) {
	calls := 0
	model := ModelFunc(func(g *Graph, args ...any) any {
		x := args[0].(*Value)
		bad := x.MatMul(x) // [2,3] @ [2,3]
		calls++
		out := bad.Add(x).ReLU()
		assert.False(t, g.Ok())
		return out
	})

	_, err := Eval(model, tensor.DefaultDevice, nil, randn(1, 2, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matmul")
	assert.Equal(t, 1, calls)
}

func TestForwardPanicBecomesError(t *testing.T) {
	model := ModelFunc(func(_ *Graph, args ...any) any {
		return args[0].(*pytree.Dict) // wrong type assertion
	})
	_, err := Eval(model, tensor.DefaultDevice, nil, randn(1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestNonValueOutputRejected(t *testing.T) {
	model := ModelFunc(func(_ *Graph, _ ...any) any { return 42 })
	_, err := Eval(model, tensor.DefaultDevice, nil, randn(1, 2))
	assert.Error(t, err)
}

func TestPytreeInputsAndOutputs(t *testing.T) {
	model := ModelFunc(func(g *Graph, args ...any) any {
		d := args[0].(*pytree.Dict)
		add := g.Zeros(tensor.Shape{3}, tensor.Float32)
		mul := g.Ones(tensor.Shape{3}, tensor.Float32)
		for _, v := range d.Values() {
			add = add.Add(v.(*Value))
			mul = mul.Mul(v.(*Value))
		}
		return []any{add, mul}
	})

	ones := tensor.Ones(tensor.Shape{3}, tensor.Float32, tensor.DefaultDevice)
	in := pytree.NewDict().Set("x", ones).Set("y", ones)

	out, err := Eval(model, tensor.DefaultDevice, nil, in)
	require.NoError(t, err)
	list := out.([]any)
	require.Len(t, list, 2)
	assert.Equal(t, []float32{2, 2, 2}, list[0].(*tensor.RawTensor).AsFloat32())
	assert.Equal(t, []float32{1, 1, 1}, list[1].(*tensor.RawTensor).AsFloat32())

	traced, err := Trace(model, tensor.DefaultDevice, in)
	require.NoError(t, err)
	assert.Equal(t, "T(D(x:*,y:*))", traced.InSpec.String())
	assert.Equal(t, "L(*,*)", traced.OutSpec.String())
	assert.Len(t, traced.Program.Inputs, 2)
}

func TestStochasticOpsUseGenerator(t *testing.T) {
	model := ModelFunc(func(_ *Graph, args ...any) any {
		return args[0].(*Value).Dropout(0.5)
	})
	x := tensor.Ones(tensor.Shape{32}, tensor.Float32, tensor.DefaultDevice)

	a, err := Eval(model, tensor.DefaultDevice, tensor.NewGenerator(4), x)
	require.NoError(t, err)
	b, err := Eval(model, tensor.DefaultDevice, tensor.NewGenerator(4), x)
	require.NoError(t, err)
	assert.Equal(t, a.(*tensor.RawTensor).AsFloat32(), b.(*tensor.RawTensor).AsFloat32())
}

func TestNonCPUGraphRejected(t *testing.T) {
	model := ModelFunc(func(_ *Graph, args ...any) any { return args[0] })
	_, err := Trace(model, tensor.Device{Kind: tensor.CUDA}, randn(1, 2))
	assert.Error(t, err)
}

func TestProgramListing(t *testing.T) {
	model := ModelFunc(func(_ *Graph, args ...any) any {
		x := args[0].(*Value)
		return pytree.Tuple{x.Sin().MulScalar(2), x.Slice(0, 0, 1, 1)}
	})
	traced, err := Trace(model, tensor.DefaultDevice, randn(1, 2, 2))
	require.NoError(t, err)

	want := "%0 = input \"arg0\" -> float32[2 2]\n" +
		"%1 = sin(%0) -> float32[2 2]\n" +
		"%2 = mul_scalar(%1) scalar=2 -> float32[2 2]\n" +
		"%3 = slice(%0) range=0:1:1 -> float32[1 2]\n" +
		"return (%2, %3)\n"
	assert.Equal(t, want, traced.Program.String())
}
