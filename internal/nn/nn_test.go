package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

func TestLinearMatchesManualComputation(t *testing.T) {
	dev := tensor.DefaultDevice
	gen := tensor.NewGenerator(0)
	l := NewLinear("linear", 10, 10, dev, gen)
	x := tensor.Randn(tensor.Shape{4, 10}, tensor.Float32, dev, gen)

	out, err := graph.Eval(AsModel(l), dev, nil, x)
	require.NoError(t, err)

	b := cpu.New(dev)
	want := b.Add(b.MatMulWith(cpu.KernelNaive, x, b.Transpose(l.Weight().Tensor())), l.Bias().Tensor())
	got := out.(*tensor.RawTensor)
	require.Equal(t, want.Shape(), got.Shape())
	assert.InDeltaSlice(t, want.Float64s(), got.Float64s(), 1e-5)
}

func TestLinearInitIsSeeded(t *testing.T) {
	a := NewLinear("l", 4, 3, tensor.DefaultDevice, tensor.NewGenerator(9))
	b := NewLinear("l", 4, 3, tensor.DefaultDevice, tensor.NewGenerator(9))
	assert.Equal(t, a.Weight().Tensor().AsFloat32(), b.Weight().Tensor().AsFloat32())
	assert.Equal(t, a.Bias().Tensor().AsFloat32(), b.Bias().Tensor().AsFloat32())
	assert.Equal(t, "l.weight", a.Weight().Name())
}

func TestLinearRejectsWrongWidth(t *testing.T) {
	l := NewLinear("l", 4, 3, tensor.DefaultDevice, tensor.NewGenerator(0))
	x := tensor.Zeros(tensor.Shape{2, 5}, tensor.Float32, tensor.DefaultDevice)
	_, err := graph.Eval(AsModel(l), tensor.DefaultDevice, nil, x)
	assert.ErrorContains(t, err, "expected last dimension 4")
}

func TestSequentialSharesParameters(t *testing.T) {
	ln := NewLayerNorm("ln", 10, tensor.DefaultDevice)
	seq := NewSequential(ln, NewReLU(), ln, NewReLU())
	assert.Len(t, seq.Parameters(), 2)

	x := tensor.Randn(tensor.Shape{10}, tensor.Float32, tensor.DefaultDevice, tensor.NewGenerator(1))
	traced, err := graph.Trace(AsModel(seq), tensor.DefaultDevice, x)
	require.NoError(t, err)
	assert.Len(t, traced.Constants, 2)

	out, err := graph.Eval(AsModel(seq), tensor.DefaultDevice, nil, x)
	require.NoError(t, err)
	for _, v := range out.(*tensor.RawTensor).AsFloat32() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	seq := NewSequential(NewDropout(0.5)).Eval()
	x := tensor.Ones(tensor.Shape{16}, tensor.Float32, tensor.DefaultDevice)

	traced, err := graph.Trace(AsModel(seq), tensor.DefaultDevice, x)
	require.NoError(t, err)
	assert.Len(t, traced.Program.Nodes, 1)

	seq.Train()
	traced, err = graph.Trace(AsModel(seq), tensor.DefaultDevice, x)
	require.NoError(t, err)
	assert.Equal(t, graph.OpDropout, traced.Program.Nodes[1].Op)
}
