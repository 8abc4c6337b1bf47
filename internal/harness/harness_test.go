package harness

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/fixtures"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

func newHarness(t *testing.T) *Harness {
	t.Helper()
	cache, err := compiler.NewCache(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return New(compiler.New(cache), DefaultConfig())
}

func scenario(t *testing.T, name string) *fixtures.Scenario {
	t.Helper()
	s, err := fixtures.Build(name, tensor.DefaultDevice, 42)
	require.NoError(t, err)
	return s
}

func TestFixtureZoo(t *testing.T) {
	h := newHarness(t)
	for _, name := range fixtures.Names() {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, h.VerifyScenario(scenario(t, name)))
		})
	}
}

func TestCheckModel(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "simple")
	h.CheckModel(t, s.Model, s.Inputs, s.Options)
}

func TestCheckModelWithMultipleInputs(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "poi_multiple_dynamic")
	h.CheckModelWithMultipleInputs(t, s.Model, s.InputSets(), s.Options, s.Constraints...)

	// One compile serves every input set.
	assert.Equal(t, int64(1), h.Compiler().Stats().Misses)
}

// x + Linear(10, 10)(y) must equal x + y @ W^T + b for the same W and b.
func TestExampleScenario(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "simple")
	linear := s.Model.(*fixtures.Simple).Linear

	out, err := h.Run(s.Model, s.Inputs, nil)
	require.NoError(t, err)

	b := cpu.New(tensor.DefaultDevice)
	x, y := s.Inputs[0].(*tensor.RawTensor), s.Inputs[1].(*tensor.RawTensor)
	w, bias := linear.Weight().Tensor(), linear.Bias().Tensor()
	want := b.Add(x, b.Add(b.MatMul(y, b.Transpose(w)), bias))

	assert.NoError(t, Same(want, out, DefaultAtol, DefaultRtol))
}

func TestSecondCompileHitsCache(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "consecutive_compiles")

	first, err := h.Run(s.Model, s.Inputs, nil)
	require.NoError(t, err)
	second, err := h.Run(s.Model, s.Inputs, nil)
	require.NoError(t, err)

	stats := h.Compiler().Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.NoError(t, Same(first, second, 0, 0))
}

func TestDynamicShapeOutOfBounds(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "dynamic_cat")

	path, err := h.Compile(s.Model, s.Inputs, s.Options, s.Constraints...)
	require.NoError(t, err)
	runner, err := h.Load(tensor.DefaultDevice, path, s.Inputs)
	require.NoError(t, err)
	defer func() { _ = runner.Close() }()

	gen := tensor.NewGenerator(0)
	_, err = runner.Call(
		tensor.Randn(tensor.Shape{11, 4}, tensor.Float32, tensor.DefaultDevice, gen),
		tensor.Randn(tensor.Shape{3, 4}, tensor.Float32, tensor.DefaultDevice, gen),
	)
	var inErr *runtime.InputError
	assert.ErrorAs(t, err, &inErr)
}

func TestReplicateOnDevices(t *testing.T) {
	runtime.SetCPUCount(3)
	t.Cleanup(func() { runtime.SetCPUCount(2) })

	h := newHarness(t)
	s := scenario(t, "replicate")
	require.NoError(t, h.ReplicateOnDevices(s.Model, s.Inputs, s.Options))
	assert.Equal(t, int64(1), h.Compiler().Stats().Misses)
}

func TestReplicateFromOtherOrdinal(t *testing.T) {
	runtime.SetCPUCount(3)
	t.Cleanup(func() { runtime.SetCPUCount(2) })

	h := newHarness(t)
	s, err := fixtures.Build("replicate", tensor.OnCPU(1), h.Config().Seed)
	require.NoError(t, err)

	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	require.NoError(t, h.ReplicateOnDevices(s.Model, s.Inputs, s.Options))
	assert.Equal(t, int64(1), h.Compiler().Stats().Misses)

	// Every per-device load directory is released.
	leftovers, err := filepath.Glob(filepath.Join(tmp, "golden-load-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadOnOtherKindFails(t *testing.T) {
	h := newHarness(t)
	s := scenario(t, "small_constant")

	path, err := h.Compile(s.Model, s.Inputs, nil)
	require.NoError(t, err)
	_, err = h.Load(tensor.Device{Kind: tensor.CUDA}, path, nil)

	var dm *runtime.DeviceMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestVerifyReportsCompileErrors(t *testing.T) {
	h := newHarness(t)
	x := tensor.Zeros(tensor.Shape{2}, tensor.Float16, tensor.DefaultDevice)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0] })

	err := h.Verify(model, []any{x}, nil)
	var cg *compiler.CodeGenError
	require.ErrorAs(t, err, &cg)
	assert.Contains(t, err.Error(), "float16")
}

func TestVerifyDetectsDivergence(t *testing.T) {
	h := newHarness(t)
	calls := 0
	// Traced once at compile time, so the compiled program bakes in the
	// first scale while the reference sees the second.
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any {
		calls++
		return args[0].(*graph.Value).MulScalar(float64(calls))
	})
	x := tensor.Ones(tensor.Shape{3}, tensor.Float32, tensor.DefaultDevice)

	err := h.Verify(model, []any{x}, nil)
	var mm *MismatchError
	require.True(t, errors.As(err, &mm), "got %v", err)
	assert.Equal(t, "value", mm.Reason)
}

func TestRunMultipleNeedsInputs(t *testing.T) {
	h := newHarness(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0] })
	_, err := h.RunMultiple(model, nil, nil)
	assert.Error(t, err)
}
