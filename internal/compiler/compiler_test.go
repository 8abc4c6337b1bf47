package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

func randn(seed int64, shape ...int) *tensor.RawTensor {
	return tensor.Randn(tensor.Shape(shape), tensor.Float32, tensor.DefaultDevice, tensor.NewGenerator(seed))
}

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	cache, err := NewCache(t.TempDir(), 16)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return New(cache)
}

func options(t *testing.T, values map[string]any) *Options {
	t.Helper()
	o, err := NewOptions(values)
	require.NoError(t, err)
	return o
}

// sinMatMul repeats sin+matmul, has a dead branch and a foldable constant.
func sinMatMul(w *tensor.RawTensor) graph.Model {
	return graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		x := args[0].(*graph.Value)
		h := x.Sin().MatMul(g.Param("w", w))
		out := h.Sin().MatMul(g.Param("w", w))
		_ = x.Cos()
		bias := g.Ones(tensor.Shape{3}, tensor.Float32).MulScalar(2)
		return out.Add(bias)
	})
}

func TestProgramListing(t *testing.T) {
	c := newCompiler(t)
	res, err := c.CompileResult(sinMatMul(randn(1, 3, 3)), []any{randn(2, 2, 3)}, nil)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "program_listing", []byte(res.Program.String()))

	require.Len(t, res.Kernels, 3)
	assert.Equal(t, 2, res.Kernels[0].Uses)
	assert.Equal(t, graph.OpMatMul, res.Kernels[1].Op)
	assert.Equal(t, 2, res.Kernels[1].Uses)
}

func TestCompiledMatchesEager(t *testing.T) {
	c := newCompiler(t)
	model := sinMatMul(randn(1, 3, 3))
	x := randn(2, 2, 3)

	for _, values := range []map[string]any{
		nil,
		{OptConstantFolding: false},
		{OptFreezing: true},
		{OptMaxAutotune: true, OptGemmBackends: "naive,parallel"},
		{OptCompressConstants: true},
	} {
		path, err := c.Compile(model, []any{x}, options(t, values))
		require.NoError(t, err)

		r, err := runtime.Load(tensor.DefaultDevice, path, x)
		require.NoError(t, err)
		got, err := r.Call(x)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		want, err := graph.Eval(model, tensor.DefaultDevice, nil, x)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.(*tensor.RawTensor).AsFloat32(), got.(*tensor.RawTensor).AsFloat32(), 1e-5, "%v", values)
	}
}

func TestSecondCompileIsCacheHit(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any {
		return args[0].(*graph.Value).AddScalar(1)
	})
	x := randn(1, 4)

	first, err := c.CompileResult(model, []any{x}, nil)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, Stats{Misses: 1}, c.Stats())

	second, err := c.CompileResult(model, []any{randn(2, 4)}, nil)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	// Different options compile anew.
	third, err := c.CompileResult(model, []any{x}, options(t, map[string]any{OptCheckInfNaN: true}))
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestCacheSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0].(*graph.Value).Exp() })
	x := randn(1, 3)

	cache, err := NewCache(dir, 8)
	require.NoError(t, err)
	path, err := New(cache).Compile(model, []any{x}, nil)
	require.NoError(t, err)
	cache.Close()

	cache, err = NewCache(dir, 8)
	require.NoError(t, err)
	defer cache.Close()
	c := New(cache)
	again, err := c.Compile(model, []any{x}, nil)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int64(1), c.Stats().Hits)

	require.NoError(t, cache.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOutputPathOverride(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0].(*graph.Value).Tanh() })
	x := randn(1, 3)
	out := filepath.Join(t.TempDir(), "nested", "model.gaot")

	for i := 0; i < 2; i++ {
		path, err := c.Compile(model, []any{x}, options(t, map[string]any{OptOutputPath: out}))
		require.NoError(t, err)
		assert.Equal(t, out, path)
		_, err = os.Stat(out)
		require.NoError(t, err)
	}
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestUnsupportedInputDType(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0].(*graph.Value).Neg() })
	half := tensor.Zeros(tensor.Shape{2}, tensor.Float16, tensor.DefaultDevice)

	_, err := c.Compile(model, []any{half}, nil)
	var cg *CodeGenError
	require.ErrorAs(t, err, &cg)
	assert.Equal(t, "unsupported input dtype float16", cg.Construct)

	_, err = c.Compile(model, []any{half}, options(t, map[string]any{OptABICompatible: false}))
	assert.NoError(t, err)
}

func TestDTypePredicateCalledOncePerDType(t *testing.T) {
	c := newCompiler(t)
	type call struct {
		dtype  tensor.DataType
		device tensor.Device
	}
	var calls []call
	c.DTypeSupported = func(dtype tensor.DataType, device tensor.Device, _ *Options) bool {
		calls = append(calls, call{dtype, device})
		return false
	}
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any { return args[0] })

	_, err := c.Compile(model, []any{randn(1, 2)}, nil)
	var cg *CodeGenError
	require.ErrorAs(t, err, &cg)
	assert.Equal(t, "unsupported input dtype float32", cg.Construct)
	assert.Equal(t, []call{{tensor.Float32, tensor.DefaultDevice}}, calls)
}

func TestDeviceMismatch(t *testing.T) {
	c := newCompiler(t)
	w := randn(1, 2).To(tensor.OnCPU(1))
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		return args[0].(*graph.Value).Add(g.Param("w", w))
	})

	_, err := c.Compile(model, []any{randn(2, 2)}, nil)
	var dm *DeviceMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Contains(t, err.Error(), "device mismatch between example input and parameter")

	_, err = c.Compile(model, []any{randn(2, 2), randn(3, 2).To(tensor.OnCPU(1))}, nil)
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, "example input 1", dm.Where)
}

func TestTraceFailureIsCodeGenError(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any {
		x := args[0].(*graph.Value)
		return x.MatMul(x)
	})
	_, err := c.Compile(model, []any{randn(1, 2, 3)}, nil)
	var cg *CodeGenError
	require.ErrorAs(t, err, &cg)
	assert.Equal(t, "trace", cg.Construct)

	_, err = c.Compile(model, []any{"not a tensor"}, nil)
	require.ErrorAs(t, err, &cg)
}

func TestConstraints(t *testing.T) {
	x, y := randn(1, 4, 3), randn(2, 4, 5)
	names := []string{"arg0", "arg1"}

	specs, err := resolveInputs([]*tensor.RawTensor{x, y}, names, []Constraint{
		DynamicDim(0, 0).GE(2),
		DynamicDim(0, 0).LE(64),
		DynamicDim(1, 0).LE(32),
		DynamicDim(0, 0).Eq(DynamicDim(1, 0)),
	})
	require.NoError(t, err)
	want := artifact.DimSpec{Size: 4, Symbol: "s0", Min: 2, Max: 32}
	assert.Equal(t, []artifact.DimSpec{want, {Size: 3}}, specs[0].Dims)
	assert.Equal(t, []artifact.DimSpec{want, {Size: 5}}, specs[1].Dims)

	tests := []struct {
		name string
		cs   []Constraint
	}{
		{"example below min", []Constraint{DynamicDim(0, 0).GE(5)}},
		{"example above max", []Constraint{DynamicDim(0, 1).LE(2)}},
		{"empty range", []Constraint{DynamicDim(0, 0).GE(2), DynamicDim(0, 0).LE(1)}},
		{"unequal example sizes", []Constraint{DynamicDim(0, 1).Eq(DynamicDim(1, 1))}},
		{"no such input", []Constraint{DynamicDim(2, 0).GE(1)}},
		{"no such axis", []Constraint{DynamicDim(0, 2).GE(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveInputs([]*tensor.RawTensor{x, y}, names, tt.cs)
			var cv *ConstraintViolationError
			assert.ErrorAs(t, err, &cv)
		})
	}
}

func TestDynamicCompileServesOtherShapes(t *testing.T) {
	c := newCompiler(t)
	w := randn(1, 6, 4)
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		return args[0].(*graph.Value).MatMul(g.Param("w", w).T())
	})

	path, err := c.Compile(model, []any{randn(2, 8, 4)}, nil,
		DynamicDim(0, 0).GE(1), DynamicDim(0, 0).LE(16))
	require.NoError(t, err)

	r, err := runtime.Load(tensor.DefaultDevice, path)
	require.NoError(t, err)
	defer r.Close()

	out, err := r.Call(randn(3, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 6}, out.(*tensor.RawTensor).Shape())

	_, err = r.Call(randn(3, 17, 4))
	var ie *runtime.InputError
	assert.ErrorAs(t, err, &ie)
}

func TestAutotunedCompileIsCacheHit(t *testing.T) {
	c := newCompiler(t)
	w := randn(1, 64, 64)
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		return args[0].(*graph.Value).MatMul(g.Param("w", w))
	})
	opts := options(t, map[string]any{OptMaxAutotune: true, OptGemmBackends: "naive,blocked,parallel"})

	first, err := c.CompileResult(model, []any{randn(2, 64, 64)}, opts)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	kernel := first.Program.Nodes[first.Program.Outputs[0]].Attrs.Kernel
	assert.NotEmpty(t, kernel)

	for i := 0; i < 10; i++ {
		res, err := c.CompileResult(model, []any{randn(2, 64, 64)}, opts)
		require.NoError(t, err)
		assert.True(t, res.CacheHit)
		assert.Equal(t, first.Fingerprint, res.Fingerprint)
		assert.Equal(t, first.Path, res.Path)
		assert.Equal(t, kernel, res.Program.Nodes[res.Program.Outputs[0]].Attrs.Kernel)
	}
	assert.Equal(t, Stats{Hits: 10, Misses: 1}, c.Stats())
}

func TestSpecializedDynamicDimRejected(t *testing.T) {
	tests := []struct {
		name    string
		forward func(g *graph.Graph, x *graph.Value) *graph.Value
	}{
		{"constant with input shape", func(g *graph.Graph, x *graph.Value) *graph.Value {
			return x.Add(g.Ones(x.Shape(), tensor.Float32))
		}},
		{"slice bound from input shape", func(_ *graph.Graph, x *graph.Value) *graph.Value {
			return x.Slice(0, 0, x.Shape()[0], 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
				return tt.forward(g, args[0].(*graph.Value))
			})

			_, err := c.Compile(model, []any{randn(1, 8, 4)}, nil,
				DynamicDim(0, 0).GE(1), DynamicDim(0, 0).LE(16))
			var cv *ConstraintViolationError
			require.ErrorAs(t, err, &cv)
			assert.Contains(t, cv.Reason, "dim specialized to constant")
			assert.Contains(t, cv.Constraint, "dynamic_dim(0, 0)")

			// Bounds that pin the dimension leave nothing to specialise.
			_, err = c.Compile(model, []any{randn(1, 8, 4)}, nil,
				DynamicDim(0, 0).GE(8), DynamicDim(0, 0).LE(8))
			assert.NoError(t, err)
		})
	}
}

func TestStochasticNodesSurvivePasses(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		x := args[0].(*graph.Value)
		_ = g.Ones(tensor.Shape{4}, tensor.Float32).Dropout(0.5) // unused, still drawn
		return x.Dropout(0.5)
	})
	x := tensor.Ones(tensor.Shape{16}, tensor.Float32, tensor.DefaultDevice)

	res, err := c.CompileResult(model, []any{x}, nil)
	require.NoError(t, err)
	drops := 0
	for _, n := range res.Program.Nodes {
		if n.Op == graph.OpDropout {
			drops++
		}
	}
	assert.Equal(t, 2, drops)

	r, err := runtime.Load(tensor.DefaultDevice, res.Path)
	require.NoError(t, err)
	defer r.Close()
	r.Reseed(11)
	got, err := r.Call(x)
	require.NoError(t, err)
	want, err := graph.Eval(model, tensor.DefaultDevice, tensor.NewGenerator(11), x)
	require.NoError(t, err)
	assert.Equal(t, want.(*tensor.RawTensor).AsFloat32(), got.(*tensor.RawTensor).AsFloat32())
}

func TestFreezingFoldsParameters(t *testing.T) {
	c := newCompiler(t)
	w, pad := randn(1, 9, 10), tensor.Zeros(tensor.Shape{1, 10}, tensor.Float32, tensor.DefaultDevice)
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		weight := g.Cat(0, g.Param("weight", w), g.Param("padding", pad))
		return args[0].(*graph.Value).MatMul(weight.T())
	})
	x := randn(2, 10, 10)

	plain, err := c.CompileResult(model, []any{x}, nil)
	require.NoError(t, err)
	frozen, err := c.CompileResult(model, []any{x}, options(t, map[string]any{OptFreezing: true}))
	require.NoError(t, err)

	countOps := func(p *graph.Program, op string) int {
		n := 0
		for _, node := range p.Nodes {
			if node.Op == op {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, countOps(plain.Program, graph.OpCat))
	assert.Equal(t, 0, countOps(frozen.Program, graph.OpCat))
	assert.Equal(t, 0, countOps(frozen.Program, graph.OpTranspose))
}

func TestPytreeSpecsStored(t *testing.T) {
	c := newCompiler(t)
	model := graph.ModelFunc(func(_ *graph.Graph, args ...any) any {
		d := args[0].(*pytree.Dict)
		x, _ := d.Get("x")
		return pytree.Tuple{x, []any{x.(*graph.Value).Sin()}}
	})
	path, err := c.Compile(model, []any{pytree.NewDict().Set("x", randn(1, 2))}, nil)
	require.NoError(t, err)

	f, err := artifact.Open(path)
	require.NoError(t, err)
	defer f.Close()
	in, err := pytree.Loads(f.Header().CallSpec.In)
	require.NoError(t, err)
	out, err := pytree.Loads(f.Header().CallSpec.Out)
	require.NoError(t, err)
	assert.Equal(t, "T(D(x:*))", in.String())
	assert.Equal(t, "T(*,L(*))", out.String())
	assert.Equal(t, Version, f.Header().GoldenVersion)
	assert.NotEmpty(t, f.Header().ArtifactID)
}

func TestCodeGenErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := error(&CodeGenError{Construct: "trace", Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "code generation failed: trace: boom", err.Error())
}
