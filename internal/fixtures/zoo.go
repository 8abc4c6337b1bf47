package fixtures

import (
	"fmt"

	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/nn"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

func init() {
	register("simple", simple)
	register("small_constant", smallConstant)
	register("with_offset", withOffset)
	register("freezing", freezing)
	register("missing_output", missingOutput)
	register("output_misaligned", outputMisaligned)
	register("seq", seq)
	register("addmm", addmm)
	register("aliased_buffer_reuse", aliasedBufferReuse)
	register("buffer_reuse", bufferReuse)
	register("duplicated_params", duplicatedParams)
	register("simple_dynamic", simpleDynamic)
	register("dynamic_cat", dynamicCat)
	register("replicate", replicate)
	register("pytree_inputs", pytreeInputs)
	register("reuse_kernel", reuseKernel)
	register("empty_graph", emptyGraph)
	register("return_constant", returnConstant)
	register("repeat_output", repeatOutput)
	register("normal_functional", normalFunctional)
	register("dropout_add", dropoutAdd)
	register("consecutive_compiles", consecutiveCompiles)
	register("run_with_grad_enabled", runWithGradEnabled)
	register("poi_multiple_dynamic", poiMultipleDynamic)
	register("addmm_multiple_dynamic", addmmMultipleDynamic)
	register("bmm_multiple_dynamic", bmmMultipleDynamic)
	register("foreach_multiple_dynamic", foreachMultipleDynamic)
}

// Simple computes x + Linear(10, 10)(y).
type Simple struct {
	Linear *nn.Linear
}

// Forward implements graph.Model.
func (m *Simple) Forward(g *graph.Graph, in ...any) any {
	v := args(g, in, 2)
	if v == nil {
		return nil
	}
	return v[0].Add(m.Linear.Forward(g, v[1]))
}

func simple(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	m := &Simple{Linear: nn.NewLinear("linear", 10, 10, device, gen)}
	return &Scenario{
		Model:  m,
		Inputs: []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
	}
}

func smallConstant(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  nn.AsModel(nn.NewLinear("linear", 4, 4, device, gen)),
		Inputs: []any{randn(gen, device, 4, 4)},
	}
}

// withOffset uses parameters that are windows of one larger tensor.
func withOffset(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	b := cpu.New(device)
	orig := b.Select(randn(gen, device, 2, 15, 10), 0, 0)
	tail := b.Slice(orig, 0, 5, 15, 1)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			weight := g.Param("orig_tensor", orig).Slice(0, 0, 10, 1)
			return x.Add(y.MatMul(weight.T())).Add(g.Param("tensor", tail))
		}),
		Inputs: []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
	}
}

func freezing(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	weight, padding := randn(gen, device, 9, 10), randn(gen, device, 1, 10)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			padded := g.Cat(0, g.Param("weight", weight), g.Param("padding", padding))
			return x.Add(y.MatMul(padded.T()))
		}),
		Inputs:  []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
		Options: map[string]any{compiler.OptFreezing: true},
	}
}

func missingOutput(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(_ *graph.Graph, x, y *graph.Value) any {
			return x.Sin().MatMul(y).Cos()
		}),
		Inputs: []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
	}
}

func outputMisaligned(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			cat := g.Cat(0, x.Unsqueeze(0), y.Unsqueeze(0))
			return pytree.Tuple{cat.Select(0, 0).Sigmoid(), cat.Select(0, 1)}
		}),
		Inputs: []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
	}
}

// seq reuses one LayerNorm twice.
func seq(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	ln := nn.NewLayerNorm("layernorm", 10, device)
	net := nn.NewSequential(ln, nn.NewReLU(), ln, nn.NewReLU())
	net.Eval()
	return &Scenario{
		Model:  nn.AsModel(net),
		Inputs: []any{randn(gen, device, 10)},
	}
}

func addmmModel(gen *tensor.Generator, device tensor.Device, n, k int) graph.Model {
	return nn.AsModel(nn.NewLinearFrom("linear", randn(gen, device, n, k), randn(gen, device, n)))
}

func addmm(device tensor.Device, seed int64) *Scenario {
	const m, n, k, batch = 8, 6, 16, 2
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  addmmModel(gen, device, n, k),
		Inputs: []any{randn(gen, device, batch, m, k)},
	}
}

func aliasedBufferReuse(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			x = x.MulScalar(2)
			y = y.MulScalar(2)
			d := g.Cat(-1, x, y).AddScalar(1)
			m := d.MatMul(d)
			return m.Slice(1, 0, 2, 1).Add(x)
		}),
		Inputs: []any{randn(gen, device, 4, 2), randn(gen, device, 4, 2)},
	}
}

func bufferReuse(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(_ *graph.Graph, x, y *graph.Value) any {
			e := x.Sin().MatMul(y.Cos()).ReLU().Sigmoid()
			return e.Add(x.MatMul(y))
		}),
		Inputs: []any{randn(gen, device, 4, 4), randn(gen, device, 4, 4)},
	}
}

// duplicatedParams registers one tensor under two names.
func duplicatedParams(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	p := rand(gen, device, 6)
	q := p
	return &Scenario{
		Model: model1(func(g *graph.Graph, x *graph.Value) any {
			return g.Param("p", p).Mul(x).Add(g.Param("q", q))
		}),
		Inputs: []any{rand(gen, device, 6)},
	}
}

func addReLU() graph.Model {
	return model2(func(_ *graph.Graph, x, y *graph.Value) any {
		return x.Add(y).ReLU()
	})
}

func sharedBatch(upper int) []compiler.Constraint {
	return []compiler.Constraint{
		compiler.DynamicDim(0, 0).GE(1),
		compiler.DynamicDim(0, 0).LE(upper),
		compiler.DynamicDim(0, 0).Eq(compiler.DynamicDim(1, 0)),
	}
}

func simpleDynamic(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:       addReLU(),
		Inputs:      []any{randn(gen, device, 128, 2048), randn(gen, device, 128, 2048)},
		Constraints: sharedBatch(2048),
	}
}

func dynamicCat(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			return g.Cat(0, x, y)
		}),
		Inputs: []any{randn(gen, device, 2, 4), randn(gen, device, 3, 4)},
		Constraints: []compiler.Constraint{
			compiler.DynamicDim(0, 0).GE(1),
			compiler.DynamicDim(0, 0).LE(10),
			compiler.DynamicDim(1, 0).GE(1),
			compiler.DynamicDim(1, 0).LE(20),
		},
		Extra: [][]any{{randn(gen, device, 7, 4), randn(gen, device, 1, 4)}},
	}
}

// Replicate computes x*w1 + y*w2.
type Replicate struct {
	W1, W2 *tensor.RawTensor
}

// Forward implements graph.Model.
func (m *Replicate) Forward(g *graph.Graph, in ...any) any {
	v := args(g, in, 2)
	if v == nil {
		return nil
	}
	return v[0].Mul(g.Param("w1", m.W1)).Add(v[1].Mul(g.Param("w2", m.W2)))
}

func replicate(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  &Replicate{W1: randn(gen, device, 10, 10), W2: randn(gen, device, 10, 10)},
		Inputs: []any{randn(gen, device, 10, 10), randn(gen, device, 10, 10)},
	}
}

// pytreeInputs takes a dict and returns a list.
func pytreeInputs(device tensor.Device, _ int64) *Scenario {
	ones := func() *tensor.RawTensor { return tensor.Ones(tensor.Shape{5}, tensor.Float32, device) }
	return &Scenario{
		Model: graph.ModelFunc(func(g *graph.Graph, in ...any) any {
			d, ok := in[0].(*pytree.Dict)
			if !ok {
				g.SetErr(fmt.Errorf("expected a dict input, got %T", in[0]))
				return nil
			}
			add := g.Zeros(tensor.Shape{5}, tensor.Float32)
			mul := g.Ones(tensor.Shape{5}, tensor.Float32)
			for _, v := range d.Values() {
				add = add.Add(v.(*graph.Value))
				mul = mul.Mul(v.(*graph.Value))
			}
			return []any{add, mul}
		}),
		Inputs: []any{pytree.NewDict().Set("x", ones()).Set("y", ones())},
	}
}

func reuseKernel(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(_ *graph.Graph, x, y *graph.Value) any {
			b := x.Sin().MatMul(y)
			return b.MatMul(b.Sin())
		}),
		Inputs: []any{randn(gen, device, 87, 87), randn(gen, device, 87, 87)},
	}
}

func emptyGraph(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  model1(func(_ *graph.Graph, x *graph.Value) any { return x }),
		Inputs: []any{randn(gen, device, 8, 4, 4)},
	}
}

func returnConstant(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	cst := randn(gen, device, 5, 5)
	return &Scenario{
		Model: model1(func(g *graph.Graph, x *graph.Value) any {
			return pytree.Tuple{x, g.Param("cst", cst).Clone()}
		}),
		Inputs: []any{randn(gen, device, 5)},
	}
}

func repeatOutput(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model1(func(_ *graph.Graph, x *graph.Value) any {
			y := x.Sin()
			return pytree.Tuple{y, y}
		}),
		Inputs: []any{randn(gen, device, 3, 10)},
	}
}

func normalFunctional(device tensor.Device, _ int64) *Scenario {
	return &Scenario{
		Model:  model1(func(_ *graph.Graph, x *graph.Value) any { return x.NormalLike(0, 1) }),
		Inputs: []any{tensor.Zeros(tensor.Shape{4, 1, 4, 4}, tensor.Float32, device)},
	}
}

func dropoutAdd(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	drop := nn.NewDropout(0.3)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			return drop.Forward(g, x).Add(y)
		}),
		Inputs: []any{randn(gen, device, 16, 8), randn(gen, device, 16, 8)},
	}
}

func consecutiveCompiles(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  model1(func(_ *graph.Graph, x *graph.Value) any { return x.AddScalar(1) }),
		Inputs: []any{rand(gen, device, 1)},
	}
}

// runWithGradEnabled computes addmm(bias, weight, x) with every operand an
// input.
func runWithGradEnabled(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: graph.ModelFunc(func(g *graph.Graph, in ...any) any {
			v := args(g, in, 3)
			if v == nil {
				return nil
			}
			x, weight, bias := v[0], v[1], v[2]
			return bias.Add(weight.MatMul(x))
		}),
		Inputs: []any{rand(gen, device, 8, 8), rand(gen, device, 8, 8), rand(gen, device, 8)},
	}
}

func poiMultipleDynamic(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:       addReLU(),
		Inputs:      []any{randn(gen, device, 128, 2048), randn(gen, device, 128, 2048)},
		Constraints: sharedBatch(2048),
		Extra: [][]any{
			{randn(gen, device, 64, 2048), randn(gen, device, 64, 2048)},
			{randn(gen, device, 211, 2048), randn(gen, device, 211, 2048)},
		},
	}
}

func addmmMultipleDynamic(device tensor.Device, seed int64) *Scenario {
	const m, n, k = 8, 6, 16
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model:  addmmModel(gen, device, n, k),
		Inputs: []any{randn(gen, device, 2, m, k)},
		Constraints: []compiler.Constraint{
			compiler.DynamicDim(0, 0).GE(1),
			compiler.DynamicDim(0, 0).LE(2048),
		},
		Extra: [][]any{
			{randn(gen, device, 2048, m, k)},
			{randn(gen, device, 128, m, k)},
		},
		Options: map[string]any{
			compiler.OptMaxAutotune:  true,
			compiler.OptGemmBackends: "blocked,parallel",
		},
	}
}

func bmmMultipleDynamic(device tensor.Device, seed int64) *Scenario {
	const m, n, k = 8, 6, 16
	gen := tensor.NewGenerator(seed)
	batch := func(b int) []any {
		return []any{randn(gen, device, b, m, k), randn(gen, device, b, k, n)}
	}
	return &Scenario{
		Model: model2(func(_ *graph.Graph, a, b *graph.Value) any {
			return a.MatMul(b)
		}),
		Inputs:      batch(1024),
		Constraints: sharedBatch(2048),
		Extra:       [][]any{batch(2048), batch(128)},
		Options: map[string]any{
			compiler.OptMaxAutotune:  true,
			compiler.OptGemmBackends: "naive,blocked,parallel",
		},
	}
}

func foreachMultipleDynamic(device tensor.Device, seed int64) *Scenario {
	gen := tensor.NewGenerator(seed)
	return &Scenario{
		Model: model2(func(g *graph.Graph, x, y *graph.Value) any {
			return g.Cat(0, x.Unsqueeze(0), y.Unsqueeze(0))
		}),
		Inputs:      []any{randn(gen, device, 128, 2048), randn(gen, device, 128, 2048)},
		Constraints: sharedBatch(2048),
		Extra: [][]any{
			{randn(gen, device, 64, 2048), randn(gen, device, 64, 2048)},
			{randn(gen, device, 211, 2048), randn(gen, device, 211, 2048)},
		},
	}
}
