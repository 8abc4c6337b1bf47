package compiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/metrics"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

// DTypePredicate decides whether inputs of dtype can be compiled for
// device under the given options.
type DTypePredicate func(dtype tensor.DataType, device tensor.Device, opts *Options) bool

// DefaultDTypeSupported rejects float16 inputs in ABI-compatible mode,
// where the call boundary only carries full-precision and integer types.
func DefaultDTypeSupported(dtype tensor.DataType, _ tensor.Device, opts *Options) bool {
	return !(opts.ABICompatible() && dtype == tensor.Float16)
}

// Compiler compiles models into cached artifacts.
type Compiler struct {
	cache *Cache

	// DTypeSupported is consulted once per distinct input dtype.
	DTypeSupported DTypePredicate
}

// New returns a compiler writing artifacts into cache.
func New(cache *Cache) *Compiler {
	return &Compiler{cache: cache, DTypeSupported: DefaultDTypeSupported}
}

// Stats returns the cache lookup counters.
func (c *Compiler) Stats() Stats {
	return c.cache.Stats()
}

// Cache returns the compile cache.
func (c *Compiler) Cache() *Cache {
	return c.cache
}

// Result describes a finished compile.
type Result struct {
	Path        string
	Fingerprint string
	CacheHit    bool
	Program     *graph.Program
	Kernels     []artifact.KernelInfo
}

// Compile compiles model for the device its example inputs live on and
// returns the artifact path.
func (c *Compiler) Compile(model graph.Model, example []any, opts *Options, constraints ...Constraint) (string, error) {
	res, err := c.CompileResult(model, example, opts, constraints...)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// CompileResult is Compile with the optimised program and cache outcome.
func (c *Compiler) CompileResult(model graph.Model, example []any, opts *Options, constraints ...Constraint) (*Result, error) {
	start := time.Now()
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	leaves, inSpec := pytree.Flatten(pytree.Tuple(example))
	flat := make([]*tensor.RawTensor, len(leaves))
	for i, l := range leaves {
		t, ok := l.(*tensor.RawTensor)
		if !ok {
			return nil, &CodeGenError{Construct: fmt.Sprintf("example input %d of type %T", i, l)}
		}
		flat[i] = t
	}

	device := tensor.DefaultDevice
	if len(flat) > 0 {
		device = flat[0].Device()
	}
	for i, t := range flat {
		if t.Device() != device {
			return nil, &DeviceMismatchError{Where: fmt.Sprintf("example input %d", i), Expected: device, Actual: t.Device()}
		}
	}

	checked := make(map[tensor.DataType]bool)
	for _, t := range flat {
		if checked[t.DType()] {
			continue
		}
		checked[t.DType()] = true
		if !c.DTypeSupported(t.DType(), device, opts) {
			return nil, &CodeGenError{Construct: "unsupported input dtype " + t.DType().String()}
		}
	}

	names := make([]string, len(flat))
	for i := range names {
		names[i] = fmt.Sprintf("arg%d", i)
	}
	inputs, err := resolveInputs(flat, names, constraints)
	if err != nil {
		return nil, err
	}

	traced, err := graph.Trace(model, device, example...)
	if err != nil {
		var dm *DeviceMismatchError
		if errors.As(err, &dm) {
			return nil, fmt.Errorf("device mismatch between example input and parameter: %w", err)
		}
		return nil, &CodeGenError{Construct: "trace", Err: err}
	}
	prog, consts := traced.Program, traced.Constants
	for i, id := range prog.Inputs {
		inputs[i].Name = prog.Nodes[id].Name
	}
	if len(constraints) > 0 {
		if err := checkDynamic(model, device, example, inputs, prog); err != nil {
			return nil, err
		}
	}

	if opts.ConstantFolding() {
		n, err := foldConstants(prog, consts, device, opts.Freezing())
		if err != nil {
			return nil, err
		}
		log.Debug().Int("folded", n).Msg("constant folding done")
	}
	removed := eliminateDeadNodes(prog, consts)

	inJSON, err := pytree.Dumps(inSpec)
	if err != nil {
		return nil, err
	}
	outJSON, err := pytree.Dumps(traced.OutSpec)
	if err != nil {
		return nil, err
	}

	header := artifact.Header{
		GoldenVersion: Version,
		Device:        device,
		CallSpec:      artifact.CallSpec{In: inJSON, Out: outJSON},
		Inputs:        inputs,
		Program:       prog,
		Options:       opts.Resolved(),
	}
	// Kernel choices made by timing stay out of the fingerprint, so the
	// cache is consulted before autotuning runs.
	fp, err := fingerprint(&header, consts)
	if err != nil {
		return nil, err
	}
	header.Fingerprint = fp

	res := &Result{Fingerprint: fp}
	devTag := metrics.Tag("device", device.String())

	if cached, ok := c.cache.Lookup(fp); ok {
		cachedHeader, err := readHeader(cached)
		if err != nil {
			return nil, err
		}
		res.CacheHit = true
		res.Path = cached
		res.Program = cachedHeader.Program
		res.Kernels = cachedHeader.Kernels
		metrics.Count(metrics.CompileCache, 1, []string{metrics.Tag("result", "hit"), devTag})
		log.Debug().Str("fingerprint", fp).Str("artifact", cached).Msg("compile cache hit")
	} else {
		metrics.Count(metrics.CompileCache, 1, []string{metrics.Tag("result", "miss"), devTag})
		if opts.MaxAutotune() {
			candidates, _ := opts.GemmBackends()
			autotuneMatMul(prog, device, candidates)
		}
		header.Kernels = dedupKernels(prog)
		header.ArtifactID = uuid.NewString()
		header.CreatedAt = time.Now().UTC()
		path := c.cache.Path(fp)
		a := &artifact.Artifact{Header: header, Constants: consts}
		if err := artifact.Write(path, a, artifact.WriteOptions{Compress: opts.CompressConstants()}); err != nil {
			return nil, fmt.Errorf("failed to write artifact: %w", err)
		}
		c.cache.Store(fp, path)
		res.Path = path
		res.Program = prog
		res.Kernels = header.Kernels
		log.Info().
			Str("fingerprint", fp).
			Str("artifact", path).
			Int("nodes", len(prog.Nodes)).
			Int("constants", len(consts)).
			Int("kernels", len(header.Kernels)).
			Int("dead_nodes", removed).
			Msg("artifact compiled")
	}

	if out := opts.OutputPath(); out != "" {
		if err := copyArtifact(res.Path, out); err != nil {
			return nil, err
		}
		res.Path = out
	}
	metrics.Since(metrics.CompileLatency, start, devTag)
	return res, nil
}

func readHeader(path string) (*artifact.Header, error) {
	f, err := artifact.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	return f.Header(), nil
}
