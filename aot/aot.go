// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package aot

import (
	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/harness"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/tensor"
)

// Model and graph types.
type (
	Model     = graph.Model
	ModelFunc = graph.ModelFunc
	Graph     = graph.Graph
	Value     = graph.Value
	Program   = graph.Program
)

// Tree containers for nested inputs and outputs.
type (
	Tuple = pytree.Tuple
	Dict  = pytree.Dict
)

// NewDict creates an empty insertion-ordered dict.
func NewDict() *Dict { return pytree.NewDict() }

// Compiler types.
type (
	Compiler                 = compiler.Compiler
	Cache                    = compiler.Cache
	CacheStats               = compiler.Stats
	Options                  = compiler.Options
	Result                   = compiler.Result
	Constraint               = compiler.Constraint
	Dim                      = compiler.Dim
	CodeGenError             = compiler.CodeGenError
	ConstraintViolationError = compiler.ConstraintViolationError
)

// Option keys.
const (
	OptOutputPath        = compiler.OptOutputPath
	OptABICompatible     = compiler.OptABICompatible
	OptCompressConstants = compiler.OptCompressConstants
	OptMaxAutotune       = compiler.OptMaxAutotune
	OptGemmBackends      = compiler.OptGemmBackends
	OptConstantFolding   = compiler.OptConstantFolding
	OptCheckInfNaN       = compiler.OptCheckInfNaN
	OptFreezing          = compiler.OptFreezing
)

// Runtime types.
type (
	Runner         = runtime.Runner
	InputError     = runtime.InputError
	NonFiniteError = runtime.NonFiniteError
)

// Harness types.
type (
	Harness       = harness.Harness
	HarnessConfig = harness.Config
	MismatchError = harness.MismatchError
)

// NewCache opens (creating if needed) a compile cache directory that keeps
// up to maxEntries fingerprints in memory.
func NewCache(dir string, maxEntries int64) (*Cache, error) {
	return compiler.NewCache(dir, maxEntries)
}

// NewCompiler creates a compiler backed by cache.
func NewCompiler(cache *Cache) *Compiler {
	return compiler.New(cache)
}

// NewOptions layers values over the default compile options.
func NewOptions(values map[string]any) (*Options, error) {
	return compiler.NewOptions(values)
}

// DynamicDim names dimension axis of flat input input.
func DynamicDim(input, axis int) Dim {
	return compiler.DynamicDim(input, axis)
}

// Load copies the artifact at path into a private directory and binds it to
// device. exampleInputs, when given, must match the artifact's inputs.
func Load(device tensor.Device, path string, exampleInputs ...any) (*Runner, error) {
	return runtime.Load(device, path, exampleInputs...)
}

// Devices lists the available devices of kind.
func Devices(kind tensor.DeviceKind) []tensor.Device {
	return runtime.Devices(kind)
}

// SetCPUCount sets how many CPU ordinals are available.
func SetCPUCount(n int) {
	runtime.SetCPUCount(n)
}

// Eval interprets model eagerly on device. gen feeds stochastic ops and may
// be nil for models without them.
func Eval(model Model, device tensor.Device, gen *tensor.Generator, args ...any) (any, error) {
	return graph.Eval(model, device, gen, args...)
}

// NewHarness creates an equivalence harness that compiles with c.
func NewHarness(c *Compiler, cfg HarnessConfig) *Harness {
	return harness.New(c, cfg)
}

// DefaultHarnessConfig returns seed 0 with the default tolerances.
func DefaultHarnessConfig() HarnessConfig {
	return harness.DefaultConfig()
}

// Same reports the first difference between two output trees, within
// |a-e| <= atol + rtol*|e| and treating NaN as equal to NaN.
func Same(expected, actual any, atol, rtol float64) error {
	return harness.Same(expected, actual, atol, rtol)
}
