// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package aot compiles models ahead of time into standalone .gaot
// artifacts, loads them back as callables and checks them against the
// directly interpreted model.
//
// # Overview
//
// The flow is compile → load → call → compare:
//
//	cache, _ := aot.NewCache(dir, 128)
//	c := aot.NewCompiler(cache)
//
//	path, err := c.Compile(model, []any{x, y}, nil)
//	runner, err := aot.Load(tensor.DefaultDevice, path, x, y)
//	defer runner.Close()
//	out, err := runner.Call(x, y)
//
// A Harness wraps the whole cycle and compares against the reference
// interpreter on identical, deep-copied inputs and identically seeded
// generators:
//
//	h := aot.NewHarness(c, aot.DefaultHarnessConfig())
//	h.CheckModel(t, model, []any{x, y}, nil)
//
// # Models
//
// A Model's Forward takes a *Graph and nested arguments (tensors wrapped
// as *Value, inside Tuple, []any or *Dict containers) and returns a tree of
// the same kind. One definition serves both the eager reference path and
// the tracer.
//
// # Options
//
// Compile options are a dotted-key map:
//
//	aot.abi_compatible        reject dtypes the stable ABI lacks (default true)
//	aot.compress_constants    zstd-compress the constant section
//	aot.output_path           copy the artifact here
//	constant_folding          fold constant subgraphs (default true)
//	freezing                  also fold parameters
//	max_autotune              time matmul kernels per shape
//	max_autotune_gemm_backends  candidate kernels, e.g. "naive,blocked"
//	debug_check_inf_and_nan   fail calls whose outputs hold inf or NaN
//
// # Dynamic shapes
//
// Input dimensions can be marked dynamic with bounds and equalities:
//
//	batch := aot.DynamicDim(0, 0)
//	c.Compile(model, inputs, nil, batch.GE(1), batch.LE(2048), batch.Eq(aot.DynamicDim(1, 0)))
//
// The artifact then accepts any in-bounds size without recompiling.
package aot
