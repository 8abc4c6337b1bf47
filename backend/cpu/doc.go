// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go reference kernels shared by the eager
// interpreter and the artifact runtime.
//
// # Overview
//
// This package implements:
//   - Pure Go kernels (no CGO)
//   - NumPy-compatible broadcasting for element-wise ops
//   - float32, float64 and float16 (computed in float32) arithmetic
//   - Three matmul kernels (naive, blocked, parallel) that the compiler's
//     autotuner chooses between
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/golden/backend/cpu"
//	    "github.com/born-ml/golden/tensor"
//	)
//
//	func main() {
//	    b := cpu.New(tensor.DefaultDevice)
//	    x := tensor.Ones(tensor.Shape{2, 3}, tensor.Float32, tensor.DefaultDevice)
//	    y := b.MatMul(x, b.Transpose(x))
//	}
//
// # Errors
//
// Kernels panic on shape or dtype errors. The graph and the runtime recover
// those panics and report them as errors.
//
// # Thread Safety
//
// A Backend holds no mutable state and is safe for concurrent use.
package cpu
