// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor types used to feed models to the
// golden compiler and to read back their outputs.
//
// # Overview
//
// A RawTensor is a dense, row-major buffer tagged with a Shape, a DataType
// and a Device. Tensors are values: kernels never write into their inputs,
// so a tensor handed to a model stays unchanged.
//
// # Basic Usage
//
//	import "github.com/born-ml/golden/tensor"
//
//	func main() {
//	    gen := tensor.NewGenerator(42)
//	    x := tensor.Randn(tensor.Shape{10, 10}, tensor.Float32, tensor.DefaultDevice, gen)
//	    y := tensor.MustFromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.DefaultDevice)
//	    _, _ = x, y
//	}
//
// # Supported Data Types
//
//   - float32, float64, float16 (floating-point)
//   - int32, int64 (signed integers)
//   - uint8 (unsigned integers)
//   - bool (boolean masks)
//
// # Devices
//
// A Device is a kind plus an ordinal, written "cpu:1". Only CPU devices
// execute programs. The other kinds exist so that artifacts and inputs can
// name a device the process cannot serve, which surfaces as a
// DeviceMismatchError before anything runs. The number of CPU ordinals is
// configurable, so replication across devices can be exercised on one
// machine.
//
// # Seeding
//
// Every random constructor draws from an explicit Generator. Two
// generators created with the same seed produce the same sequence, which is
// what lets the reference interpreter and a compiled artifact consume
// identical random streams.
package tensor
