// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers used to build models for
// the golden compiler.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, LayerNorm
//   - Activations: ReLU, Sigmoid, Tanh
//   - Regularisation: Dropout (draws from the graph's seeded generator)
//   - Utilities: Sequential, Module interface, Parameter
//   - Initialization: Xavier, FanInUniform
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/golden/aot"
//	    "github.com/born-ml/golden/nn"
//	    "github.com/born-ml/golden/tensor"
//	)
//
//	func main() {
//	    gen := tensor.NewGenerator(0)
//	    model := nn.NewSequential(
//	        nn.NewLinear("fc1", 784, 128, tensor.DefaultDevice, gen),
//	        nn.NewReLU(),
//	        nn.NewLinear("fc2", 128, 10, tensor.DefaultDevice, gen),
//	    ).Eval()
//
//	    out, err := aot.Eval(nn.AsModel(model), tensor.DefaultDevice, nil, input)
//	}
//
// # Modules and graphs
//
// A Module's Forward receives the *aot.Graph it runs in. The same module
// definition is interpreted eagerly by the reference path and recorded into
// a program by the tracer, so there is exactly one definition of what a
// model computes.
//
// Parameters are read through the graph. When tracing, their data is
// copied into program constants at trace time; changing a parameter after
// compiling does not change the artifact.
//
// # Layers
//
// Linear: y = x @ W.T + b, with Xavier-initialised weights and fan-in
// uniform bias, like torch.nn.Linear.
//
// LayerNorm: normalises over the last dimension with eps 1e-5 and learnable
// scale and shift initialised to one and zero.
package nn
