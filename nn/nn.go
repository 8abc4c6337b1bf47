// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/nn"
	"github.com/born-ml/golden/tensor"
)

// Module is the base interface for all neural network components.
type Module = nn.Module

// Parameter is a named tensor owned by a module.
type Parameter = nn.Parameter

// Layer types.
type (
	Linear     = nn.Linear
	LayerNorm  = nn.LayerNorm
	ReLU       = nn.ReLU
	Sigmoid    = nn.Sigmoid
	Tanh       = nn.Tanh
	Dropout    = nn.Dropout
	Sequential = nn.Sequential
)

// NewParameter wraps data as a parameter called name.
func NewParameter(name string, data *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, data)
}

// NewLinear creates a Linear layer with freshly initialised weights drawn
// from gen.
//
// Example:
//
//	layer := nn.NewLinear("proj", 10, 10, tensor.DefaultDevice, tensor.NewGenerator(0))
func NewLinear(name string, inFeatures, outFeatures int, device tensor.Device, gen *tensor.Generator) *Linear {
	return nn.NewLinear(name, inFeatures, outFeatures, device, gen)
}

// NewLinearFrom creates a Linear layer around existing weight [out, in] and
// optional bias [out] tensors.
func NewLinearFrom(name string, weight, bias *tensor.RawTensor) *Linear {
	return nn.NewLinearFrom(name, weight, bias)
}

// NewLayerNorm creates a LayerNorm over a last dimension of size dim.
func NewLayerNorm(name string, dim int, device tensor.Device) *LayerNorm {
	return nn.NewLayerNorm(name, dim, device)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return nn.NewTanh() }

// NewDropout creates a Dropout layer in training mode.
func NewDropout(p float64) *Dropout { return nn.NewDropout(p) }

// NewSequential stacks modules in order.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// AsModel adapts a single-input Module to a model the compiler accepts.
func AsModel(m Module) graph.Model {
	return nn.AsModel(m)
}

// Xavier samples a Xavier/Glorot uniform tensor.
func Xavier(fanIn, fanOut int, shape tensor.Shape, device tensor.Device, gen *tensor.Generator) *tensor.RawTensor {
	return nn.Xavier(fanIn, fanOut, shape, device, gen)
}

// FanInUniform samples U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func FanInUniform(fanIn int, shape tensor.Shape, device tensor.Device, gen *tensor.Generator) *tensor.RawTensor {
	return nn.FanInUniform(fanIn, shape, device, gen)
}
