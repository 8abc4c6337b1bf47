// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/golden/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for Go element types that can back a tensor.
type DType = tensor.DType

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
	Float16 DataType = tensor.Float16
)

// DeviceKind identifies a family of compute devices.
type DeviceKind = tensor.DeviceKind

// Device kind constants.
const (
	CPU    DeviceKind = tensor.CPU
	CUDA   DeviceKind = tensor.CUDA
	Vulkan DeviceKind = tensor.Vulkan
	Metal  DeviceKind = tensor.Metal
	WebGPU DeviceKind = tensor.WebGPU
)

// Device is a device kind plus ordinal.
type Device = tensor.Device

// DefaultDevice is cpu:0.
var DefaultDevice = tensor.DefaultDevice

// DeviceMismatchError reports a tensor, parameter or artifact on a device
// other than the one requested.
type DeviceMismatchError = tensor.DeviceMismatchError

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is a dense tensor with runtime type information.
type RawTensor = tensor.RawTensor

// Generator is a seeded source of random numbers.
type Generator = tensor.Generator

// OnCPU returns cpu:ordinal.
func OnCPU(ordinal int) Device {
	return tensor.OnCPU(ordinal)
}

// ParseDevice parses "kind:ordinal"; a bare kind means ordinal 0.
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}

// ParseDataType parses a dtype name such as "float32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return tensor.NewGenerator(seed)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Ones(shape, dtype, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64, device Device) *RawTensor {
	return tensor.Full(shape, dtype, value, device)
}

// Randn samples a standard normal tensor from gen.
func Randn(shape Shape, dtype DataType, device Device, gen *Generator) *RawTensor {
	return tensor.Randn(shape, dtype, device, gen)
}

// Rand samples a uniform [0, 1) tensor from gen.
func Rand(shape Shape, dtype DataType, device Device, gen *Generator) *RawTensor {
	return tensor.Rand(shape, dtype, device, gen)
}

// FromSlice copies data into a new tensor of the given shape.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.DefaultDevice)
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[T DType](data []T, shape Shape, device Device) *RawTensor {
	return tensor.MustFromSlice(data, shape, device)
}

// FromFloat64s converts data to dtype and stores it in a new tensor.
func FromFloat64s(data []float64, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.FromFloat64s(data, shape, dtype, device)
}
