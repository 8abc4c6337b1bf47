package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Generator is a seeded source of random tensor data.
//
// Every stochastic operation (random initialisation, dropout, normal sampling)
// draws from a Generator so that two executions seeded identically consume
// the same stream in the same order.
type Generator struct {
	seed int64
	rng  *rand.Rand
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	//nolint:gosec // G404: reproducible ML randomness, not security-sensitive
	return &Generator{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Float64 returns a uniform value in [0, 1).
func (g *Generator) Float64() float64 {
	return g.rng.Float64()
}

// FillUniform fills r with values uniform in [low, high).
func (g *Generator) FillUniform(r *RawTensor, low, high float64) {
	for i := 0; i < r.NumElements(); i++ {
		r.SetFloat64At(i, low+g.rng.Float64()*(high-low))
	}
}

// FillNormal fills r with N(mean, std) samples using the Box-Muller transform.
// Samples are produced in pairs, so an odd-sized tensor discards one draw.
func (g *Generator) FillNormal(r *RawTensor, mean, std float64) {
	n := r.NumElements()
	for i := 0; i < n; i += 2 {
		u1 := g.rng.Float64()
		for u1 == 0 {
			u1 = g.rng.Float64()
		}
		u2 := g.rng.Float64()
		mag := math.Sqrt(-2.0 * math.Log(u1))
		r.SetFloat64At(i, mean+std*mag*math.Cos(2.0*math.Pi*u2))
		if i+1 < n {
			r.SetFloat64At(i+1, mean+std*mag*math.Sin(2.0*math.Pi*u2))
		}
	}
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return MustRaw(shape, dtype, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64, device Device) *RawTensor {
	r := MustRaw(shape, dtype, device)
	for i := 0; i < r.NumElements(); i++ {
		r.SetFloat64At(i, value)
	}
	return r
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	return Full(shape, dtype, 1, device)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
//
// Example:
//
//	t, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.DefaultDevice)
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), device)
	if err != nil {
		return nil, err
	}

	switch vals := any(data).(type) {
	case []float32:
		copy(raw.AsFloat32(), vals)
	case []float64:
		copy(raw.AsFloat64(), vals)
	case []int32:
		copy(raw.AsInt32(), vals)
	case []int64:
		copy(raw.AsInt64(), vals)
	case []uint8:
		copy(raw.AsUint8(), vals)
	case []bool:
		copy(raw.AsBool(), vals)
	}
	return raw, nil
}

// MustFromSlice is FromSlice that panics on a shape mismatch. Intended for
// fixtures and tests.
func MustFromSlice[T DType](data []T, shape Shape, device Device) *RawTensor {
	r, err := FromSlice(data, shape, device)
	if err != nil {
		panic(err)
	}
	return r
}

// FromFloat64s creates a tensor of dtype from float64 values.
func FromFloat64s(data []float64, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	for i, v := range data {
		raw.SetFloat64At(i, v)
	}
	return raw, nil
}

// Randn creates a tensor with N(0, 1) values drawn from gen.
//
// Example:
//
//	gen := tensor.NewGenerator(0)
//	x := tensor.Randn(tensor.Shape{10, 10}, tensor.Float32, tensor.DefaultDevice, gen)
func Randn(shape Shape, dtype DataType, device Device, gen *Generator) *RawTensor {
	if !dtype.IsFloat() {
		panic("Randn only supports floating point types")
	}
	r := MustRaw(shape, dtype, device)
	gen.FillNormal(r, 0, 1)
	return r
}

// Rand creates a tensor with values uniform in [0, 1) drawn from gen.
func Rand(shape Shape, dtype DataType, device Device, gen *Generator) *RawTensor {
	if !dtype.IsFloat() {
		panic("Rand only supports floating point types")
	}
	r := MustRaw(shape, dtype, device)
	gen.FillUniform(r, 0, 1)
	return r
}

// Arange creates a 1D tensor holding start, start+1, ..., end-1.
func Arange(start, end int, dtype DataType, device Device) *RawTensor {
	if end <= start {
		panic("end must be greater than start")
	}
	r := MustRaw(Shape{end - start}, dtype, device)
	for i := 0; i < end-start; i++ {
		r.SetFloat64At(i, float64(start+i))
	}
	return r
}
