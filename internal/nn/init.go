package nn

import (
	"math"

	"github.com/born-ml/golden/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(fanIn, fanOut int, shape tensor.Shape, device tensor.Device, gen *tensor.Generator) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.MustRaw(shape, tensor.Float32, device)
	gen.FillUniform(t, -bound, bound)
	return t
}

// FanInUniform draws from U(-1/sqrt(fan_in), 1/sqrt(fan_in)), the usual bias
// initialisation for dense layers.
func FanInUniform(fanIn int, shape tensor.Shape, device tensor.Device, gen *tensor.Generator) *tensor.RawTensor {
	bound := 1 / math.Sqrt(float64(fanIn))
	t := tensor.MustRaw(shape, tensor.Float32, device)
	gen.FillUniform(t, -bound, bound)
	return t
}
