// Package cpu implements the CPU kernels shared by the reference interpreter
// and the artifact runtime.
//
// Kernels follow the born convention: they take and return *tensor.RawTensor
// and panic on programmer errors (shape or dtype mismatches). Callers that
// must not crash (the graph tracer, the runtime) recover those panics into
// errors.
package cpu

import (
	"fmt"

	"github.com/born-ml/golden/internal/tensor"
)

// Backend executes tensor kernels on one CPU ordinal. Results are placed on
// the backend's device.
type Backend struct {
	device tensor.Device
}

// New creates a CPU backend for device. Panics if device is not a CPU device.
func New(device tensor.Device) *Backend {
	if device.Kind != tensor.CPU {
		panic(fmt.Sprintf("cpu backend cannot serve device %s", device))
	}
	return &Backend{device: device}
}

// Name returns the backend name.
func (cpu *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *Backend) Device() tensor.Device {
	return cpu.device
}

// result allocates an output tensor on the backend's device.
func (cpu *Backend) result(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

// promoteHalf converts float16 operands to float32 so kernels only need the
// full-precision code paths. The returned bool reports whether any operand
// was converted, in which case the caller casts its result back.
func (cpu *Backend) promoteHalf(ts ...*tensor.RawTensor) ([]*tensor.RawTensor, bool) {
	promoted := false
	out := make([]*tensor.RawTensor, len(ts))
	for i, t := range ts {
		if t != nil && t.DType() == tensor.Float16 {
			out[i] = cpu.Cast(t, tensor.Float32)
			promoted = true
			continue
		}
		out[i] = t
	}
	return out, promoted
}

func sameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}
