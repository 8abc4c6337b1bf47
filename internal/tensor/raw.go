package tensor

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// RawTensor is the untyped tensor representation used across the compiler,
// the runtime and the reference interpreter.
//
// Data is stored contiguously in row-major order. A RawTensor owns its byte
// buffer unless it was created with Wrap, in which case the caller keeps the
// buffer alive (e.g. a memory-mapped artifact).
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustRaw is NewRaw for shapes already known to be valid.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Wrap builds a RawTensor over an existing buffer without copying.
func Wrap(shape Shape, dtype DataType, device Device, data []byte) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("shape %v of %s needs %d bytes, got %d", shape, dtype, want, len(data))
	}
	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the device the tensor lives on.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dt))
	}
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat16 interprets the data as IEEE 754 half precision values.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	r.mustBe(Float16)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	r.mustBe(Int64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	r.mustBe(Uint8)
	return r.data
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	r.mustBe(Bool)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Float64At reads element i converted to float64, whatever the dtype.
func (r *RawTensor) Float64At(i int) float64 {
	switch r.dtype {
	case Float32:
		return float64(r.AsFloat32()[i])
	case Float64:
		return r.AsFloat64()[i]
	case Float16:
		return float64(r.AsFloat16()[i].Float32())
	case Int32:
		return float64(r.AsInt32()[i])
	case Int64:
		return float64(r.AsInt64()[i])
	case Uint8:
		return float64(r.data[i])
	case Bool:
		if r.AsBool()[i] {
			return 1
		}
		return 0
	default:
		panic("unknown data type")
	}
}

// SetFloat64At writes v into element i, converting to the tensor's dtype.
func (r *RawTensor) SetFloat64At(i int, v float64) {
	switch r.dtype {
	case Float32:
		r.AsFloat32()[i] = float32(v)
	case Float64:
		r.AsFloat64()[i] = v
	case Float16:
		r.AsFloat16()[i] = halfFromFloat64(v)
	case Int32:
		r.AsInt32()[i] = int32(v)
	case Int64:
		r.AsInt64()[i] = int64(v)
	case Uint8:
		r.data[i] = uint8(v)
	case Bool:
		r.AsBool()[i] = v != 0
	default:
		panic("unknown data type")
	}
}

// Float64s returns a converted copy of all elements.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	for i := range out {
		out[i] = r.Float64At(i)
	}
	return out
}

// HasNonFinite reports whether any floating point element is NaN or ±Inf.
func (r *RawTensor) HasNonFinite() bool {
	if !r.dtype.IsFloat() {
		return false
	}
	for i := 0; i < r.NumElements(); i++ {
		v := r.Float64At(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the tensor on the same device.
func (r *RawTensor) Clone() *RawTensor {
	return r.To(r.device)
}

// To returns a deep copy of the tensor placed on device.
func (r *RawTensor) To(device Device) *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: device,
	}
}

// Reshaped returns a view sharing the buffer with a new shape.
func (r *RawTensor) Reshaped(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v as %v", r.shape, shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
	}, nil
}

// String summarises the tensor for logs and error messages.
func (r *RawTensor) String() string {
	return fmt.Sprintf("Tensor(%s, shape=%v, device=%s)", r.dtype, r.shape, r.device)
}
