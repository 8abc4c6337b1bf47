// Package tensor provides the raw tensor types shared by the golden compiler,
// runtime and reference interpreter.
package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// DType is a constraint for element types that can back a tensor.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the type is a floating point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float16
}

// MarshalText encodes the data type by name.
func (dt DataType) MarshalText() ([]byte, error) {
	s := dt.String()
	if s == "unknown" {
		return nil, fmt.Errorf("unknown data type %d", int(dt))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a data type name.
func (dt *DataType) UnmarshalText(b []byte) error {
	parsed, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// ParseDataType converts a data type name back to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "float16":
		return Float16, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "uint8":
		return Uint8, nil
	case "bool":
		return Bool, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}

// halfFromFloat64 rounds v to the nearest float16 bit pattern.
func halfFromFloat64(v float64) float16.Float16 {
	return float16.Fromfloat32(float32(v))
}
