package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind identifies a family of compute devices.
type DeviceKind int

// Known device kinds. Only CPU executes programs; the others exist so that
// artifacts and tensors can name a device the process cannot serve.
const (
	CPU DeviceKind = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns the lower-case kind name used in device strings.
func (k DeviceKind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case Vulkan:
		return "vulkan"
	case Metal:
		return "metal"
	case WebGPU:
		return "webgpu"
	default:
		return "unknown"
	}
}

// Device is a device kind plus ordinal, e.g. cpu:1.
type Device struct {
	Kind    DeviceKind
	Ordinal int
}

// DefaultDevice is cpu:0.
var DefaultDevice = Device{Kind: CPU}

// OnCPU returns cpu:ordinal.
func OnCPU(ordinal int) Device {
	return Device{Kind: CPU, Ordinal: ordinal}
}

// String formats the device as "kind:ordinal".
func (d Device) String() string {
	return d.Kind.String() + ":" + strconv.Itoa(d.Ordinal)
}

// MarshalText encodes the device as its string form.
func (d Device) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a device string.
func (d *Device) UnmarshalText(b []byte) error {
	parsed, err := ParseDevice(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDevice parses "cpu", "cpu:1", "webgpu:0" and so on.
// A missing ordinal means ordinal 0.
func ParseDevice(s string) (Device, error) {
	name, ord, hasOrd := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	var kind DeviceKind
	switch name {
	case "cpu":
		kind = CPU
	case "cuda":
		kind = CUDA
	case "vulkan":
		kind = Vulkan
	case "metal":
		kind = Metal
	case "webgpu":
		kind = WebGPU
	default:
		return Device{}, fmt.Errorf("unknown device kind %q", name)
	}
	ordinal := 0
	if hasOrd {
		n, err := strconv.Atoi(ord)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device ordinal %q", ord)
		}
		ordinal = n
	}
	return Device{Kind: kind, Ordinal: ordinal}, nil
}

// DeviceMismatchError is returned when a tensor or artifact lives on a
// different device than the one an operation was asked to use.
type DeviceMismatchError struct {
	Where    string // what was being checked, e.g. "input 1" or "artifact"
	Expected Device
	Actual   Device
}

// Error implements the error interface.
func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch for %s: expected %s, got %s", e.Where, e.Expected, e.Actual)
}
