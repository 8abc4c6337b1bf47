package runtime

import (
	"sync/atomic"

	"github.com/born-ml/golden/internal/tensor"
)

var cpuCount atomic.Int32

func init() {
	cpuCount.Store(2)
}

// SetCPUCount sets how many virtual CPU ordinals Devices reports. Values
// below 1 are treated as 1.
func SetCPUCount(n int) {
	if n < 1 {
		n = 1
	}
	cpuCount.Store(int32(n)) //nolint:gosec // G115: device counts are small
}

// Devices lists the devices of kind this process can execute on. Only CPU
// devices are available; every other kind yields an empty list.
func Devices(kind tensor.DeviceKind) []tensor.Device {
	if kind != tensor.CPU {
		return nil
	}
	n := int(cpuCount.Load())
	devices := make([]tensor.Device, n)
	for i := range devices {
		devices[i] = tensor.OnCPU(i)
	}
	return devices
}

// Available reports whether device can execute programs.
func Available(device tensor.Device) bool {
	return device.Kind == tensor.CPU && device.Ordinal >= 0 && device.Ordinal < int(cpuCount.Load())
}
