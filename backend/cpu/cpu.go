// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.Backend

// MatMulKernel names a matrix multiplication implementation.
type MatMulKernel = internalcpu.MatMulKernel

// Matmul kernels.
const (
	KernelNaive    = internalcpu.KernelNaive
	KernelBlocked  = internalcpu.KernelBlocked
	KernelParallel = internalcpu.KernelParallel
)

// New creates a CPU backend whose results live on device. It panics for
// non-CPU devices.
//
// Example:
//
//	b := cpu.New(tensor.OnCPU(1))
func New(device tensor.Device) *Backend {
	return internalcpu.New(device)
}

// ParseMatMulKernel parses a kernel name.
func ParseMatMulKernel(s string) (MatMulKernel, error) {
	return internalcpu.ParseMatMulKernel(s)
}
