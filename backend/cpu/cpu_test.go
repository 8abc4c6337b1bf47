// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu_test

import (
	"testing"

	"github.com/born-ml/golden/backend/cpu"
	"github.com/born-ml/golden/tensor"
)

// TestKernelsAgree verifies every matmul kernel computes the same product.
func TestKernelsAgree(t *testing.T) {
	b := cpu.New(tensor.DefaultDevice)
	gen := tensor.NewGenerator(9)
	x := tensor.Randn(tensor.Shape{5, 7}, tensor.Float64, tensor.DefaultDevice, gen)
	y := tensor.Randn(tensor.Shape{7, 3}, tensor.Float64, tensor.DefaultDevice, gen)

	want := b.MatMulWith(cpu.KernelNaive, x, y).AsFloat64()
	for _, k := range []cpu.MatMulKernel{cpu.KernelBlocked, cpu.KernelParallel} {
		got := b.MatMulWith(k, x, y).AsFloat64()
		for i := range want {
			if d := got[i] - want[i]; d > 1e-12 || d < -1e-12 {
				t.Fatalf("kernel %s element %d = %v, want %v", k, i, got[i], want[i])
			}
		}
	}

	if _, err := cpu.ParseMatMulKernel("strassen"); err == nil {
		t.Error("ParseMatMulKernel accepted an unknown kernel")
	}
}
