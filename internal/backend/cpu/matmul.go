package cpu

import (
	"fmt"

	"github.com/born-ml/golden/internal/parallel"
	"github.com/born-ml/golden/internal/tensor"
)

// MatMulKernel names one of the interchangeable GEMM implementations.
// The compiler's autotuner picks between them per matmul node.
type MatMulKernel string

// Available GEMM kernels.
const (
	KernelNaive    MatMulKernel = "naive"
	KernelBlocked  MatMulKernel = "blocked"
	KernelParallel MatMulKernel = "parallel"
)

// MatMulKernels lists every kernel in preference order for ties.
var MatMulKernels = []MatMulKernel{KernelBlocked, KernelNaive, KernelParallel}

// ParseMatMulKernel validates a kernel name.
func ParseMatMulKernel(s string) (MatMulKernel, error) {
	switch k := MatMulKernel(s); k {
	case KernelNaive, KernelBlocked, KernelParallel:
		return k, nil
	default:
		return "", fmt.Errorf("unknown matmul kernel %q", s)
	}
}

const blockSize = 32

// MatMul multiplies a and b with the default kernel.
func (cpu *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.MatMulWith(KernelBlocked, a, b)
}

// MatMulWith multiplies a and b using kernel.
//
// Supported layouts:
//   - (M, K) @ (K, N) -> (M, N)
//   - (..., M, K) @ (K, N) -> (..., M, N), leading dims folded into M
//   - (B..., M, K) @ (B..., K, N) -> (B..., M, N), identical batch dims
func (cpu *Backend) MatMulWith(kernel MatMulKernel, a, b *tensor.RawTensor) *tensor.RawTensor {
	sameDType("matmul", a, b)
	if ts, promoted := cpu.promoteHalf(a, b); promoted {
		return cpu.Cast(cpu.MatMulWith(kernel, ts[0], ts[1]), tensor.Float16)
	}

	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) < 2 || len(bShape) < 2 {
		panic(fmt.Sprintf("matmul: operands must be at least 2D, got %v and %v", aShape, bShape))
	}

	k := aShape[len(aShape)-1]
	m := aShape[len(aShape)-2]
	kAlt, n := bShape[len(bShape)-2], bShape[len(bShape)-1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch %v @ %v", aShape, bShape))
	}

	batch := 1
	outShape := make(tensor.Shape, 0, len(aShape))
	switch {
	case len(bShape) == 2:
		// Fold all leading dimensions of a into M.
		for _, d := range aShape[:len(aShape)-2] {
			m *= d
		}
		outShape = append(outShape, aShape[:len(aShape)-1]...)
		outShape = append(outShape, n)
	case len(aShape) == len(bShape) && tensor.Shape(aShape[:len(aShape)-2]).Equal(bShape[:len(bShape)-2]):
		for _, d := range aShape[:len(aShape)-2] {
			batch *= d
		}
		outShape = append(outShape, aShape[:len(aShape)-2]...)
		outShape = append(outShape, m, n)
	default:
		panic(fmt.Sprintf("matmul: incompatible batch dims %v @ %v", aShape, bShape))
	}

	out := cpu.result("matmul", outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		batched(kernel, out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batch, m, k, n, len(bShape) == 2)
	case tensor.Float64:
		batched(kernel, out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batch, m, k, n, len(bShape) == 2)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}
	return out
}

func batched[T float](kernel MatMulKernel, c, a, b []T, batch, m, k, n int, sharedB bool) {
	for i := 0; i < batch; i++ {
		ai := a[i*m*k : (i+1)*m*k]
		bi := b
		if !sharedB {
			bi = b[i*k*n : (i+1)*k*n]
		}
		ci := c[i*m*n : (i+1)*m*n]
		switch kernel {
		case KernelNaive:
			gemmNaive(ci, ai, bi, m, k, n)
		case KernelParallel:
			gemmParallel(ci, ai, bi, m, k, n)
		case KernelBlocked, "":
			gemmBlocked(ci, ai, bi, 0, m, k, n)
		default:
			panic(fmt.Sprintf("matmul: unknown kernel %q", kernel))
		}
	}
}

// gemmNaive computes C = A @ B with the textbook i-j-k loop.
func gemmNaive[T float](c, a, b []T, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// gemmBlocked computes rows [rowStart, rowEnd) of C = A @ B with an i-k-j
// loop tiled over K so the active slice of B stays in cache.
func gemmBlocked[T float](c, a, b []T, rowStart, rowEnd, k, n int) {
	for i := rowStart * n; i < rowEnd*n; i++ {
		c[i] = 0
	}
	for kk := 0; kk < k; kk += blockSize {
		kEnd := min(kk+blockSize, k)
		for i := rowStart; i < rowEnd; i++ {
			row := c[i*n : (i+1)*n]
			for p := kk; p < kEnd; p++ {
				av := a[i*k+p]
				if av == 0 {
					continue
				}
				bRow := b[p*n : (p+1)*n]
				for j := range row {
					row[j] += av * bRow[j]
				}
			}
		}
	}
}

// gemmParallel splits the rows of C across workers, each running the
// blocked kernel.
func gemmParallel[T float](c, a, b []T, m, k, n int) {
	cfg := parallel.DefaultConfig()
	cfg.MinChunkSize = 8
	parallel.ForRange(m, func(start, end int) {
		gemmBlocked(c, a, b, start, end, k, n)
	}, cfg)
}
