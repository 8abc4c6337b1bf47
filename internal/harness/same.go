package harness

import (
	"fmt"
	"math"

	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

// Default comparison tolerances.
const (
	DefaultAtol = 1e-5
	DefaultRtol = 1e-4
)

// MismatchError reports the first difference Same found between two
// output trees.
type MismatchError struct {
	// Path locates the leaf, e.g. root[1]["x"]. It is "root" for structural
	// differences of the whole tree.
	Path string
	// Index is the flat element index for value differences and -1 otherwise.
	Index    int
	Expected any
	Actual   any
	Reason   string
}

func (e *MismatchError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("output mismatch at %s index %d: expected %v, got %v (%s)",
			e.Path, e.Index, e.Expected, e.Actual, e.Reason)
	}
	return fmt.Sprintf("output mismatch at %s: expected %v, got %v (%s)", e.Path, e.Expected, e.Actual, e.Reason)
}

// Same checks that actual matches expected: same tree structure, and for
// every leaf the same shape, dtype and values within
// |a-e| <= atol + rtol*|e|. NaN equals NaN and infinities of the same sign
// are equal.
func Same(expected, actual any, atol, rtol float64) error {
	expLeaves, expSpec := pytree.Flatten(expected)
	actLeaves, actSpec := pytree.Flatten(actual)
	if !expSpec.Equal(actSpec) {
		return &MismatchError{Path: "root", Index: -1, Expected: expSpec.String(), Actual: actSpec.String(), Reason: "structure"}
	}
	paths := pytree.LeafPaths(expSpec)
	for i := range expLeaves {
		if err := sameLeaf(paths[i], expLeaves[i], actLeaves[i], atol, rtol); err != nil {
			return err
		}
	}
	return nil
}

func sameLeaf(path string, expected, actual any, atol, rtol float64) error {
	exp, ok := expected.(*tensor.RawTensor)
	if !ok {
		return &MismatchError{Path: path, Index: -1, Expected: "tensor", Actual: fmt.Sprintf("%T", expected), Reason: "expected leaf type"}
	}
	act, ok := actual.(*tensor.RawTensor)
	if !ok {
		return &MismatchError{Path: path, Index: -1, Expected: "tensor", Actual: fmt.Sprintf("%T", actual), Reason: "leaf type"}
	}
	if exp.DType() != act.DType() {
		return &MismatchError{Path: path, Index: -1, Expected: exp.DType(), Actual: act.DType(), Reason: "dtype"}
	}
	if !exp.Shape().Equal(act.Shape()) {
		return &MismatchError{Path: path, Index: -1, Expected: exp.Shape(), Actual: act.Shape(), Reason: "shape"}
	}
	for j := 0; j < exp.NumElements(); j++ {
		e, a := exp.Float64At(j), act.Float64At(j)
		if !withinTolerance(e, a, atol, rtol) {
			return &MismatchError{Path: path, Index: j, Expected: e, Actual: a, Reason: "value"}
		}
	}
	return nil
}

func withinTolerance(e, a, atol, rtol float64) bool {
	switch {
	case math.IsNaN(e) || math.IsNaN(a):
		return math.IsNaN(e) && math.IsNaN(a)
	case math.IsInf(e, 0) || math.IsInf(a, 0):
		return e == a
	}
	return math.Abs(a-e) <= atol+rtol*math.Abs(e)
}
