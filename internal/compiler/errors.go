package compiler

import (
	"fmt"

	"github.com/born-ml/golden/internal/tensor"
)

// DeviceMismatchError is shared with the runtime and the graph layer.
type DeviceMismatchError = tensor.DeviceMismatchError

// CodeGenError reports a construct the compiler cannot lower.
type CodeGenError struct {
	Construct string
	Err       error
}

// Error implements the error interface.
func (e *CodeGenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code generation failed: %s: %v", e.Construct, e.Err)
	}
	return "code generation failed: " + e.Construct
}

// Unwrap returns the underlying error, if any.
func (e *CodeGenError) Unwrap() error {
	return e.Err
}

// ConstraintViolationError reports a dynamic-shape constraint that the
// example inputs break or that cannot be satisfied at all.
type ConstraintViolationError struct {
	Constraint string
	Reason     string
}

// Error implements the error interface.
func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation: %s: %s", e.Constraint, e.Reason)
}
