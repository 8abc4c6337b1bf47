package runtime

import (
	"errors"
	"fmt"

	"github.com/born-ml/golden/internal/tensor"
)

// DeviceMismatchError is shared with the compiler and the graph layer.
type DeviceMismatchError = tensor.DeviceMismatchError

// Common errors.
var (
	ErrClosed            = errors.New("runner is closed")
	ErrDeviceUnavailable = errors.New("device not available")
)

// InputError reports a flat input that does not match the artifact's
// input specification.
type InputError struct {
	Index  int
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("input %d (%s): %s", e.Index, e.Name, e.Reason)
}

// NodeError wraps a failure while executing a program node.
type NodeError struct {
	Node int
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %%%d (%s): %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NonFiniteError is returned by the inf/NaN debug check.
type NonFiniteError struct {
	Node int
	Op   string
	Name string
}

// Error implements the error interface.
func (e *NonFiniteError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("non-finite value produced by node %%%d (%s %q)", e.Node, e.Op, e.Name)
	}
	return fmt.Sprintf("non-finite value produced by node %%%d (%s)", e.Node, e.Op)
}
