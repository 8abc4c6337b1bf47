package artifact

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("constant offsets overlap")
	ErrOutOfBounds        = errors.New("constant extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyConstants   = errors.New("too many constants in file")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("file truncated")
	ErrUnknownConstant    = errors.New("unknown constant")
	ErrClosed             = errors.New("artifact is closed")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Err       error  // One of the sentinel errors above
	Constant  string // Primary constant name involved
	Constant2 string // Secondary constant name (for overlap errors)
	Details   string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Constant2 != "" {
		return fmt.Sprintf("%v: constants %q and %q: %s", e.Err, e.Constant, e.Constant2, e.Details)
	}
	if e.Constant != "" {
		return fmt.Sprintf("%v: constant %q: %s", e.Err, e.Constant, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
