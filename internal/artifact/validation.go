package artifact

import (
	"fmt"
	"sort"

	"github.com/born-ml/golden/internal/graph"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 64 * 1024 * 1024
	MaxConstantCount = 100_000
)

// ValidateConstants checks for overlapping constant regions and
// out-of-bounds access. Malformed files could otherwise alias program
// constants or read past the data section.
func ValidateConstants(consts []ConstantMeta, dataSize int64) error {
	if len(consts) > MaxConstantCount {
		return &ValidationError{
			Err:     ErrTooManyConstants,
			Details: fmt.Sprintf("got %d, max %d", len(consts), MaxConstantCount),
		}
	}

	sorted := make([]ConstantMeta, len(consts))
	copy(sorted, consts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, c := range sorted {
		if c.Offset < 0 || c.Size < 0 {
			return &ValidationError{
				Err:      ErrNegativeOffset,
				Constant: c.Name,
				Details:  fmt.Sprintf("offset=%d, size=%d", c.Offset, c.Size),
			}
		}
		if want := int64(c.Shape.NumElements() * c.DType.Size()); want != c.Size {
			return &ValidationError{
				Err:      ErrOutOfBounds,
				Constant: c.Name,
				Details:  fmt.Sprintf("shape %v of %s needs %d bytes, header says %d", c.Shape, c.DType, want, c.Size),
			}
		}
		if c.Offset+c.Size > dataSize {
			return &ValidationError{
				Err:      ErrOutOfBounds,
				Constant: c.Name,
				Details:  fmt.Sprintf("offset %d + size %d > data_size %d", c.Offset, c.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if c.Offset+c.Size > next.Offset {
				return &ValidationError{
					Err:       ErrOffsetOverlap,
					Constant:  c.Name,
					Constant2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						c.Offset, c.Offset+c.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateHeader checks the structural consistency of a decoded header.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.Program == nil {
		return fmt.Errorf("header has no program")
	}
	if err := h.Program.Validate(); err != nil {
		return fmt.Errorf("invalid program: %w", err)
	}
	if len(h.Inputs) != len(h.Program.Inputs) {
		return fmt.Errorf("header lists %d inputs, program has %d", len(h.Inputs), len(h.Program.Inputs))
	}
	for _, c := range h.Constants {
		if c.Node < 0 || c.Node >= len(h.Program.Nodes) || h.Program.Nodes[c.Node].Op != graph.OpConst {
			return &ValidationError{Err: ErrUnknownConstant, Constant: c.Name, Details: fmt.Sprintf("node %d is not a constant", c.Node)}
		}
	}
	return ValidateConstants(h.Constants, dataSize)
}
