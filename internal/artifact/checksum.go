package artifact

import (
	"github.com/cespare/xxhash/v2"
)

// ComputeChecksum computes the xxhash64 of data.
func ComputeChecksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored uint64) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
