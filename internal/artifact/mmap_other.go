//go:build !unix

package artifact

import (
	"io"
	"os"
)

// mapFile reads the whole file on platforms without mmap support.
func mapFile(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func unmapFile([]byte) error {
	return nil
}
