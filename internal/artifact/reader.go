package artifact

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/born-ml/golden/internal/tensor"
)

// File is an opened artifact. Constant tensors returned by Constant share
// the file's memory and are read-only; they stay valid until Close.
type File struct {
	path   string
	header Header
	mapped []byte // whole file when memory-mapped
	data   []byte // uncompressed data section

	mu     sync.Mutex
	closed bool
}

// Open reads and validates the artifact at path.
func Open(path string) (*File, error) {
	//nolint:gosec // G304: artifact path is caller supplied
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Size() < FixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, info.Size())
	}

	mapped, err := mapFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to map artifact: %w", err)
	}

	af := &File{path: path, mapped: mapped}
	if err := af.parse(); err != nil {
		_ = unmapFile(mapped)
		return nil, err
	}
	return af, nil
}

func (f *File) parse() error {
	buf := f.mapped
	if string(buf[0:4]) != MagicBytes {
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, MagicBytes, buf[0:4])
	}
	if v := binary.LittleEndian.Uint32(buf[0x04:]); v != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	flags := binary.LittleEndian.Uint32(buf[0x08:])
	headerSize := binary.LittleEndian.Uint64(buf[0x10:])
	storedSize := binary.LittleEndian.Uint64(buf[0x18:])
	checksum := binary.LittleEndian.Uint64(buf[0x20:])
	rawSize := binary.LittleEndian.Uint64(buf[0x28:])

	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerEnd := FixedHeaderSize + int(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	dataStart := alignUp(headerEnd)
	if uint64(len(buf)) < uint64(dataStart)+storedSize { //nolint:gosec // G115: dataStart is non-negative
		return fmt.Errorf("%w: need %d data bytes after offset %d, file has %d",
			ErrTruncated, storedSize, dataStart, len(buf))
	}
	stored := buf[dataStart : uint64(dataStart)+storedSize] //nolint:gosec // G115: checked above

	if flags&FlagChecksum != 0 {
		if err := ValidateChecksum(ComputeChecksum(stored), checksum); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &f.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if flags&FlagCompressed != 0 {
		data, err := decompress(stored, int64(rawSize)) //nolint:gosec // G115: size checked by decompress
		if err != nil {
			return err
		}
		f.data = data
	} else {
		if rawSize != storedSize {
			return fmt.Errorf("%w: raw size %d differs from stored size %d", ErrTruncated, rawSize, storedSize)
		}
		f.data = stored
	}

	return ValidateHeader(&f.header, int64(len(f.data)))
}

// Path returns the file the artifact was opened from.
func (f *File) Path() string {
	return f.path
}

// Header returns the decoded JSON header.
func (f *File) Header() *Header {
	return &f.header
}

// Constant returns the constant stored for program node id as a read-only
// view on device tensor.DefaultDevice. Callers that keep or mutate it must
// copy it with To.
func (f *File) Constant(node int) (*tensor.RawTensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	for _, c := range f.header.Constants {
		if c.Node != node {
			continue
		}
		return tensor.Wrap(c.Shape, c.DType, tensor.DefaultDevice, f.data[c.Offset:c.Offset+c.Size])
	}
	return nil, fmt.Errorf("%w: node %d", ErrUnknownConstant, node)
}

// Close releases the mapping. It is safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.data = nil
	m := f.mapped
	f.mapped = nil
	return unmapFile(m)
}
