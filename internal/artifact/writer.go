package artifact

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// WriteOptions configures Write.
type WriteOptions struct {
	// Compress stores the data section zstd compressed.
	Compress bool
}

// Write serialises a to path. Constant metadata in a.Header is rebuilt
// from a.Constants; the file appears atomically via rename so concurrent
// readers never see a partial artifact.
func Write(path string, a *Artifact, opts WriteOptions) error {
	data, consts, err := layoutConstants(a)
	if err != nil {
		return err
	}
	h := a.Header
	h.FormatVersion = FormatVersion
	h.Constants = consts
	if err := ValidateHeader(&h, int64(len(data))); err != nil {
		return fmt.Errorf("refusing to write invalid artifact: %w", err)
	}

	headerJSON, err := json.Marshal(&h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	flags := FlagChecksum
	stored := data
	if opts.Compress {
		flags |= FlagCompressed
		if stored, err = compress(data); err != nil {
			return err
		}
	}

	var fixed [FixedHeaderSize]byte
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[0x04:], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[0x08:], flags)
	binary.LittleEndian.PutUint64(fixed[0x10:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[0x18:], uint64(len(stored)))
	binary.LittleEndian.PutUint64(fixed[0x20:], ComputeChecksum(stored))
	binary.LittleEndian.PutUint64(fixed[0x28:], uint64(len(data)))

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gaot-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	written := 0
	for _, chunk := range [][]byte{fixed[:], headerJSON} {
		n, err := w.Write(chunk)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
		written += n
	}
	if pad := alignUp(written) - written; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(stored); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data section: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// layoutConstants packs constants in node order, each 64-byte aligned.
func layoutConstants(a *Artifact) ([]byte, []ConstantMeta, error) {
	ids := make([]int, 0, len(a.Constants))
	for id := range a.Constants {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var names map[int]string
	if a.Header.Program != nil {
		names = make(map[int]string, len(ids))
		for _, id := range ids {
			if id >= 0 && id < len(a.Header.Program.Nodes) {
				names[id] = a.Header.Program.Nodes[id].Name
			}
		}
	}

	var offset int64
	metas := make([]ConstantMeta, 0, len(ids))
	for _, id := range ids {
		t := a.Constants[id]
		if t == nil {
			return nil, nil, fmt.Errorf("constant for node %d is nil", id)
		}
		offset = int64(alignUp(int(offset)))
		metas = append(metas, ConstantMeta{
			Node:   id,
			Name:   names[id],
			DType:  t.DType(),
			Shape:  t.Shape().Clone(),
			Offset: offset,
			Size:   int64(t.ByteSize()),
		})
		offset += int64(t.ByteSize())
	}

	data := make([]byte, offset)
	for i, m := range metas {
		copy(data[m.Offset:], a.Constants[ids[i]].Data())
	}
	return data, metas, nil
}

func alignUp(n int) int {
	return (n + Alignment - 1) / Alignment * Alignment
}
