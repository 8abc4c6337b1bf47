// Package artifact reads and writes compiled .gaot artifacts.
//
// The format mirrors the .born layout with a fixed binary prefix, a JSON
// header and an aligned data section:
//
//	Format Structure:
//	  [0x00  4 bytes: Magic "GAOT"]
//	  [0x04  4 bytes: Version (uint32 LE)]
//	  [0x08  4 bytes: Flags (uint32 LE)]
//	  [0x0C  4 bytes: Reserved]
//	  [0x10  8 bytes: Header size (uint64 LE)]
//	  [0x18  8 bytes: Stored data size (uint64 LE)]
//	  [0x20  8 bytes: xxhash64 of the stored data section]
//	  [0x28  8 bytes: Raw (uncompressed) data size (uint64 LE)]
//	  [0x30 16 bytes: Reserved]
//	  [Header: JSON, see Header]
//	  [Data: constant tensors, 64-byte aligned, optionally zstd compressed]
//
// The header carries everything the runtime needs besides constant data:
// the traced program, the call spec (serialised input and output tree
// specs), per-input dtype and symbolic shape bounds, the device the program
// was compiled for, and the compile options.
//
// Example usage:
//
//	if err := artifact.Write(path, a, artifact.WriteOptions{Compress: true}); err != nil {
//	    return err
//	}
//
//	f, err := artifact.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	w, err := f.Constant(node)
package artifact
