package compiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/golden/internal/artifact"
)

// Stats counts compile cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache maps compile fingerprints to artifact files. The directory is the
// source of truth; an in-memory ristretto cache fronts it so repeated
// lookups avoid touching the filesystem.
type Cache struct {
	dir    string
	mem    *ristretto.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates dir if needed and returns a cache remembering up to
// maxEntries fingerprints in memory.
func NewCache(dir string, maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	mem, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxEntries,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &Cache{dir: dir, mem: mem}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where the artifact for fingerprint lives.
func (c *Cache) Path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+artifact.Extension)
}

// Lookup returns the cached artifact path for fingerprint.
func (c *Cache) Lookup(fingerprint string) (string, bool) {
	if v, ok := c.mem.Get(fingerprint); ok {
		path := v.(string)
		if _, err := os.Stat(path); err == nil {
			c.hits.Add(1)
			return path, true
		}
		c.mem.Del(fingerprint)
	}
	path := c.Path(fingerprint)
	if _, err := os.Stat(path); err == nil {
		c.remember(fingerprint, path)
		c.hits.Add(1)
		return path, true
	}
	c.misses.Add(1)
	return "", false
}

// Store records that the artifact for fingerprint has been written to path.
func (c *Cache) Store(fingerprint, path string) {
	c.remember(fingerprint, path)
}

func (c *Cache) remember(fingerprint, path string) {
	c.mem.Set(fingerprint, path, 1)
	c.mem.Wait()
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Clear drops every cached artifact and resets the memory cache.
func (c *Cache) Clear() error {
	c.mem.Clear()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != artifact.Extension {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	log.Debug().Str("dir", c.dir).Int("entries", len(entries)).Msg("compile cache cleared")
	return nil
}

// Close stops the memory cache's background goroutines.
func (c *Cache) Close() {
	c.mem.Close()
}

// copyArtifact copies src to dst via a temporary file and rename.
func copyArtifact(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	//nolint:gosec // G304: source is a cache entry
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open cached artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".gaot-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
