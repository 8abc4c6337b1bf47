package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/harness"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, int64(1024), cfg.Cache.MaxEntries)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Devices.CPUCount)
	assert.Equal(t, harness.DefaultAtol, cfg.Harness.Atol)
	assert.Equal(t, harness.DefaultRtol, cfg.Harness.Rtol)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yaml")
	doc := `
cache:
  dir: /tmp/golden-test-cache
  max_entries: 8
log:
  level: debug
  pretty: true
devices:
  cpu_count: 4
harness:
  seed: 99
  atol: 0.001
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/golden-test-cache", cfg.Cache.Dir)
	assert.Equal(t, int64(8), cfg.Cache.MaxEntries)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 4, cfg.Devices.CPUCount)
	assert.Equal(t, harness.Config{Seed: 99, Atol: 0.001, Rtol: harness.DefaultRtol}, cfg.HarnessSettings())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GOLDEN_CACHE_DIR", "/tmp/from-env")
	t.Setenv("GOLDEN_HARNESS_SEED", "7")
	t.Setenv("GOLDEN_DEVICES_CPU_COUNT", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.Cache.Dir)
	assert.Equal(t, int64(7), cfg.Harness.Seed)
	assert.Equal(t, 3, cfg.Devices.CPUCount)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"max entries", "GOLDEN_CACHE_MAX_ENTRIES", "0"},
		{"log level", "GOLDEN_LOG_LEVEL", "chatty"},
		{"cpu count", "GOLDEN_DEVICES_CPU_COUNT", "-1"},
		{"tolerance", "GOLDEN_HARNESS_ATOL", "-0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyAndOpenCache(t *testing.T) {
	t.Setenv("GOLDEN_CACHE_DIR", t.TempDir())
	t.Setenv("GOLDEN_DEVICES_CPU_COUNT", "5")
	t.Cleanup(func() { runtime.SetCPUCount(2) })

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Apply())
	assert.Len(t, runtime.Devices(tensor.CPU), 5)

	cache, err := cfg.OpenCache()
	require.NoError(t, err)
	defer cache.Close()
	assert.Equal(t, cfg.Cache.Dir, cache.Dir())
}
