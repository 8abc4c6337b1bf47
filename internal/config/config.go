// Package config loads the golden tool configuration from an optional file
// and GOLDEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/harness"
	"github.com/born-ml/golden/internal/logger"
	"github.com/born-ml/golden/internal/metrics"
	"github.com/born-ml/golden/internal/runtime"
)

// EnvPrefix prefixes every environment override, e.g. GOLDEN_CACHE_DIR.
const EnvPrefix = "GOLDEN"

// Config is the resolved tool configuration.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Devices DevicesConfig `mapstructure:"devices"`
	Harness HarnessConfig `mapstructure:"harness"`
}

// CacheConfig locates the on-disk compile cache.
type CacheConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxEntries int64  `mapstructure:"max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MetricsConfig struct {
	StatsdAddr string   `mapstructure:"statsd_addr"`
	Tags       []string `mapstructure:"tags"`
}

type DevicesConfig struct {
	CPUCount int `mapstructure:"cpu_count"`
}

// HarnessConfig holds the equivalence check settings.
type HarnessConfig struct {
	Seed int64   `mapstructure:"seed"`
	Atol float64 `mapstructure:"atol"`
	Rtol float64 `mapstructure:"rtol"`
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "golden")
	}
	return filepath.Join(os.TempDir(), "golden-cache")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", false)
	v.SetDefault("metrics.statsd_addr", "")
	v.SetDefault("metrics.tags", []string{})
	v.SetDefault("devices.cpu_count", 2)
	v.SetDefault("harness.seed", 0)
	v.SetDefault("harness.atol", harness.DefaultAtol)
	v.SetDefault("harness.rtol", harness.DefaultRtol)
}

// Load reads the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir must not be empty"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Devices.CPUCount <= 0 {
		errs = append(errs, fmt.Errorf("devices.cpu_count must be positive, got %d", c.Devices.CPUCount))
	}
	if c.Harness.Atol < 0 || c.Harness.Rtol < 0 {
		errs = append(errs, errors.New("harness tolerances must not be negative"))
	}
	return errors.Join(errs...)
}

// Apply configures the process-wide logger, metrics client and device
// registry.
func (c *Config) Apply() error {
	if err := logger.Init(c.Log.Level, c.Log.Pretty); err != nil {
		return err
	}
	if err := metrics.Init(c.Metrics.StatsdAddr, c.Metrics.Tags); err != nil {
		return err
	}
	runtime.SetCPUCount(c.Devices.CPUCount)
	return nil
}

// OpenCache opens the compile cache directory.
func (c *Config) OpenCache() (*compiler.Cache, error) {
	return compiler.NewCache(c.Cache.Dir, c.Cache.MaxEntries)
}

// HarnessSettings returns the seed and tolerances for the equivalence check.
func (c *Config) HarnessSettings() harness.Config {
	return harness.Config{Seed: c.Harness.Seed, Atol: c.Harness.Atol, Rtol: c.Harness.Rtol}
}
