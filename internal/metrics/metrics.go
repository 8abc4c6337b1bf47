// Package metrics publishes harness timings and counters over statsd.
package metrics

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

// Metric names.
const (
	CompileLatency = "golden.compile.latency"
	CompileCache   = "golden.compile.cache"
	LoadLatency    = "golden.load.latency"
	RunLatency     = "golden.run.latency"
	CheckResult    = "golden.check.result"
	CheckLatency   = "golden.check.latency"
)

var (
	// It is safe to use one client from multiple goroutines simultaneously.
	client statsd.ClientInterface = &statsd.NoOpClient{}

	// by default full sampling
	samplingRate = 1.0
)

// Init points the package client at a statsd agent. An empty address keeps
// the no-op client.
func Init(addr string, tags []string) error {
	if addr == "" {
		client = &statsd.NoOpClient{}
		return nil
	}
	c, err := statsd.New(addr, statsd.WithTags(tags), statsd.WithoutTelemetry())
	if err != nil {
		client = &statsd.NoOpClient{}
		return err
	}
	client = c
	log.Debug().Str("addr", addr).Strs("tags", tags).Msg("statsd client initialised")
	return nil
}

// SetClient replaces the package client, mainly for tests.
func SetClient(c statsd.ClientInterface) {
	if c == nil {
		c = &statsd.NoOpClient{}
	}
	client = c
}

// Close flushes and closes the client.
func Close() error {
	return client.Close()
}

// Timing records a duration.
func Timing(name string, value time.Duration, tags []string) {
	if err := client.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("statsd timing failed")
	}
}

// Count adds value to a counter.
func Count(name string, value int64, tags []string) {
	if err := client.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("statsd count failed")
	}
}

// Since records the time elapsed since start.
func Since(name string, start time.Time, tags ...string) {
	Timing(name, time.Since(start), tags)
}

// Tag formats a statsd tag.
func Tag(key, value string) string {
	return key + ":" + value
}
