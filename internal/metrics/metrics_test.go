package metrics

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	statsd.NoOpClient
	timings map[string]time.Duration
	counts  map[string]int64
	tags    map[string][]string
}

func newRecorder() *recorder {
	return &recorder{
		timings: map[string]time.Duration{},
		counts:  map[string]int64{},
		tags:    map[string][]string{},
	}
}

func (r *recorder) Timing(name string, value time.Duration, tags []string, _ float64) error {
	r.timings[name] += value
	r.tags[name] = tags
	return nil
}

func (r *recorder) Count(name string, value int64, tags []string, _ float64) error {
	r.counts[name] += value
	r.tags[name] = tags
	return nil
}

func TestRecordsThroughClient(t *testing.T) {
	rec := newRecorder()
	SetClient(rec)
	defer SetClient(nil)

	Count(CompileCache, 1, []string{Tag("result", "hit")})
	Count(CompileCache, 1, []string{Tag("result", "hit")})
	Timing(RunLatency, 3*time.Millisecond, nil)
	Since(CompileLatency, time.Now().Add(-time.Second), Tag("device", "cpu:0"))

	assert.Equal(t, int64(2), rec.counts[CompileCache])
	assert.Equal(t, []string{"result:hit"}, rec.tags[CompileCache])
	assert.Equal(t, 3*time.Millisecond, rec.timings[RunLatency])
	assert.GreaterOrEqual(t, rec.timings[CompileLatency], time.Second)
	assert.Equal(t, []string{"device:cpu:0"}, rec.tags[CompileLatency])
}

func TestInitWithoutAddressIsNoOp(t *testing.T) {
	require.NoError(t, Init("", nil))
	Count(CompileCache, 1, nil)
	assert.NoError(t, Close())
}
