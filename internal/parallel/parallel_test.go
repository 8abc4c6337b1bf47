package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()
	var counter int64
	n := 1000
	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)
	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)
	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestForRange_CoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3}
	seen := make([]int32, 37)
	ForRange(len(seen), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)
	for i, v := range seen {
		if v != 1 {
			t.Errorf("index %d visited %d times", i, v)
		}
	}
}

func TestForRange_Empty(t *testing.T) {
	called := false
	ForRange(0, func(_, _ int) { called = true }, DefaultConfig())
	if called {
		t.Error("ForRange(0) should not call f")
	}
}
