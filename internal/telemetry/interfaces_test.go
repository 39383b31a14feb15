package telemetry

import (
	"bytes"
	"log"
	"sync"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestLoggerFuncNil(t *testing.T) {
	var fn LoggerFunc
	fn.Printf("must not panic")
	NopLogger().Printf("also ignored %d", 1)
}

func TestCounters(t *testing.T) {
	counters := NewCounters()

	counters.Add("actions_total", 2)
	counters.Add("actions_total", 3)
	counters.Store("players_online", 7)

	if got := counters.Load("actions_total"); got != 5 {
		t.Fatalf("unexpected counter value: %d", got)
	}

	snapshot := counters.Snapshot()
	if got := snapshot["players_online"]; got != 7 {
		t.Fatalf("unexpected stored value: %d", got)
	}
	snapshot["players_online"] = 0
	if got := counters.Load("players_online"); got != 7 {
		t.Fatalf("snapshot must be a copy, registry changed to %d", got)
	}

	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	nilCounters.Store("ignored", 1)
	if nilCounters.Load("ignored") != 0 || nilCounters.Snapshot() != nil {
		t.Fatalf("nil registry must read as empty")
	}
}

func TestCountersConcurrentAdd(t *testing.T) {
	counters := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				counters.Add("hits", 1)
			}
		}()
	}
	wg.Wait()
	if got := counters.Load("hits"); got != 800 {
		t.Fatalf("lost updates: got %d, want 800", got)
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	m.Add("ignored", 1)
	m.Store("ignored", 2)
}
