package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	t.Parallel()

	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc(ArticlesPublished)
		}()
	}
	wg.Wait()

	if got := m.Get(ArticlesPublished); got != 50 {
		t.Fatalf("unexpected counter: %d", got)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	m := New()
	m.Add(DuplicatesSkipped, 2)
	m.RecordPass(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), 1500*time.Millisecond)
	m.SetError(errors.New("listing down"))

	stats := m.Snapshot()
	if stats["duplicates_skipped"] != int64(2) || stats["passes"] != int64(1) {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if stats["last_pass_duration_ms"] != int64(1500) || stats["last_error"] != "listing down" {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Inc(Forwards)
	m.RecordPass(time.Now(), time.Second)
	if m.Get(Forwards) != 0 {
		t.Fatalf("nil metrics must read zero")
	}
}
