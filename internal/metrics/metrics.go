package metrics

import (
	"sync"
	"time"
)

// Counter names a monotonically increasing pipeline counter.
type Counter string

const (
	ArticlesScanned   Counter = "articles_scanned"
	DuplicatesSkipped Counter = "duplicates_skipped"
	ArticlesPublished Counter = "articles_published"
	PublishFailures   Counter = "publish_failures"
	PlainFallbacks    Counter = "plain_fallbacks"
	ControlFailures   Counter = "control_failures"
	SourceFailures    Counter = "source_failures"
	CallbacksHandled  Counter = "callbacks_handled"
	Forwards          Counter = "forwards"
	ForwardFailures   Counter = "forward_failures"
	SocialPosts       Counter = "social_posts"
	SocialFailures    Counter = "social_failures"
	ShortsCreated     Counter = "shorts_created"
	ShortsFailed      Counter = "shorts_failed"
)

type Metrics struct {
	mu sync.RWMutex

	counters map[Counter]int64

	LastPassStarted  time.Time
	LastPassDuration time.Duration
	PassCount        int64
	LastErrorTime    time.Time
	LastError        string
}

func New() *Metrics {
	return &Metrics{counters: map[Counter]int64{}}
}

func (m *Metrics) Inc(c Counter) {
	m.Add(c, 1)
}

func (m *Metrics) Add(c Counter, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c] += n
}

func (m *Metrics) Get(c Counter) int64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[c]
}

func (m *Metrics) RecordPass(started time.Time, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastPassStarted = started
	m.LastPassDuration = duration
	m.PassCount++
}

func (m *Metrics) SetError(err error) {
	if m == nil || err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err.Error()
	m.LastErrorTime = time.Now()
}

// Snapshot returns a JSON-friendly copy of every counter and the pass timings.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]interface{}, len(m.counters)+5)
	for c, v := range m.counters {
		stats[string(c)] = v
	}
	stats["passes"] = m.PassCount
	stats["last_pass_duration_ms"] = m.LastPassDuration.Milliseconds()
	if !m.LastPassStarted.IsZero() {
		stats["last_pass_started"] = m.LastPassStarted.Format(time.RFC3339)
	}
	if m.LastError != "" {
		stats["last_error"] = m.LastError
		stats["last_error_time"] = m.LastErrorTime.Format(time.RFC3339)
	}
	return stats
}
