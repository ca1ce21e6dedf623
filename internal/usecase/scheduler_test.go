package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/logging"
	"NewsForwarder/internal/ports"
)

type manualDriver struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
	started chan struct{}
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.mu.Lock()
	d.job = job
	d.mu.Unlock()
	close(d.started)
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func TestSchedulerRunsPassesUntilCancelled(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	source := &fakeSource{
		sites:    []ports.SourceSite{{Name: "CoinDesk"}},
		articles: map[string][]domain.Article{"CoinDesk": {{ID: "AB12345", Header: "H", Body: "B"}}},
	}
	driver := &manualDriver{started: make(chan struct{})}
	sched := NewScheduler(driver, f.pipeline(source), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- sched.Run(ctx) }()

	<-driver.started
	driver.job(time.Now())
	driver.job(time.Now())
	cancel()

	require.ErrorIs(t, <-result, context.Canceled)
	assert.True(t, driver.stopped)
	assert.Len(t, f.messenger.methods(), 1, "the second pass sees the article as already published")
}
