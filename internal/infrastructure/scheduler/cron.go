package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsForwarder/internal/ports"
)

// CronScheduler runs a job once at start and then on a cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   cronLogger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for spec evaluated in loc.
func NewCronScheduler(spec string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{spec: spec, location: loc, logger: cronLogger{logger: logger}}
}

// Start registers job; runs never overlap and a panicking run is logged.
// Recover sits inside SkipIfStillRunning so a panic still releases the run slot.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location), cron.WithLogger(c.logger))
	wrapped := cron.NewChain(cron.SkipIfStillRunning(c.logger), cron.Recover(c.logger)).Then(cron.FuncJob(func() {
		job(time.Now().In(c.location))
	}))
	if _, err := runner.AddJob(c.spec, wrapped); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	c.cron = runner
	runner.Start()
	go wrapped.Run()
	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop prevents new runs and waits for a running job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}
	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
