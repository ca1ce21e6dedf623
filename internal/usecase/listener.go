package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
)

// CallbackHandler reacts to a single control activation.
type CallbackHandler interface {
	Handle(ctx context.Context, cb domain.Callback)
}

// Listener long-polls for callbacks and dispatches each on its own goroutine.
type Listener struct {
	updates    ports.UpdateSource
	handler    CallbackHandler
	logger     *slog.Logger
	timeout    time.Duration
	errorPause time.Duration
}

// NewListener builds a listener that polls with timeout and pauses errorPause after a failed poll.
func NewListener(updates ports.UpdateSource, handler CallbackHandler, timeout, errorPause time.Duration, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if errorPause <= 0 {
		errorPause = 2 * time.Second
	}
	return &Listener{updates: updates, handler: handler, logger: logger, timeout: timeout, errorPause: errorPause}
}

// Run polls until ctx is done or the credentials are rejected, then waits
// for handlers still in flight.
func (l *Listener) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := l.updates.GetUpdates(ctx, offset, l.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrUnauthorized) {
				return fmt.Errorf("poll updates: %w", err)
			}
			l.logger.Warn("poll updates failed", "error", err)
			if err := wait(ctx, l.errorPause); err != nil {
				return err
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Callback == nil {
				continue
			}
			cb := *u.Callback
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						l.logger.Error("callback handler panicked", "data", cb.Data, "panic", r)
					}
				}()
				l.handler.Handle(ctx, cb)
			}()
		}
	}
}
