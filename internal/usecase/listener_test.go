package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/logging"
)

type scriptedUpdates struct {
	mu      sync.Mutex
	batches [][]domain.Update
	errs    []error
	offsets []int64
}

func (s *scriptedUpdates) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]domain.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.batches) > 0 {
		batch := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHandler struct {
	mu   sync.Mutex
	data []string
	done chan struct{}
	want int
}

func (h *recordingHandler) Handle(_ context.Context, cb domain.Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = append(h.data, cb.Data)
	if len(h.data) == h.want {
		close(h.done)
	}
	if cb.Data == "panic" {
		panic("boom")
	}
}

func TestListenerDispatchesCallbacks(t *testing.T) {
	t.Parallel()

	updates := &scriptedUpdates{
		errs: []error{errors.New("telegram getUpdates: 502 Bad Gateway")},
		batches: [][]domain.Update{
			{{UpdateID: 10, Callback: &domain.Callback{Data: "forward_AB12345"}}, {UpdateID: 11}},
			{{UpdateID: 12, Callback: &domain.Callback{Data: "panic"}}, {UpdateID: 13, Callback: &domain.Callback{Data: "create_shorts_AB12345"}}},
		},
	}
	handler := &recordingHandler{done: make(chan struct{}), want: 3}
	listener := NewListener(updates, handler, time.Second, time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- listener.Run(ctx) }()

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handlers were not dispatched")
	}
	cancel()

	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not stop")
	}

	assert.ElementsMatch(t, []string{"forward_AB12345", "panic", "create_shorts_AB12345"}, handler.data)
	updates.mu.Lock()
	defer updates.mu.Unlock()
	require.GreaterOrEqual(t, len(updates.offsets), 3)
	assert.Equal(t, []int64{0, 0, 12}, updates.offsets[:3])
}

func TestListenerReturnsOnUnauthorized(t *testing.T) {
	t.Parallel()

	updates := &scriptedUpdates{errs: []error{fmt.Errorf("telegram getUpdates: 401 Unauthorized: %w", domain.ErrUnauthorized)}}
	listener := NewListener(updates, &recordingHandler{done: make(chan struct{})}, time.Second, time.Millisecond, logging.Discard())

	err := listener.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
