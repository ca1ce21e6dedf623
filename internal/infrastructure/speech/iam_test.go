package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestIAMTokenIsCachedUntilExpiry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fn-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(`{"access_token":"first","expires_in":43200}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"second"}`))
	}))
	defer server.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	source := NewIAMTokenSource(server.URL, "fn-123", time.Hour, server.Client())
	source.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		token, err := source.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "first" {
			t.Fatalf("unexpected token: %s", token)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single fetch, got %d", calls.Load())
	}

	now = now.Add(61 * time.Minute)
	token, err := source.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "second" {
		t.Fatalf("expected refreshed token, got %s", token)
	}
}

func TestIAMTokenErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := NewIAMTokenSource(server.URL, "fn", 0, server.Client()).Token(context.Background()); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
	if _, err := NewIAMTokenSource(server.URL, "", 0, server.Client()).Token(context.Background()); err == nil {
		t.Fatalf("expected error without function id")
	}
}
