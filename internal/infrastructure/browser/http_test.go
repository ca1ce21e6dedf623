package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPRendererFetchesHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "Firefox") {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	r := NewHTTPRenderer(server.Client())
	page, err := r.Render(context.Background(), server.URL+"/page", RenderOptions{ShadowHost: "cp-article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(page.HTML, "ok") || page.ShadowHTML != "" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if _, err := r.Render(context.Background(), server.URL+"/missing", RenderOptions{}); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestSleepHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
