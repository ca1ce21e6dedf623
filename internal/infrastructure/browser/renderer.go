package browser

import (
	"context"
	"time"
)

// RenderOptions tunes a single page render.
type RenderOptions struct {
	// ClickSelector is clicked once if it appears within ClickTimeout; absence is not an error.
	ClickSelector string
	ClickTimeout  time.Duration
	// ShadowHost names the custom element whose shadow root HTML is captured.
	ShadowHost  string
	SettleDelay time.Duration
}

// Page is the rendered result of a URL.
type Page struct {
	URL        string
	HTML       string
	ShadowHTML string
}

// Renderer loads pages, optionally through a real browser engine.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (Page, error)
	Close() error
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
