package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"NewsForwarder/internal/config"
)

const shadowScript = `(host) => {
	const el = document.querySelector(host);
	return el && el.shadowRoot ? el.shadowRoot.innerHTML : "";
}`

// PlaywrightRenderer renders pages in a headless browser launched on first use.
type PlaywrightRenderer struct {
	engine   string
	headless bool
	logger   *slog.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

var _ Renderer = (*PlaywrightRenderer)(nil)

// NewPlaywrightRenderer configures the engine (firefox, chromium or webkit).
func NewPlaywrightRenderer(cfg config.BrowserConfig, logger *slog.Logger) *PlaywrightRenderer {
	engine := cfg.Engine
	if engine == "" {
		engine = "firefox"
	}
	return &PlaywrightRenderer{engine: engine, headless: cfg.Headless, logger: logger}
}

func (r *PlaywrightRenderer) ensureBrowser() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil && r.browser.IsConnected() {
		return r.browser, nil
	}
	if r.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		r.pw = pw
	}

	var bt playwright.BrowserType
	switch r.engine {
	case "chromium":
		bt = r.pw.Chromium
	case "webkit":
		bt = r.pw.WebKit
	default:
		bt = r.pw.Firefox
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(r.headless)})
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", r.engine, err)
	}
	r.browser = b
	return b, nil
}

// Render opens url in a fresh browser context and captures the page and shadow HTML.
func (r *PlaywrightRenderer) Render(ctx context.Context, url string, opts RenderOptions) (Page, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return Page{}, err
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{UserAgent: playwright.String(userAgent)})
	if err != nil {
		return Page{}, fmt.Errorf("new context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return Page{}, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return Page{}, fmt.Errorf("goto %s: %w", url, err)
	}
	if err := sleep(ctx, opts.SettleDelay); err != nil {
		return Page{}, err
	}

	if opts.ClickSelector != "" {
		timeout := opts.ClickTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		err := page.Locator(opts.ClickSelector).First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		})
		if err != nil {
			r.debug("no continue button", "url", url)
		} else if err := sleep(ctx, opts.SettleDelay); err != nil {
			return Page{}, err
		}
	}

	out := Page{URL: url}
	if opts.ShadowHost != "" {
		shadow, err := page.Evaluate(shadowScript, opts.ShadowHost)
		if err != nil {
			r.debug("shadow root unavailable", "url", url, "error", err)
		} else if s, ok := shadow.(string); ok {
			out.ShadowHTML = s
		}
	}

	html, err := page.Content()
	if err != nil {
		return Page{}, fmt.Errorf("page content: %w", err)
	}
	out.HTML = html
	return out, nil
}

// Close shuts down the browser and the driver.
func (r *PlaywrightRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			firstErr = fmt.Errorf("close browser: %w", err)
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop playwright: %w", err)
		}
		r.pw = nil
	}
	return firstErr
}

func (r *PlaywrightRenderer) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
