package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/infrastructure/browser"
	"NewsForwarder/internal/scanner"
)

const (
	msnPrefix          = "https://www.msn.com/"
	continueSelector   = `fluent-button[name="Continue reading"]`
	shadowHost         = "cp-article"
	defaultHeader      = "Без заголовка"
	noTextFound        = "Текст не найден"
	defaultMaxImages   = 10
	defaultConcurrency = 4
	imageUserAgent     = "NewsForwarder/1.0"
)

// MSNDeps wires the MSN scanner.
type MSNDeps struct {
	Renderer           browser.Renderer
	HTTPClient         *http.Client
	ImageDir           string
	MaxImages          int
	MaxConcurrentPages int
	ContinueTimeout    time.Duration
	SettleDelay        time.Duration
	Logger             *slog.Logger
}

// MSNScanner extracts articles from MSN aggregator listing pages.
type MSNScanner struct {
	renderer        browser.Renderer
	client          *http.Client
	imageDir        string
	maxImages       int
	concurrency     int
	continueTimeout time.Duration
	settleDelay     time.Duration
	logger          *slog.Logger
}

// NewMSNScanner applies defaults to deps.
func NewMSNScanner(deps MSNDeps) *MSNScanner {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = browser.NewHTTPRenderer(client)
	}
	maxImages := deps.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	concurrency := deps.MaxConcurrentPages
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	imageDir := deps.ImageDir
	if imageDir == "" {
		imageDir = filepath.Join("img", "msn")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MSNScanner{
		renderer:        renderer,
		client:          client,
		imageDir:        imageDir,
		maxImages:       maxImages,
		concurrency:     concurrency,
		continueTimeout: deps.ContinueTimeout,
		settleDelay:     deps.SettleDelay,
		logger:          logger,
	}
}

// Name identifies the strategy inside the registry.
func (m *MSNScanner) Name() string {
	return "msn"
}

// Scan renders the listing and fetches every linked article concurrently.
// Only a listing failure fails the call; article failures are logged and dropped.
func (m *MSNScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	page, err := m.renderer.Render(ctx, req.ListingURL, browser.RenderOptions{SettleDelay: m.settleDelay})
	if err != nil {
		return nil, fmt.Errorf("render listing %s: %w", req.SiteName, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", req.SiteName, err)
	}

	links := extractLinks(doc)
	m.logger.Debug("listing links", "site", req.SiteName, "count", len(links))

	results := make([]*domain.Article, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, link := range links {
		i, link := i, link
		id, err := domain.ArticleID(link)
		if err != nil {
			m.logger.Warn("skip link without article id", "site", req.SiteName, "link", link)
			continue
		}
		g.Go(func() error {
			article, err := m.fetchArticle(gctx, req, id, link)
			if err != nil {
				m.logger.Warn("article fetch failed", "site", req.SiteName, "link", link, "error", err)
				return nil
			}
			results[i] = &article
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]domain.Article, 0, len(results))
	for _, article := range results {
		if article != nil {
			articles = append(articles, *article)
		}
	}
	if err := ctx.Err(); err != nil {
		return articles, err
	}
	return articles, nil
}

// extractLinks returns distinct MSN article links in first-seen order.
func extractLinks(doc *goquery.Document) []string {
	var links []string
	seen := map[string]struct{}{}
	doc.Find(".text").Each(func(_ int, item *goquery.Selection) {
		item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			href = strings.TrimSpace(href)
			if !strings.HasPrefix(href, msnPrefix) {
				return
			}
			if _, ok := seen[href]; ok {
				return
			}
			seen[href] = struct{}{}
			links = append(links, href)
		})
	})
	return links
}

func (m *MSNScanner) fetchArticle(ctx context.Context, req scanner.Request, id, link string) (domain.Article, error) {
	page, err := m.renderer.Render(ctx, link, browser.RenderOptions{
		ClickSelector: continueSelector,
		ClickTimeout:  m.continueTimeout,
		ShadowHost:    shadowHost,
		SettleDelay:   m.settleDelay,
	})
	if err != nil {
		return domain.Article{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse article: %w", err)
	}

	header := strings.TrimSpace(doc.Find(".viewsHeader").First().Text())
	if header == "" {
		header = defaultHeader
	}

	bodyHTML := page.ShadowHTML
	if strings.TrimSpace(bodyHTML) == "" {
		bodyHTML = fallbackBody(doc)
	}

	return domain.Article{
		ID:         id,
		Link:       link,
		Header:     header,
		Body:       extractBody(bodyHTML, req.KeepInlineMarkup),
		ImagePaths: m.downloadImages(ctx, doc, id, link),
		Source:     req.SiteName,
		Category:   req.Category,
	}, nil
}

func fallbackBody(doc *goquery.Document) string {
	for _, sel := range []string{shadowHost, "article"} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if html, err := node.Html(); err == nil {
				return html
			}
		}
	}
	return ""
}

// extractBody concatenates paragraph texts, dropping links and bold runs unless keepInline is set.
func extractBody(html string, keepInline bool) string {
	if strings.TrimSpace(html) == "" {
		return noTextFound
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return noTextFound
	}
	if !keepInline {
		doc.Find("a, strong").Remove()
	}

	var b strings.Builder
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := p.Text(); strings.TrimSpace(text) != "" {
			b.WriteString(text)
		}
	})
	if b.Len() == 0 {
		return noTextFound
	}
	return b.String()
}

func (m *MSNScanner) downloadImages(ctx context.Context, doc *goquery.Document, id, link string) []string {
	base, _ := url.Parse(link)

	var paths []string
	doc.Find(".article-page .article-image-container img[src]").EachWithBreak(func(j int, img *goquery.Selection) bool {
		if j >= m.maxImages {
			return false
		}
		src, _ := img.Attr("src")
		if src = strings.TrimSpace(src); src == "" {
			return true
		}
		if base != nil {
			if ref, err := base.Parse(src); err == nil {
				src = ref.String()
			}
		}
		dest := filepath.Join(m.imageDir, fmt.Sprintf("%s_%d.png", id, j))
		if err := m.download(ctx, src, dest); err != nil {
			m.logger.Debug("image download skipped", "id", id, "index", j, "error", err)
			return true
		}
		paths = append(paths, dest)
		return true
	})
	return paths
}

func (m *MSNScanner) download(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", imageUserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("request image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image returned %s", resp.Status)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write image: %w", err)
	}
	return out.Close()
}
