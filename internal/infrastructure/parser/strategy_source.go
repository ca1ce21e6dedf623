package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
	"NewsForwarder/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []ports.SourceSite
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    toSites(sources),
		logger:   log,
	}
}

// Sites returns the configured listing pages in order.
func (s *StrategySource) Sites() []ports.SourceSite {
	return append([]ports.SourceSite(nil), s.sites...)
}

// FetchSite executes the scanner configured for site.
func (s *StrategySource) FetchSite(ctx context.Context, site ports.SourceSite) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("process site", "site", site.Name, "scanner", site.Scanner, "url", site.ListingURL)
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		SiteName:         site.Name,
		ListingURL:       site.ListingURL,
		Category:         site.Category,
		KeepInlineMarkup: site.KeepInlineMarkup,
	})
	if err != nil {
		return nil, fmt.Errorf("scan site %s: %w", site.Name, err)
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = site.Name
		}
		if results[i].Category == "" {
			results[i].Category = site.Category
		}
	}
	s.debug("site produced articles", "site", site.Name, "count", len(results))
	return results, nil
}

func toSites(cfg []config.SourceConfig) []ports.SourceSite {
	sites := make([]ports.SourceSite, 0, len(cfg))
	for _, src := range cfg {
		name := src.Scanner
		if name == "" {
			name = "msn"
		}
		sites = append(sites, ports.SourceSite{
			Name:             src.Name,
			Scanner:          name,
			ListingURL:       src.URL,
			Category:         domain.ParseCategory(src.Category),
			KeepInlineMarkup: src.KeepInlineMarkup,
		})
	}
	return sites
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
