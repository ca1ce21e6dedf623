package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/infrastructure/archive"
	"NewsForwarder/internal/infrastructure/browser"
	"NewsForwarder/internal/infrastructure/httpapi"
	"NewsForwarder/internal/infrastructure/llm"
	"NewsForwarder/internal/infrastructure/media"
	"NewsForwarder/internal/infrastructure/parser"
	"NewsForwarder/internal/infrastructure/scheduler"
	"NewsForwarder/internal/infrastructure/speech"
	"NewsForwarder/internal/infrastructure/storage"
	"NewsForwarder/internal/infrastructure/telegram"
	"NewsForwarder/internal/infrastructure/vk"
	"NewsForwarder/internal/logging"
	"NewsForwarder/internal/metrics"
	"NewsForwarder/internal/ports"
	"NewsForwarder/internal/scanner"
	"NewsForwarder/internal/usecase"
	"NewsForwarder/pkg/retry"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
	listener   *usecase.Listener
	supervisor *Supervisor
	closers    []io.Closer
}

// New builds every adapter from cfg. The caller owns Close.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.Discard()
	}
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	repo, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, repo)
	if err := repo.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var seen ports.SeenStore = repo
	if cfg.Storage.RedisAddr != "" {
		client := storage.NewRedisClient(cfg.Storage.RedisAddr)
		a.closers = append(a.closers, client)
		seen = storage.NewSeenCache(client, cfg.Storage.RedisKey, repo, baseLogger.With("component", "seen_cache"))
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var renderer browser.Renderer = browser.NewHTTPRenderer(httpClient)
	if cfg.Browser.Enabled {
		renderer = browser.NewPlaywrightRenderer(cfg.Browser, baseLogger.With("component", "browser"))
	}
	a.closers = append(a.closers, renderer)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewMSNScanner(parser.MSNDeps{
		Renderer:           renderer,
		HTTPClient:         httpClient,
		ImageDir:           cfg.Ingest.ImageDir,
		MaxImages:          cfg.Ingest.MaxImages,
		MaxConcurrentPages: cfg.Browser.MaxConcurrentPages,
		ContinueTimeout:    cfg.Browser.ContinueTimeout,
		SettleDelay:        cfg.Browser.SettleDelay,
		Logger:             baseLogger.With("component", "scanner.msn"),
	}))
	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))

	rewriter := llm.NewDeepSeekClient(cfg.DeepSeek, httpClient, baseLogger.With("component", "deepseek"))

	pollClient := &http.Client{Timeout: cfg.Telegram.PollTimeout + 30*time.Second}
	bot := telegram.NewClient(cfg.Telegram, pollClient, baseLogger.With("component", "telegram"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Seen:       seen,
		Deliveries: repo,
		Rewriter:   rewriter,
		Messenger:  bot,
		Metrics:    a.metrics,
		Logger:     baseLogger.With("component", "pipeline"),
		ChannelID:  cfg.Telegram.ChannelID,
		ImageDir:   cfg.Ingest.ImageDir,
		MaxLength:  cfg.DeepSeek.MaxLength,
		PostDelay:  cfg.Ingest.PostDelay,
	})

	synthesizer, err := a.buildSynthesizer(cfg, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var videoArchive ports.VideoArchive
	if cfg.Archive.Bucket != "" {
		s3Archive, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, err
		}
		videoArchive = s3Archive
	}

	forwarder := usecase.NewForwarder(usecase.ForwarderDeps{
		Deliveries:       repo,
		Messenger:        bot,
		Rewriter:         rewriter,
		Synthesizer:      synthesizer,
		Archive:          videoArchive,
		Social:           socialTargets(cfg.VK, httpClient, baseLogger.With("component", "vk")),
		Metrics:          a.metrics,
		Logger:           baseLogger.With("component", "forwarder"),
		ForwardChannelID: cfg.Telegram.ForwardChannelID,
		FashionChannelID: cfg.Telegram.FashionChannelID,
		FinanceChannelID: cfg.Telegram.FinanceChannelID,
		TmpDir:           cfg.Media.TmpDir,
		PublishDelay:     cfg.VK.PublishDelay,
	})

	a.listener = usecase.NewListener(bot, forwarder, cfg.Telegram.PollTimeout, retry.Default(nil).Delay, baseLogger.With("component", "listener"))

	cron := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "cron"))
	a.scheduler = usecase.NewScheduler(cron, a.pipeline, baseLogger.With("component", "scheduler"))
	a.supervisor = NewSupervisor(cfg.Supervisor, baseLogger.With("component", "supervisor"))

	return a, nil
}

func (a *Application) buildSynthesizer(cfg config.Config, logger *slog.Logger) (ports.Synthesizer, error) {
	if cfg.Speech.FunctionID == "" {
		logger.Warn("speech function id not set, shorts are disabled")
		return nil, nil
	}
	tokens := speech.NewIAMTokenSource(cfg.Speech.IdentityURL, cfg.Speech.FunctionID, cfg.Speech.TokenTTL, &http.Client{Timeout: 15 * time.Second})
	tts, err := speech.NewYandexSynthesizer(cfg.Speech, tokens, logger.With("component", "speech"))
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	a.closers = append(a.closers, tts)
	return media.NewSynthesizer(cfg.Media, tts, logger.With("component", "media")), nil
}

func socialTargets(cfg config.VKConfig, httpClient *http.Client, logger *slog.Logger) map[domain.Category]usecase.SocialTarget {
	targets := map[domain.Category]usecase.SocialTarget{}
	pairs := []struct {
		category domain.Category
		token    string
		group    string
		footer   string
	}{
		{domain.CategoryDefault, cfg.DefaultToken, cfg.DefaultGroupID, cfg.DefaultFooter},
		{domain.CategoryFashion, cfg.FashionToken, cfg.FashionGroupID, cfg.FashionFooter},
	}
	for _, p := range pairs {
		if p.token == "" {
			continue
		}
		targets[p.category] = usecase.SocialTarget{
			Publisher: vk.NewClient(p.token, cfg, httpClient, logger.With("category", string(p.category))),
			GroupID:   p.group,
			Footer:    p.footer,
		}
	}
	return targets
}

// Run supervises the ingestion scheduler, the callback listener and, when
// configured, the status API until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	tasks := []Task{
		{Name: "ingest", Run: a.scheduler.Run},
		{Name: "listener", Run: a.listener.Run},
	}
	if a.cfg.HTTP.Addr != "" {
		router := httpapi.NewRouter(a.supervisor, a.metrics)
		server := httpapi.NewServer(a.cfg.HTTP.Addr, router, a.logger.With("component", "httpapi"))
		tasks = append(tasks, Task{Name: "status_api", Run: server.Run})
	}

	a.logger.Info("news forwarder started", "sources", len(a.cfg.Sources), "cron", a.cfg.Scheduler.CronExpression)
	err := a.supervisor.Run(ctx, tasks...)
	a.logger.Info("news forwarder stopped", "stats", a.metrics.Snapshot())
	return err
}

// RunOnce performs a single ingestion pass.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.pipeline.RunPass(ctx)
}

// Close releases every adapter in reverse construction order.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// InitDB opens the database at cfg.Storage.Path and ensures the schema.
func InitDB(ctx context.Context, cfg config.Config) error {
	repo, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer repo.Close()
	return repo.Init(ctx)
}
