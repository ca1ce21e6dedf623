package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/metrics"
	"NewsForwarder/internal/ports"
)

const (
	stagedImageSlots = 10
	controlsText     = "Действия с публикацией"
)

// PipelineDeps wires all driven adapters into the publish pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Seen       ports.SeenStore
	Deliveries ports.DeliveryStore
	Rewriter   ports.Rewriter
	Messenger  ports.Messenger
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	ChannelID string
	ImageDir  string
	MaxLength int
	PostDelay time.Duration
}

// Pipeline implements the ingest-and-publish workflow.
type Pipeline struct {
	source     ports.ArticleSource
	seen       ports.SeenStore
	deliveries ports.DeliveryStore
	rewriter   ports.Rewriter
	messenger  ports.Messenger
	metrics    *metrics.Metrics
	logger     *slog.Logger

	channelID string
	imageDir  string
	maxLength int
	postDelay time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	maxLength := deps.MaxLength
	if maxLength <= 0 {
		maxLength = RewriteLength
	}
	return &Pipeline{
		source:     deps.Source,
		seen:       deps.Seen,
		deliveries: deps.Deliveries,
		rewriter:   deps.Rewriter,
		messenger:  deps.Messenger,
		metrics:    deps.Metrics,
		logger:     logger,
		channelID:  deps.ChannelID,
		imageDir:   deps.ImageDir,
		maxLength:  maxLength,
		postDelay:  deps.PostDelay,
	}
}

// RunPass walks every configured source in order and publishes unseen articles.
func (p *Pipeline) RunPass(ctx context.Context) error {
	if p.source == nil {
		return nil
	}

	started := time.Now()
	defer func() { p.metrics.RecordPass(started, time.Since(started)) }()

	for _, site := range p.source.Sites() {
		if err := ctx.Err(); err != nil {
			return err
		}

		articles, err := p.source.FetchSite(ctx, site)
		if err != nil {
			p.logger.Error("source failed", "site", site.Name, "error", err)
			p.metrics.Inc(metrics.SourceFailures)
			p.metrics.SetError(err)
			continue
		}
		p.metrics.Add(metrics.ArticlesScanned, int64(len(articles)))

		for _, article := range articles {
			published, err := p.Publish(ctx, article)
			if err != nil {
				p.logger.Error("publish failed", "id", article.ID, "site", site.Name, "error", err)
				p.metrics.Inc(metrics.PublishFailures)
				p.metrics.SetError(err)
			}
			if !published {
				continue
			}
			if err := wait(ctx, p.postDelay); err != nil {
				return err
			}
		}
	}

	p.logger.Info("pass finished", "duration", time.Since(started))
	return nil
}

// Publish posts a single article unless it was seen before. published is
// true once the post reached the channel, even if persisting its delivery failed.
func (p *Pipeline) Publish(ctx context.Context, article domain.Article) (published bool, err error) {
	id := domain.NormalizeID(article.ID)
	defer p.removeStaged(id, article.ImagePaths)

	seen, err := p.seen.HasSeen(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check seen %s: %w", id, err)
	}
	if seen {
		p.logger.Debug("article already seen", "id", id)
		p.metrics.Inc(metrics.DuplicatesSkipped)
		return false, nil
	}

	// at-most-once: the id is recorded before anything leaves the process
	if err := p.seen.MarkSeen(ctx, id, article.Header); err != nil {
		return false, fmt.Errorf("mark seen %s: %w", id, err)
	}

	text := article.Header + "\n\n" + article.Body
	if p.rewriter != nil {
		text = p.rewriter.Rewrite(ctx, text, p.maxLength)
	}
	caption := TruncateCaption(BuildCaption(text))

	images := existing(article.ImagePaths)
	kb := Keyboard(id, article.Category)

	sent, err := p.send(ctx, caption, images, kb)
	if err != nil {
		return false, fmt.Errorf("send %s: %w", id, err)
	}

	record := domain.DeliveryRecord{ID: id, Caption: caption, Category: article.Category}
	for _, msg := range sent {
		record.MessageRefs = append(record.MessageRefs, msg.MessageID)
		if msg.PhotoFileID != "" {
			record.AttachmentRefs = append(record.AttachmentRefs, msg.PhotoFileID)
		}
	}

	p.metrics.Inc(metrics.ArticlesPublished)
	p.logger.Info("article published", "id", id, "source", article.Source, "images", len(images), "messages", len(record.MessageRefs))

	if err := p.deliveries.PutDelivery(ctx, record); err != nil {
		return true, fmt.Errorf("save delivery %s: %w", id, err)
	}
	return true, nil
}

func (p *Pipeline) send(ctx context.Context, caption string, images []string, kb domain.Keyboard) ([]domain.SentMessage, error) {
	switch {
	case len(images) == 1:
		var msg domain.SentMessage
		err := p.withFallback(caption, func(text, mode string) (err error) {
			msg, err = p.messenger.SendPhoto(ctx, p.channelID, domain.Media{Path: images[0]}, text, domain.SendOptions{ParseMode: mode, Keyboard: kb})
			return err
		})
		return []domain.SentMessage{msg}, err

	case len(images) > 1:
		media := make([]domain.Media, len(images))
		for i, path := range images {
			media[i] = domain.Media{Path: path}
		}
		var msgs []domain.SentMessage
		err := p.withFallback(caption, func(text, mode string) (err error) {
			msgs, err = p.messenger.SendMediaGroup(ctx, p.channelID, media, text, domain.SendOptions{ParseMode: mode})
			return err
		})
		if err != nil {
			return nil, err
		}
		p.sendControls(ctx, msgs, kb)
		return msgs, nil

	default:
		var msg domain.SentMessage
		err := p.withFallback(caption, func(text, mode string) (err error) {
			msg, err = p.messenger.SendMessage(ctx, p.channelID, text, domain.SendOptions{ParseMode: mode, Keyboard: kb, DisablePreview: true})
			return err
		})
		return []domain.SentMessage{msg}, err
	}
}

// sendControls carries the keyboard of an album, which cannot hold one itself.
func (p *Pipeline) sendControls(ctx context.Context, album []domain.SentMessage, kb domain.Keyboard) {
	opts := domain.SendOptions{Keyboard: kb, DisableNotification: true}
	if len(album) > 0 {
		opts.ReplyTo = album[0].MessageID
	}
	if _, err := p.messenger.SendMessage(ctx, p.channelID, controlsText, opts); err != nil {
		p.logger.Warn("controls message failed", "error", err)
		p.metrics.Inc(metrics.ControlFailures)
	}
}

// withFallback sends the HTML caption and, when the surface rejects it, the plain one.
func (p *Pipeline) withFallback(caption string, send func(text, parseMode string) error) error {
	err := send(caption, domain.ParseModeHTML)
	if !errors.Is(err, domain.ErrContentRejected) {
		return err
	}
	p.logger.Warn("html caption rejected, sending plain text", "error", err)
	p.metrics.Inc(metrics.PlainFallbacks)
	return send(PlainCaption(caption), "")
}

func (p *Pipeline) removeStaged(id string, paths []string) {
	targets := append([]string(nil), paths...)
	if p.imageDir != "" {
		for j := 0; j < stagedImageSlots; j++ {
			targets = append(targets, filepath.Join(p.imageDir, fmt.Sprintf("%s_%d.png", id, j)))
		}
	}
	for _, path := range targets {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("remove staged image", "path", path, "error", err)
		}
	}
}

func existing(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			out = append(out, path)
		}
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
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
