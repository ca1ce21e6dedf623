package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/metrics"
)

const (
	narrationLimit  = 600
	narrationLength = 450
)

func (f *Forwarder) shorts(ctx context.Context, log *slog.Logger, cb domain.Callback, id string, record domain.DeliveryRecord) {
	if f.synthesizer == nil {
		log.Error("shorts synthesizer not configured")
		f.answer(ctx, cb, answerNoConfig, true)
		return
	}

	title := f.title(ctx, log, id, record.Caption)
	text := CaptionText(record.Caption)

	images := f.downloadImages(ctx, log, id, record.AttachmentRefs)
	defer removeAll(log, images)

	if utf8.RuneCountInString(text) > narrationLimit && f.rewriter != nil {
		text = f.rewriter.Rewrite(ctx, text, narrationLength)
	}

	videoPath, ok := f.synthesizer.Synthesize(ctx, id, title, text, images, record.Category)
	if !ok {
		log.Error("shorts synthesis produced nothing")
		f.metrics.Inc(metrics.ShortsFailed)
		f.answer(ctx, cb, answerVideoFailed, true)
		return
	}
	defer removeAll(log, []string{videoPath})

	if err := f.sendVideo(ctx, cb, videoPath, "Shorts: "+title); err != nil {
		log.Error("send shorts failed", "path", videoPath, "error", err)
		f.metrics.Inc(metrics.ShortsFailed)
		f.answer(ctx, cb, answerVideoSendFailed, true)
		return
	}

	if f.archive != nil {
		if key, err := f.archive.Store(ctx, videoPath); err != nil {
			log.Warn("archive shorts failed", "path", videoPath, "error", err)
		} else {
			log.Info("shorts archived", "key", key)
		}
	}

	f.metrics.Inc(metrics.ShortsCreated)
	log.Info("shorts sent", "path", videoPath, "images", len(images))
	f.answer(ctx, cb, answerVideoSent, false)
}

// title prefers the stored header, then the caption headline.
func (f *Forwarder) title(ctx context.Context, log *slog.Logger, id, caption string) string {
	header, found, err := f.deliveries.GetTitle(ctx, id)
	if err != nil {
		log.Warn("load title", "error", err)
	}
	if found && header != "" {
		return header
	}
	return CaptionTitle(caption)
}

func (f *Forwarder) downloadImages(ctx context.Context, log *slog.Logger, id string, fileIDs []string) []string {
	var paths []string
	for idx, fileID := range fileIDs {
		file, err := f.messenger.GetFile(ctx, fileID)
		if err != nil {
			log.Warn("get shorts image", "file", fileID, "error", err)
			continue
		}
		dest := filepath.Join(f.tmpDir, fmt.Sprintf("%s_%d.png", id, idx))
		if err := f.messenger.DownloadFile(ctx, file.FilePath, dest); err != nil {
			log.Warn("download shorts image", "file", fileID, "error", err)
			continue
		}
		paths = append(paths, dest)
	}
	return paths
}

func (f *Forwarder) sendVideo(ctx context.Context, cb domain.Callback, path, caption string) error {
	chatID := fmt.Sprint(cb.ChatID)
	_, err := f.messenger.SendVideo(ctx, chatID, path, caption, domain.SendOptions{ParseMode: domain.ParseModeHTML, DisableNotification: true})
	if errors.Is(err, domain.ErrContentRejected) {
		f.logger.Warn("html video caption rejected, sending plain", "error", err)
		_, err = f.messenger.SendVideo(ctx, chatID, path, caption, domain.SendOptions{DisableNotification: true})
	}
	return err
}

func removeAll(log *slog.Logger, paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("remove file", "path", path, "error", err)
		}
	}
}
