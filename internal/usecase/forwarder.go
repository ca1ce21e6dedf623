package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/metrics"
	"NewsForwarder/internal/ports"
)

const minIDLength = 5

// Answers shown to whoever pressed a control.
const (
	answerBadID           = "Ошибка: некорректный ID"
	answerNoChannel       = "Ошибка: канал не настроен"
	answerNoConfig        = "Ошибка: конфигурация не настроена"
	answerBadSocialConfig = "Ошибка: неверная конфигурация VK"
	answerNoData          = "Ошибка: данные отсутствуют"
	answerForwarded       = "Сообщение переслано!"
	answerForwardFailed   = "Ошибка при пересылке"
	answerPublished       = "Сообщение переслано и опубликовано в VK!"
	answerSocialFailed    = "Переслано, но ошибка в VK!"
	answerProcessFailed   = "Ошибка при обработке"
	answerVideoFailed     = "Ошибка при создания видео"
	answerVideoSent       = "Видео создано и отправлено"
	answerVideoSendFailed = "Ошибка при отправке видео"
)

// SocialTarget is the social group a category is published to.
type SocialTarget struct {
	Publisher ports.SocialPublisher
	GroupID   string
	Footer    string
}

// ForwarderDeps wires the adapters used by the control handlers.
type ForwarderDeps struct {
	Deliveries  ports.DeliveryStore
	Messenger   ports.Messenger
	Rewriter    ports.Rewriter
	Synthesizer ports.Synthesizer
	Archive     ports.VideoArchive
	Social      map[domain.Category]SocialTarget
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	ForwardChannelID string
	FashionChannelID string
	FinanceChannelID string
	TmpDir           string
	PublishDelay     time.Duration
	Now              func() time.Time
}

// Forwarder reacts to the inline controls of published articles.
type Forwarder struct {
	deliveries  ports.DeliveryStore
	messenger   ports.Messenger
	rewriter    ports.Rewriter
	synthesizer ports.Synthesizer
	archive     ports.VideoArchive
	social      map[domain.Category]SocialTarget
	metrics     *metrics.Metrics
	logger      *slog.Logger

	forwardChannel string
	fashionChannel string
	financeChannel string
	tmpDir         string
	publishDelay   time.Duration
	now            func() time.Time
}

// NewForwarder constructs the control dispatcher.
func NewForwarder(deps ForwarderDeps) *Forwarder {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tmp := deps.TmpDir
	if tmp == "" {
		tmp = "tmp"
	}
	delay := deps.PublishDelay
	if delay <= 0 {
		delay = 10 * time.Minute
	}
	return &Forwarder{
		deliveries:     deps.Deliveries,
		messenger:      deps.Messenger,
		rewriter:       deps.Rewriter,
		synthesizer:    deps.Synthesizer,
		archive:        deps.Archive,
		social:         deps.Social,
		metrics:        deps.Metrics,
		logger:         logger,
		forwardChannel: deps.ForwardChannelID,
		fashionChannel: deps.FashionChannelID,
		financeChannel: deps.FinanceChannelID,
		tmpDir:         tmp,
		publishDelay:   delay,
		now:            now,
	}
}

// Handle resolves one activation. Every recognised payload is answered exactly once.
func (f *Forwarder) Handle(ctx context.Context, cb domain.Callback) {
	ctl, ok := ParseControl(cb.Data)
	if !ok {
		f.logger.Debug("ignoring unknown callback", "data", cb.Data)
		return
	}
	f.metrics.Inc(metrics.CallbacksHandled)
	log := f.logger.With("action", ctl.Action.String(), "id", ctl.ID)
	log.Info("control activated", "user", cb.UserID)

	if utf8.RuneCountInString(ctl.ID) < minIDLength {
		log.Warn("short id in callback", "data", cb.Data)
		f.answer(ctx, cb, answerBadID, true)
		return
	}

	record, found, err := f.deliveries.GetDelivery(ctx, ctl.ID)
	if err != nil {
		log.Error("load delivery", "error", err)
		f.answer(ctx, cb, failureAnswer(ctl.Action), true)
		return
	}
	if !found {
		log.Warn("delivery record missing")
		f.answer(ctx, cb, answerNoData, true)
		return
	}
	record.Category = domain.ParseCategory(string(record.Category))

	switch ctl.Action {
	case ActionForward:
		f.forward(ctx, log, cb, record)
	case ActionForwardSocial:
		f.forwardSocial(ctx, log, cb, record)
	case ActionShorts:
		f.shorts(ctx, log, cb, ctl.ID, record)
	}
}

func (f *Forwarder) forward(ctx context.Context, log *slog.Logger, cb domain.Callback, record domain.DeliveryRecord) {
	target := f.forwardChannel
	if record.Category == domain.CategoryFashion {
		target = f.fashionChannel
	}
	if target == "" {
		log.Error("forward channel not configured", "category", record.Category)
		f.answer(ctx, cb, answerNoChannel, true)
		return
	}

	if err := f.copyToChannel(ctx, target, cb, record); err != nil {
		log.Error("forward failed", "target", target, "error", err)
		f.metrics.Inc(metrics.ForwardFailures)
		f.answer(ctx, cb, answerForwardFailed, true)
		return
	}
	f.metrics.Inc(metrics.Forwards)
	log.Info("forwarded", "target", target)
	f.answer(ctx, cb, answerForwarded, false)
}

func (f *Forwarder) forwardSocial(ctx context.Context, log *slog.Logger, cb domain.Callback, record domain.DeliveryRecord) {
	target := f.financeChannel
	if record.Category == domain.CategoryFashion {
		target = f.fashionChannel
	}
	social, ok := f.social[record.Category]
	if target == "" || !ok || social.Publisher == nil || social.GroupID == "" {
		log.Error("social forwarding not configured", "category", record.Category)
		f.answer(ctx, cb, answerNoConfig, true)
		return
	}
	groupID, err := strconv.ParseInt(strings.TrimSpace(social.GroupID), 10, 64)
	if err != nil {
		log.Error("invalid social group id", "group", social.GroupID, "error", err)
		f.answer(ctx, cb, answerBadSocialConfig, true)
		return
	}

	if err := f.copyToChannel(ctx, target, cb, record); err != nil {
		log.Error("forward failed", "target", target, "error", err)
		f.metrics.Inc(metrics.ForwardFailures)
		f.answer(ctx, cb, answerProcessFailed, true)
		return
	}
	f.metrics.Inc(metrics.Forwards)

	caption := record.Caption
	if social.Footer != "" {
		caption += "\n\n" + social.Footer
	}
	message := SocialCaption(caption)

	var attachments []string
	for _, fileID := range record.AttachmentRefs {
		ref, err := f.uploadAttachment(ctx, social.Publisher, groupID, fileID)
		if err != nil {
			log.Error("social photo upload failed", "file", fileID, "error", err)
			continue
		}
		attachments = append(attachments, ref)
	}

	postID, err := social.Publisher.SchedulePost(ctx, groupID, message, attachments, f.now().Add(f.publishDelay))
	if err != nil {
		log.Error("social post failed", "group", groupID, "error", err)
		f.metrics.Inc(metrics.SocialFailures)
		f.answer(ctx, cb, answerSocialFailed, true)
		return
	}
	f.metrics.Inc(metrics.SocialPosts)
	log.Info("social post scheduled", "group", groupID, "post", postID, "attachments", len(attachments))
	f.answer(ctx, cb, answerPublished, false)
}

func (f *Forwarder) uploadAttachment(ctx context.Context, publisher ports.SocialPublisher, groupID int64, fileID string) (string, error) {
	file, err := f.messenger.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	return publisher.UploadPhoto(ctx, groupID, f.messenger.FileURL(file.FilePath))
}

// copyToChannel re-sends an album by file id or copies the single primary message.
func (f *Forwarder) copyToChannel(ctx context.Context, target string, cb domain.Callback, record domain.DeliveryRecord) error {
	if len(record.AttachmentRefs) > 0 {
		media := make([]domain.Media, len(record.AttachmentRefs))
		for i, fileID := range record.AttachmentRefs {
			media[i] = domain.Media{FileID: fileID}
		}
		send := func(caption, mode string) error {
			_, err := f.messenger.SendMediaGroup(ctx, target, media, caption, domain.SendOptions{ParseMode: mode, DisableNotification: true})
			return err
		}
		err := send(record.Caption, domain.ParseModeHTML)
		if errors.Is(err, domain.ErrContentRejected) {
			f.logger.Warn("html caption rejected, forwarding plain text", "id", record.ID, "error", err)
			f.metrics.Inc(metrics.PlainFallbacks)
			err = send(PlainCaption(record.Caption), "")
		}
		return err
	}

	if len(record.MessageRefs) == 0 {
		return fmt.Errorf("delivery %s has no messages", record.ID)
	}
	send := func(mode string) error {
		_, err := f.messenger.CopyMessage(ctx, target, cb.ChatID, record.MessageRefs[0], domain.SendOptions{ParseMode: mode, DisableNotification: true})
		return err
	}
	err := send(domain.ParseModeHTML)
	if errors.Is(err, domain.ErrContentRejected) {
		f.logger.Warn("copy rejected, retrying without parse mode", "id", record.ID, "error", err)
		f.metrics.Inc(metrics.PlainFallbacks)
		err = send("")
	}
	return err
}

func (f *Forwarder) answer(ctx context.Context, cb domain.Callback, text string, alert bool) {
	if err := f.messenger.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		f.logger.Warn("answer callback", "callback", cb.ID, "error", err)
	}
}

func failureAnswer(a Action) string {
	switch a {
	case ActionForward:
		return answerForwardFailed
	case ActionShorts:
		return answerVideoFailed
	}
	return answerProcessFailed
}
