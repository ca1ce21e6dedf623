package ports

import (
	"context"
	"io"
	"time"

	"NewsForwarder/internal/domain"
)

// SourceSite is one configured listing page handed to the connector.
type SourceSite struct {
	Name             string
	Scanner          string
	ListingURL       string
	Category         domain.Category
	KeepInlineMarkup bool
}

// ArticleSource pulls fresh articles from a single listing page.
type ArticleSource interface {
	Sites() []SourceSite
	FetchSite(ctx context.Context, site SourceSite) ([]domain.Article, error)
}

// SeenStore records which article ids were already ingested.
type SeenStore interface {
	HasSeen(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id, title string) error
}

// DeliveryStore persists where an article was published.
type DeliveryStore interface {
	PutDelivery(ctx context.Context, record domain.DeliveryRecord) error
	GetDelivery(ctx context.Context, id string) (domain.DeliveryRecord, bool, error)
	GetTitle(ctx context.Context, id string) (string, bool, error)
}

// Rewriter shortens or translates article text; it never fails and falls back to the input.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, maxLength int) string
}

// Messenger is the bot-messaging surface used for posting and forwarding.
type Messenger interface {
	SendPhoto(ctx context.Context, chatID string, photo domain.Media, caption string, opts domain.SendOptions) (domain.SentMessage, error)
	SendMediaGroup(ctx context.Context, chatID string, media []domain.Media, caption string, opts domain.SendOptions) ([]domain.SentMessage, error)
	SendMessage(ctx context.Context, chatID, text string, opts domain.SendOptions) (domain.SentMessage, error)
	CopyMessage(ctx context.Context, chatID string, fromChatID, messageID int64, opts domain.SendOptions) (int64, error)
	SendVideo(ctx context.Context, chatID, path, caption string, opts domain.SendOptions) (domain.SentMessage, error)
	GetFile(ctx context.Context, fileID string) (domain.RemoteFile, error)
	FileURL(filePath string) string
	DownloadFile(ctx context.Context, filePath, dest string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// UpdateSource long-polls the messaging surface for control activations.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]domain.Update, error)
}

// SocialPublisher uploads photos and schedules posts on the social network.
type SocialPublisher interface {
	UploadPhoto(ctx context.Context, groupID int64, photoURL string) (string, error)
	SchedulePost(ctx context.Context, groupID int64, message string, attachments []string, publishAt time.Time) (int64, error)
}

// Synthesizer produces a short video; ok is false when nothing was produced.
type Synthesizer interface {
	Synthesize(ctx context.Context, id, title, text string, imagePaths []string, category domain.Category) (string, bool)
}

// SpeechSynthesizer turns narration text into a WAV stream.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, out io.Writer) error
}

// VideoArchive stores generated videos outside the staging area.
type VideoArchive interface {
	Store(ctx context.Context, path string) (string, error)
}

// Scheduler controls when ingestion passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
