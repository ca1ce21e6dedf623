package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
)

var errRejected = fmt.Errorf("telegram sendPhoto: 400 can't parse entities: %w", domain.ErrContentRejected)

type fakeSource struct {
	sites    []ports.SourceSite
	articles map[string][]domain.Article
	errs     map[string]error
}

func (f *fakeSource) Sites() []ports.SourceSite { return f.sites }

func (f *fakeSource) FetchSite(_ context.Context, site ports.SourceSite) ([]domain.Article, error) {
	if err := f.errs[site.Name]; err != nil {
		return nil, err
	}
	return f.articles[site.Name], nil
}

type memStore struct {
	mu         sync.Mutex
	seen       map[string]string
	deliveries map[string]domain.DeliveryRecord
}

func newMemStore() *memStore {
	return &memStore{seen: map[string]string{}, deliveries: map[string]domain.DeliveryRecord{}}
}

func (m *memStore) HasSeen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[domain.NormalizeID(id)]
	return ok, nil
}

func (m *memStore) MarkSeen(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[domain.NormalizeID(id)] = title
	return nil
}

func (m *memStore) PutDelivery(_ context.Context, r domain.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[r.ID] = r
	return nil
}

func (m *memStore) GetDelivery(_ context.Context, id string) (domain.DeliveryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.deliveries[domain.NormalizeID(id)]
	return r, ok, nil
}

func (m *memStore) GetTitle(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.seen[domain.NormalizeID(id)]
	return t, ok, nil
}

type fakeRewriter struct {
	mu    sync.Mutex
	calls []int
	out   func(text string) string
}

func (f *fakeRewriter) Rewrite(_ context.Context, text string, maxLength int) string {
	f.mu.Lock()
	f.calls = append(f.calls, maxLength)
	f.mu.Unlock()
	if f.out != nil {
		return f.out(text)
	}
	return text
}

type sentCall struct {
	Method  string
	ChatID  string
	Caption string
	Media   []domain.Media
	Opts    domain.SendOptions
	From    int64
	Message int64
}

type answer struct {
	Text  string
	Alert bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	calls   []sentCall
	answers []answer
	nextID  int64

	// rejectHTML makes every send with a parse mode fail as a content rejection.
	rejectHTML bool
	failMethod map[string]error
}

func (f *fakeMessenger) record(method, chatID, caption string, media []domain.Media, opts domain.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{Method: method, ChatID: chatID, Caption: caption, Media: media, Opts: opts})
	if err := f.failMethod[method]; err != nil {
		return err
	}
	if f.rejectHTML && opts.ParseMode != "" {
		return errRejected
	}
	return nil
}

func (f *fakeMessenger) id() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return 100 + f.nextID
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID string, photo domain.Media, caption string, opts domain.SendOptions) (domain.SentMessage, error) {
	if err := f.record("sendPhoto", chatID, caption, []domain.Media{photo}, opts); err != nil {
		return domain.SentMessage{}, err
	}
	id := f.id()
	return domain.SentMessage{MessageID: id, PhotoFileID: fmt.Sprintf("file-%d", id)}, nil
}

func (f *fakeMessenger) SendMediaGroup(_ context.Context, chatID string, media []domain.Media, caption string, opts domain.SendOptions) ([]domain.SentMessage, error) {
	if err := f.record("sendMediaGroup", chatID, caption, media, opts); err != nil {
		return nil, err
	}
	out := make([]domain.SentMessage, len(media))
	for i := range media {
		id := f.id()
		out[i] = domain.SentMessage{MessageID: id, PhotoFileID: fmt.Sprintf("file-%d", id)}
	}
	return out, nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID, text string, opts domain.SendOptions) (domain.SentMessage, error) {
	if err := f.record("sendMessage", chatID, text, nil, opts); err != nil {
		return domain.SentMessage{}, err
	}
	return domain.SentMessage{MessageID: f.id()}, nil
}

func (f *fakeMessenger) CopyMessage(_ context.Context, chatID string, fromChatID, messageID int64, opts domain.SendOptions) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{Method: "copyMessage", ChatID: chatID, From: fromChatID, Message: messageID, Opts: opts})
	err := f.failMethod["copyMessage"]
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.id(), nil
}

func (f *fakeMessenger) SendVideo(_ context.Context, chatID, path, caption string, opts domain.SendOptions) (domain.SentMessage, error) {
	if err := f.record("sendVideo", chatID, caption, []domain.Media{{Path: path}}, opts); err != nil {
		return domain.SentMessage{}, err
	}
	return domain.SentMessage{MessageID: f.id()}, nil
}

func (f *fakeMessenger) GetFile(_ context.Context, fileID string) (domain.RemoteFile, error) {
	if err := f.failMethod["getFile:"+fileID]; err != nil {
		return domain.RemoteFile{}, err
	}
	return domain.RemoteFile{FileID: fileID, FilePath: "photos/" + fileID + ".jpg"}, nil
}

func (f *fakeMessenger) FileURL(filePath string) string {
	return "https://files.test/" + filePath
}

func (f *fakeMessenger) DownloadFile(_ context.Context, filePath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(filePath), 0o644)
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{Text: text, Alert: alert})
	return nil
}

func (f *fakeMessenger) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

func (f *fakeMessenger) gotAnswers() []answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]answer(nil), f.answers...)
}

func (f *fakeMessenger) callsTo(method string) []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type fakePublisher struct {
	mu          sync.Mutex
	uploads     []string
	failUploads map[string]bool
	posts       []fakePost
	postErr     error
}

type fakePost struct {
	GroupID     int64
	Message     string
	Attachments []string
	PublishAt   time.Time
}

func (f *fakePublisher) UploadPhoto(_ context.Context, groupID int64, photoURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, photoURL)
	if f.failUploads[photoURL] {
		return "", errors.New("upload server unavailable")
	}
	return fmt.Sprintf("photo-%d_%d", groupID, len(f.uploads)), nil
}

func (f *fakePublisher) SchedulePost(_ context.Context, groupID int64, message string, attachments []string, publishAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, fakePost{GroupID: groupID, Message: message, Attachments: attachments, PublishAt: publishAt})
	if f.postErr != nil {
		return 0, f.postErr
	}
	return 77, nil
}

type fakeSynth struct {
	id, title, text string
	images          []string
	imagesExisted   bool
	outDir          string
	fail            bool
}

func (f *fakeSynth) Synthesize(_ context.Context, id, title, text string, images []string, _ domain.Category) (string, bool) {
	f.id, f.title, f.text, f.images = id, title, text, images
	f.imagesExisted = true
	for _, p := range images {
		if _, err := os.Stat(p); err != nil {
			f.imagesExisted = false
		}
	}
	if f.fail {
		return "", false
	}
	path := filepath.Join(f.outDir, id+"_shorts.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		return "", false
	}
	return path, true
}

type fakeArchive struct {
	stored []string
}

func (f *fakeArchive) Store(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	f.stored = append(f.stored, filepath.Base(path))
	return "shorts/" + filepath.Base(path), nil
}
