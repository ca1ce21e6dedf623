package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
	"NewsForwarder/pkg/retry"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

var (
	_ ports.Messenger    = (*Client)(nil)
	_ ports.UpdateSource = (*Client)(nil)
)

// NewClient registers the bot token; httpClient may be nil.
func NewClient(cfg config.TelegramConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	base := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &Client{
		token:   cfg.BotToken,
		baseURL: base,
		http:    httpClient,
		policy:  retry.Default(IsRetryable),
		logger:  logger,
	}
}

// WithRetryPolicy replaces the retry policy applied to every call.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// SendPhoto posts a single photo, uploading it when only a local path is known.
func (c *Client) SendPhoto(ctx context.Context, chatID string, photo domain.Media, caption string, opts domain.SendOptions) (domain.SentMessage, error) {
	fields := baseFields(chatID, opts)
	fields["caption"] = caption

	var msg Message
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if photo.FileID != "" {
			fields["photo"] = photo.FileID
			return c.callForm(ctx, "sendPhoto", fields, nil, &msg)
		}
		return c.callForm(ctx, "sendPhoto", fields, []upload{{field: "photo", path: photo.Path}}, &msg)
	})
	if err != nil {
		return domain.SentMessage{}, err
	}
	return msg.toSent(), nil
}

// SendMediaGroup posts an album, captioning only the first item.
func (c *Client) SendMediaGroup(ctx context.Context, chatID string, media []domain.Media, caption string, opts domain.SendOptions) ([]domain.SentMessage, error) {
	if len(media) == 0 {
		return nil, fmt.Errorf("send media group: no media")
	}

	items := make([]inputMediaPhoto, 0, len(media))
	var uploads []upload
	for i, m := range media {
		item := inputMediaPhoto{Type: "photo", Media: m.FileID}
		if m.FileID == "" {
			name := "photo" + strconv.Itoa(i)
			item.Media = "attach://" + name
			uploads = append(uploads, upload{field: name, path: m.Path})
		}
		if i == 0 {
			item.Caption = caption
			item.ParseMode = opts.ParseMode
		}
		items = append(items, item)
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal media: %w", err)
	}
	fields := baseFields(chatID, domain.SendOptions{
		DisableNotification: opts.DisableNotification,
		ReplyTo:             opts.ReplyTo,
	})
	fields["media"] = string(encoded)

	var msgs []Message
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "sendMediaGroup", fields, uploads, &msgs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.SentMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toSent())
	}
	return out, nil
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts domain.SendOptions) (domain.SentMessage, error) {
	fields := baseFields(chatID, opts)
	fields["text"] = text
	if opts.DisablePreview {
		fields["disable_web_page_preview"] = "true"
	}

	var msg Message
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "sendMessage", fields, nil, &msg)
	})
	if err != nil {
		return domain.SentMessage{}, err
	}
	return msg.toSent(), nil
}

// CopyMessage copies messageID from fromChatID into chatID.
func (c *Client) CopyMessage(ctx context.Context, chatID string, fromChatID, messageID int64, opts domain.SendOptions) (int64, error) {
	fields := baseFields(chatID, opts)
	fields["from_chat_id"] = strconv.FormatInt(fromChatID, 10)
	fields["message_id"] = strconv.FormatInt(messageID, 10)

	var out messageRef
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "copyMessage", fields, nil, &out)
	})
	if err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// SendVideo uploads a local video file.
func (c *Client) SendVideo(ctx context.Context, chatID, path, caption string, opts domain.SendOptions) (domain.SentMessage, error) {
	fields := baseFields(chatID, opts)
	fields["caption"] = caption
	fields["supports_streaming"] = "true"

	var msg Message
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "sendVideo", fields, []upload{{field: "video", path: path}}, &msg)
	})
	if err != nil {
		return domain.SentMessage{}, err
	}
	return msg.toSent(), nil
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (domain.RemoteFile, error) {
	var f File
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "getFile", map[string]string{"file_id": fileID}, nil, &f)
	})
	if err != nil {
		return domain.RemoteFile{}, err
	}
	return domain.RemoteFile{FileID: f.FileID, FilePath: f.FilePath, Size: f.FileSize}, nil
}

// FileURL is the public download address of a resolved file path.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimPrefix(filePath, "/"))
}

// DownloadFile stores the remote file at dest, creating parent directories.
func (c *Client) DownloadFile(ctx context.Context, filePath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(filePath), nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("new request: %w", redactToken(err, c.token)))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", redactToken(err, c.token))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: "file", Code: resp.StatusCode, Description: resp.Status}
		}

		out, err := os.Create(dest)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create file: %w", err))
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			return fmt.Errorf("write file: %w", err)
		}
		return out.Close()
	})
}

// AnswerCallback acknowledges a button press with a toast or alert.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	fields := map[string]string{
		"callback_query_id": callbackID,
		"text":              text,
	}
	if alert {
		fields["show_alert"] = "true"
	}
	return c.policy.Do(ctx, func(ctx context.Context) error {
		return c.callForm(ctx, "answerCallbackQuery", fields, nil, nil)
	})
}

// GetUpdates long-polls for callback queries after offset; it is not retried.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]domain.Update, error) {
	fields := map[string]string{
		"timeout":         strconv.Itoa(int(timeout / time.Second)),
		"allowed_updates": `["callback_query"]`,
	}
	if offset > 0 {
		fields["offset"] = strconv.FormatInt(offset, 10)
	}

	var updates []Update
	if err := c.callForm(ctx, "getUpdates", fields, nil, &updates); err != nil {
		return nil, err
	}

	out := make([]domain.Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.toDomain())
	}
	return out, nil
}

type upload struct {
	field string
	path  string
}

func baseFields(chatID string, opts domain.SendOptions) map[string]string {
	fields := map[string]string{"chat_id": chatID}
	if opts.ParseMode != "" {
		fields["parse_mode"] = opts.ParseMode
	}
	if opts.DisableNotification {
		fields["disable_notification"] = "true"
	}
	if opts.ReplyTo != 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(opts.ReplyTo, 10)
	}
	if markup := markupFor(opts.Keyboard); markup != nil {
		encoded, _ := json.Marshal(markup)
		fields["reply_markup"] = string(encoded)
	}
	return fields
}

// callForm posts fields as multipart form data, attaching uploads, and decodes the result into out.
func (c *Client) callForm(ctx context.Context, method string, fields map[string]string, uploads []upload, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return retry.Permanent(fmt.Errorf("write field %s: %w", k, err))
		}
	}
	for _, u := range uploads {
		if err := attach(writer, u); err != nil {
			return retry.Permanent(err)
		}
	}
	if err := writer.Close(); err != nil {
		return retry.Permanent(fmt.Errorf("close multipart: %w", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", redactToken(err, c.token)))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", redactToken(err, c.token))
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: method, Code: resp.StatusCode, Description: resp.Status}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		if c.logger != nil {
			c.logger.Debug("telegram call rejected", "method", method, "code", apiErr.Code, "description", apiErr.Description)
		}
		return apiErr
	}

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func attach(writer *multipart.Writer, u upload) error {
	f, err := os.Open(u.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", u.path, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(u.field, filepath.Base(u.path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", u.path, err)
	}
	return nil
}
