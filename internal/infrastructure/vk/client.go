package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/ports"
	"NewsForwarder/pkg/retry"
)

const (
	defaultAPIBaseURL = "https://api.vk.com/method"
	defaultAPIVersion = "5.199"
)

// Client publishes to a VK community wall with one access token.
type Client struct {
	token   string
	baseURL string
	version string
	http    *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

var _ ports.SocialPublisher = (*Client)(nil)

// NewClient binds token to the API settings in cfg; httpClient may be nil.
func NewClient(token string, cfg config.VKConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	return &Client{
		token:   token,
		baseURL: base,
		version: version,
		http:    httpClient,
		policy:  retry.Default(IsRetryable),
		logger:  logger,
	}
}

// WithRetryPolicy replaces the retry policy used for uploads and posts.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

type uploadServer struct {
	UploadURL string `json:"upload_url"`
}

type uploadResult struct {
	Server int    `json:"server"`
	Photo  string `json:"photo"`
	Hash   string `json:"hash"`
}

type savedPhoto struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
}

type postResult struct {
	PostID int64 `json:"post_id"`
}

// UploadPhoto copies the photo at photoURL into the group and returns its attachment reference.
func (c *Client) UploadPhoto(ctx context.Context, groupID int64, photoURL string) (string, error) {
	return retry.Value(ctx, c.policy, func(ctx context.Context) (string, error) {
		var server uploadServer
		params := url.Values{"group_id": {strconv.FormatInt(abs(groupID), 10)}}
		if err := c.call(ctx, "photos.getMessagesUploadServer", params, &server); err != nil {
			return "", err
		}

		data, err := c.download(ctx, photoURL)
		if err != nil {
			return "", err
		}

		uploaded, err := c.upload(ctx, server.UploadURL, data)
		if err != nil {
			return "", err
		}

		var saved []savedPhoto
		params = url.Values{
			"server": {strconv.Itoa(uploaded.Server)},
			"photo":  {uploaded.Photo},
			"hash":   {uploaded.Hash},
		}
		if err := c.call(ctx, "photos.saveMessagesPhoto", params, &saved); err != nil {
			return "", err
		}
		if len(saved) == 0 {
			return "", retry.Permanent(fmt.Errorf("vk photos.saveMessagesPhoto: empty response"))
		}
		return fmt.Sprintf("photo%d_%d", saved[0].OwnerID, saved[0].ID), nil
	})
}

// SchedulePost queues a wall post on the group that goes live at publishAt.
func (c *Client) SchedulePost(ctx context.Context, groupID int64, message string, attachments []string, publishAt time.Time) (int64, error) {
	params := url.Values{
		"owner_id":       {strconv.FormatInt(-abs(groupID), 10)},
		"from_group":     {"1"},
		"message":        {message},
		"close_comments": {"1"},
		"publish_date":   {strconv.FormatInt(publishAt.Unix(), 10)},
	}
	if len(attachments) > 0 {
		params.Set("attachments", strings.Join(attachments, ","))
	}

	return retry.Value(ctx, c.policy, func(ctx context.Context) (int64, error) {
		var res postResult
		if err := c.call(ctx, "wall.post", params, &res); err != nil {
			return 0, err
		}
		return res.PostID, nil
	})
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", c.token)
	form.Set("v", c.version)

	endpoint := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: endpoint, Status: resp.StatusCode}
	}

	var env struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	if env.Error != nil {
		if c.logger != nil {
			c.logger.Debug("vk call failed", "method", method, "code", env.Error.Code, "message", env.Error.Message)
		}
		return &APIError{Method: method, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, photoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("new request: %w", redactURL(err)))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: "photo", Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

func (c *Client) upload(ctx context.Context, uploadURL string, data []byte) (uploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		return uploadResult{}, retry.Permanent(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return uploadResult{}, retry.Permanent(fmt.Errorf("write form file: %w", err))
	}
	if err := writer.Close(); err != nil {
		return uploadResult{}, retry.Permanent(fmt.Errorf("close multipart: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return uploadResult{}, retry.Permanent(fmt.Errorf("new request: %w", redactURL(err)))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return uploadResult{}, fmt.Errorf("upload photo: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return uploadResult{}, &StatusError{URL: "upload", Status: resp.StatusCode}
	}

	var res uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return uploadResult{}, fmt.Errorf("decode upload: %w", err)
	}
	if res.Photo == "" || res.Photo == "[]" {
		return uploadResult{}, retry.Permanent(fmt.Errorf("upload photo: server returned no photo"))
	}
	return res, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
