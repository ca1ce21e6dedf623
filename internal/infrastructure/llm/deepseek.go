package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/ports"
)

const (
	defaultMaxLength = 980
	shortenStep      = 100
)

// DeepSeekClient implements ports.Rewriter against an OpenAI-compatible chat endpoint.
type DeepSeekClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

var _ ports.Rewriter = (*DeepSeekClient)(nil)

// NewDeepSeekClient builds a client from configuration.
func NewDeepSeekClient(cfg config.DeepSeekConfig, httpClient *http.Client, logger *slog.Logger) *DeepSeekClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpClient

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 750
	}

	return &DeepSeekClient{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Rewrite returns a short Telegram-style variant of text within maxLength runes.
// An overflowing answer gets exactly one corrective request; any failure yields the input text.
func (c *DeepSeekClient) Rewrite(ctx context.Context, text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	rewritten, err := c.complete(ctx, rewritePrompt(text, maxLength))
	if err != nil {
		c.warn("rewrite failed, keeping original text", "error", err)
		return text
	}

	if length := utf8.RuneCountInString(rewritten); length > maxLength {
		c.debug("rewrite overflow, asking to shorten", "length", length, "max", maxLength)
		shorter, err := c.complete(ctx, shortenPrompt(rewritten, maxLength-shortenStep))
		if err != nil {
			c.warn("shorten failed, keeping first rewrite", "error", err)
			return rewritten
		}
		rewritten = shorter
	}

	return rewritten
}

func (c *DeepSeekClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func rewritePrompt(text string, maxLength int) string {
	return fmt.Sprintf(
		"Перепиши текст в кратком стиле для Telegram. Один вариант на русском языке, без Markdown, HTML, эмодзи, рекламы, ссылок. "+
			"Формат: заголовок, пустая строка, текст с абзацами. Макс. длина: %d символов: %s",
		maxLength, text)
}

func shortenPrompt(text string, target int) string {
	return fmt.Sprintf(
		"Сократи текст до %d символов, сохранив информацию, не указывай итоговое количество символов либо иную постороннюю информацию. "+
			"Формат: заголовок, пустая строка, текст: %s",
		target, text)
}

func (c *DeepSeekClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *DeepSeekClient) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
