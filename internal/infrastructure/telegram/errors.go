package telegram

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"NewsForwarder/internal/domain"
)

// APIError is a Bot API failure reported through the response envelope or status line.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Is maps 400 rejections to domain.ErrContentRejected and 401 to domain.ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrContentRejected:
		return e.Code == http.StatusBadRequest
	case domain.ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	}
	return false
}

// IsRetryable reports transient transport or server-side failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsUnauthorized reports an invalid or revoked bot token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}

// redactToken scrubs the bot token from the request URL carried by transport errors.
func redactToken(err error, token string) error {
	var urlErr *url.Error
	if token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, token, "<token>")
	}
	return err
}
