package vk

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// APIError is an error object returned inside a VK API response.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk %s: error %d: %s", e.Method, e.Code, e.Message)
}

// StatusError is a non-200 reply from the API or the upload server.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vk request %s: status %d", e.URL, e.Status)
}

// transient VK error codes: unknown, too many requests, flood control, internal.
var retryableCodes = map[int]bool{1: true, 6: true, 9: true, 10: true}

// IsRetryable reports connection failures, server overload and transient VK error codes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.Code]
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= http.StatusInternalServerError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// redactURL trims transport errors down to scheme and host. Download and
// upload addresses carry credentials in their path or query.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil && u.Host != "" {
			urlErr.URL = u.Scheme + "://" + u.Host + "/..."
		} else {
			urlErr.URL = "<redacted>"
		}
	}
	return err
}
