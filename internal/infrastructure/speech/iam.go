package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultIdentityURL = "https://functions.yandexcloud.net"

// IAMTokenSource fetches short-lived IAM tokens from a cloud function and caches them.
type IAMTokenSource struct {
	baseURL    string
	functionID string
	ttl        time.Duration
	client     *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewIAMTokenSource targets baseURL/functionID; ttl bounds how long a token is reused.
func NewIAMTokenSource(baseURL, functionID string, ttl time.Duration, client *http.Client) *IAMTokenSource {
	if baseURL == "" {
		baseURL = defaultIdentityURL
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &IAMTokenSource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		functionID: functionID,
		ttl:        ttl,
		client:     client,
		now:        time.Now,
	}
}

// Token returns the cached token or requests a new one.
func (s *IAMTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}
	if s.functionID == "" {
		return "", fmt.Errorf("iam token: function id not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+s.functionID, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("iam token: unexpected status %s", resp.Status)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode iam token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("iam token: empty access_token")
	}

	s.token = payload.AccessToken
	s.expiresAt = s.now().Add(s.ttl)
	return s.token, nil
}
