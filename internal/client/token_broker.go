package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	mdmerrors "github.com/david-crosby/Jamf-Monitor/internal/errors"
	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"go.uber.org/zap"
)

// TokenBroker owns the Jamf Pro credential exchange. It holds at most one
// access token and guarantees that at most one exchange is in flight at any
// time: concurrent callers block on the mutex and reuse the refreshed token
// instead of each triggering their own exchange.
type TokenBroker struct {
	baseURL      string
	clientID     string
	clientSecret string
	gracePeriod  time.Duration
	httpClient   *http.Client
	metrics      *metrics.Metrics
	logger       *zap.Logger

	mu          chan struct{} // held across the exchange; see Token
	token       string
	tokenExpiry time.Time

	// testable clock
	now func() time.Time
}

// NewTokenBroker creates a new token broker
func NewTokenBroker(baseURL, clientID, clientSecret string, gracePeriod time.Duration, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *TokenBroker {
	if gracePeriod == 0 {
		gracePeriod = 5 * time.Minute
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	b := &TokenBroker{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		gracePeriod:  gracePeriod,
		httpClient:   httpClient,
		metrics:      m,
		logger:       logger,
		mu:           make(chan struct{}, 1),
		now:          time.Now,
	}
	b.mu <- struct{}{}
	return b
}

// Token returns a valid access token, refreshing it first when the cached
// one is missing or within the grace period of its expiry. The internal gate
// is a buffered channel rather than a sync.Mutex so waiting callers can
// still honor context cancellation.
func (b *TokenBroker) Token(ctx context.Context) (string, error) {
	select {
	case <-b.mu:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { b.mu <- struct{}{} }()

	if b.token != "" && b.now().Before(b.tokenExpiry.Add(-b.gracePeriod)) {
		return b.token, nil
	}

	token, expiry, err := b.exchange(ctx)
	if err != nil {
		b.recordRefresh("error")
		// Never cache a partial token
		return "", err
	}
	b.recordRefresh("success")

	b.token = token
	b.tokenExpiry = expiry
	b.logger.Debug("Refreshed Jamf access token", zap.Time("expires_at", expiry))
	return b.token, nil
}

// Invalidate drops the cached token so the next call forces a fresh
// exchange. Consumers call this after the upstream rejects a token.
func (b *TokenBroker) Invalidate() {
	<-b.mu
	defer func() { b.mu <- struct{}{} }()

	b.token = ""
	b.tokenExpiry = time.Time{}
}

func (b *TokenBroker) recordRefresh(outcome string) {
	if b.metrics != nil {
		b.metrics.RecordTokenRefresh(outcome)
	}
}

func (b *TokenBroker) exchange(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("client_id", b.clientID)
	form.Set("client_secret", b.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Error("Credential exchange transport failure", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("%w: %v", mdmerrors.ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Error("Credential exchange rejected",
			zap.Int("status", resp.StatusCode))
		return "", time.Time{}, fmt.Errorf("%w: status %d", mdmerrors.ErrAuthUnavailable, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: malformed token response: %v", mdmerrors.ErrAuthUnavailable, err)
	}
	if payload.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty access token in response", mdmerrors.ErrAuthUnavailable)
	}

	return payload.AccessToken, b.now().Add(time.Duration(payload.ExpiresIn) * time.Second), nil
}
