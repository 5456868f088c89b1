package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/zap"
)

// ErrAuthFailure reports a failed credential exchange with the provider.
// No retry is performed here; callers decide.
var ErrAuthFailure = errors.New("credential_exchange_failed")

// expiryMargin guarantees a returned token stays valid for at least this
// long past the call.
const expiryMargin = 60 * time.Second

// Credential is a bearer token with its expiry. Owned exclusively by the
// Source; never handed out as a struct.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Source caches a bearer credential and refreshes it through a
// client-credentials exchange when absent or expired.
type Source struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	clock        clock.Clock
	log          *zap.Logger

	mu     sync.RWMutex
	cached *Credential
}

// NewSource builds a credential source for the given OAuth token endpoint.
func NewSource(clientID, clientSecret, baseURL string, httpClient *http.Client, clk clock.Clock, log *zap.Logger) *Source {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Source{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimRight(baseURL, "/") + "/v1/oauth2/token",
		httpClient:   httpClient,
		clock:        clk,
		log:          log.Named("credential.source"),
	}
}

// Token returns a cached bearer token while it is still valid, refreshing
// it otherwise. Concurrent callers during a miss may each trigger a fetch;
// the exchange is idempotent so the last writer wins.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.cached != nil && s.clock.Now().Before(s.cached.ExpiresAt) {
		token := s.cached.Token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Source) refresh(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn("credential exchange rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", fmt.Errorf("%w: status %d", ErrAuthFailure, resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrAuthFailure)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	cred := &Credential{
		Token:     payload.AccessToken,
		ExpiresAt: s.clock.Now().Add(time.Duration(expiresIn)*time.Second - expiryMargin),
	}

	s.mu.Lock()
	s.cached = cred
	s.mu.Unlock()

	s.log.Info("access token refreshed", zap.Int64("expires_in", expiresIn))
	return cred.Token, nil
}
