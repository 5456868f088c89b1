package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/zap"
)

func tokenServer(t *testing.T, status int, body map[string]any) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/v1/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)
		require.Equal(t, "client-secret", pass)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestSource(t *testing.T, srv *httptest.Server) (*Source, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Unix(1_700_000_000, 0))
	return NewSource("client-id", "client-secret", srv.URL, srv.Client(), clk, zap.NewNop()), clk
}

func TestTokenFetchesAndCaches(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "tok-1",
		"expires_in":   3600,
	})
	source, _ := newTestSource(t, srv)

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	token, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, 1, *calls, "second call must hit the cache")
}

func TestTokenRefreshesAtExpiryMargin(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "tok-1",
		"expires_in":   3600,
	})
	source, clk := newTestSource(t, srv)

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	// Still inside the margin-adjusted lifetime.
	clk.Advance(3600*time.Second - 61*time.Second)
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	// Crossing the margin forces a refresh a minute before the provider
	// would reject the token.
	clk.Advance(2 * time.Second)
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestTokenDefaultsMissingExpiry(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "tok-1",
	})
	source, clk := newTestSource(t, srv)

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *calls, "default lifetime is an hour")
}

func TestTokenExchangeRejected(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
	source, _ := newTestSource(t, srv)

	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestTokenEmptyAccessToken(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, map[string]any{"access_token": ""})
	source, _ := newTestSource(t, srv)

	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestTokenEndpointUnreachable(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(1_700_000_000, 0))
	httpClient := &http.Client{Timeout: 200 * time.Millisecond}
	source := NewSource("client-id", "client-secret", "http://127.0.0.1:1", httpClient, clk, zap.NewNop())

	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailure)
}
