package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) *HTTPClient {
	t.Helper()
	cfg := DefaultHTTPConfig()
	cfg.CircuitBreakerEnabled = false
	c := NewHTTPClient(cfg, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchReturnsNon2xxWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	client := newClient(t)
	resp, err := client.Fetch(context.Background(), NewSignedRequest("GET", server.URL))
	require.NoError(t, err, "provider status codes are data, not transport errors")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, resp.IsSuccess())
	assert.Contains(t, string(resp.Body), "Bad credentials")
}

func TestFetchSendsSignedHeadersAndUserAgent(t *testing.T) {
	var gotAuth, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newClient(t)
	req := NewSignedRequest("GET", server.URL).WithHeader("Authorization", "Bearer tok")
	_, err := client.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Vizydrop-AppsGallery/1.0", gotUA)
}

func TestFetchPostBody(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody = make([]byte, r.ContentLength)
		_, _ = r.Body.Read(gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newClient(t)
	req := NewSignedRequest("POST", server.URL).
		WithHeader("Content-Type", "application/json").
		WithBody([]byte(`{"jql":"project = X"}`))
	_, err := client.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jql":"project = X"}`, string(gotBody))
}

func TestSignedRequestCloneIsDeep(t *testing.T) {
	req := NewSignedRequest("GET", "https://x/y").WithHeader("Accept", "application/json")
	clone := req.Clone()
	clone.WithHeader("Accept", "text/csv")
	clone.URL = "https://x/z"

	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "https://x/y", req.URL)
}
