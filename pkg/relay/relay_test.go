package relay

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
)

type headerMarkSigner struct{}

func (headerMarkSigner) Sign(_ context.Context, _ *auth.Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	return req.WithHeader("Authorization", "Bearer tok"), nil
}

func newTestRelay(t *testing.T) *StreamingRelay {
	t.Helper()
	cfg := clients.DefaultHTTPConfig()
	cfg.CircuitBreakerEnabled = false
	client := clients.NewHTTPClient(cfg, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	return NewStreamingRelay(client, headerMarkSigner{}, &auth.Account{ID: "test"}, zap.NewNop())
}

func TestRelayStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("col1,col2\n1,2\n"))
	}))
	defer server.Close()

	var sink bytes.Buffer
	relay := newTestRelay(t)
	require.NoError(t, relay.Relay(context.Background(), clients.NewSignedRequest("GET", server.URL), &sink, Options{}))
	assert.Equal(t, "col1,col2\n1,2\n", sink.String())
}

func TestRelayFollowsRedirectWithoutForwardingIt(t *testing.T) {
	var sawAuthOnDownload bool

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/content", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", server.URL+"/download")
		w.WriteHeader(http.StatusFound)
		// A body on the redirect leg must not reach the sink.
		_, _ = w.Write([]byte("redirecting..."))
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		sawAuthOnDownload = r.Header.Get("Authorization") != ""
		_, _ = w.Write([]byte("file contents"))
	})

	var sink bytes.Buffer
	relay := newTestRelay(t)
	require.NoError(t, relay.Relay(context.Background(), clients.NewSignedRequest("GET", server.URL+"/content"), &sink, Options{}))

	assert.Equal(t, "file contents", sink.String())
	assert.False(t, sawAuthOnDownload, "redirect target must not carry provider credentials")
}

func TestRelayDeadlineIsHardError(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	var sink bytes.Buffer
	relay := newTestRelay(t)
	err := relay.Relay(context.Background(), clients.NewSignedRequest("GET", server.URL), &sink, Options{
		Deadline: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestRelayProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var sink bytes.Buffer
	relay := newTestRelay(t)
	err := relay.Relay(context.Background(), clients.NewSignedRequest("GET", server.URL), &sink, Options{})
	require.Error(t, err)
	assert.Empty(t, sink.String())
}

func TestRelayMissingLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	var sink bytes.Buffer
	relay := newTestRelay(t)
	err := relay.Relay(context.Background(), clients.NewSignedRequest("GET", server.URL), &sink, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProvider))
}
