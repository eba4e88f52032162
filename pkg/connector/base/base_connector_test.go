package base

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/core"
)

func TestShapeOptionsDedupAndSort(t *testing.T) {
	options := []core.Option{
		{Title: "zeta", Value: "3"},
		{Title: "alpha", Value: "1"},
		{Title: "alpha again", Value: "1"},
		{Title: "mid", Value: "2"},
	}

	shaped := ShapeOptions(options)
	assert.Equal(t, []core.Option{
		{Title: "alpha", Value: "1"},
		{Title: "mid", Value: "2"},
		{Title: "zeta", Value: "3"},
	}, shaped)
}

func TestShapeOptionsEmpty(t *testing.T) {
	assert.Empty(t, ShapeOptions(nil))
}

func TestWindowLimitAndSkip(t *testing.T) {
	w := NewWindow(2, 1)

	assert.False(t, w.Admit(), "first record skipped")
	assert.True(t, w.Admit())
	assert.True(t, w.Admit())
	assert.True(t, w.Full())
	assert.False(t, w.Admit())
	assert.Equal(t, 2, w.Emitted())
}

func TestWindowUnbounded(t *testing.T) {
	w := NewWindow(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, w.Admit())
	}
	assert.False(t, w.Full())
}

type noopSigner struct{}

func (noopSigner) Sign(_ context.Context, _ *auth.Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	return req, nil
}

func newProbeConnector(t *testing.T) *Connector {
	t.Helper()

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.CircuitBreakerEnabled = false
	client := clients.NewHTTPClient(httpCfg, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	deps := &core.Deps{HTTPClient: client, Logger: zap.NewNop()}
	return NewConnector("probe", "Probe", auth.KindToken, deps)
}

func TestTitleByProbePicksField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"login":"octocat"}`)
	}))
	defer server.Close()

	c := newProbeConnector(t)
	title := c.TitleByProbe(context.Background(), &auth.Account{}, noopSigner{}, server.URL, func(p map[string]interface{}) string {
		login, _ := p["login"].(string)
		return login
	}, "Fallback")
	assert.Equal(t, "octocat", title)
}

func TestTitleByProbeFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newProbeConnector(t)
	title := c.TitleByProbe(context.Background(), &auth.Account{}, noopSigner{}, server.URL, func(map[string]interface{}) string {
		return "never"
	}, "Fallback")
	assert.Equal(t, "Fallback", title)

	assert.Equal(t, "Probe", c.AccountTitle(context.Background(), &auth.Account{}))
}
