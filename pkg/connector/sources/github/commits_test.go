package github

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/config"
	"github.com/vizydrop/gallery/pkg/connector/core"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

func newTestConnector(t *testing.T, baseURL string) *Connector {
	t.Helper()

	prev := apiBase
	apiBase = baseURL
	t.Cleanup(func() { apiBase = prev })

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.CircuitBreakerEnabled = false
	client := clients.NewHTTPClient(httpCfg, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	deps := &core.Deps{
		HTTPClient: client,
		TokenGuard: auth.NewTokenGuard(nil, zap.NewNop()),
		Config:     config.New(),
		Logger:     zap.NewNop(),
	}

	c, err := New(deps)
	require.NoError(t, err)
	return c.(*Connector)
}

func testAccount() *auth.Account {
	return &auth.Account{
		ID:          "acct-1",
		Enabled:     true,
		Kind:        auth.KindOAuth2,
		AccessToken: "tok",
	}
}

// Three list pages with one commit each; limit=2 must stop the chain
// before the third page and fetch exactly two details.
func TestCommitsLimitStopsPagination(t *testing.T) {
	var pageHits [4]int64
	var detailHits int64

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/repos/o/r/commits", func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n = int(p[0] - '0')
		}
		atomic.AddInt64(&pageHits[n], 1)
		if n < 3 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/commits?page=%d>; rel="next"`, server.URL, n+1))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"url":"%s/repos/o/r/commits/sha%d"}]`, server.URL, n)
	})

	for i := 1; i <= 3; i++ {
		i := i
		mux.HandleFunc(fmt.Sprintf("/repos/o/r/commits/sha%d", i), func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt64(&detailHits, 1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"commit":{"author":{"date":"2015-03-0%dT12:00:00Z","name":"A"}},
				"files":[{"status":"added"},{"status":"modified"}],
				"stats":{"additions":10,"deletions":2}
			}`, i)
		})
	}

	c := newTestConnector(t, server.URL)
	src, ok := c.Source("commits")
	require.True(t, ok)

	filter, err := src.ParseFilter([]byte(`{"repository":"o/r"}`))
	require.NoError(t, err)

	var sink bytes.Buffer
	require.NoError(t, src.GetData(context.Background(), testAccount(), filter, 2, 0, &sink))

	var records []map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal(sink.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0]["author"])
	assert.Equal(t, float64(1), records[0]["added_files"])
	assert.Equal(t, float64(1), records[0]["modified_files"])
	assert.Equal(t, float64(10), records[0]["additions"])

	assert.Equal(t, int64(0), atomic.LoadInt64(&pageHits[3]), "third page must never be fetched")
	assert.Equal(t, int64(2), atomic.LoadInt64(&detailHits))
}

func TestCommitsRequiresRepository(t *testing.T) {
	c := newTestConnector(t, "http://unused.invalid")
	src, ok := c.Source("commits")
	require.True(t, ok)

	filter, err := src.ParseFilter(nil)
	require.NoError(t, err)

	var sink bytes.Buffer
	err = src.GetData(context.Background(), testAccount(), filter, 100, 0, &sink)
	assert.Error(t, err)
}
