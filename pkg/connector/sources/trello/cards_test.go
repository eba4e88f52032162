package trello

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
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

func tokenAccount() *auth.Account {
	return &auth.Account{
		ID:       "acct-1",
		Enabled:  true,
		Kind:     auth.KindToken,
		APIToken: "tok",
	}
}

func TestCardsJoinsBoardAndListNames(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	boards := map[string]string{"b1": "First Board", "b2": "Second Board"}
	for id, name := range boards {
		id, name := id, name
		mux.HandleFunc("/boards/"+id+"/name", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `{"_value":%q}`, name)
		})
		mux.HandleFunc("/boards/"+id+"/lists", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `[{"id":"%s-todo","name":"Todo"},{"id":"%s-done","name":"Done"}]`, id, id)
		})
		mux.HandleFunc("/boards/"+id+"/cards", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `[
				{"id":"%s-c1","name":"Task one","idList":"%s-todo","closed":false,"pos":1.5},
				{"id":"%s-c2","name":"Task two","idList":"%s-done","closed":true,"pos":2}
			]`, id, id, id, id)
		})
	}

	c := newTestConnector(t, server.URL)
	src, ok := c.Source("cards")
	require.True(t, ok)

	// Boards requested b2 first; cards must come back in that order.
	filter, err := src.ParseFilter([]byte(`{"boards":["b2","b1"]}`))
	require.NoError(t, err)

	var sink bytes.Buffer
	require.NoError(t, src.GetData(context.Background(), tokenAccount(), filter, 0, 0, &sink))

	var records []map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal(sink.Bytes(), &records))
	require.Len(t, records, 4)

	assert.Equal(t, "Second Board", records[0]["board_name"])
	assert.Equal(t, "Todo", records[0]["list"])
	assert.Equal(t, "b2-c1", records[0]["id"])
	assert.Equal(t, "First Board", records[2]["board_name"])
}

func TestCardsListFilterDropsOtherLists(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/boards/b1/name", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"_value":"Only Board"}`)
	})
	mux.HandleFunc("/boards/b1/lists", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"id":"keep","name":"Keep"},{"id":"drop","name":"Drop"}]`)
	})
	mux.HandleFunc("/boards/b1/cards", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"id":"c1","name":"Kept","idList":"keep"},
			{"id":"c2","name":"Dropped","idList":"drop"}
		]`)
	})

	c := newTestConnector(t, server.URL)
	src, ok := c.Source("cards")
	require.True(t, ok)

	filter, err := src.ParseFilter([]byte(`{"boards":["b1"],"lists":["keep"]}`))
	require.NoError(t, err)

	var sink bytes.Buffer
	require.NoError(t, src.GetData(context.Background(), tokenAccount(), filter, 0, 0, &sink))

	var records []map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal(sink.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Kept", records[0]["name"])
	assert.Equal(t, "Keep", records[0]["list"])
}

func TestCardsRequiresBoards(t *testing.T) {
	c := newTestConnector(t, "http://unused.invalid")
	src, ok := c.Source("cards")
	require.True(t, ok)

	filter, err := src.ParseFilter(nil)
	require.NoError(t, err)

	var sink bytes.Buffer
	assert.Error(t, src.GetData(context.Background(), tokenAccount(), filter, 0, 0, &sink))
}

func TestBoardFromURI(t *testing.T) {
	assert.Equal(t, "abc", boardFromURI("https://x/1/boards/abc/cards?key=k"))
	assert.Equal(t, "abc", boardFromURI("https://x/1/boards/abc"))
	assert.Equal(t, "", boardFromURI("https://x/1/members/me"))
}

func TestAppendKey(t *testing.T) {
	assert.Equal(t, "https://x/a?key=k", appendKey("https://x/a", "k"))
	assert.Equal(t, "https://x/a?q=1&key=k", appendKey("https://x/a?q=1", "k"))
}
