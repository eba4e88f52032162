package trello

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/schema"
)

// CardsFilter scopes the cards source to boards and optionally lists.
type CardsFilter struct {
	Boards base.MultiList `json:"boards"`
	Lists  base.MultiList `json:"lists,omitempty"`
}

// Validate fails fast when no board is selected.
func (f *CardsFilter) Validate() error {
	if len(f.Boards) == 0 {
		return errors.New(errors.ErrorTypeValidation, "required parameter boards missing")
	}
	return nil
}

// cardsSource lists cards across the selected boards. Board names and
// list names are resolved in the same worker-pool pass as the cards
// themselves, then joined when the pool drains.
type cardsSource struct {
	c *Connector
}

func newCardsSource(c *Connector) *cardsSource {
	return &cardsSource{c: c}
}

func (s *cardsSource) Name() string         { return "cards" }
func (s *cardsSource) FriendlyName() string { return "Cards" }

func (s *cardsSource) Schema() schema.Schema {
	return schema.Schema{
		{Name: "id", ResponseLoc: "id", Kind: schema.KindID},
		{Name: "name", ResponseLoc: "name", Kind: schema.KindText},
		{Name: "board_name", ResponseLoc: "board_name", Kind: schema.KindText},
		{Name: "closed", ResponseLoc: "closed", Kind: schema.KindBoolean},
		{Name: "desc", ResponseLoc: "desc", Kind: schema.KindText},
		{Name: "dateLastActivity", ResponseLoc: "dateLastActivity", Kind: schema.KindDateTime},
		{Name: "pos", ResponseLoc: "pos", Kind: schema.KindDecimal},
		{Name: "due", ResponseLoc: "due", Kind: schema.KindDateTime},
		{Name: "labels", ResponseLoc: "labels-name", Kind: schema.KindText},
		{Name: "list", ResponseLoc: "list", Kind: schema.KindText},
	}
}

func (s *cardsSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &CardsFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *cardsSource) ListOptions(ctx context.Context, account *auth.Account, field string, partial core.Filter) ([]core.Option, error) {
	switch field {
	case "boards":
		return s.listBoardOptions(ctx, account)
	case "lists":
		boards := base.MultiList(nil)
		if f, ok := partial.(*CardsFilter); ok {
			boards = f.Boards
		}
		return s.listListOptions(ctx, account, boards)
	default:
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
}

func (s *cardsSource) listBoardOptions(ctx context.Context, account *auth.Account) ([]core.Option, error) {
	resp, err := s.fetchOne(ctx, account, apiBase+"/members/me/boards")
	if err != nil {
		return nil, err
	}

	var boards []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &boards); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected board listing")
	}

	options := make([]core.Option, 0, len(boards))
	for _, board := range boards {
		options = append(options, core.Option{Title: board.Name, Value: board.ID})
	}
	return base.ShapeOptions(options), nil
}

// listListOptions fans the per-board list enumeration out over the pool.
func (s *cardsSource) listListOptions(ctx context.Context, account *auth.Account, boards base.MultiList) ([]core.Option, error) {
	if len(boards) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "select a board first")
	}

	seeds := make([]string, 0, len(boards))
	for _, board := range boards {
		seeds = append(seeds, apiBase+"/boards/"+board+"/lists")
	}

	var mu sync.Mutex
	var options []core.Option

	cfg := s.c.Deps.Config.Fetch
	_, err := s.c.newFetcher(account).FetchAll(ctx, seeds, fetch.Options{
		Concurrency: int64(cfg.Concurrency),
		Deadline:    cfg.Deadline,
		MaxQueued:   cfg.MaxQueuedItems,
	}, func(ctx context.Context, uri string, resp *clients.Response) ([]string, error) {
		if !resp.IsSuccess() {
			return nil, errors.NewProviderError(resp.StatusCode, "failed to list board lists")
		}
		var lists []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &lists); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected list listing")
		}
		mu.Lock()
		for _, l := range lists {
			options = append(options, core.Option{Title: l.Name, Value: l.ID})
		}
		mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return base.ShapeOptions(options), nil
}

// GetData retrieves cards, board names and list names for every selected
// board in one unordered pool pass, then joins and emits the cards.
func (s *cardsSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*CardsFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	cfg := s.c.Deps.Config.Fetch

	type boardCards struct {
		board string
		cards []map[string]interface{}
	}

	var mu sync.Mutex
	boardNames := make(map[string]string)
	listNames := make(map[string]string)
	var perBoard []boardCards

	seeds := make([]string, 0, len(f.Boards)*3)
	for _, board := range f.Boards {
		seeds = append(seeds,
			apiBase+"/boards/"+board+"/name",
			apiBase+"/boards/"+board+"/lists",
			apiBase+"/boards/"+board+"/cards",
		)
	}

	_, err := s.c.newFetcher(account).FetchAll(ctx, seeds, fetch.Options{
		Concurrency: int64(cfg.Concurrency),
		Deadline:    cfg.Deadline,
		MaxQueued:   cfg.MaxQueuedItems,
	}, func(ctx context.Context, uri string, resp *clients.Response) ([]string, error) {
		if !resp.IsSuccess() {
			return nil, errors.NewProviderError(resp.StatusCode, "failed to fetch board data")
		}

		board := boardFromURI(uri)
		switch {
		case strings.HasSuffix(uri, "/name"):
			var name struct {
				Value string `json:"_value"`
			}
			if err := jsonpool.Unmarshal(resp.Body, &name); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected board name response")
			}
			mu.Lock()
			boardNames[board] = name.Value
			mu.Unlock()

		case strings.HasSuffix(uri, "/lists"):
			var lists []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}
			if err := jsonpool.Unmarshal(resp.Body, &lists); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected list listing")
			}
			mu.Lock()
			for _, l := range lists {
				listNames[l.ID] = l.Name
			}
			mu.Unlock()

		default:
			var cards []map[string]interface{}
			if err := jsonpool.Unmarshal(resp.Body, &cards); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected card listing")
			}
			kept := cards[:0]
			for _, card := range cards {
				listID, _ := card["idList"].(string)
				if f.Lists.Contains(listID) {
					kept = append(kept, card)
				}
			}
			mu.Lock()
			perBoard = append(perBoard, boardCards{board: board, cards: kept})
			total := 0
			for _, b := range perBoard {
				total += len(b.cards)
			}
			mu.Unlock()
			if total > cfg.MaxQueuedItems {
				return nil, errors.Newf(errors.ErrorTypeTooManyItems, "too many cards: %d", total)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	// Join phase: attach board and list names, then emit in the order
	// boards were requested.
	order := make(map[string]int, len(f.Boards))
	for i, board := range f.Boards {
		order[board] = i
	}
	for i := 1; i < len(perBoard); i++ {
		for j := i; j > 0 && order[perBoard[j-1].board] > order[perBoard[j].board]; j-- {
			perBoard[j-1], perBoard[j] = perBoard[j], perBoard[j-1]
		}
	}

	writer, err := schema.NewStreamWriter(sink, s.Schema(), s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, skip)
outer:
	for _, b := range perBoard {
		for _, card := range b.cards {
			if !window.Admit() {
				if window.Full() {
					break outer
				}
				continue
			}
			card["board_name"] = boardNames[b.board]
			if listID, ok := card["idList"].(string); ok {
				card["list"] = listNames[listID]
			}
			if err := writer.Write(card); err != nil {
				return err
			}
		}
	}

	return writer.Close()
}

func (s *cardsSource) fetchOne(ctx context.Context, account *auth.Account, uri string) (*clients.Response, error) {
	signed, err := s.c.signer.Sign(ctx, account, clients.NewSignedRequest("GET", uri))
	if err != nil {
		return nil, err
	}
	resp, err := s.c.Deps.HTTPClient.Fetch(ctx, signed)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errors.NewProviderError(resp.StatusCode, "provider request failed")
	}
	return resp, nil
}

// boardFromURI extracts the board id from /boards/{id}/... URIs.
func boardFromURI(uri string) string {
	const marker = "/boards/"
	i := strings.Index(uri, marker)
	if i < 0 {
		return ""
	}
	rest := uri[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[:j]
	}
	return rest
}
