package github

import (
	"context"
	"io"
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

// commitsSource lists commits of one repository, with per-commit file and
// line statistics gathered from the commit detail endpoint.
type commitsSource struct {
	c *Connector
}

func newCommitsSource(c *Connector) *commitsSource {
	return &commitsSource{c: c}
}

func (s *commitsSource) Name() string         { return "commits" }
func (s *commitsSource) FriendlyName() string { return "Commits" }

func (s *commitsSource) Schema() schema.Schema {
	return schema.Schema{
		{Name: "date", ResponseLoc: "date", Kind: schema.KindDate},
		{Name: "author", ResponseLoc: "author", Kind: schema.KindText},
		{Name: "added_files", ResponseLoc: "added_files", Kind: schema.KindNumber},
		{Name: "deleted_files", ResponseLoc: "deleted_files", Kind: schema.KindNumber},
		{Name: "modified_files", ResponseLoc: "modified_files", Kind: schema.KindNumber},
		{Name: "additions", ResponseLoc: "additions", Kind: schema.KindNumber},
		{Name: "deletions", ResponseLoc: "deletions", Kind: schema.KindNumber},
	}
}

func (s *commitsSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &RepositoryFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *commitsSource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	if field != "repository" {
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
	return listRepositoryOptions(ctx, s.c, account)
}

// commitDetail is the subset of the commit detail response we map.
type commitDetail struct {
	Commit struct {
		Author struct {
			Date string `json:"date"`
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	Files []struct {
		Status string `json:"status"`
	} `json:"files"`
	Stats struct {
		Additions int64 `json:"additions"`
		Deletions int64 `json:"deletions"`
	} `json:"stats"`
}

// GetData walks the commit list chain in order, then fans the per-commit
// detail fetches out over the worker pool, and emits records back in list
// order. A deadline mid-fan-out yields the commits gathered so far.
func (s *commitsSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*RepositoryFilter)
	if !ok || f.Validate() != nil {
		if !ok {
			return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
		}
		return f.Validate()
	}
	if !account.Enabled {
		return errors.New(errors.ErrorTypeValidation, "cannot gather information without a valid account")
	}

	cfg := s.c.Deps.Config.Fetch
	needed := 0
	if limit > 0 {
		needed = limit + skip
	}

	listURI := apiBase + "/repos/" + f.Repository + "/commits?per_page=100"
	if qs := f.query().Encode(); qs != "" {
		listURI += "&" + qs
	}

	// Phase one: the ordered list chain discovers commit detail URLs.
	var detailURLs []string
	fetcher := s.c.newFetcher(account)
	_, err := fetcher.FollowChain(ctx, listURI, fetch.Options{
		Deadline:     cfg.Deadline,
		BuildRequest: requestBuilder(acceptV3),
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to list commits")
		}
		var page []struct {
			URL string `json:"url"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected commit listing")
		}
		for _, item := range page {
			if item.URL != "" {
				detailURLs = append(detailURLs, item.URL)
			}
		}
		if needed > 0 && len(detailURLs) >= needed {
			return "", true, nil
		}
		return fetch.NextFromLinkHeader(resp.Header.Get("Link")), false, nil
	})
	if err != nil {
		return err
	}

	if len(detailURLs) > cfg.MaxQueuedItems {
		return errors.Newf(errors.ErrorTypeTooManyItems, "too many commits: %d", len(detailURLs))
	}
	if needed > 0 && len(detailURLs) > needed {
		detailURLs = detailURLs[:needed]
	}

	// Phase two: fetch details concurrently, keyed by URL so list order
	// survives the unordered pool.
	var mu sync.Mutex
	records := make(map[string]map[string]interface{}, len(detailURLs))

	_, err = fetcher.FetchAll(ctx, detailURLs, fetch.Options{
		Concurrency:  int64(cfg.Concurrency),
		Deadline:     cfg.Deadline,
		MaxQueued:    cfg.MaxQueuedItems,
		BuildRequest: requestBuilder(acceptV3),
	}, func(ctx context.Context, uri string, resp *clients.Response) ([]string, error) {
		if !resp.IsSuccess() {
			return nil, errors.NewProviderError(resp.StatusCode, "failed to fetch commit detail")
		}
		var detail commitDetail
		if err := jsonpool.Unmarshal(resp.Body, &detail); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected commit detail")
		}

		var added, deleted, modified int64
		for _, file := range detail.Files {
			switch file.Status {
			case "added":
				added++
			case "deleted":
				deleted++
			case "modified":
				modified++
			}
		}

		mu.Lock()
		records[uri] = map[string]interface{}{
			"date":           detail.Commit.Author.Date,
			"author":         detail.Commit.Author.Name,
			"added_files":    float64(added),
			"deleted_files":  float64(deleted),
			"modified_files": float64(modified),
			"additions":      float64(detail.Stats.Additions),
			"deletions":      float64(detail.Stats.Deletions),
		}
		mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return err
	}

	writer, err := schema.NewStreamWriter(sink, s.Schema(), s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, skip)
	for _, uri := range detailURLs {
		record, ok := records[uri]
		if !ok {
			// Abandoned by the deadline.
			continue
		}
		if !window.Admit() {
			if window.Full() {
				break
			}
			continue
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Close()
}
