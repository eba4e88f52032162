package github

import (
	"context"
	"io"
	"time"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/schema"
)

// contributorsSource flattens the weekly contribution statistics of one
// repository into one record per author-week.
type contributorsSource struct {
	c *Connector
}

func newContributorsSource(c *Connector) *contributorsSource {
	return &contributorsSource{c: c}
}

func (s *contributorsSource) Name() string         { return "contributors" }
func (s *contributorsSource) FriendlyName() string { return "Weekly Contributions" }

func (s *contributorsSource) Schema() schema.Schema {
	return schema.Schema{
		{Name: "date", ResponseLoc: "date", Kind: schema.KindDate},
		{Name: "author", ResponseLoc: "author", Kind: schema.KindText},
		{Name: "additions", ResponseLoc: "additions", Kind: schema.KindNumber},
		{Name: "deletions", ResponseLoc: "deletions", Kind: schema.KindNumber},
		{Name: "commits", ResponseLoc: "commits", Kind: schema.KindNumber},
	}
}

func (s *contributorsSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &RepositoryFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *contributorsSource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	if field != "repository" {
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
	return listRepositoryOptions(ctx, s.c, account)
}

// GetData fetches the contributor statistics. GitHub answers 202 while it
// computes the statistics in the background, so the call retries with a
// fixed delay before giving up.
func (s *contributorsSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*RepositoryFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if !account.Enabled {
		return errors.New(errors.ErrorTypeValidation, "cannot gather information without a valid account")
	}

	rel := s.c.Deps.Config.Reliability
	uri := apiBase + "/repos/" + f.Repository + "/stats/contributors"

	resp, err := fetch.RetryPending(ctx, rel.PendingRetries, rel.PendingDelay, func(ctx context.Context) (*clients.Response, error) {
		signed, err := s.c.signer.Sign(ctx, account, requestBuilder(acceptV3)(uri))
		if err != nil {
			return nil, err
		}
		return s.c.Deps.HTTPClient.Fetch(ctx, signed)
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return errors.NewProviderError(resp.StatusCode, "failed to fetch contributor statistics")
	}

	var stats []struct {
		Author struct {
			Login string `json:"login"`
		} `json:"author"`
		Weeks []struct {
			Week      int64 `json:"w"`
			Additions int64 `json:"a"`
			Deletions int64 `json:"d"`
			Commits   int64 `json:"c"`
		} `json:"weeks"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &stats); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "unexpected contributor statistics")
	}

	writer, err := schema.NewStreamWriter(sink, s.Schema(), s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, skip)
outer:
	for _, user := range stats {
		for _, week := range user.Weeks {
			if !window.Admit() {
				if window.Full() {
					break outer
				}
				continue
			}
			record := map[string]interface{}{
				"date":      time.Unix(week.Week, 0).UTC().Format(time.RFC3339),
				"author":    user.Author.Login,
				"additions": float64(week.Additions),
				"deletions": float64(week.Deletions),
				"commits":   float64(week.Commits),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Close()
}
