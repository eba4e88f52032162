package github

import (
	"context"
	"io"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/schema"
)

// issuesSource lists issues of one repository in provider order.
type issuesSource struct {
	c *Connector
}

func newIssuesSource(c *Connector) *issuesSource {
	return &issuesSource{c: c}
}

func (s *issuesSource) Name() string         { return "issues" }
func (s *issuesSource) FriendlyName() string { return "Issues" }

func (s *issuesSource) Schema() schema.Schema {
	return schema.Schema{
		{Name: "url", ResponseLoc: "html_url", Kind: schema.KindText},
		{Name: "number", ResponseLoc: "number", Kind: schema.KindNumber},
		{Name: "state", ResponseLoc: "state", Kind: schema.KindText},
		{Name: "title", ResponseLoc: "title", Kind: schema.KindText},
		{Name: "body", ResponseLoc: "body", Kind: schema.KindText},
		{Name: "created_at", ResponseLoc: "created_at", Kind: schema.KindDate},
		{Name: "updated_at", ResponseLoc: "updated_at", Kind: schema.KindDate},
		{Name: "comments", ResponseLoc: "comments", Kind: schema.KindNumber},
		{Name: "user", ResponseLoc: "user-login", Kind: schema.KindText},
		{Name: "assignee", ResponseLoc: "assignee-login", Kind: schema.KindText},
		{Name: "milestone", ResponseLoc: "milestone-title", Kind: schema.KindText},
		{Name: "labels", ResponseLoc: "labels-name", Kind: schema.KindText},
	}
}

func (s *issuesSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &IssuesFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *issuesSource) ListOptions(ctx context.Context, account *auth.Account, field string, partial core.Filter) ([]core.Option, error) {
	switch field {
	case "repository":
		return listRepositoryOptions(ctx, s.c, account)
	case "milestone":
		repository := ""
		if f, ok := partial.(*IssuesFilter); ok {
			repository = f.Repository
		}
		return listMilestoneOptions(ctx, s.c, account, repository)
	default:
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
}

// GetData follows the issue list chain serially, preserving provider
// order, and stops fetching pages once the limit window is satisfied.
func (s *issuesSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*IssuesFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if !account.Enabled {
		return errors.New(errors.ErrorTypeValidation, "cannot gather information without a valid account")
	}

	cfg := s.c.Deps.Config.Fetch

	uri := apiBase + "/repos/" + f.Repository + "/issues?per_page=100"
	if qs := f.query().Encode(); qs != "" {
		uri += "&" + qs
	}

	writer, err := schema.NewStreamWriter(sink, s.Schema(), s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, skip)
	fetcher := s.c.newFetcher(account)
	_, err = fetcher.FollowChain(ctx, uri, fetch.Options{
		Deadline:     cfg.Deadline,
		BuildRequest: requestBuilder(acceptV3),
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to list issues")
		}
		var page []map[string]interface{}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected issue listing")
		}

		for _, item := range page {
			if !window.Admit() {
				if window.Full() {
					return "", true, nil
				}
				continue
			}
			if err := writer.Write(item); err != nil {
				return "", false, err
			}
		}

		return fetch.NextFromLinkHeader(resp.Header.Get("Link")), false, nil
	})
	if err != nil {
		return err
	}

	return writer.Close()
}
