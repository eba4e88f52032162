package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// RepositoryFilter scopes a source to one repository with an optional
// date focus.
type RepositoryFilter struct {
	Repository string          `json:"repository"`
	Date       *base.DateRange `json:"date,omitempty"`
}

// Validate fails fast when the repository is missing.
func (f *RepositoryFilter) Validate() error {
	if f.Repository == "" {
		return errors.New(errors.ErrorTypeValidation, "required parameter repository missing")
	}
	return nil
}

// query renders the since/until parameters.
func (f *RepositoryFilter) query() url.Values {
	qs := url.Values{}
	if f.Date != nil {
		if f.Date.Min != "" {
			qs.Set("since", f.Date.Min+"T00:00:00Z")
		}
		if f.Date.Max != "" {
			qs.Set("until", f.Date.Max+"T00:00:00Z")
		}
	}
	return qs
}

// IssuesFilter adds issue state and milestone narrowing.
type IssuesFilter struct {
	RepositoryFilter
	State     string `json:"state,omitempty"`
	Milestone int64  `json:"milestone,omitempty"`
}

func (f *IssuesFilter) query() url.Values {
	qs := f.RepositoryFilter.query()
	if f.State != "" {
		qs.Set("state", f.State)
	}
	if f.Milestone != 0 {
		qs.Set("milestone", strconv.FormatInt(f.Milestone, 10))
	}
	return qs
}

// listRepositoryOptions walks the authenticated user's repositories.
func listRepositoryOptions(ctx context.Context, c *Connector, account *auth.Account) ([]core.Option, error) {
	var options []core.Option

	fetcher := c.newFetcher(account)
	_, err := fetcher.FollowChain(ctx, apiBase+"/user/repos?per_page=100", fetch.Options{
		Deadline:     c.Deps.Config.Fetch.Deadline,
		BuildRequest: requestBuilder(acceptMoondragon),
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to list repositories")
		}
		var repos []struct {
			FullName string `json:"full_name"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &repos); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected repository listing")
		}
		for _, repo := range repos {
			options = append(options, core.Option{Title: repo.FullName, Value: repo.FullName})
		}
		return fetch.NextFromLinkHeader(resp.Header.Get("Link")), false, nil
	})
	if err != nil {
		return nil, err
	}

	return base.ShapeOptions(options), nil
}

// listMilestoneOptions enumerates milestones of the filter's repository.
func listMilestoneOptions(ctx context.Context, c *Connector, account *auth.Account, repository string) ([]core.Option, error) {
	if repository == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "select a repository first")
	}

	var options []core.Option
	fetcher := c.newFetcher(account)
	_, err := fetcher.FollowChain(ctx, apiBase+"/repos/"+repository+"/milestones?per_page=100", fetch.Options{
		Deadline:     c.Deps.Config.Fetch.Deadline,
		BuildRequest: requestBuilder(acceptV3),
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to list milestones")
		}
		var milestones []struct {
			Number int64  `json:"number"`
			Title  string `json:"title"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &milestones); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected milestone listing")
		}
		for _, m := range milestones {
			options = append(options, core.Option{
				Title: "#" + strconv.FormatInt(m.Number, 10) + " - " + m.Title,
				Value: strconv.FormatInt(m.Number, 10),
			})
		}
		return fetch.NextFromLinkHeader(resp.Header.Get("Link")), false, nil
	})
	if err != nil {
		return nil, err
	}

	return base.ShapeOptions(options), nil
}

// requestBuilder sets the JSON media type GitHub expects.
func requestBuilder(accept string) func(uri string) *clients.SignedRequest {
	return func(uri string) *clients.SignedRequest {
		return clients.NewSignedRequest(http.MethodGet, uri).
			WithHeader("Accept", accept).
			WithHeader("Content-Type", "application/json")
	}
}
