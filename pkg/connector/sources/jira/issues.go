package jira

import (
	"context"
	"io"
	"strconv"
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

// IssuesFilter narrows the JQL search.
type IssuesFilter struct {
	Projects   base.MultiList  `json:"projects"`
	IssueTypes base.MultiList  `json:"issue_types,omitempty"`
	States     base.MultiList  `json:"states,omitempty"`
	Created    *base.DateRange `json:"created,omitempty"`
	Resolved   *base.DateRange `json:"resolved,omitempty"`
}

// Validate fails fast when no project is selected.
func (f *IssuesFilter) Validate() error {
	if len(f.Projects) == 0 {
		return errors.New(errors.ErrorTypeValidation, "required parameter projects missing")
	}
	return nil
}

// JQL renders the filter as a JQL query string.
func (f *IssuesFilter) JQL() string {
	pieces := []string{"project in (" + strings.Join(f.Projects, ",") + ")"}
	if len(f.IssueTypes) > 0 {
		pieces = append(pieces, "issuetype in ("+strings.Join(f.IssueTypes, ",")+")")
	}
	if len(f.States) > 0 {
		pieces = append(pieces, "(status in ("+strings.Join(f.States, ",")+"))")
	}
	pieces = append(pieces, dateClauses("created", f.Created)...)
	pieces = append(pieces, dateClauses("resolved", f.Resolved)...)
	return strings.Join(pieces, " and ")
}

func dateClauses(field string, r *base.DateRange) []string {
	if r == nil {
		return nil
	}
	var clauses []string
	if r.Min != "" {
		clauses = append(clauses, field+" > "+r.Min)
	}
	if r.Max != "" {
		clauses = append(clauses, field+" < "+r.Max)
	}
	return clauses
}

// issuesSource searches issues with JQL and pages through startAt offsets.
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
		{Name: "id", ResponseLoc: "id", Kind: schema.KindID},
		{Name: "key", ResponseLoc: "key", Kind: schema.KindText},
		{Name: "project", ResponseLoc: "fields-project-name", Kind: schema.KindText},
		{Name: "state", ResponseLoc: "fields-status-name", Kind: schema.KindText},
		{Name: "summary", ResponseLoc: "fields-summary", Kind: schema.KindText},
		{Name: "progress", ResponseLoc: "fields-progress-progress", Kind: schema.KindNumber},
		{Name: "issuetype", ResponseLoc: "fields-issuetype-name", Kind: schema.KindText},
		{Name: "votes", ResponseLoc: "fields-votes-votes", Kind: schema.KindNumber},
		{Name: "updated", ResponseLoc: "fields-updated", Kind: schema.KindDateTime},
		{Name: "created", ResponseLoc: "fields-created", Kind: schema.KindDateTime},
		{Name: "description", ResponseLoc: "fields-description", Kind: schema.KindText},
		{Name: "priority", ResponseLoc: "fields-priority-name", Kind: schema.KindText},
		{Name: "reporter", ResponseLoc: "fields-reporter-name", Kind: schema.KindText},
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
	case "projects":
		return s.listProjectOptions(ctx, account)
	case "issue_types":
		return s.listIssueTypeOptions(ctx, account)
	case "states":
		projects := base.MultiList(nil)
		if f, ok := partial.(*IssuesFilter); ok {
			projects = f.Projects
		}
		return s.listStateOptions(ctx, account, projects)
	default:
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
}

func (s *issuesSource) listProjectOptions(ctx context.Context, account *auth.Account) ([]core.Option, error) {
	resp, err := s.fetchOne(ctx, account, apiURL(account, "/project"))
	if err != nil {
		return nil, err
	}

	var projects []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &projects); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected project listing")
	}

	options := make([]core.Option, 0, len(projects))
	for _, p := range projects {
		options = append(options, core.Option{Title: p.Name, Value: p.Key})
	}
	return base.ShapeOptions(options), nil
}

func (s *issuesSource) listIssueTypeOptions(ctx context.Context, account *auth.Account) ([]core.Option, error) {
	resp, err := s.fetchOne(ctx, account, apiURL(account, "/issuetype"))
	if err != nil {
		return nil, err
	}

	var types []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &types); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected issue type listing")
	}

	options := make([]core.Option, 0, len(types))
	for _, t := range types {
		options = append(options, core.Option{Title: t.Name + ": " + t.Description, Value: t.ID})
	}
	return base.ShapeOptions(options), nil
}

// listStateOptions gathers workflow statuses across the selected
// projects, deduplicated by status id.
func (s *issuesSource) listStateOptions(ctx context.Context, account *auth.Account, projects base.MultiList) ([]core.Option, error) {
	if len(projects) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "select a project first")
	}

	seeds := make([]string, 0, len(projects))
	for _, project := range projects {
		seeds = append(seeds, apiURL(account, "/project/"+project+"/statuses"))
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
			return nil, errors.NewProviderError(resp.StatusCode, "failed to list statuses")
		}
		var workflows []struct {
			Statuses []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"statuses"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &workflows); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected status listing")
		}
		mu.Lock()
		for _, wf := range workflows {
			for _, st := range wf.Statuses {
				options = append(options, core.Option{Title: st.Name, Value: st.ID})
			}
		}
		mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return base.ShapeOptions(options), nil
}

// searchRequest is the JQL search POST body.
type searchRequest struct {
	JQL        string `json:"jql"`
	StartAt    int    `json:"startAt"`
	MaxResults int    `json:"maxResults"`
}

// GetData pages through the search results with startAt offsets. The skip
// offset maps directly onto the provider's startAt, so skipped records
// are never transferred.
func (s *issuesSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*IssuesFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	cfg := s.c.Deps.Config.Fetch
	pageSize := cfg.PageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	writer, err := schema.NewStreamWriter(sink, s.Schema(), s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, 0)
	searchURL := apiURL(account, "/search")
	startAt := skip

	buildRequest := func(uri string) *clients.SignedRequest {
		body, _ := jsonpool.Marshal(searchRequest{
			JQL:        f.JQL(),
			StartAt:    startAt,
			MaxResults: pageSize,
		})
		return clients.NewSignedRequest("POST", uri).
			WithHeader("Content-Type", "application/json").
			WithBody(body)
	}

	// The search URL never changes between pages; only the startAt in
	// the POST body advances. Tag the chain URI with the offset so the
	// engine sees distinct cursors.
	fetcher := s.c.newFetcher(account)
	_, err = fetcher.FollowChain(ctx, searchURL+"#0", fetch.Options{
		Deadline: cfg.Deadline,
		BuildRequest: func(string) *clients.SignedRequest {
			return buildRequest(searchURL)
		},
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "issue search failed")
		}

		var page struct {
			StartAt int                      `json:"startAt"`
			Total   int                      `json:"total"`
			Issues  []map[string]interface{} `json:"issues"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected search response")
		}

		for _, issue := range page.Issues {
			if !window.Admit() {
				if window.Full() {
					return "", true, nil
				}
				continue
			}
			if err := writer.Write(issue); err != nil {
				return "", false, err
			}
		}

		if page.Total > page.StartAt+pageSize {
			startAt = page.StartAt + pageSize
			return searchURL + "#" + strconv.Itoa(startAt), false, nil
		}
		return "", false, nil
	})
	if err != nil {
		return err
	}

	return writer.Close()
}

func (s *issuesSource) fetchOne(ctx context.Context, account *auth.Account, uri string) (*clients.Response, error) {
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
