package targetprocess

import (
	"context"
	"strconv"
	"strings"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// AssignablesFilter narrows the entity query. It renders as the API's
// where-clause expression language.
type AssignablesFilter struct {
	Projects  base.MultiList  `json:"projects"`
	Teams     base.MultiList  `json:"teams,omitempty"`
	Opened    *base.DateRange `json:"opened,omitempty"`
	Started   *base.DateRange `json:"started,omitempty"`
	Closed    *base.DateRange `json:"closed,omitempty"`
	IsFinal   bool            `json:"is_final,omitempty"`
	IsInitial bool            `json:"is_initial,omitempty"`
}

// Validate fails fast when no project is selected.
func (f *AssignablesFilter) Validate() error {
	if len(f.Projects) == 0 {
		return errors.New(errors.ErrorTypeValidation, "required parameter projects missing")
	}
	return nil
}

// WhereClause renders the filter, each condition parenthesized and joined
// with "and". Empty when nothing is set.
func (f *AssignablesFilter) WhereClause() string {
	var pieces []string

	pieces = append(pieces, dateClauses("CreateDate", f.Opened, false)...)
	pieces = append(pieces, dateClauses("EndDate", f.Closed, true)...)
	pieces = append(pieces, dateClauses("StartDate", f.Started, true)...)

	pieces = append(pieces, idClause("Project.Id", f.Projects)...)
	pieces = append(pieces, idClause("Team.Id", f.Teams)...)

	if f.IsFinal {
		pieces = append(pieces, "EntityState.IsFinal eq 'true'")
	}
	if f.IsInitial {
		pieces = append(pieces, "EntityState.IsInitial eq 'true'")
	}

	if len(pieces) == 0 {
		return ""
	}
	for i, p := range pieces {
		pieces[i] = "(" + p + ")"
	}
	return strings.Join(pieces, " and ")
}

// dateClauses renders gte/lte bounds for one date field. Fields that may
// be unset (start/end dates) get a null guard first.
func dateClauses(field string, r *base.DateRange, guardNull bool) []string {
	if r == nil {
		return nil
	}
	var clauses []string
	if guardNull {
		clauses = append(clauses, field+" is not null")
	}
	if r.Min != "" {
		clauses = append(clauses, field+" gte '"+r.Min+"'")
	}
	if r.Max != "" {
		clauses = append(clauses, field+" lte '"+r.Max+"'")
	}
	return clauses
}

// idClause renders an id membership condition, using eq for one value.
func idClause(field string, ids base.MultiList) []string {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return []string{field + " eq " + ids[0]}
	default:
		return []string{field + " in (" + strings.Join(ids, ",") + ")"}
	}
}

// listEntityOptions pages through a collection endpoint (Projects, Teams)
// following the Next cursor.
func listEntityOptions(ctx context.Context, c *Connector, account *auth.Account, collection string) ([]core.Option, error) {
	var options []core.Option

	cfg := c.Deps.Config.Fetch
	_, err := c.newFetcher(account).FollowChain(ctx, apiURL(account, "/"+collection+"?take=100"), fetch.Options{
		Deadline: cfg.Deadline,
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to list "+collection)
		}
		var page struct {
			Next  string `json:"Next"`
			Items []struct {
				ID   int64  `json:"Id"`
				Name string `json:"Name"`
			} `json:"Items"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected "+collection+" listing")
		}
		for _, item := range page.Items {
			options = append(options, core.Option{
				Title: item.Name,
				Value: strconv.FormatInt(item.ID, 10),
			})
		}
		if page.Next == "" {
			return "", false, nil
		}
		return escapeNext(page.Next), false, nil
	})
	if err != nil {
		return nil, err
	}

	return base.ShapeOptions(options), nil
}
