// Package jira implements the Jira connector: HTTP Basic auth against a
// self-hosted or cloud instance, and the issues source driven by a JQL
// search with startAt paging.
package jira

import (
	"context"
	"strings"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/fetch"
)

func init() {
	registry.MustRegister("jira", New)
}

// Connector is the Jira provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Jira connector.
func New(deps *core.Deps) (core.Connector, error) {
	c := &Connector{
		Connector: base.NewConnector("jira", "JIRA", auth.KindBasic, deps),
		signer:    &auth.BasicSigner{},
	}
	c.AddSource(newIssuesSource(c))
	return c, nil
}

// apiURL joins the account's instance URL with a REST path.
func apiURL(account *auth.Account, path string) string {
	return strings.TrimRight(account.BaseURL, "/") + "/rest/api/2" + path
}

// newFetcher builds a paged fetcher bound to one account.
func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// Validate probes the myself endpoint on the account's instance.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	if account.BaseURL == "" {
		return false, "missing JIRA url"
	}
	return c.ValidateByProbe(ctx, account, c.signer, apiURL(account, "/myself"))
}

// AccountTitle identifies the account by its login and instance.
func (c *Connector) AccountTitle(_ context.Context, account *auth.Account) string {
	if account.Username == "" || account.BaseURL == "" {
		return "JIRA Account"
	}
	return account.Username + " @ " + strings.TrimRight(account.BaseURL, "/")
}
