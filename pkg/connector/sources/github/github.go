// Package github implements the GitHub connector: OAuth2 bearer auth and
// the commits, issues and weekly-contributions sources, paginated through
// RFC 5988 Link headers.
package github

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/fetch"
)

// apiBase is a var so tests can point the connector at a stub server.
var apiBase = "https://api.github.com"

const (
	acceptV3 = "application/vnd.github.v3+json"
	// The extended media type includes visibility fields on /user/repos.
	acceptMoondragon = "application/vnd.github.moondragon+json"
)

func init() {
	registry.MustRegister("github", New)
}

// Connector is the GitHub provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the GitHub connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("github")
	app.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://github.com/login/oauth/authorize",
		TokenURL: "https://github.com/login/oauth/access_token",
	}
	app.Scopes = []string{"repo"}

	c := &Connector{
		Connector: base.NewConnector("github", "GitHub", auth.KindOAuth2, deps),
		// GitHub personal tokens have no expiration; the guard only
		// acts for accounts that carry one.
		signer: &auth.BearerSigner{Guard: deps.TokenGuard, App: app, Scheme: "token"},
	}

	c.AddSource(newCommitsSource(c))
	c.AddSource(newIssuesSource(c))
	c.AddSource(newContributorsSource(c))
	return c, nil
}

// newFetcher builds a paged fetcher bound to one account.
func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// Validate probes the authenticated user endpoint.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	return c.ValidateByProbe(ctx, account, c.signer, apiBase+"/user")
}

// AccountTitle resolves the account's GitHub login.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, apiBase+"/user", func(profile map[string]interface{}) string {
		login, _ := profile["login"].(string)
		return login
	}, "GitHub Account")
}
