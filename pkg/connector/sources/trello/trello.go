// Package trello implements the Trello connector. Accounts authenticate
// either with an OAuth1-signed request or a manually generated token;
// both carry the application key as a query parameter.
package trello

import (
	"context"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/fetch"
)

// apiBase is a var so tests can point the connector at a stub server.
var apiBase = "https://api.trello.com/1"

func init() {
	registry.MustRegister("trello", New)
}

// Connector is the Trello provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Trello connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("trello")

	c := &Connector{
		Connector: base.NewConnector("trello", "Trello", auth.KindOAuth1, deps),
		signer: &signer{
			key:    app.ClientID,
			oauth1: auth.NewOAuth1Signer(app.ClientID, app.ClientSecret),
		},
	}

	c.AddSource(newCardsSource(c))
	return c, nil
}

// signer dispatches on the account's credential kind: OAuth1 accounts get
// a signed request, token accounts get key/token query parameters. Both
// carry the application key.
type signer struct {
	key    string
	oauth1 *auth.OAuth1Signer
}

func (s *signer) Sign(ctx context.Context, account *auth.Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	if account.Kind == auth.KindToken {
		token := &auth.QueryTokenSigner{TokenParam: "token", KeyParam: "key", Key: s.key}
		return token.Sign(ctx, account, req)
	}

	keyed := req.Clone()
	keyed.URL = appendKey(keyed.URL, s.key)
	return s.oauth1.Sign(ctx, account, keyed)
}

func appendKey(uri, key string) string {
	sep := "?"
	for _, r := range uri {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return uri + sep + "key=" + key
}

// newFetcher builds a paged fetcher bound to one account.
func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// Validate probes the authenticated member endpoint.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	if account.Kind == auth.KindToken {
		if account.APIToken == "" {
			return false, "missing token"
		}
	} else if account.AccessToken == "" || account.AccessSecret == "" {
		return false, "missing token/secret"
	}
	return c.ValidateByProbe(ctx, account, c.signer, apiBase+"/members/me")
}

// AccountTitle resolves the member's full name.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, apiBase+"/members/me", func(profile map[string]interface{}) string {
		name, _ := profile["fullName"].(string)
		return name
	}, "Trello Account")
}
