// Package targetprocess implements the Targetprocess connector: basic or
// API-token auth against a customer instance, and the assignables family
// of sources (stories, bugs, features, requests, tasks) retrieved through
// the v1 REST API's Next-cursor pagination.
package targetprocess

import (
	"context"
	"net/url"
	"strings"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/fetch"
)

func init() {
	registry.MustRegister("targetprocess", New)
}

// Connector is the Targetprocess provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Targetprocess connector.
func New(deps *core.Deps) (core.Connector, error) {
	c := &Connector{
		Connector: base.NewConnector("targetprocess", "Targetprocess", auth.KindBasic, deps),
		signer:    &signer{},
	}

	for _, def := range entityDefs {
		c.AddSource(newEntitySource(c, def))
	}
	return c, nil
}

// signer dispatches on the account kind: basic accounts get the
// Authorization header, token accounts get the token query parameter.
// Both carry the JSON media type headers the API expects.
type signer struct{}

func (s *signer) Sign(ctx context.Context, account *auth.Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	var inner auth.Signer
	if account.Kind == auth.KindToken {
		inner = &auth.QueryTokenSigner{TokenParam: "token"}
	} else {
		inner = &auth.BasicSigner{}
	}

	signed, err := inner.Sign(ctx, account, req)
	if err != nil {
		return nil, err
	}
	return signed.
		WithHeader("Accept", "application/json").
		WithHeader("Content-Type", "application/json"), nil
}

// apiURL joins the account's instance URL with a v1 API path.
func apiURL(account *auth.Account, path string) string {
	return strings.TrimRight(account.BaseURL, "/") + "/api/v1" + path
}

// escapeNext prepares the API's Next cursor for reuse: the cursor comes
// back with literal spaces in the where clause, which the API itself then
// rejects with a 400 unless they are escaped.
func escapeNext(uri string) string {
	return strings.ReplaceAll(uri, " ", "+")
}

// newFetcher builds a paged fetcher bound to one account.
func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// Validate probes the Authentication endpoint on the account's instance.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	if account.BaseURL == "" {
		return false, "required field tp_url missing"
	}
	if account.Kind == auth.KindToken && account.APIToken == "" {
		return false, "missing API token"
	}
	return c.ValidateByProbe(ctx, account, c.signer, apiURL(account, "/Authentication"))
}

// AccountTitle resolves the user's full name from the Users collection,
// falling back to the login and instance URL.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	host := strings.TrimRight(account.BaseURL, "/")
	fallback := account.Username + " @ " + host

	params := url.Values{}
	params.Set("where", "Login eq '"+account.Username+"'")
	params.Set("take", "1")
	params.Set("include", "[FirstName,LastName]")

	return c.TitleByProbe(ctx, account, c.signer, apiURL(account, "/Users")+"?"+params.Encode(), func(profile map[string]interface{}) string {
		items, _ := profile["Items"].([]interface{})
		if len(items) == 0 {
			return ""
		}
		user, _ := items[0].(map[string]interface{})
		first, _ := user["FirstName"].(string)
		last, _ := user["LastName"].(string)
		name := strings.TrimSpace(first + " " + last)
		if name == "" {
			return ""
		}
		return name + " (" + host + ")"
	}, fallback)
}
