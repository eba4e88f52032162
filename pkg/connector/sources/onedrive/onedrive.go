// Package onedrive implements the OneDrive connector: Microsoft Live
// OAuth2 auth and a file source that relays datafile contents through
// the download host redirect.
package onedrive

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/fetch"
	"github.com/vizydrop/gallery/pkg/relay"
)

const apiBase = "https://api.onedrive.com/v1.0"

func init() {
	registry.MustRegister("onedrive", New)
}

// Connector is the OneDrive provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the OneDrive connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("onedrive")
	app.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://login.live.com/oauth20_authorize.srf",
		TokenURL: "https://login.live.com/oauth20_token.srf",
	}
	if len(app.Scopes) == 0 {
		app.Scopes = []string{"wl.basic", "wl.offline_access", "onedrive.readonly"}
	}

	c := &Connector{
		Connector: base.NewConnector("onedrive", "OneDrive", auth.KindOAuth2, deps),
		signer:    &auth.BearerSigner{Guard: deps.TokenGuard, App: app},
	}
	c.AddSource(&fileSource{c: c})
	return c, nil
}

// Validate probes the Live profile endpoint.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	return c.ValidateByProbe(ctx, account, c.signer, "https://apis.live.net/v5.0/me")
}

func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

func (c *Connector) newRelay(account *auth.Account) *relay.StreamingRelay {
	return relay.NewStreamingRelay(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// AccountTitle resolves the account owner's name from the Live profile.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, "https://apis.live.net/v5.0/me", func(profile map[string]interface{}) string {
		name, _ := profile["name"].(string)
		return name
	}, "OneDrive Account")
}
