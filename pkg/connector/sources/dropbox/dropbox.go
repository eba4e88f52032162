// Package dropbox implements the Dropbox connector: OAuth2 bearer auth
// and a single file source that relays datafile contents straight from
// the content API.
package dropbox

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

const (
	apiBase     = "https://api.dropbox.com/1"
	contentBase = "https://content.dropboxapi.com/1"
)

func init() {
	registry.MustRegister("dropbox", New)
}

// Connector is the Dropbox provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Dropbox connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("dropbox")
	app.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://www.dropbox.com/1/oauth2/authorize",
		TokenURL: "https://api.dropbox.com/1/oauth2/token",
	}

	c := &Connector{
		Connector: base.NewConnector("dropbox", "Dropbox", auth.KindOAuth2, deps),
		signer:    &auth.BearerSigner{Guard: deps.TokenGuard, App: app},
	}
	c.AddSource(&fileSource{c: c})
	return c, nil
}

// Validate probes the account info endpoint.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	return c.ValidateByProbe(ctx, account, c.signer, apiBase+"/account/info")
}

func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

func (c *Connector) newRelay(account *auth.Account) *relay.StreamingRelay {
	return relay.NewStreamingRelay(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// AccountTitle resolves the account owner's display name.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, apiBase+"/account/info", func(profile map[string]interface{}) string {
		name, _ := profile["display_name"].(string)
		return name
	}, "Dropbox Account")
}
