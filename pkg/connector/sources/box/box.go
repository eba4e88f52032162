// Package box implements the Box.com connector: OAuth2 bearer auth with
// refresh tokens, and a file source that follows the content endpoint's
// redirect to the download host.
package box

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

const apiBase = "https://api.box.com/2.0"

func init() {
	registry.MustRegister("box", New)
}

// Connector is the Box.com provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Box.com connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("box")
	app.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://app.box.com/api/oauth2/authorize",
		TokenURL: "https://app.box.com/api/oauth2/token",
	}

	c := &Connector{
		Connector: base.NewConnector("box", "Box.com", auth.KindOAuth2, deps),
		signer:    &auth.BearerSigner{Guard: deps.TokenGuard, App: app},
	}
	c.AddSource(&fileSource{c: c})
	return c, nil
}

// Validate probes the current user endpoint.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	return c.ValidateByProbe(ctx, account, c.signer, apiBase+"/users/me")
}

func (c *Connector) newFetcher(account *auth.Account) *fetch.PagedFetcher {
	return fetch.NewPagedFetcher(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

func (c *Connector) newRelay(account *auth.Account) *relay.StreamingRelay {
	return relay.NewStreamingRelay(c.Deps.HTTPClient, c.signer, account, c.Logger)
}

// AccountTitle resolves the account owner's name.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, apiBase+"/users/me", func(profile map[string]interface{}) string {
		name, _ := profile["name"].(string)
		return name
	}, "Box.com Account")
}
