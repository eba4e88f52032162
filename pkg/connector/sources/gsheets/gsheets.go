// Package gsheets implements the Google Sheets connector: Google OAuth2
// auth with offline refresh and a sheet source reading the spreadsheet
// list feeds.
package gsheets

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
)

const feedsBase = "https://spreadsheets.google.com/feeds"

func init() {
	registry.MustRegister("gsheets", New)
}

// Connector is the Google Sheets provider integration.
type Connector struct {
	*base.Connector
	signer auth.Signer
}

// New creates the Google Sheets connector.
func New(deps *core.Deps) (core.Connector, error) {
	app := deps.App("gsheets")
	app.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://accounts.google.com/o/oauth2/token",
	}
	if len(app.Scopes) == 0 {
		app.Scopes = []string{
			"https://spreadsheets.google.com/feeds",
			"https://docs.google.com/feeds",
			"https://www.googleapis.com/auth/userinfo.profile",
		}
	}

	c := &Connector{
		Connector: base.NewConnector("gsheets", "Google Sheets", auth.KindOAuth2, deps),
		signer: &feedSigner{
			bearer: &auth.BearerSigner{Guard: deps.TokenGuard, App: app},
		},
	}
	c.AddSource(&sheetSource{c: c})
	return c, nil
}

// feedSigner asks the feeds API for JSON on every request before
// applying the bearer token. The feeds default to Atom XML otherwise.
type feedSigner struct {
	bearer *auth.BearerSigner
}

func (s *feedSigner) Sign(ctx context.Context, account *auth.Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	wrapped := req.Clone()
	sep := "?"
	if strings.Contains(wrapped.URL, "?") {
		sep = "&"
	}
	wrapped.URL += sep + "alt=json"
	return s.bearer.Sign(ctx, account, wrapped)
}

// Validate probes the spreadsheet list feed.
func (c *Connector) Validate(ctx context.Context, account *auth.Account) (bool, string) {
	return c.ValidateByProbe(ctx, account, c.signer, feedsBase+"/spreadsheets/private/full")
}

// AccountTitle resolves the account's email, then name, from the
// userinfo endpoint.
func (c *Connector) AccountTitle(ctx context.Context, account *auth.Account) string {
	return c.TitleByProbe(ctx, account, c.signer, "https://www.googleapis.com/oauth2/v1/userinfo", func(profile map[string]interface{}) string {
		if email, _ := profile["email"].(string); email != "" {
			return email
		}
		name, _ := profile["name"].(string)
		return name
	}, "Google Account")
}
