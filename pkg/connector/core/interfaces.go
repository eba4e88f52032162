// Package core defines the contracts between the gallery host and the
// provider connectors: the connector/source interfaces, filters, and the
// option model for building queries in the host UI.
package core

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/config"
	"github.com/vizydrop/gallery/pkg/schema"
)

// Option is one selectable value for a datalist/autocomplete field.
type Option struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Filter narrows one data-retrieval request. Each source declares its own
// filter type; Validate fails fast before any network call when a
// required field is missing.
type Filter interface {
	Validate() error
}

// OptionLister produces the selectable options for one filter field. The
// partially filled filter lets dependent fields (worksheet within a
// spreadsheet, list within a board) scope the enumeration.
type OptionLister func(ctx context.Context, account *auth.Account, partial Filter) ([]Option, error)

// Source is one dataset a connector exposes (commits, issues, cards).
type Source interface {
	// Name is the stable identifier the host dispatches on.
	Name() string
	// FriendlyName is shown in the host UI.
	FriendlyName() string
	// Schema declares the output fields.
	Schema() schema.Schema
	// ParseFilter decodes this source's filter from raw JSON. An empty
	// body yields a zero-value filter.
	ParseFilter(raw []byte) (Filter, error)
	// ListOptions enumerates selectable values for one filter field.
	ListOptions(ctx context.Context, account *auth.Account, field string, partial Filter) ([]Option, error)
	// GetData streams normalized records into sink as a JSON array.
	// limit and skip paginate at the record level; the source decides
	// how many provider pages that requires. limit <= 0 means all.
	GetData(ctx context.Context, account *auth.Account, filter Filter, limit, skip int, sink io.Writer) error
}

// Connector is one provider integration: authentication plus its sources.
type Connector interface {
	// Name is the stable identifier the host dispatches on.
	Name() string
	// FriendlyName is shown in the host UI.
	FriendlyName() string
	// Kind reports how accounts of this connector authenticate.
	Kind() auth.CredentialKind
	// Validate checks account credentials with a cheap provider call.
	// It always yields a structured outcome, never an error: a non-2xx
	// provider response maps to (false, reason).
	Validate(ctx context.Context, account *auth.Account) (bool, string)
	// AccountTitle resolves a display title for the account (the user's
	// login or full name). Providers that cannot answer fall back to a
	// static default; the method never errors.
	AccountTitle(ctx context.Context, account *auth.Account) string
	// Sources lists the connector's datasets.
	Sources() []Source
	// Source looks a dataset up by name.
	Source(name string) (Source, bool)
}

// Deps carries the shared infrastructure every connector builds on.
type Deps struct {
	HTTPClient *clients.HTTPClient
	TokenGuard *auth.TokenGuard
	Config     *config.Config
	Logger     *zap.Logger
}

// App returns the registered OAuth application credentials for a provider,
// zero-valued when none are configured.
func (d *Deps) App(provider string) auth.OAuthApp {
	app := auth.OAuthApp{Provider: provider}
	if d.Config == nil {
		return app
	}
	creds := d.Config.App(provider)
	app.ClientID = creds.ClientID
	app.ClientSecret = creds.ClientSecret
	if creds.Scope != "" {
		app.Scopes = strings.Fields(creds.Scope)
	}
	return app
}
