// Package base provides the embeddable connector scaffolding shared by
// every provider package: source bookkeeping, credential probing, option
// list shaping and record windowing.
package base

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// Connector implements the provider-independent parts of core.Connector.
// Provider packages embed it and add Validate plus their sources.
type Connector struct {
	name     string
	friendly string
	kind     auth.CredentialKind

	Deps   *core.Deps
	Logger *zap.Logger

	sources []core.Source
	byName  map[string]core.Source
}

// NewConnector creates the shared scaffolding for one provider.
func NewConnector(name, friendly string, kind auth.CredentialKind, deps *core.Deps) *Connector {
	log := zap.NewNop()
	if deps != nil && deps.Logger != nil {
		log = deps.Logger.With(zap.String("connector", name))
	}
	return &Connector{
		name:     name,
		friendly: friendly,
		kind:     kind,
		Deps:     deps,
		Logger:   log,
		byName:   make(map[string]core.Source),
	}
}

// Name returns the connector identifier.
func (c *Connector) Name() string { return c.name }

// FriendlyName returns the display name.
func (c *Connector) FriendlyName() string { return c.friendly }

// Kind returns the credential kind accounts of this connector carry.
func (c *Connector) Kind() auth.CredentialKind { return c.kind }

// AddSource registers one dataset with the connector.
func (c *Connector) AddSource(s core.Source) {
	c.sources = append(c.sources, s)
	c.byName[s.Name()] = s
}

// Sources lists the connector's datasets in registration order.
func (c *Connector) Sources() []core.Source { return c.sources }

// Source looks a dataset up by name.
func (c *Connector) Source(name string) (core.Source, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// ValidateByProbe signs and issues a cheap GET and maps the outcome to
// the structured validate result: 2xx is valid, 401/403 is bad
// credentials, anything else surfaces the status.
func (c *Connector) ValidateByProbe(ctx context.Context, account *auth.Account, signer auth.Signer, probeURL string) (bool, string) {
	if !account.Enabled {
		return false, "account is disabled"
	}

	req := clients.NewSignedRequest(http.MethodGet, probeURL)
	signed, err := signer.Sign(ctx, account, req)
	if err != nil {
		return false, err.Error()
	}

	resp, err := c.Deps.HTTPClient.Fetch(ctx, signed)
	if err != nil {
		return false, err.Error()
	}

	switch {
	case resp.IsSuccess():
		return true, ""
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, "authorization failed, please re-authenticate the account"
	default:
		return false, fmt.Sprintf("provider returned status %d", resp.StatusCode)
	}
}

// AccountTitle returns the static display name. Providers that can
// resolve a per-account title override this, usually via TitleByProbe.
func (c *Connector) AccountTitle(_ context.Context, _ *auth.Account) string {
	return c.friendly
}

// TitleByProbe issues a signed GET against a profile endpoint and picks
// the title out of the decoded JSON object. Any failure along the way
// yields the fallback; a missing account title is cosmetic, never fatal.
func (c *Connector) TitleByProbe(ctx context.Context, account *auth.Account, signer auth.Signer, probeURL string, pick func(map[string]interface{}) string, fallback string) string {
	signed, err := signer.Sign(ctx, account, clients.NewSignedRequest(http.MethodGet, probeURL))
	if err != nil {
		return fallback
	}
	resp, err := c.Deps.HTTPClient.Fetch(ctx, signed)
	if err != nil || !resp.IsSuccess() {
		return fallback
	}
	var profile map[string]interface{}
	if err := jsonpool.Unmarshal(resp.Body, &profile); err != nil {
		return fallback
	}
	if title := pick(profile); title != "" {
		return title
	}
	return fallback
}

// ShapeOptions deduplicates options by value and sorts them by title.
// Option enumeration across concurrent pages produces no stable order of
// its own, so the shape here is the contract.
func ShapeOptions(options []core.Option) []core.Option {
	seen := make(map[string]struct{}, len(options))
	shaped := make([]core.Option, 0, len(options))
	for _, opt := range options {
		if _, dup := seen[opt.Value]; dup {
			continue
		}
		seen[opt.Value] = struct{}{}
		shaped = append(shaped, opt)
	}

	sort.SliceStable(shaped, func(i, j int) bool {
		return shaped[i].Title < shaped[j].Title
	})
	return shaped
}

// ErrUnknownOptionField builds the error for an option field the source
// does not enumerate.
func ErrUnknownOptionField(source, field string) error {
	return errors.Newf(errors.ErrorTypeValidation,
		"source %s has no option field %q", source, field)
}

// Window applies limit/skip at the record level. Sources call Admit for
// each record in provider order; it reports whether to emit the record,
// and Full reports when the limit is reached so pagination can stop.
type Window struct {
	skip    int
	limit   int
	skipped int
	emitted int
}

// NewWindow creates a record window. limit <= 0 means unbounded.
func NewWindow(limit, skip int) *Window {
	return &Window{skip: skip, limit: limit}
}

// Admit reports whether the next record in order is inside the window.
func (w *Window) Admit() bool {
	if w.skipped < w.skip {
		w.skipped++
		return false
	}
	if w.Full() {
		return false
	}
	w.emitted++
	return true
}

// Full reports whether the limit has been reached.
func (w *Window) Full() bool {
	return w.limit > 0 && w.emitted >= w.limit
}

// Emitted returns how many records were admitted.
func (w *Window) Emitted() int { return w.emitted }
