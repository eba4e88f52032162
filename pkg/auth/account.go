// Package auth implements credential handling for gallery connectors:
// the account model, single-flight OAuth token refresh, and request
// signing for the four credential kinds providers use.
package auth

import (
	"time"
)

// CredentialKind identifies how an account authenticates against its provider.
type CredentialKind string

const (
	// KindOAuth2 uses a bearer access token with optional refresh.
	KindOAuth2 CredentialKind = "oauth2"
	// KindOAuth1 signs each request with HMAC-SHA1 per the OAuth 1.0a flow.
	KindOAuth1 CredentialKind = "oauth1"
	// KindBasic uses HTTP Basic username/password.
	KindBasic CredentialKind = "basic"
	// KindToken appends a static API token to each request.
	KindToken CredentialKind = "token"
)

// Account holds one user's credentials for one provider. The credential
// store owns persistence; the token guard is the only writer of the
// AccessToken/RefreshToken/TokenExpiration triple.
type Account struct {
	ID      string         `json:"id" yaml:"id"`
	Enabled bool           `json:"enabled" yaml:"enabled"`
	Kind    CredentialKind `json:"kind" yaml:"kind"`

	// OAuth2 / OAuth1 token material
	AccessToken     string    `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	RefreshToken    string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	TokenExpiration time.Time `json:"token_expiration,omitempty" yaml:"token_expiration,omitempty"`

	// AccessSecret is the OAuth1 token secret paired with AccessToken.
	AccessSecret string `json:"access_secret,omitempty" yaml:"access_secret,omitempty"`

	// Basic auth
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Static token auth
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// BaseURL points at the provider instance for self-hosted providers
	// (Jira Server, Targetprocess).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// Expired reports whether the access token has a known expiration in the
// past. Accounts without an expiration timestamp never report expired.
func (a *Account) Expired() bool {
	if a.TokenExpiration.IsZero() {
		return false
	}
	return !a.TokenExpiration.After(time.Now())
}

// CanRefresh reports whether a refresh attempt is possible at all.
func (a *Account) CanRefresh() bool {
	return a.RefreshToken != ""
}
