package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizydrop/gallery/pkg/clients"
)

func TestBearerSignerHeaderPlacement(t *testing.T) {
	signer := &BearerSigner{}
	account := &Account{AccessToken: "tok-123"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.example.com/me"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", signed.Header.Get("Authorization"))
}

func TestBearerSignerSchemeOverride(t *testing.T) {
	signer := &BearerSigner{Scheme: "token"}
	account := &Account{AccessToken: "tok-123"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.github.com/user"))
	require.NoError(t, err)
	assert.Equal(t, "token tok-123", signed.Header.Get("Authorization"))
}

func TestBearerSignerQueryPlacement(t *testing.T) {
	signer := &BearerSigner{Placement: PlaceQuery, QueryParam: "access_token"}
	account := &Account{AccessToken: "tok-123"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.example.com/me?alt=json"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/me?alt=json&access_token=tok-123", signed.URL)
}

func TestBearerSignerMissingTokenDoesNotCrash(t *testing.T) {
	signer := &BearerSigner{}
	signed, err := signer.Sign(context.Background(), &Account{}, clients.NewSignedRequest("GET", "https://api.example.com/me"))
	require.NoError(t, err)
	assert.Empty(t, signed.Header.Get("Authorization"))
}

func TestBasicSigner(t *testing.T) {
	signer := &BasicSigner{}
	account := &Account{Username: "user", Password: "pass"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://jira.example.com/rest/api/2/myself"))
	require.NoError(t, err)
	// base64("user:pass")
	assert.Equal(t, "Basic dXNlcjpwYXNz", signed.Header.Get("Authorization"))
}

func TestQueryTokenSignerWithKey(t *testing.T) {
	signer := &QueryTokenSigner{TokenParam: "token", KeyParam: "key", Key: "app-key"}
	account := &Account{APIToken: "member-token"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.trello.com/1/members/me"))
	require.NoError(t, err)
	assert.Contains(t, signed.URL, "key=app-key")
	assert.Contains(t, signed.URL, "token=member-token")
}

func TestQueryTokenSignerFallsBackToAccessToken(t *testing.T) {
	signer := &QueryTokenSigner{TokenParam: "token"}
	account := &Account{AccessToken: "oauth-token"}

	signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.example.com/x"))
	require.NoError(t, err)
	assert.Contains(t, signed.URL, "token=oauth-token")
}

func TestOAuth1SignerDeterministic(t *testing.T) {
	account := &Account{AccessToken: "token-1", AccessSecret: "secret-1"}

	sign := func() string {
		signer := NewOAuth1Signer("consumer-key", "consumer-secret")
		signer.nonce = func() string { return "fixed-nonce" }
		signer.clock = func() time.Time { return time.Unix(1400000000, 0) }

		signed, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.trello.com/1/members/me?fields=id"))
		require.NoError(t, err)
		return signed.Header.Get("Authorization")
	}

	first, second := sign(), sign()
	assert.Equal(t, first, second)

	assert.True(t, strings.HasPrefix(first, "OAuth "))
	assert.Contains(t, first, `oauth_consumer_key="consumer-key"`)
	assert.Contains(t, first, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, first, `oauth_timestamp="1400000000"`)
	assert.Contains(t, first, `oauth_token="token-1"`)
	assert.Contains(t, first, `oauth_signature="`)
}

func TestOAuth1SignerNonceChangesSignature(t *testing.T) {
	account := &Account{AccessToken: "token-1", AccessSecret: "secret-1"}
	signer := NewOAuth1Signer("consumer-key", "consumer-secret")
	signer.clock = func() time.Time { return time.Unix(1400000000, 0) }

	signer.nonce = func() string { return "nonce-a" }
	a, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.example.com/x"))
	require.NoError(t, err)

	signer.nonce = func() string { return "nonce-b" }
	b, err := signer.Sign(context.Background(), account, clients.NewSignedRequest("GET", "https://api.example.com/x"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Header.Get("Authorization"), b.Header.Get("Authorization"))
}

func TestPercentEncode(t *testing.T) {
	tests := map[string]string{
		"abcXYZ123":   "abcXYZ123",
		"-._~":        "-._~",
		"a b":         "a%20b",
		"a+b":         "a%2Bb",
		"ключ":        "%D0%BA%D0%BB%D1%8E%D1%87",
		"http://x/y?": "http%3A%2F%2Fx%2Fy%3F",
	}
	for in, want := range tests {
		assert.Equal(t, want, percentEncode(in), "input %q", in)
	}
}

func TestAppendQuery(t *testing.T) {
	assert.Equal(t, "https://x/y?k=v", appendQuery("https://x/y", "k", "v"))
	assert.Equal(t, "https://x/y?a=1&k=v", appendQuery("https://x/y?a=1", "k", "v"))
	assert.Equal(t, "https://x/y?k=a+b", appendQuery("https://x/y", "k", "a b"))
}
