package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: HMAC-SHA1 is what OAuth 1.0a specifies
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vizydrop/gallery/pkg/clients"
)

// Signer authenticates an outbound request descriptor for one credential
// kind. Signers never fail on missing credential fields: required-field
// validation happens upstream, and a request signed with whatever is
// present fails at the provider with a clean auth error instead of here.
type Signer interface {
	Sign(ctx context.Context, account *Account, req *clients.SignedRequest) (*clients.SignedRequest, error)
}

// TokenPlacement selects where a bearer/static token goes on the request.
type TokenPlacement int

const (
	// PlaceHeader puts the token in the Authorization header.
	PlaceHeader TokenPlacement = iota
	// PlaceQuery appends the token as a query parameter.
	PlaceQuery
)

// BearerSigner signs requests with an OAuth2 access token, ensuring the
// token is fresh first.
type BearerSigner struct {
	Guard *TokenGuard
	App   OAuthApp
	// Placement defaults to PlaceHeader. QueryParam names the query
	// parameter when Placement is PlaceQuery.
	Placement  TokenPlacement
	QueryParam string
	// Scheme overrides the Authorization scheme ("Bearer" by default;
	// some providers want "token").
	Scheme string
}

// Sign refreshes the token if needed and attaches it to the request. The
// token value comes back from the guard's locked read, never from a bare
// read of the shared account, so concurrent refreshes cannot tear it.
func (s *BearerSigner) Sign(ctx context.Context, account *Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	token := account.AccessToken
	if s.Guard != nil {
		fresh, err := s.Guard.EnsureFresh(ctx, account, s.App)
		if err != nil {
			return nil, err
		}
		token = fresh
	}

	signed := req.Clone()
	if token == "" {
		return signed, nil
	}

	if s.Placement == PlaceQuery {
		param := s.QueryParam
		if param == "" {
			param = "access_token"
		}
		signed.URL = appendQuery(signed.URL, param, token)
		return signed, nil
	}

	scheme := s.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	return signed.WithHeader("Authorization", scheme+" "+token), nil
}

// BasicSigner signs requests with HTTP Basic credentials.
type BasicSigner struct{}

// Sign attaches the Authorization: Basic header.
func (s *BasicSigner) Sign(_ context.Context, account *Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	signed := req.Clone()
	if account.Username == "" && account.Password == "" {
		return signed, nil
	}
	cred := base64.StdEncoding.EncodeToString([]byte(account.Username + ":" + account.Password))
	return signed.WithHeader("Authorization", "Basic "+cred), nil
}

// QueryTokenSigner appends a static API token as query parameters.
// Some providers take a single parameter, others a key/token pair.
type QueryTokenSigner struct {
	// TokenParam names the token parameter (e.g. "token").
	TokenParam string
	// KeyParam and Key optionally add the application key parameter.
	KeyParam string
	Key      string
}

// Sign appends the token (and optional key) to the request URL.
func (s *QueryTokenSigner) Sign(_ context.Context, account *Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	signed := req.Clone()
	if s.KeyParam != "" && s.Key != "" {
		signed.URL = appendQuery(signed.URL, s.KeyParam, s.Key)
	}
	token := account.APIToken
	if token == "" {
		token = account.AccessToken
	}
	if token != "" {
		signed.URL = appendQuery(signed.URL, s.TokenParam, token)
	}
	return signed, nil
}

// OAuth1Signer signs requests per OAuth 1.0a with the HMAC-SHA1 method.
// There is no expiration or refresh concept for these tokens.
type OAuth1Signer struct {
	ConsumerKey    string
	ConsumerSecret string

	// nonce and clock are overridable for deterministic tests.
	nonce func() string
	clock func() time.Time
}

// NewOAuth1Signer creates an OAuth1 signer for the given consumer pair.
func NewOAuth1Signer(consumerKey, consumerSecret string) *OAuth1Signer {
	return &OAuth1Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		nonce:          randomNonce,
		clock:          time.Now,
	}
}

// Sign computes the oauth_signature over the method, URL and parameters
// and attaches the OAuth Authorization header.
func (s *OAuth1Signer) Sign(_ context.Context, account *Account, req *clients.SignedRequest) (*clients.SignedRequest, error) {
	nonceFn := s.nonce
	if nonceFn == nil {
		nonceFn = randomNonce
	}
	clockFn := s.clock
	if clockFn == nil {
		clockFn = time.Now
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(clockFn().Unix(), 10),
		"oauth_token":            account.AccessToken,
		"oauth_version":          "1.0",
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("oauth1: parse request url: %w", err)
	}

	signature := s.signature(req.Method, parsed, oauthParams, account.AccessSecret)
	oauthParams["oauth_signature"] = signature

	signed := req.Clone()
	return signed.WithHeader("Authorization", authorizationHeader(oauthParams)), nil
}

// signature builds the RFC 5849 signature base string and HMACs it.
func (s *OAuth1Signer) signature(method string, u *url.URL, oauthParams map[string]string, tokenSecret string) string {
	params := make([][2]string, 0, len(oauthParams)+8)
	for k, v := range oauthParams {
		params = append(params, [2]string{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, [2]string{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i][0] != params[j][0] {
			return params[i][0] < params[j][0]
		}
		return params[i][1] < params[j][1]
	})

	pairs := make([]string, len(params))
	for i, p := range params {
		pairs[i] = p[0] + "=" + p[1]
	}

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(pairs, "&"))
	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func authorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = percentEncode(k) + "=\"" + percentEncode(params[k]) + "\""
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// percentEncode implements RFC 3986 encoding as OAuth1 requires; it is
// stricter than url.QueryEscape (spaces become %20, not +).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}

// appendQuery adds one query parameter to a raw URL, preserving any
// existing query string.
func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
