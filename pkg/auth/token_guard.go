package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/metrics"
)

// OAuthApp holds the registered application credentials for one provider.
type OAuthApp struct {
	Provider     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// TokenGuard owns token refresh for OAuth2 accounts. Refresh is
// single-flight per account id: concurrent operations on the same account
// block until one refresh completes instead of racing to the token
// endpoint and invalidating each other's new token.
type TokenGuard struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTokenGuard creates a token guard. The HTTP client is used only for
// token endpoint calls; nil selects a default with a 30s timeout.
func NewTokenGuard(httpClient *http.Client, logger *zap.Logger) *TokenGuard {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenGuard{
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "token_guard")),
		locks:      make(map[string]*sync.Mutex),
	}
}

// EnsureFresh guarantees the account carries a non-expired access token,
// refreshing if needed, and returns the token value to sign with. Every
// read and write of the account's token fields happens under the
// per-account lock, so a signer never observes a half-applied refresh;
// callers must use the returned token instead of re-reading the shared
// field. Accounts without a refresh token proceed with the stale token;
// the provider's auth failure surfaces downstream. On refresh failure
// the account is left unmodified.
func (tg *TokenGuard) EnsureFresh(ctx context.Context, account *Account, app OAuthApp) (string, error) {
	lock := tg.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	if !account.Expired() {
		return account.AccessToken, nil
	}
	if !account.CanRefresh() {
		tg.logger.Debug("token expired but account has no refresh token",
			zap.String("account_id", account.ID))
		return account.AccessToken, nil
	}

	if err := tg.refresh(ctx, account, app); err != nil {
		return "", err
	}
	return account.AccessToken, nil
}

// refresh calls the provider token endpoint. Caller holds the account lock.
func (tg *TokenGuard) refresh(ctx context.Context, account *Account, app OAuthApp) error {
	conf := &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Scopes:       app.Scopes,
		Endpoint:     app.Endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, tg.httpClient)
	token, err := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: account.RefreshToken,
	}).Token()
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(app.Provider, "failure").Inc()
		tg.logger.Warn("token refresh failed",
			zap.String("account_id", account.ID),
			zap.String("provider", app.Provider),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeAuthentication, "token refresh failed")
	}

	account.AccessToken = token.AccessToken
	account.TokenExpiration = token.Expiry
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}

	metrics.TokenRefreshes.WithLabelValues(app.Provider, "success").Inc()
	tg.logger.Info("access token refreshed",
		zap.String("account_id", account.ID),
		zap.String("provider", app.Provider),
		zap.Time("expires", account.TokenExpiration))

	return nil
}

func (tg *TokenGuard) accountLock(id string) *sync.Mutex {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	lock, ok := tg.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		tg.locks[id] = lock
	}
	return lock
}
