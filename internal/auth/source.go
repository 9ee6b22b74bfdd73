package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is the QuickBooks Time token endpoint used for refreshes.
const DefaultTokenURL = "https://rest.tsheets.com/api/v1/grant"

// Credentials selects how requests are authenticated. A non-empty
// AccessToken is used as-is and bypasses the store.
type Credentials struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewHTTPClient returns an HTTP client that attaches a bearer token to every
// request, refreshing and persisting it through store when it expires.
func NewHTTPClient(ctx context.Context, creds Credentials, store Store, logger *zap.Logger) (*http.Client, error) {
	source, err := TokenSource(ctx, creds, store, logger)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, source), nil
}

// TokenSource builds the token source for creds.
func TokenSource(ctx context.Context, creds Credentials, store Store, logger *zap.Logger) (oauth2.TokenSource, error) {
	if creds.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}), nil
	}
	if store == nil {
		return nil, fmt.Errorf("no access token configured and no token store: %w", ErrNoToken)
	}

	token, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	persisting := &persistingSource{
		ctx:    ctx,
		base:   cfg.TokenSource(ctx, token),
		store:  store,
		last:   token.AccessToken,
		logger: logger,
	}
	return oauth2.ReuseTokenSource(token, persisting), nil
}

// persistingSource writes every newly issued token back to the store.
type persistingSource struct {
	ctx    context.Context //nolint:containedctx // oauth2.TokenSource has no context parameter
	base   oauth2.TokenSource
	store  Store
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource.
func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.last {
		return token, nil
	}
	s.last = token.AccessToken
	if err := s.store.Save(s.ctx, token); err != nil {
		// The refreshed token is still usable for this process.
		s.logger.Warn("saving refreshed token failed", zap.Error(err))
		return token, nil
	}
	s.logger.Info("refreshed token saved", zap.Time("expiry", token.Expiry))
	return token, nil
}
