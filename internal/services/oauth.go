package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/cratedig/internal/shared"
)

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// GoogleOAuthConfig builds the OAuth2 config for YouTube access from the configured client credentials.
func GoogleOAuthConfig(cfg shared.YouTubeConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: youtube client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{youtube.YoutubeScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthCodeURL returns the consent page URL, requesting offline access so a refresh token is issued.
func AuthCodeURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// PersistingTokenSource refreshes tokens through the OAuth config and saves every new token to a store.
type PersistingTokenSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store TokenStore
	last  string
}

// NewPersistingTokenSource loads the stored token and wraps it in a refreshing source.
//
// Returns [shared.ErrNotAuthenticated] when no token has been stored.
func NewPersistingTokenSource(ctx context.Context, config *oauth2.Config, store TokenStore) (*PersistingTokenSource, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &PersistingTokenSource{
		base:  config.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}, nil
}

// Token returns a valid token, saving it when a refresh produced a new access token.
func (p *PersistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*PersistingTokenSource)(nil)
