// Package gmail wraps the Gmail API for the inbox poller and the send_gmail
// tool, including the OAuth2 consent flow and token persistence.
package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// ErrNotAuthenticated is returned when no OAuth token has been stored yet.
// Visiting /auth/google completes the consent flow.
var ErrNotAuthenticated = errors.New("gmail not authenticated: visit /auth/google to authenticate first")

// Scopes requested during consent.
var Scopes = []string{
	gmailapi.GmailReadonlyScope,
	gmailapi.GmailSendScope,
	gmailapi.GmailModifyScope,
}

// AuthConfig holds OAuth client settings.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
}

// Authenticator runs the OAuth2 web flow and owns the stored token.
type Authenticator struct {
	oauth     *oauth2.Config
	tokenPath string
	logger    *zap.Logger

	mu sync.Mutex
}

// NewAuthenticator creates an authenticator against Google's endpoint.
func NewAuthenticator(cfg AuthConfig, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
		logger:    logger,
	}
}

// AuthCodeURL returns the consent page URL. Offline access with a forced
// consent prompt so Google always returns a refresh token.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and stores it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("authorization code is empty")
	}
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := a.saveToken(tok); err != nil {
		return err
	}
	a.logger.Info("Gmail token stored", zap.String("path", a.tokenPath))
	return nil
}

// Authenticated reports whether a token file exists.
func (a *Authenticator) Authenticated() bool {
	_, err := os.Stat(a.tokenPath)
	return err == nil
}

// TokenSource returns a refreshing token source over the stored token.
// Refreshed tokens are written back to the token file.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.loadToken()
	if err != nil {
		return nil, err
	}
	base := a.oauth.TokenSource(ctx, tok)
	return &persistingSource{
		auth:   a,
		base:   base,
		access: tok.AccessToken,
	}, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if dir := filepath.Dir(a.tokenPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	if err := os.WriteFile(a.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// persistingSource saves the token whenever the underlying source refreshes it.
type persistingSource struct {
	auth *Authenticator
	base oauth2.TokenSource

	mu     sync.Mutex
	access string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.access {
		s.access = tok.AccessToken
		if err := s.auth.saveToken(tok); err != nil {
			s.auth.logger.Warn("Failed to persist refreshed Gmail token", zap.Error(err))
		}
	}
	return tok, nil
}
