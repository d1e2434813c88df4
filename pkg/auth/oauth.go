// Package auth obtains and caches the Google OAuth credential used by
// the calendar client. The provider is constructed explicitly from a
// config struct at startup; importing this package has no side effects.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// LocalhostAuthPort is the port the local web server listens on to
// capture the OAuth redirect.
const LocalhostAuthPort = "6789"

// DefaultScopes are the calendar scopes the application asks for:
// read access plus event creation.
func DefaultScopes() []string {
	return []string{
		gcal.CalendarReadonlyScope,
		gcal.CalendarEventsScope,
	}
}

// Config wires a Provider. Paths must be absolute.
type Config struct {
	// ClientSecretsPath is the downloaded Google API credentials.json
	// (client_id, client_secret, redirect_uris).
	ClientSecretsPath string
	// TokenPath is where the obtained token (access + refresh) is cached.
	TokenPath string
	// Scopes defaults to DefaultScopes when empty.
	Scopes []string
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Provider owns the OAuth config and token cache.
type Provider struct {
	oauth     *oauth2.Config
	tokenPath string
	log       *slog.Logger
}

// NewProvider reads the client secrets and returns a ready provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientSecretsPath == "" || cfg.TokenPath == "" {
		return nil, fmt.Errorf("auth: client secrets and token paths are required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	b, err := os.ReadFile(cfg.ClientSecretsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", cfg.ClientSecretsPath, err)
	}
	oc, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	forceLocalhostRedirect(oc, log)

	return &Provider{oauth: oc, tokenPath: cfg.TokenPath, log: log}, nil
}

// forceLocalhostRedirect pins the redirect to our local listener port.
// The Google Cloud Console redirect URI must match what net.Listen binds.
func forceLocalhostRedirect(oc *oauth2.Config, log *slog.Logger) {
	parsed, err := url.Parse(oc.RedirectURL)
	if err == nil && (parsed.Hostname() == "localhost" || parsed.Hostname() == "127.0.0.1") {
		if parsed.Port() != LocalhostAuthPort {
			parsed.Host = fmt.Sprintf("%s:%s", parsed.Hostname(), LocalhostAuthPort)
			oc.RedirectURL = parsed.String()
		}
		return
	}
	if oc.RedirectURL == "urn:ietf:wg:oauth:2.0:oob" || oc.RedirectURL == "" {
		oc.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		return
	}
	log.Warn("redirect URL in client secrets is not a localhost callback", "url", oc.RedirectURL)
}

// Token returns a valid token, refreshing a cached one or running the
// web authorization flow when no cache exists. Refreshed tokens are
// written back to the cache before returning.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := tokenFromFile(p.tokenPath)
	if err != nil {
		p.log.Info("no cached token, starting web authorization flow", "path", p.tokenPath)
		tok, err = p.tokenFromWeb(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(p.tokenPath, tok); err != nil {
			return nil, err
		}
		return tok, nil
	}

	current, err := p.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh cached token: %w", err)
	}
	if current.AccessToken != tok.AccessToken || current.RefreshToken != tok.RefreshToken {
		if err := saveToken(p.tokenPath, current); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// AccessToken returns the bearer credential the calendar client needs.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Client returns an HTTP client that injects and auto-refreshes the
// credential.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}
	return p.oauth.Client(ctx, tok), nil
}

// ClearToken removes the cached token so the next Token call re-runs
// the authorization flow.
func (p *Provider) ClearToken() error {
	err := os.Remove(p.tokenPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file %s: %w", p.tokenPath, err)
	}
	return nil
}

// tokenFromWeb runs the authorization code flow via a local web server:
// the user opens the printed URL, grants access, and the redirect lands
// on our listener with the code.
func (p *Provider) tokenFromWeb(ctx context.Context) (*oauth2.Token, error) {
	codeCh := make(chan string)
	errCh := make(chan error)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code not found in redirect URL")
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// AccessTypeOffline makes Google return a refresh token.
	authURL := p.oauth.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize flowdeck:\n%s\n", authURL)
	p.log.Info("waiting for authorization code", "redirect", p.oauth.RedirectURL)

	select {
	case authCode := <-codeCh:
		exchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := p.oauth.Exchange(exchCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		server.Shutdown(exchCtx)
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(5 * time.Minute):
		server.Shutdown(context.Background())
		return nil, fmt.Errorf("authorization timed out, please try again")
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
