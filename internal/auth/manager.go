package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Sentinel errors.
var (
	// ErrVerifierNotFound is returned when a callback presents a state value
	// with no stored record. The user must restart authorization.
	ErrVerifierNotFound = errors.New("verifier not found for state, restart authorization")

	// ErrMissingClientID is returned when no Spotify client ID is configured.
	ErrMissingClientID = errors.New("missing Spotify client ID")
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	ClientID    string
	RedirectURI string
	// Endpoint overrides the Spotify OAuth endpoints, for tests.
	Endpoint *oauth2.Endpoint
	States   StateStore
	Tokens   *TokenStore
	Logger   *log.Logger
}

// Manager drives the authorization-code-with-PKCE exchange against Spotify
// and holds the resulting bearer token for the search provider.
type Manager struct {
	conf   *oauth2.Config
	states StateStore
	tokens *TokenStore
	logger *log.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

// NewManager creates a Manager. A previously persisted token is loaded so
// authorization survives restarts.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  spotifyauth.AuthURL,
		TokenURL: spotifyauth.TokenURL,
	}
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	states := cfg.States
	if states == nil {
		states = NewMemoryStateStore()
	}

	m := &Manager{
		conf: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint:    endpoint,
		},
		states: states,
		tokens: cfg.Tokens,
		logger: cfg.Logger,
	}

	if m.tokens != nil {
		token, err := m.tokens.Load()
		if err != nil {
			return nil, fmt.Errorf("loading persisted token: %w", err)
		}
		m.token = token
	}

	return m, nil
}

// Begin starts an authorization attempt: it generates a code verifier and
// state, persists the attempt record, and returns the authorize URL to
// redirect the user to.
func (m *Manager) Begin() (string, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return "", err
	}

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	// The record must be stored before the redirect happens, otherwise a
	// fast callback races the write.
	m.states.Put(state, StateRecord{Verifier: verifier, CreatedAt: time.Now()})

	url := m.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", Challenge(verifier)),
	)
	return url, nil
}

// Exchange completes the flow for a callback carrying state and code. The
// attempt record is consumed before the outcome is known, so a state value
// is usable exactly once regardless of success.
func (m *Manager) Exchange(ctx context.Context, state, code string) (*oauth2.Token, error) {
	rec, ok := m.states.Take(state)
	if !ok {
		// Fall back to the single last-known-state pointer for records
		// stored before per-state keying.
		rec, ok = m.states.TakeLast()
	}
	if !ok {
		return nil, ErrVerifierNotFound
	}

	if age := time.Since(rec.CreatedAt); age > StateTTL {
		m.logf("warn", "authorization attempt is stale", "age", age)
	}

	token, err := m.conf.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", rec.Verifier),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("token endpoint rejected exchange: %s: %s",
				retrieveErr.Response.Status, string(retrieveErr.Body))
		}
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if m.tokens != nil {
		if err := m.tokens.Save(token); err != nil {
			// Auth succeeded; persistence failure only costs a re-login later.
			m.logf("warn", "failed to persist token", "err", err)
		}
	}

	return token, nil
}

// Token returns the current bearer token, or nil when not authorized.
// There is no refresh handling: an expired token makes the Spotify search
// provider report itself unavailable.
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authorized reports whether a usable (present and unexpired) token is held.
func (m *Manager) Authorized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != nil && m.token.Valid()
}

// Logout drops the in-memory token and deletes the persisted copy.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	if m.tokens != nil {
		return m.tokens.Delete()
	}
	return nil
}

func (m *Manager) logf(level, msg string, kv ...any) {
	if m.logger == nil {
		return
	}
	switch level {
	case "warn":
		m.logger.Warn(msg, kv...)
	default:
		m.logger.Info(msg, kv...)
	}
}

// generateState creates a random opaque state value.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
