package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// newTestManager wires a Manager against a fake token endpoint. The handler
// may be nil for tests that never reach the exchange.
func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewManager(ManagerConfig{
		ClientID:    "test-client",
		RedirectURI: "http://127.0.0.1:8080/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/api/token",
		},
		Tokens: NewTokenStore(filepath.Join(t.TempDir(), "token.json")),
	})
	if err != nil {
		t.Fatalf("NewManager() = %v", err)
	}
	return m, srv
}

func tokenHandler(t *testing.T, wantVerifier string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing token request form: %v", err)
		}
		if wantVerifier != "" && r.Form.Get("code_verifier") != wantVerifier {
			t.Errorf("code_verifier = %q, want %q", r.Form.Get("code_verifier"), wantVerifier)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

// beginAndParse starts an authorization attempt and returns the state and
// code challenge from the generated URL.
func beginAndParse(t *testing.T, m *Manager) (state, challenge string) {
	t.Helper()
	authURL, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin() = %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", q.Get("code_challenge_method"))
	}
	return q.Get("state"), q.Get("code_challenge")
}

func TestExchangeSuccess(t *testing.T) {
	m, _ := newTestManager(t, tokenHandler(t, ""))

	state, challenge := beginAndParse(t, m)
	if state == "" || challenge == "" {
		t.Fatal("Begin() produced empty state or challenge")
	}

	token, err := m.Exchange(context.Background(), state, "auth-code")
	if err != nil {
		t.Fatalf("Exchange() = %v", err)
	}
	if token.AccessToken != "test-access-token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if !m.Authorized() {
		t.Error("Authorized() = false after successful exchange")
	}
}

func TestExchangeStateSingleUse(t *testing.T) {
	m, _ := newTestManager(t, tokenHandler(t, ""))

	state, _ := beginAndParse(t, m)
	if _, err := m.Exchange(context.Background(), state, "auth-code"); err != nil {
		t.Fatalf("first Exchange() = %v", err)
	}

	// Second callback with the same state must fail: the record was consumed.
	_, err := m.Exchange(context.Background(), state, "auth-code")
	if !errors.Is(err, ErrVerifierNotFound) {
		t.Errorf("second Exchange() = %v, want ErrVerifierNotFound", err)
	}
}

func TestExchangeStateConsumedOnFailure(t *testing.T) {
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	state, _ := beginAndParse(t, m)
	_, err := m.Exchange(context.Background(), state, "bad-code")
	if err == nil {
		t.Fatal("Exchange() succeeded, want provider error")
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("Exchange() error %q does not surface provider body", err)
	}

	// Failed attempts also consume the record.
	_, err = m.Exchange(context.Background(), state, "bad-code")
	if !errors.Is(err, ErrVerifierNotFound) {
		t.Errorf("retry Exchange() = %v, want ErrVerifierNotFound", err)
	}
}

func TestExchangeUnknownState(t *testing.T) {
	m, _ := newTestManager(t, tokenHandler(t, ""))

	_, err := m.Exchange(context.Background(), "never-issued", "auth-code")
	if !errors.Is(err, ErrVerifierNotFound) {
		t.Errorf("Exchange() = %v, want ErrVerifierNotFound", err)
	}
}

func TestExchangeLastStateFallback(t *testing.T) {
	m, _ := newTestManager(t, tokenHandler(t, ""))

	beginAndParse(t, m)

	// Present a state value that was never stored; the single last-known
	// record should be consumed instead.
	if _, err := m.Exchange(context.Background(), "unknown-state", "auth-code"); err != nil {
		t.Fatalf("Exchange() with fallback = %v", err)
	}

	// The fallback pointer is gone too.
	_, err := m.Exchange(context.Background(), "unknown-state", "auth-code")
	if !errors.Is(err, ErrVerifierNotFound) {
		t.Errorf("second fallback Exchange() = %v, want ErrVerifierNotFound", err)
	}
}

func TestChallengeMatchesVerifierSentToTokenEndpoint(t *testing.T) {
	var gotVerifier string
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotVerifier = r.Form.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})

	state, challenge := beginAndParse(t, m)
	if _, err := m.Exchange(context.Background(), state, "auth-code"); err != nil {
		t.Fatalf("Exchange() = %v", err)
	}
	if Challenge(gotVerifier) != challenge {
		t.Errorf("challenge in auth URL does not match verifier sent to token endpoint")
	}
}

func TestTokenPersistence(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(filepath.Join(dir, "token.json"))

	srv := httptest.NewServer(tokenHandler(t, ""))
	defer srv.Close()
	endpoint := &oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/api/token"}

	m, err := NewManager(ManagerConfig{
		ClientID: "test-client",
		Endpoint: endpoint,
		Tokens:   store,
	})
	if err != nil {
		t.Fatalf("NewManager() = %v", err)
	}

	state, _ := beginAndParse(t, m)
	if _, err := m.Exchange(context.Background(), state, "auth-code"); err != nil {
		t.Fatalf("Exchange() = %v", err)
	}

	// A fresh manager over the same store picks the token up.
	m2, err := NewManager(ManagerConfig{
		ClientID: "test-client",
		Endpoint: endpoint,
		Tokens:   store,
	})
	if err != nil {
		t.Fatalf("NewManager() reload = %v", err)
	}
	if !m2.Authorized() {
		t.Error("reloaded manager not authorized")
	}

	if err := m2.Logout(); err != nil {
		t.Fatalf("Logout() = %v", err)
	}
	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after logout = %v", err)
	}
	if token != nil {
		t.Error("token survived logout")
	}
}

func TestNewManagerMissingClientID(t *testing.T) {
	_, err := NewManager(ManagerConfig{})
	if !errors.Is(err, ErrMissingClientID) {
		t.Errorf("NewManager() = %v, want ErrMissingClientID", err)
	}
}
