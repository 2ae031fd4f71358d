package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/profiles", nil)
	req.Header.Set("Origin", "https://musicard.example")
	rec := doRequest(t, srv, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://musicard.example" {
		t.Errorf("Allow-Origin = %q, want request origin", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("missing Access-Control-Allow-Methods header")
	}
}

func TestCORSHeadersOnRegularRequest(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://musicard.example")
	rec := doRequest(t, srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://musicard.example" {
		t.Errorf("Allow-Origin = %q, want request origin", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodDelete, "/api/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Error != "method not allowed" {
		t.Errorf("error = %q, want method not allowed", body.Error)
	}
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	srv := newTestServer(t)

	expired := expiredToken(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + foreignToken(t)},
		{"expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/upload/image", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := doRequest(t, srv, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

// foreignToken signs claims with a different secret than the server's.
func foreignToken(t *testing.T) string {
	t.Helper()
	other := NewTokenIssuer("some-other-secret", "http://127.0.0.1:8080")
	token, err := other.Issue("alice", false)
	if err != nil {
		t.Fatalf("issuing foreign token: %v", err)
	}
	return token
}

// expiredToken signs claims with the server secret but an expiry in the
// past.
func expiredToken(t *testing.T) string {
	t.Helper()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "http://127.0.0.1:8080",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Username: "alice",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}
	return signed
}

func TestSessionTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "http://127.0.0.1:8080")

	token, err := issuer.Issue("alice", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" || !claims.Admin {
		t.Errorf("claims = %+v, want alice/admin", claims)
	}
	if claims.ID == "" {
		t.Error("want a token ID")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "http://127.0.0.1:8080")
	other := NewTokenIssuer(testSecret, "http://another.example")

	token, err := other.Issue("alice", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("want error for wrong issuer")
	}
}
