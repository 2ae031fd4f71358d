package auth

import (
	"strings"
	"testing"
)

func TestChallenge(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		want     string
	}{
		{
			// RFC 7636 appendix B reference vector.
			name:     "rfc7636 vector",
			verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
			want:     "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		},
		{
			name:     "128 character verifier",
			verifier: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-._~0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
			want:     "-M3PRG_yFUX99qiorFlnC0W1egXPkF64JU809TJCnh4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Challenge(tt.verifier); got != tt.want {
				t.Errorf("Challenge() = %q, want %q", got, tt.want)
			}
			// Deterministic across calls.
			if again := Challenge(tt.verifier); again != tt.want {
				t.Errorf("Challenge() second call = %q, want %q", again, tt.want)
			}
		})
	}
}

func TestGenerateVerifier(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		v, err := GenerateVerifier()
		if err != nil {
			t.Fatalf("GenerateVerifier() = %v", err)
		}
		if len(v) != verifierLength {
			t.Fatalf("verifier length = %d, want %d", len(v), verifierLength)
		}
		for _, r := range v {
			if !strings.ContainsRune(verifierCharset, r) {
				t.Fatalf("verifier contains %q outside unreserved set", r)
			}
		}
		if seen[v] {
			t.Fatal("verifier repeated across generations")
		}
		seen[v] = true
	}
}
