// Package auth drives the Spotify authorization-code flow with PKCE and
// manages the resulting bearer token.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierLength is the code verifier length in characters. RFC 7636 allows
// 43-128; we use the maximum.
const verifierLength = 128

// verifierCharset is the RFC 3986 unreserved character set.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateVerifier creates a 128-character PKCE code verifier from a
// cryptographic random source.
func GenerateVerifier() (string, error) {
	b := make([]byte, verifierLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}
	for i := range b {
		b[i] = verifierCharset[int(b[i])%len(verifierCharset)]
	}
	return string(b), nil
}

// Challenge derives the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
