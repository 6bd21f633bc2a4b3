package session

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func signedToken(t *testing.T, claims jwt.MapClaims) *oauth2.Token {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return &oauth2.Token{AccessToken: raw}
}

func TestIdentityHint(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"email": "admin@example.com",
		"sub":   "auth0|5f7c8ec7c33c6c004bbafe82",
	})
	if got := IdentityHint(token); got != "admin@example.com" {
		t.Errorf("Expected the email claim, got %q", got)
	}
}

func TestIdentityHintFallsBackToSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub": "auth0|5f7c8ec7c33c6c004bbafe82",
	})
	if got := IdentityHint(token); got != "auth0|5f7c8ec7c33c6c004bbafe82" {
		t.Errorf("Expected the sub claim, got %q", got)
	}
}

func TestIdentityHintOpaqueToken(t *testing.T) {
	if got := IdentityHint(&oauth2.Token{AccessToken: "not-a-jwt"}); got != "" {
		t.Errorf("Expected no hint from an opaque token, got %q", got)
	}
	if got := IdentityHint(&oauth2.Token{}); got != "" {
		t.Errorf("Expected no hint from an empty token, got %q", got)
	}
	if got := IdentityHint(nil); got != "" {
		t.Errorf("Expected no hint from a nil token, got %q", got)
	}
}

func TestBeginInfersIdentityFromToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{})

	token := signedToken(t, jwt.MapClaims{"email": "ops@example.com"})
	if _, err := m.Begin(ctx, "", token); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Identity(ctx) != "ops@example.com" {
		t.Errorf("Expected the inferred identity, got %q", m.Identity(ctx))
	}
}
