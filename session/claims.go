package session

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// IdentityHint extracts an identity label from an access token that
// happens to be a JWT, preferring the email claim over the subject. The
// token is parsed without verification: the hint only labels the session
// locally, it grants nothing. Opaque tokens yield an empty hint.
func IdentityHint(token *oauth2.Token) string {
	if token == nil || token.AccessToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err != nil {
		return ""
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
