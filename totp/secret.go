package totp

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"strconv"
)

// SecretBytes is the raw entropy per generated secret: 160 bits, which
// renders as exactly 32 unpadded base32 symbols.
const SecretBytes = 20

// NewSecret generates a fresh shared secret from the system CSPRNG and
// returns it base32-encoded, ready for manual entry or a provisioning URI.
func NewSecret() (string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return Encode(raw), nil
}

// KeyURI builds the otpauth:// provisioning URI for an enrolled secret, the
// format consumed by authenticator apps:
//
//	otpauth://totp/<issuer>:<account>?secret=…&issuer=…&algorithm=SHA1&digits=6&period=30
//
// Issuer and account are percent-encoded in the label segment.
func (g Generator) KeyURI(issuer, account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", strconv.Itoa(g.digits()))
	v.Set("period", strconv.Itoa(g.period()))

	label := url.PathEscape(issuer + ":" + account)
	return "otpauth://totp/" + label + "?" + v.Encode()
}
