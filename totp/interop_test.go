package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	ptotp "github.com/pquerna/otp/totp"
)

// Cross-checks against github.com/pquerna/otp, the implementation most Go
// services pair with the authenticator apps this package targets.

func TestInteropGenerate(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	key, err := Decode(secret)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	g := Generator{}

	opts := ptotp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	for _, at := range []int64{59, 1111111111, 1766000000, 2000000000} {
		when := time.Unix(at, 0)
		theirs, err := ptotp.GenerateCodeCustom(secret, when, opts)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		ours := g.At(key, when)
		if ours != theirs {
			t.Errorf("At(%d): expected %s, got %s", at, theirs, ours)
		}
	}
}

func TestInteropValidate(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	key, err := Decode(secret)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	g := Generator{}
	now := time.Unix(1766000000, 0)

	ok, err := ptotp.ValidateCustom(g.At(key, now), secret, now, ptotp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ok {
		t.Error("Generated code should validate against pquerna/otp")
	}
}

func TestInteropKeyURI(t *testing.T) {
	g := Generator{}
	uri := g.KeyURI("TickerSense", "admin@example.com", "JBSWY3DPEHPK3PXP")

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if key.Type() != "totp" {
		t.Errorf("Expected type totp, got %s", key.Type())
	}
	if key.Issuer() != "TickerSense" {
		t.Errorf("Expected issuer TickerSense, got %s", key.Issuer())
	}
	if key.AccountName() != "admin@example.com" {
		t.Errorf("Expected account admin@example.com, got %s", key.AccountName())
	}
	if key.Secret() != "JBSWY3DPEHPK3PXP" {
		t.Errorf("Unexpected secret %s", key.Secret())
	}
	if key.Period() != 30 {
		t.Errorf("Expected period 30, got %d", key.Period())
	}
}
