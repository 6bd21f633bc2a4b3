// Package totp implements the RFC 6238 time-based one-time password
// algorithm used for the admin console's second authentication factor.
//
// Codes are derived with HMAC-SHA1 and RFC 4226 dynamic truncation. SHA-1 is
// fixed because it is what the provisioning format advertises and what every
// mainstream authenticator app implements; digits and period are
// configurable through Generator.
//
// # Usage
//
//	secret, _ := totp.NewSecret()
//	key, _ := totp.Decode(secret)
//
//	g := totp.Generator{}
//	code := g.At(key, time.Now())
//	ok := g.Verify(key, code, time.Now())
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultDigits is the code length produced and accepted by default.
	DefaultDigits = 6
	// DefaultPeriod is the time-step length in seconds.
	DefaultPeriod = 30
	// DefaultSkew is the number of adjacent time steps accepted on either
	// side of the current one, tolerating clock drift between the code
	// generator and the verifier.
	DefaultSkew = 2
)

// Generator computes and verifies TOTP codes. The zero value uses the
// default 6-digit, 30-second, ±2-step configuration.
type Generator struct {
	Digits int
	Period int
	Skew   int
}

func (g Generator) digits() int {
	if g.Digits <= 0 {
		return DefaultDigits
	}
	return g.Digits
}

func (g Generator) period() int {
	if g.Period <= 0 {
		return DefaultPeriod
	}
	return g.Period
}

func (g Generator) skew() int {
	if g.Skew <= 0 {
		return DefaultSkew
	}
	return g.Skew
}

// HOTP computes the RFC 4226 code for a raw key and counter value.
func (g Generator) HOTP(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation (RFC 4226 §5.4): the low nibble of the last byte
	// selects a 4-byte window, read big-endian with the sign bit cleared.
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	code %= uint32(math.Pow10(g.digits()))
	return fmt.Sprintf("%0*d", g.digits(), code)
}

// At computes the code for the time step containing t.
func (g Generator) At(key []byte, t time.Time) string {
	return g.HOTP(key, uint64(t.Unix())/uint64(g.period()))
}

// Verify reports whether code matches any candidate in the skew window
// around t. Every candidate step is evaluated and compared in constant
// time; a malformed code is rejected before any HMAC is computed.
func (g Generator) Verify(key []byte, code string, t time.Time) bool {
	if !g.ValidCode(code) {
		return false
	}

	period := g.period()
	match := 0
	for i := -g.skew(); i <= g.skew(); i++ {
		at := t.Add(time.Duration(i*period) * time.Second)
		expected := g.At(key, at)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			match = 1
		}
	}
	return match == 1
}

// ValidCode reports whether code has the exact shape of a generated code:
// g.Digits ASCII decimal digits, nothing else.
func (g Generator) ValidCode(code string) bool {
	if len(code) != g.digits() {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
