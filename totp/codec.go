package totp

import (
	"encoding/base32"
	"fmt"
	"strings"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Decode converts a base32 shared secret to raw key bytes. Case and
// whitespace are normalized and trailing padding is stripped first; any
// remaining symbol outside the base32 alphabet is an error, so a corrupted
// secret never reaches verification. DecodeLenient keeps the
// skip-and-continue behavior for callers that want it.
func Decode(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	s = strings.TrimRight(s, "=")

	key, err := b32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("totp: decode secret: %w", err)
	}
	return key, nil
}

// DecodeLenient decodes a base32 secret the forgiving way: symbols outside
// the alphabet are skipped rather than rejected, and a trailing group of
// fewer than 8 bits is discarded. Use only when the input is known to carry
// cosmetic noise (spaces, dashes from manual entry).
func DecodeLenient(secret string) []byte {
	var (
		buf  uint32
		bits uint
		out  []byte
	)
	for _, r := range strings.ToUpper(secret) {
		v := strings.IndexRune(alphabet, r)
		if v < 0 {
			continue
		}
		buf = buf<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}
	return out
}

// Encode renders raw key bytes as an unpadded base32 secret.
func Encode(key []byte) string {
	return b32.EncodeToString(key)
}
