package totp

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   []byte
	}{
		{"canonical", "JBSWY3DPEHPK3PXP", []byte("Hello!\xde\xad\xbe\xef")},
		{"lowercase", "jbswy3dpehpk3pxp", []byte("Hello!\xde\xad\xbe\xef")},
		{"grouped", "JBSW Y3DP EHPK 3PXP", []byte("Hello!\xde\xad\xbe\xef")},
		{"padded", "MZXW6YTBOI======", []byte("foobar")},
		{"unpadded", "mzxw6ytboi", []byte("foobar")},
		{"partial chunk", "MZXW6", []byte("foo")},
	}

	for _, tt := range tests {
		got, err := Decode(tt.secret)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestDecodeRejectsBadSymbols(t *testing.T) {
	for _, secret := range []string{"MZXW1YTBOI", "MZXW6YTB0I", "MZXW6-YTBOI", "MZXW8YTBOI"} {
		if _, err := Decode(secret); err == nil {
			t.Errorf("Expected error decoding %q", secret)
		}
	}
}

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   []byte
	}{
		{"clean", "MZXW6YTBOI", []byte("foobar")},
		{"dashed", "MZXW6-YTBOI", []byte("foobar")},
		{"spaced lowercase", "mzxw6 ytboi", []byte("foobar")},
		{"digits skipped", "MZXW16YTB0OI", []byte("foobar")},
		{"all garbage", "-- !!", nil},
	}

	for _, tt := range tests {
		got := DecodeLenient(tt.secret)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		raw    []byte
		secret string
	}{
		{[]byte("Hello!\xde\xad\xbe\xef"), "JBSWY3DPEHPK3PXP"},
		{[]byte("foobar"), "MZXW6YTBOI"},
		{[]byte("12345678901234567890"), "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"},
	}

	for _, tt := range tests {
		if got := Encode(tt.raw); got != tt.secret {
			t.Errorf("Encode(%q): expected %s, got %s", tt.raw, tt.secret, got)
		}
		back, err := Decode(tt.secret)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !bytes.Equal(back, tt.raw) {
			t.Errorf("Decode(%s): expected %q, got %q", tt.secret, tt.raw, back)
		}
	}
}

func TestNewSecret(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(secret) != 32 {
		t.Errorf("Expected 32 symbols, got %d", len(secret))
	}
	for _, r := range secret {
		if !strings.ContainsRune(alphabet, r) {
			t.Errorf("Symbol %q outside the base32 alphabet", r)
		}
	}

	key, err := Decode(secret)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(key) != SecretBytes {
		t.Errorf("Expected %d key bytes, got %d", SecretBytes, len(key))
	}

	other, err := NewSecret()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if secret == other {
		t.Error("Two generated secrets should not match")
	}
}
