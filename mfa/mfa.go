// Package mfa owns TOTP enrollment state: one shared secret per identity,
// plus the one-time recovery codes that back it up. Secrets live in the
// opaque blob store and leave this package only as the base32 string handed
// to the enrolling authenticator or as transient key bytes at verify time.
package mfa

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tickersense/authgate/persistence"
	"github.com/tickersense/authgate/totp"
)

// ErrNotEnrolled is returned when an identity has no stored secret.
var ErrNotEnrolled = errors.New("mfa: not enrolled")

const keyPrefix = "secrets/"

// record is the persisted per-identity enrollment blob.
type record struct {
	Secret     string    `json:"secret"`
	EnrolledAt time.Time `json:"enrolled_at"`
	Recovery   []string  `json:"recovery,omitempty"` // bcrypt hashes, consumed on use
}

// Store manages per-identity enrollments on top of a blob store.
type Store struct {
	blobs  persistence.BlobStore
	gen    totp.Generator
	issuer string

	// RecoveryCost is the bcrypt cost for hashing recovery codes. Zero
	// means bcrypt.DefaultCost.
	RecoveryCost int
}

// NewStore creates an enrollment store. Issuer names this system in
// provisioning URIs.
func NewStore(blobs persistence.BlobStore, gen totp.Generator, issuer string) *Store {
	return &Store{blobs: blobs, gen: gen, issuer: issuer}
}

// Enrollment is what a fresh enrollment hands back to the caller: the
// secret for manual entry and the provisioning URI for QR display. Both are
// shown once; afterwards the secret is only reachable as key bytes.
type Enrollment struct {
	Secret string
	URI    string
}

// Enroll generates and persists a new secret for identity. Enrolling an
// already-enrolled identity replaces the old secret and invalidates any
// outstanding recovery codes; the previous authenticator stops working.
func (s *Store) Enroll(ctx context.Context, identity string) (*Enrollment, error) {
	secret, err := totp.NewSecret()
	if err != nil {
		return nil, err
	}

	rec := record{Secret: secret, EnrolledAt: time.Now()}
	if err := s.save(ctx, identity, &rec); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret: secret,
		URI:    s.gen.KeyURI(s.issuer, identity, secret),
	}, nil
}

// Secret returns the stored base32 secret for identity, or ErrNotEnrolled.
func (s *Store) Secret(ctx context.Context, identity string) (string, error) {
	rec, err := s.load(ctx, identity)
	if err != nil {
		return "", err
	}
	return rec.Secret, nil
}

// Enrolled reports whether identity has a usable stored secret. A blob that
// fails to parse counts as not enrolled.
func (s *Store) Enrolled(ctx context.Context, identity string) (bool, error) {
	_, err := s.load(ctx, identity)
	if errors.Is(err, ErrNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Unenroll removes the stored secret and recovery codes for identity.
func (s *Store) Unenroll(ctx context.Context, identity string) error {
	return s.blobs.Delete(ctx, keyPrefix+identity)
}

func (s *Store) load(ctx context.Context, identity string) (*record, error) {
	raw, err := s.blobs.Get(ctx, keyPrefix+identity)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("mfa: load enrollment: %w", err)
	}

	// Stored state is a cache of enrollments: content that does not parse
	// is treated as absent, not as a hard failure.
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ErrNotEnrolled
	}
	if rec.Secret == "" {
		return nil, ErrNotEnrolled
	}
	return &rec, nil
}

func (s *Store) save(ctx context.Context, identity string, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, keyPrefix+identity, raw); err != nil {
		return fmt.Errorf("mfa: save enrollment: %w", err)
	}
	return nil
}

// IssueRecoveryCodes generates n one-time recovery codes for an enrolled
// identity, replacing any previously issued set. The plaintext codes are
// returned exactly once; only bcrypt hashes are stored.
func (s *Store) IssueRecoveryCodes(ctx context.Context, identity string, n int) ([]string, error) {
	rec, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	cost := s.RecoveryCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := newRecoveryCode()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, string(hash))
	}

	rec.Recovery = hashes
	if err := s.save(ctx, identity, rec); err != nil {
		return nil, err
	}
	return codes, nil
}

// UseRecoveryCode consumes a recovery code. A matching code is removed from
// the stored set before the call reports success, so each code works once.
// An unknown code and an unenrolled identity both report false.
func (s *Store) UseRecoveryCode(ctx context.Context, identity, code string) (bool, error) {
	rec, err := s.load(ctx, identity)
	if errors.Is(err, ErrNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	for i, hash := range rec.Recovery {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil {
			rec.Recovery = append(rec.Recovery[:i], rec.Recovery[i+1:]...)
			if err := s.save(ctx, identity, rec); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// newRecoveryCode draws 40 bits from the CSPRNG and formats them as two
// dash-separated base32 groups, e.g. "Q2VH-A7XR".
func newRecoveryCode() (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mfa: generate recovery code: %w", err)
	}
	s := totp.Encode(raw)
	return s[:4] + "-" + s[4:], nil
}
