// Package session owns the authenticated admin session: one session per
// manager, carrying the externally issued token, the TOTP-verified flag and
// a sliding idle timeout. The manager persists the session through the blob
// store so a process restart resumes where the operator left off, and
// evaluates expiry both lazily on every query and proactively from a
// background sweep.
//
// A session is fully authenticated only when it is unexpired and either the
// TOTP step succeeded or the identity has no enrolled secret to check.
package session

import (
	"time"

	"golang.org/x/oauth2"
)

// State describes where a session is in its lifecycle. The state is
// derived, never stored: expiry flips it without any explicit call.
type State string

const (
	// StateUnauthenticated means no live session exists.
	StateUnauthenticated State = "unauthenticated"
	// StatePrimary means a token was issued but the TOTP step is still
	// outstanding for an enrolled identity.
	StatePrimary State = "primary_authenticated"
	// StateFull means the session cleared every required factor.
	StateFull State = "fully_authenticated"
)

// Session is the authenticated session record. Token is the opaque
// credential the external exchange issued; this package stores it and hands
// it back, it never inspects it beyond the optional identity hint.
type Session struct {
	ID           string        `json:"id"`
	Identity     string        `json:"identity"`
	Token        *oauth2.Token `json:"token,omitempty"`
	TOTPVerified bool          `json:"totp_verified"`
	IssuedAt     time.Time     `json:"issued_at"`
	LastActivity time.Time     `json:"last_activity"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// expired applies the idle-timeout rule: a session lapses when its absolute
// expiry passes or when no activity was seen for a full timeout window.
func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.After(s.ExpiresAt) || now.Sub(s.LastActivity) > timeout
}
