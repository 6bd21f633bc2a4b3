package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tickersense/authgate/audit"
	"github.com/tickersense/authgate/persistence"
)

// ErrNoSession is returned by operations that need a live session when
// none exists or the session has lapsed.
var ErrNoSession = errors.New("session: no active session")

// DefaultTimeout is the idle timeout applied when the config leaves it
// unset.
const DefaultTimeout = 30 * time.Minute

// sessionKey is the blob store entry the session round-trips through.
const sessionKey = "session"

// EnrollmentChecker reports whether an identity has an enrolled TOTP
// secret. The manager uses it to decide whether an unverified session can
// count as fully authenticated.
type EnrollmentChecker func(ctx context.Context, identity string) (bool, error)

// Config carries the manager's settings.
type Config struct {
	// Timeout is the sliding idle timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// SweepInterval is how often the background sweep re-evaluates expiry
	// so state flips without waiting for the next query. Zero disables
	// the sweep; expiry is then only evaluated lazily.
	SweepInterval time.Duration

	// Enrolled gates the fully-authenticated shortcut for identities with
	// no TOTP secret. When nil, every identity is assumed enrolled and
	// only a verified session counts as fully authenticated.
	Enrolled EnrollmentChecker

	// Recorder receives session lifecycle events. Optional.
	Recorder *audit.Recorder
}

// Manager owns the session and enforces its lifecycle. All methods are
// safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	current *Session
	closed  bool

	blobs    persistence.BlobStore
	timeout  time.Duration
	enrolled EnrollmentChecker
	recorder *audit.Recorder
	now      func() time.Time
	done     chan struct{}
}

// NewManager creates a session manager over the given blob store, resuming
// any persisted unexpired session. Call Close to stop the background sweep.
func NewManager(blobs persistence.BlobStore, cfg Config) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := &Manager{
		blobs:    blobs,
		timeout:  timeout,
		enrolled: cfg.Enrolled,
		recorder: cfg.Recorder,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	m.restore(context.Background())

	if cfg.SweepInterval > 0 {
		go m.sweepLoop(cfg.SweepInterval)
	}
	return m
}

// restore reloads the persisted session. Content that does not parse, or a
// session that lapsed while the process was down, reads as no session.
func (m *Manager) restore(ctx context.Context) {
	raw, err := m.blobs.Get(ctx, sessionKey)
	if err != nil {
		return
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.Identity == "" {
		_ = m.blobs.Delete(ctx, sessionKey)
		return
	}
	if sess.expired(m.now(), m.timeout) {
		_ = m.blobs.Delete(ctx, sessionKey)
		m.record(ctx, audit.NewEvent(audit.EventSessionExpired).
			Identity(sess.Identity).Session(sess.ID).Success().
			Message("persisted session lapsed").Build())
		return
	}
	m.current = &sess
}

// Begin starts a session for identity holding an externally issued token,
// replacing any session already live. An empty identity falls back to the
// token's JWT claims; if neither names the identity, Begin fails.
func (m *Manager) Begin(ctx context.Context, identity string, token *oauth2.Token) (*Session, error) {
	if identity == "" {
		identity = IdentityHint(token)
	}
	if identity == "" {
		return nil, errors.New("session: identity required")
	}

	now := m.now()
	sess := &Session{
		ID:           uuid.NewString(),
		Identity:     identity,
		Token:        token,
		IssuedAt:     now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.timeout),
	}

	m.mu.Lock()
	m.current = sess
	m.persistLocked(ctx)
	m.mu.Unlock()

	m.record(ctx, audit.NewEvent(audit.EventSessionCreated).
		Identity(identity).Session(sess.ID).Success().Build())

	out := *sess
	return &out, nil
}

// MarkVerified flags the session as having passed the TOTP step and
// refreshes its expiry. The session may have lapsed while the code was
// being checked, so expiry is re-evaluated under the lock before the flag
// commits.
func (m *Manager) MarkVerified(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoSession
	}
	now := m.now()
	if m.current.expired(now, m.timeout) {
		m.expireLocked(ctx)
		return ErrNoSession
	}

	m.current.TOTPVerified = true
	m.current.LastActivity = now
	m.current.ExpiresAt = now.Add(m.timeout)
	m.persistLocked(ctx)

	m.record(ctx, audit.NewEvent(audit.EventSessionVerified).
		Identity(m.current.Identity).Session(m.current.ID).Success().Build())
	return nil
}

// Touch records user activity, sliding the idle window forward. Touching a
// lapsed or absent session is a no-op.
func (m *Manager) Touch(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	now := m.now()
	if m.current.expired(now, m.timeout) {
		m.expireLocked(ctx)
		return
	}

	m.current.LastActivity = now
	m.current.ExpiresAt = now.Add(m.timeout)
	m.persistLocked(ctx)
}

// UpdateToken swaps in a refreshed token without disturbing the rest of
// the session.
func (m *Manager) UpdateToken(ctx context.Context, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.expired(m.now(), m.timeout) {
		return ErrNoSession
	}

	m.current.Token = token
	m.persistLocked(ctx)

	m.record(ctx, audit.NewEvent(audit.EventSessionRefreshed).
		Identity(m.current.Identity).Session(m.current.ID).Success().Build())
	return nil
}

// Current returns a copy of the live session.
func (m *Manager) Current(ctx context.Context) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authenticatedLocked(ctx) {
		return Session{}, false
	}
	return *m.current, true
}

// Identity returns the live session's identity, or "".
func (m *Manager) Identity(ctx context.Context) string {
	sess, ok := m.Current(ctx)
	if !ok {
		return ""
	}
	return sess.Identity
}

// Authenticated reports whether an unexpired session exists. A lapsed
// session is discarded here, so the answer flips without any logout call.
func (m *Manager) Authenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked(ctx)
}

// FullyAuthenticated reports whether the session cleared every required
// factor: unexpired, and TOTP-verified unless the identity has no enrolled
// secret. An enrollment check failure fails closed.
func (m *Manager) FullyAuthenticated(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullyAuthenticatedLocked(ctx)
}

// State derives the lifecycle state. Enrollment check failures read as
// primary-authenticated rather than an error.
func (m *Manager) State(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authenticatedLocked(ctx) {
		return StateUnauthenticated
	}
	if full, err := m.fullyAuthenticatedLocked(ctx); err == nil && full {
		return StateFull
	}
	return StatePrimary
}

// Logout discards the session. Logging out with no session is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	m.record(ctx, audit.NewEvent(audit.EventLogout).
		Identity(m.current.Identity).Session(m.current.ID).Success().Build())
	m.current = nil
	_ = m.blobs.Delete(ctx, sessionKey)
}

// Close stops the background sweep. The manager stays queryable; only the
// proactive expiry evaluation ends.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

func (m *Manager) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Authenticated(context.Background())
		}
	}
}

func (m *Manager) authenticatedLocked(ctx context.Context) bool {
	if m.current == nil {
		return false
	}
	if m.current.expired(m.now(), m.timeout) {
		m.expireLocked(ctx)
		return false
	}
	return true
}

func (m *Manager) fullyAuthenticatedLocked(ctx context.Context) (bool, error) {
	if !m.authenticatedLocked(ctx) {
		return false, nil
	}
	if m.current.TOTPVerified {
		return true, nil
	}
	if m.enrolled == nil {
		return false, nil
	}
	enrolled, err := m.enrolled(ctx, m.current.Identity)
	if err != nil {
		return false, err
	}
	return !enrolled, nil
}

func (m *Manager) expireLocked(ctx context.Context) {
	if m.current == nil {
		return
	}
	m.record(ctx, audit.NewEvent(audit.EventSessionExpired).
		Identity(m.current.Identity).Session(m.current.ID).Success().Build())
	m.current = nil
	_ = m.blobs.Delete(ctx, sessionKey)
}

// persistLocked writes the session through the blob store. The store is a
// reload cache: a failed write only costs continuity across a restart, so
// it cannot fail the session operation that triggered it.
func (m *Manager) persistLocked(ctx context.Context) {
	if m.current == nil {
		return
	}
	raw, err := json.Marshal(m.current)
	if err != nil {
		return
	}
	_ = m.blobs.Put(ctx, sessionKey, raw)
}

func (m *Manager) record(ctx context.Context, event *audit.Event) {
	if m.recorder != nil {
		m.recorder.Record(ctx, event)
	}
}
