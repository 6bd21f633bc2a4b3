package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/tickersense/authgate/audit"
	"github.com/tickersense/authgate/persistence"
)

func alwaysEnrolled(ctx context.Context, identity string) (bool, error) {
	return true, nil
}

func neverEnrolled(ctx context.Context, identity string) (bool, error) {
	return false, nil
}

// newTestManager builds a manager on a fresh memory store with a
// controllable clock. Restore runs against the empty store before the
// clock override, so the override only affects the test's own calls.
func newTestManager(t *testing.T, cfg Config) (*Manager, *time.Time) {
	t.Helper()

	m := NewManager(persistence.NewMemoryStore(), cfg)
	t.Cleanup(m.Close)

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestBeginAndState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{Enrolled: alwaysEnrolled})

	if m.State(ctx) != StateUnauthenticated {
		t.Errorf("Expected unauthenticated state before Begin, got %q", m.State(ctx))
	}
	if _, ok := m.Current(ctx); ok {
		t.Error("Expected no current session before Begin")
	}

	sess, err := m.Begin(ctx, "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sess.ID == "" {
		t.Error("Expected a session ID")
	}
	if sess.TOTPVerified {
		t.Error("Expected a fresh session to be unverified")
	}

	if !m.Authenticated(ctx) {
		t.Error("Expected authenticated after Begin")
	}
	if got := m.State(ctx); got != StatePrimary {
		t.Errorf("Expected state %q, got %q", StatePrimary, got)
	}
	if m.Identity(ctx) != "admin@example.com" {
		t.Errorf("Expected identity admin@example.com, got %q", m.Identity(ctx))
	}

	full, err := m.FullyAuthenticated(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if full {
		t.Error("Expected unverified session of an enrolled identity to not be fully authenticated")
	}
}

func TestBeginReplacesSession(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{})

	first, err := m.Begin(ctx, "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := m.Begin(ctx, "ops@example.com", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Error("Expected a new session ID on replacement")
	}
	if m.Identity(ctx) != "ops@example.com" {
		t.Errorf("Expected the replacement identity, got %q", m.Identity(ctx))
	}
}

func TestBeginRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{})

	if _, err := m.Begin(ctx, "", nil); err == nil {
		t.Error("Expected an error for empty identity and no token")
	}
	if _, err := m.Begin(ctx, "", &oauth2.Token{AccessToken: "opaque"}); err == nil {
		t.Error("Expected an error for empty identity and an opaque token")
	}
}

func TestMarkVerified(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{Enrolled: alwaysEnrolled})

	if err := m.MarkVerified(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession before Begin, got %v", err)
	}

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := m.MarkVerified(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	full, err := m.FullyAuthenticated(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !full {
		t.Error("Expected fully authenticated after MarkVerified")
	}
	if got := m.State(ctx); got != StateFull {
		t.Errorf("Expected state %q, got %q", StateFull, got)
	}

	sess, ok := m.Current(ctx)
	if !ok {
		t.Fatal("Expected a current session")
	}
	if !sess.TOTPVerified {
		t.Error("Expected TOTPVerified on the session copy")
	}
}

func TestUnenrolledIdentityIsFull(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{Enrolled: neverEnrolled})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	full, err := m.FullyAuthenticated(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !full {
		t.Error("Expected an unenrolled identity to be fully authenticated without TOTP")
	}
	if got := m.State(ctx); got != StateFull {
		t.Errorf("Expected state %q, got %q", StateFull, got)
	}
}

func TestEnrollmentCheckFailsClosed(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{
		Enrolled: func(ctx context.Context, identity string) (bool, error) {
			return false, errors.New("store down")
		},
	})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	full, err := m.FullyAuthenticated(ctx)
	if err == nil {
		t.Error("Expected the enrollment check error to surface")
	}
	if full {
		t.Error("Expected not fully authenticated when the check fails")
	}
	if got := m.State(ctx); got != StatePrimary {
		t.Errorf("Expected state %q when the check fails, got %q", StatePrimary, got)
	}
}

func TestIdleTimeout(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(16)
	m, now := newTestManager(t, Config{
		Timeout:  30 * time.Minute,
		Recorder: audit.NewRecorder(store),
	})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	*now = now.Add(29 * time.Minute)
	if !m.Authenticated(ctx) {
		t.Error("Expected authenticated within the idle window")
	}

	*now = now.Add(2 * time.Minute)
	if m.Authenticated(ctx) {
		t.Error("Expected the session to lapse after the idle timeout")
	}
	if got := m.State(ctx); got != StateUnauthenticated {
		t.Errorf("Expected state %q after expiry, got %q", StateUnauthenticated, got)
	}

	// Lapsing must clear the persisted copy as well.
	if _, err := m.blobs.Get(ctx, sessionKey); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected the persisted session to be removed, got %v", err)
	}

	events, err := store.Query(ctx, audit.Filter{Types: []string{audit.EventSessionExpired}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 expiry event, got %d", len(events))
	}
	if events[0].Identity != "admin@example.com" {
		t.Errorf("Expected the expiry event to carry the identity, got %q", events[0].Identity)
	}
}

func TestTouchSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(t, Config{Timeout: 30 * time.Minute})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	*now = now.Add(20 * time.Minute)
	m.Touch(ctx)

	// 45 minutes after Begin, but only 25 since the touch.
	*now = now.Add(25 * time.Minute)
	if !m.Authenticated(ctx) {
		t.Error("Expected the touch to slide the idle window")
	}

	*now = now.Add(31 * time.Minute)
	if m.Authenticated(ctx) {
		t.Error("Expected the session to lapse once idle again")
	}
}

func TestMarkVerifiedAfterExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(t, Config{Timeout: 30 * time.Minute})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	if err := m.MarkVerified(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession on a lapsed session, got %v", err)
	}
	if m.Authenticated(ctx) {
		t.Error("Expected the lapsed session to be discarded")
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(16)
	m, _ := newTestManager(t, Config{Recorder: audit.NewRecorder(store)})

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	m.Logout(ctx)
	if m.Authenticated(ctx) {
		t.Error("Expected unauthenticated after Logout")
	}
	if _, err := m.blobs.Get(ctx, sessionKey); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected the persisted session to be removed, got %v", err)
	}

	// A second logout is a no-op.
	m.Logout(ctx)

	events, err := store.Query(ctx, audit.Filter{Types: []string{audit.EventLogout}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 logout event, got %d", len(events))
	}
}

func TestUpdateToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Config{})

	if err := m.UpdateToken(ctx, &oauth2.Token{AccessToken: "b"}); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}

	if _, err := m.Begin(ctx, "admin@example.com", &oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := m.UpdateToken(ctx, &oauth2.Token{AccessToken: "b"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sess, ok := m.Current(ctx)
	if !ok {
		t.Fatal("Expected a current session")
	}
	if sess.Token == nil || sess.Token.AccessToken != "b" {
		t.Error("Expected the refreshed token on the session")
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	blobs := persistence.NewMemoryStore()

	first := NewManager(blobs, Config{Timeout: 30 * time.Minute})
	sess, err := first.Begin(ctx, "admin@example.com", &oauth2.Token{AccessToken: "a"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := first.MarkVerified(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first.Close()

	second := NewManager(blobs, Config{Timeout: 30 * time.Minute})
	defer second.Close()

	if !second.Authenticated(ctx) {
		t.Fatal("Expected the persisted session to resume")
	}
	restored, ok := second.Current(ctx)
	if !ok {
		t.Fatal("Expected a current session after restore")
	}
	if restored.ID != sess.ID {
		t.Errorf("Expected session %s to resume, got %s", sess.ID, restored.ID)
	}
	if !restored.TOTPVerified {
		t.Error("Expected the verified flag to survive the restart")
	}
	if restored.Token == nil || restored.Token.AccessToken != "a" {
		t.Error("Expected the token to survive the restart")
	}
}

func TestRestoreExpired(t *testing.T) {
	ctx := context.Background()
	blobs := persistence.NewMemoryStore()
	store := audit.NewMemoryStore(16)

	stale := Session{
		ID:           "11111111-1111-1111-1111-111111111111",
		Identity:     "admin@example.com",
		IssuedAt:     time.Now().Add(-2 * time.Hour),
		LastActivity: time.Now().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().Add(-90 * time.Minute),
	}
	raw, err := json.Marshal(&stale)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := blobs.Put(ctx, sessionKey, raw); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	m := NewManager(blobs, Config{Timeout: 30 * time.Minute, Recorder: audit.NewRecorder(store)})
	defer m.Close()

	if m.Authenticated(ctx) {
		t.Error("Expected a lapsed persisted session to not resume")
	}
	if _, err := blobs.Get(ctx, sessionKey); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected the stale blob to be removed, got %v", err)
	}

	events, err := store.Query(ctx, audit.Filter{Types: []string{audit.EventSessionExpired}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 expiry event, got %d", len(events))
	}
}

func TestRestoreCorrupt(t *testing.T) {
	ctx := context.Background()
	blobs := persistence.NewMemoryStore()

	if err := blobs.Put(ctx, sessionKey, []byte("{not json")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	m := NewManager(blobs, Config{})
	defer m.Close()

	if m.Authenticated(ctx) {
		t.Error("Expected a corrupt persisted session to read as absent")
	}
	if _, err := blobs.Get(ctx, sessionKey); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected the corrupt blob to be removed, got %v", err)
	}
}

func TestSweeperExpiresInBackground(t *testing.T) {
	ctx := context.Background()
	store := audit.NewMemoryStore(16)

	m := NewManager(persistence.NewMemoryStore(), Config{
		Timeout:       20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		Recorder:      audit.NewRecorder(store),
	})
	defer m.Close()

	if _, err := m.Begin(ctx, "admin@example.com", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// The sweep should flip the session without any query from us.
	deadline := time.Now().Add(2 * time.Second)
	for {
		events, err := store.Query(ctx, audit.Filter{Types: []string{audit.EventSessionExpired}})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(events) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the sweeper to record an expiry event")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if m.Authenticated(ctx) {
		t.Error("Expected unauthenticated after the sweep")
	}
}
