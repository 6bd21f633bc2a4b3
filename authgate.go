// Package authgate is the admin authentication core of the TickerSense
// dashboard: TOTP enrollment and verification, recovery codes, a
// rate-limited verification flow, and a persisted single-admin session
// with a sliding idle timeout. The package wires the underlying stores
// and managers into one Gate; embedders that need finer control can use
// the totp, mfa, session, ratelimit, audit and persistence packages
// directly.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/tickersense/authgate/audit"
	"github.com/tickersense/authgate/mfa"
	"github.com/tickersense/authgate/persistence"
	"github.com/tickersense/authgate/ratelimit"
	"github.com/tickersense/authgate/session"
	"github.com/tickersense/authgate/totp"
)

// ErrCodeInvalid is returned for every failed code check. A wrong code
// and a missing enrollment read the same, so callers cannot probe which
// identities are enrolled. The audit trail records the real reason.
var ErrCodeInvalid = errors.New("authgate: invalid code")

// DefaultIssuer labels provisioning URIs when the config leaves the
// issuer unset.
const DefaultIssuer = "TickerSense Admin"

const (
	defaultRateLimitMax    = 5
	defaultRateLimitWindow = time.Minute
	defaultRecoveryCodes   = 8
)

// RemoteVerifier asks the authoritative verification backend whether a
// code is valid for an identity. The error return means the backend
// could not answer, not that the code was wrong.
type RemoteVerifier func(ctx context.Context, identity, code string) (bool, error)

// Config carries the Gate's settings. The zero value is usable.
type Config struct {
	// Issuer appears in provisioning URIs. Empty means DefaultIssuer.
	Issuer string

	// Generator holds the TOTP parameters. The zero value is the
	// standard 6-digit, 30-second, skew-2 profile.
	Generator totp.Generator

	// SessionTimeout is the sliding idle timeout; SweepInterval is the
	// background expiry check interval (zero disables the sweep). Both
	// pass through to the session manager.
	SessionTimeout time.Duration
	SweepInterval  time.Duration

	// RateLimitMax verification attempts are allowed per identity per
	// RateLimitWindow. Defaults: 5 per minute.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Limiter overrides the in-memory fixed window, e.g. with the Redis
	// provider when several processes share the budget.
	Limiter ratelimit.Limiter

	// RecoveryCodes is how many codes IssueRecoveryCodes mints. Zero
	// means 8.
	RecoveryCodes int

	// Remote, when set, makes the backend the authority on every code
	// check. If the backend cannot answer, the Gate fails closed unless
	// AllowLocalFallback is set, in which case the local window verifier
	// decides. Fallback trades availability for trusting local state;
	// leave it off unless the deployment accepts that.
	Remote             RemoteVerifier
	AllowLocalFallback bool
}

// Gate runs the admin authentication flow over a blob store for
// secrets and session state and an audit store for the event trail.
type Gate struct {
	secrets  *mfa.Store
	sessions *session.Manager
	limiter  ratelimit.Limiter
	recorder *audit.Recorder
	gen      totp.Generator

	limitMax      int
	limitWindow   time.Duration
	recoveryCount int
	remote        RemoteVerifier
	localFallback bool

	stopJanitor func()
	now         func() time.Time
}

// New builds a Gate. The blob store holds enrollments and the session;
// events may be nil, in which case audit events are only mirrored to the
// log. Call Close when done.
func New(blobs persistence.BlobStore, events audit.Store, cfg Config) *Gate {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	recorder := audit.NewRecorder(events)
	secrets := mfa.NewStore(blobs, cfg.Generator, issuer)

	g := &Gate{
		secrets:  secrets,
		recorder: recorder,
		limiter:  cfg.Limiter,
		gen:      cfg.Generator,

		limitMax:      cfg.RateLimitMax,
		limitWindow:   cfg.RateLimitWindow,
		recoveryCount: cfg.RecoveryCodes,
		remote:        cfg.Remote,
		localFallback: cfg.AllowLocalFallback,

		now: time.Now,
	}
	if g.limitMax <= 0 {
		g.limitMax = defaultRateLimitMax
	}
	if g.limitWindow <= 0 {
		g.limitWindow = defaultRateLimitWindow
	}
	if g.recoveryCount <= 0 {
		g.recoveryCount = defaultRecoveryCodes
	}
	if g.limiter == nil {
		fw := ratelimit.NewFixedWindow()
		g.stopJanitor = fw.Janitor(g.limitWindow, g.limitWindow)
		g.limiter = fw
	}

	g.sessions = session.NewManager(blobs, session.Config{
		Timeout:       cfg.SessionTimeout,
		SweepInterval: cfg.SweepInterval,
		Enrolled:      secrets.Enrolled,
		Recorder:      recorder,
	})
	return g
}

// Close stops the background goroutines: the session manager's sweep and
// the default limiter's janitor.
func (g *Gate) Close() {
	g.sessions.Close()
	if g.stopJanitor != nil {
		g.stopJanitor()
	}
}

// Enroll creates a TOTP enrollment for identity, replacing any existing
// one, and returns the secret plus the provisioning URI.
func (g *Gate) Enroll(ctx context.Context, identity string) (*mfa.Enrollment, error) {
	replacing, err := g.secrets.Enrolled(ctx, identity)
	if err != nil {
		return nil, err
	}

	enrollment, err := g.secrets.Enroll(ctx, identity)
	if err != nil {
		return nil, err
	}

	builder := audit.NewEvent(audit.EventEnrolled)
	if replacing {
		builder = audit.NewEvent(audit.EventEnrollReplaced).Risk(audit.RiskMedium).
			Message("existing enrollment and recovery codes replaced")
	}
	g.recorder.Record(ctx, builder.Identity(identity).Success().Build())

	return enrollment, nil
}

// Unenroll removes an identity's enrollment. Sessions already verified
// stay verified; the next session will not require a code.
func (g *Gate) Unenroll(ctx context.Context, identity string) error {
	if err := g.secrets.Unenroll(ctx, identity); err != nil {
		return err
	}
	g.recorder.Record(ctx, audit.NewEvent(audit.EventUnenrolled).
		Identity(identity).Success().Risk(audit.RiskMedium).Build())
	return nil
}

// VerifyCode checks a submitted TOTP code for identity and, on success,
// upgrades the live session to fully authenticated. Failures return
// ErrCodeInvalid regardless of cause; a denied rate limit returns a
// *ratelimit.LimitError carrying the cooldown.
func (g *Gate) VerifyCode(ctx context.Context, identity, code string) error {
	if err := g.checkLimit(ctx, identity); err != nil {
		return err
	}

	if !g.gen.ValidCode(code) {
		g.recordFailure(ctx, identity, audit.EventVerifyFailure, "malformed code")
		return ErrCodeInvalid
	}

	if g.remote != nil {
		ok, err := g.remote(ctx, identity, code)
		switch {
		case err == nil && ok:
			return g.commitVerified(ctx, identity, "remote")
		case err == nil:
			g.recordFailure(ctx, identity, audit.EventVerifyFailure, "rejected by verification backend")
			return ErrCodeInvalid
		case !g.localFallback:
			g.recorder.Record(ctx, audit.NewEvent(audit.EventVerifyBlocked).
				Identity(identity).Blocked().Risk(audit.RiskHigh).
				Message("verification backend unavailable").Build())
			return fmt.Errorf("authgate: remote verification: %w", err)
		}
		// Fallback: the backend could not answer and the deployment
		// opted into deciding locally.
	}

	secret, err := g.secrets.Secret(ctx, identity)
	if errors.Is(err, mfa.ErrNotEnrolled) {
		g.recordFailure(ctx, identity, audit.EventVerifyFailure, "no enrollment")
		return ErrCodeInvalid
	}
	if err != nil {
		return err
	}

	key, err := totp.Decode(secret)
	if err != nil {
		// A stored secret that no longer decodes verifies nothing.
		g.recordFailure(ctx, identity, audit.EventVerifyFailure, "stored secret unreadable")
		return ErrCodeInvalid
	}

	if !g.gen.Verify(key, code, g.now()) {
		g.recordFailure(ctx, identity, audit.EventVerifyFailure, "code mismatch")
		return ErrCodeInvalid
	}
	return g.commitVerified(ctx, identity, "local")
}

// VerifyRecoveryCode checks a one-time recovery code for identity and,
// on success, consumes it and upgrades the live session. Recovery
// attempts draw from the same rate-limit budget as TOTP codes.
func (g *Gate) VerifyRecoveryCode(ctx context.Context, identity, code string) error {
	if err := g.checkLimit(ctx, identity); err != nil {
		return err
	}

	used, err := g.secrets.UseRecoveryCode(ctx, identity, code)
	if err != nil {
		return err
	}
	if !used {
		g.recordFailure(ctx, identity, audit.EventRecoveryRejected, "unknown or spent recovery code")
		return ErrCodeInvalid
	}

	// The code is spent at this point whatever happens to the session,
	// so the trail records its use unconditionally.
	_ = g.limiter.Reset(ctx, identity)
	g.recorder.Record(ctx, audit.NewEvent(audit.EventRecoveryUsed).
		Identity(identity).Success().Risk(audit.RiskMedium).Build())
	return g.sessions.MarkVerified(ctx)
}

// IssueRecoveryCodes mints a fresh set of one-time recovery codes for an
// enrolled identity, replacing any previous set. The plaintexts are
// returned exactly once.
func (g *Gate) IssueRecoveryCodes(ctx context.Context, identity string) ([]string, error) {
	codes, err := g.secrets.IssueRecoveryCodes(ctx, identity, g.recoveryCount)
	if err != nil {
		return nil, err
	}
	g.recorder.Record(ctx, audit.NewEvent(audit.EventRecoveryIssued).
		Identity(identity).Success().
		Metadata(map[string]any{"count": len(codes)}).Build())
	return codes, nil
}

// Begin hands the Gate a primary-authenticated identity and its issued
// token, starting the session.
func (g *Gate) Begin(ctx context.Context, identity string, token *oauth2.Token) (*session.Session, error) {
	return g.sessions.Begin(ctx, identity, token)
}

// Touch records user activity on the session, sliding its idle window.
func (g *Gate) Touch(ctx context.Context) {
	g.sessions.Touch(ctx)
}

// Logout discards the session and its persisted copy.
func (g *Gate) Logout(ctx context.Context) {
	g.sessions.Logout(ctx)
}

// Authenticated reports whether an unexpired session exists.
func (g *Gate) Authenticated(ctx context.Context) bool {
	return g.sessions.Authenticated(ctx)
}

// FullyAuthenticated reports whether the session cleared the TOTP step,
// or belongs to an identity with nothing enrolled.
func (g *Gate) FullyAuthenticated(ctx context.Context) (bool, error) {
	return g.sessions.FullyAuthenticated(ctx)
}

// State derives the session lifecycle state.
func (g *Gate) State(ctx context.Context) session.State {
	return g.sessions.State(ctx)
}

// Sessions exposes the session manager for embedders that need the full
// surface (Current, UpdateToken).
func (g *Gate) Sessions() *session.Manager {
	return g.sessions
}

// Secrets exposes the enrollment store.
func (g *Gate) Secrets() *mfa.Store {
	return g.secrets
}

// Recorder exposes the audit recorder, e.g. for querying the trail.
func (g *Gate) Recorder() *audit.Recorder {
	return g.recorder
}

// checkLimit spends one attempt from the identity's budget. Limiter
// errors deny: a broken limiter must not turn off brute-force
// protection.
func (g *Gate) checkLimit(ctx context.Context, identity string) error {
	allowed, _, err := g.limiter.Allow(ctx, identity, g.limitMax, g.limitWindow)
	if err != nil {
		return fmt.Errorf("authgate: rate limit check: %w", err)
	}
	if allowed {
		return nil
	}

	g.recorder.Record(ctx, audit.NewEvent(audit.EventRateLimited).
		Identity(identity).Blocked().Risk(audit.RiskHigh).
		Metadata(map[string]any{
			"max":    g.limitMax,
			"window": g.limitWindow.String(),
		}).Build())

	return &ratelimit.LimitError{
		RetryAfter: g.limitWindow,
		Message:    "too many attempts",
	}
}

// commitVerified flips the session to fully authenticated after a
// passing code check and clears the identity's attempt budget. The
// session may have lapsed while the code was checked; its expiry event
// is already recorded by the manager, and the caller learns via
// ErrNoSession that a fresh primary authentication is needed.
func (g *Gate) commitVerified(ctx context.Context, identity, source string) error {
	if err := g.sessions.MarkVerified(ctx); err != nil {
		return err
	}
	_ = g.limiter.Reset(ctx, identity)

	g.recorder.Record(ctx, audit.NewEvent(audit.EventVerifySuccess).
		Identity(identity).Success().
		Metadata(map[string]any{"source": source}).Build())
	return nil
}

func (g *Gate) recordFailure(ctx context.Context, identity, eventType, message string) {
	g.recorder.Record(ctx, audit.NewEvent(eventType).
		Identity(identity).Failure().Risk(audit.RiskMedium).
		Message(message).Build())
}
