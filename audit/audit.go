// Package audit records the security events the admin authentication core
// emits: enrollments, verification attempts, rate-limit blocks and session
// lifecycle changes. Recording is best-effort; a failing event store must
// never change an authentication decision.
package audit

import (
	"context"
	"time"
)

// RiskLevel categorizes the severity of audit events.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Event is a structured security event record.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`     // e.g. "auth.totp.verify.failure"
	Identity  string         `json:"identity"` // the identity the event concerns
	Status    string         `json:"status"`   // "success", "failure", "blocked"
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Risk      RiskLevel      `json:"risk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists and queries audit events.
type Store interface {
	// SaveEvent persists an audit event.
	SaveEvent(ctx context.Context, event *Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Purge deletes events older than the specified time.
	// Returns the number of events deleted.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Filter for querying audit events. Zero fields match everything.
type Filter struct {
	Identity  string
	Types     []string
	Statuses  []string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Matches reports whether an event passes the filter, time bounds and
// identity/type/status restrictions included. Limit and Offset are the
// store's concern.
func (f Filter) Matches(e *Event) bool {
	if f.Identity != "" && e.Identity != f.Identity {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	if !f.StartTime.IsZero() && e.CreatedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.CreatedAt.After(f.EndTime) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// ---- Predefined Event Types ----

const (
	// Enrollment events
	EventEnrolled       = "auth.totp.enrolled"
	EventEnrollReplaced = "auth.totp.enroll.replaced"
	EventUnenrolled     = "auth.totp.unenrolled"

	// Verification events
	EventVerifySuccess = "auth.totp.verify.success"
	EventVerifyFailure = "auth.totp.verify.failure"
	EventVerifyBlocked = "auth.totp.verify.blocked"

	// Recovery code events
	EventRecoveryUsed     = "auth.recovery.used"
	EventRecoveryRejected = "auth.recovery.rejected"
	EventRecoveryIssued   = "auth.recovery.issued"

	// Session lifecycle events
	EventSessionCreated   = "auth.session.created"
	EventSessionVerified  = "auth.session.verified"
	EventSessionRefreshed = "auth.session.refreshed"
	EventSessionExpired   = "auth.session.expired"
	EventLogout           = "auth.logout"

	// Security events
	EventRateLimited = "security.rate_limited"
)

// ---- Event Builder ----

// EventBuilder provides a fluent API for creating audit events.
type EventBuilder struct {
	event *Event
}

// NewEvent starts building a new audit event.
func NewEvent(eventType string) *EventBuilder {
	return &EventBuilder{
		event: &Event{
			Type:      eventType,
			CreatedAt: time.Now(),
			Risk:      RiskLow,
		},
	}
}

func (b *EventBuilder) ID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

func (b *EventBuilder) Identity(identity string) *EventBuilder {
	b.event.Identity = identity
	return b
}

func (b *EventBuilder) Session(sessionID string) *EventBuilder {
	b.event.SessionID = sessionID
	return b
}

func (b *EventBuilder) Success() *EventBuilder {
	b.event.Status = "success"
	return b
}

func (b *EventBuilder) Failure() *EventBuilder {
	b.event.Status = "failure"
	return b
}

func (b *EventBuilder) Blocked() *EventBuilder {
	b.event.Status = "blocked"
	return b
}

func (b *EventBuilder) Message(msg string) *EventBuilder {
	b.event.Message = msg
	return b
}

func (b *EventBuilder) Risk(level RiskLevel) *EventBuilder {
	b.event.Risk = level
	return b
}

func (b *EventBuilder) Metadata(meta map[string]any) *EventBuilder {
	b.event.Metadata = meta
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() *Event {
	return b.event
}
