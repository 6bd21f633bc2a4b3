package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tickersense/authgate/audit"
)

type gormAuditEvent struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	Identity  string `gorm:"index"`
	Status    string `gorm:"index"`
	Message   string
	SessionID string
	Risk      string
	Metadata  map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt time.Time      `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromAuditEvent(e *audit.Event) *gormAuditEvent {
	if e == nil {
		return nil
	}
	return &gormAuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		Identity:  e.Identity,
		Status:    e.Status,
		Message:   e.Message,
		SessionID: e.SessionID,
		Risk:      string(e.Risk),
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

func toAuditEvent(ge *gormAuditEvent) audit.Event {
	return audit.Event{
		ID:        ge.ID,
		Type:      ge.Type,
		Identity:  ge.Identity,
		Status:    ge.Status,
		Message:   ge.Message,
		SessionID: ge.SessionID,
		Risk:      audit.RiskLevel(ge.Risk),
		Metadata:  ge.Metadata,
		CreatedAt: ge.CreatedAt,
	}
}

// AuditStore is the database-backed audit event store. It shares the GORM
// handle with the blob store so one DSN carries both.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore wraps an open GORM handle, migrating the events table.
func NewAuditStore(db *gorm.DB) (*AuditStore, error) {
	if err := db.AutoMigrate(&gormAuditEvent{}); err != nil {
		return nil, err
	}
	return &AuditStore{db: db}, nil
}

func (s *AuditStore) SaveEvent(ctx context.Context, event *audit.Event) error {
	return s.db.WithContext(ctx).Create(fromAuditEvent(event)).Error
}

func (s *AuditStore) query(ctx context.Context, filter audit.Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&gormAuditEvent{})
	if filter.Identity != "" {
		q = q.Where("identity = ?", filter.Identity)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	return q
}

func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := s.query(ctx, filter).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []gormAuditEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]audit.Event, 0, len(rows))
	for i := range rows {
		events = append(events, toAuditEvent(&rows[i]))
	}
	return events, nil
}

func (s *AuditStore) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	var n int64
	if err := s.query(ctx, filter).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *AuditStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", olderThan).Delete(&gormAuditEvent{})
	return res.RowsAffected, res.Error
}
