package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickersense/authgate/logger"
)

// Recorder stamps and persists events, mirroring each one to the structured
// log so operators see the stream without querying the store.
type Recorder struct {
	store Store
	log   *zap.Logger
}

// NewRecorder creates a recorder writing to store. Pass nil to keep events
// out of persistence entirely; they still reach the log.
func NewRecorder(store Store) *Recorder {
	zl := logger.Log
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Recorder{store: store, log: zl}
}

// Record assigns the event an ID and persists it. Recording is best-effort:
// a store failure is logged and swallowed so it can never veto or delay the
// authentication decision that produced the event.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	r.log.Info("audit event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("identity", event.Identity),
		zap.String("status", event.Status),
		zap.String("risk", string(event.Risk)),
	)

	if r.store == nil {
		return
	}
	if err := r.store.SaveEvent(ctx, event); err != nil {
		r.log.Warn("audit event not persisted",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

// Query delegates to the store. A recorder without a store returns nothing.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.Query(ctx, filter)
}

// Store returns the underlying store for direct access.
func (r *Recorder) Store() Store {
	return r.store
}
