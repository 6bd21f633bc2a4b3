package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tickersense/authgate/audit"
)

func TestAuditStore(t *testing.T) {
	db, err := OpenDB("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	store, err := NewAuditStore(db)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	seed := []*audit.Event{
		{ID: "1", Type: audit.EventVerifySuccess, Identity: "a@x", Status: "success", CreatedAt: base},
		{ID: "2", Type: audit.EventVerifyFailure, Identity: "a@x", Status: "failure", Risk: audit.RiskMedium, CreatedAt: base.Add(time.Minute)},
		{ID: "3", Type: audit.EventRateLimited, Identity: "b@x", Status: "blocked", Metadata: map[string]any{"window": "1m"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range seed {
		if err := store.SaveEvent(ctx, e); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.Filter{Identity: "a@x"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].ID != "2" {
		t.Errorf("Expected newest first, got %s", events[0].ID)
	}
	if events[0].Risk != audit.RiskMedium {
		t.Errorf("Risk did not round-trip, got %s", events[0].Risk)
	}

	events, err = store.Query(ctx, audit.Filter{Types: []string{audit.EventRateLimited}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Metadata["window"] != "1m" {
		t.Errorf("Metadata did not round-trip, got %v", events[0].Metadata)
	}

	n, err := store.Count(ctx, audit.Filter{Statuses: []string{"failure", "blocked"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected count 2, got %d", n)
	}

	purged, err := store.Purge(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if purged != 2 {
		t.Errorf("Expected 2 purged, got %d", purged)
	}
	remaining, _ := store.Count(ctx, audit.Filter{})
	if remaining != 1 {
		t.Errorf("Expected 1 remaining, got %d", remaining)
	}
}
