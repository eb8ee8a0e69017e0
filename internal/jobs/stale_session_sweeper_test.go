package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ticus/internal/database"
	"ticus/internal/focus"
	"ticus/internal/models"
	"ticus/internal/services"
)

func newSweeperFixture(t *testing.T) (*services.SessionService, *focus.Registry) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	sessions := services.NewSessionService(db, nil)
	registry := focus.NewRegistry(sessions, focus.NewMemoryMirror(), nil, time.UTC, 30*time.Second)
	return sessions, registry
}

func TestStaleSessionSweeper_AbandonsOrphans(t *testing.T) {
	sessions, registry := newSweeperFixture(t)
	ctx := context.Background()

	// Started 3 hours ago for 25 minutes, no controller alive: stale.
	orphan, err := sessions.Create(ctx, "user-1", "math", 25, time.Now().Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Fresh session within its planned window: not stale.
	fresh, err := sessions.Create(ctx, "user-2", "physics", 25, time.Now())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sweeper, err := NewStaleSessionSweeper(sessions, registry, "*/15 * * * *", time.Hour)
	if err != nil {
		t.Fatalf("NewStaleSessionSweeper failed: %v", err)
	}

	if err := sweeper.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, err := sessions.Get(ctx, orphan.ID, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.SessionAbandoned {
		t.Errorf("orphan status = %q, want abandoned", got.Status)
	}

	got, err = sessions.Get(ctx, fresh.ID, "user-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.SessionInProgress {
		t.Errorf("fresh session was swept: status = %q", got.Status)
	}
}

func TestStaleSessionSweeper_SparesLiveControllers(t *testing.T) {
	sessions, registry := newSweeperFixture(t)
	ctx := context.Background()

	session, err := sessions.Create(ctx, "user-1", "math", 25, time.Now().Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Register a live controller for the stale-looking row.
	stored, err := sessions.Get(ctx, session.ID, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	ctrl, err := registry.Start(*stored, models.DefaultUserSettings("user-1"))
	if err != nil {
		t.Fatalf("registry.Start failed: %v", err)
	}
	defer ctrl.Halt()

	sweeper, err := NewStaleSessionSweeper(sessions, registry, "*/15 * * * *", time.Hour)
	if err != nil {
		t.Fatalf("NewStaleSessionSweeper failed: %v", err)
	}
	if err := sweeper.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := sessions.Get(ctx, session.ID, "user-1")
	if got.Status != models.SessionInProgress {
		t.Errorf("session with live controller was swept: status = %q", got.Status)
	}
}

func TestStaleSessionSweeper_NextRunFollowsCron(t *testing.T) {
	sessions, registry := newSweeperFixture(t)

	sweeper, err := NewStaleSessionSweeper(sessions, registry, "*/15 * * * *", time.Hour)
	if err != nil {
		t.Fatalf("NewStaleSessionSweeper failed: %v", err)
	}

	next := sweeper.GetNextRunTime()
	if !next.After(time.Now()) {
		t.Errorf("next run %v is not in the future", next)
	}
	if next.Minute()%15 != 0 {
		t.Errorf("next run %v not on a 15-minute boundary", next)
	}

	if _, err := NewStaleSessionSweeper(sessions, registry, "not-cron", time.Hour); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
