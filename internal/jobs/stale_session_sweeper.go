package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"ticus/internal/focus"
	"ticus/internal/models"
	"ticus/internal/services"
)

// StaleSessionSweeper abandons in_progress rows whose controller is
// gone. These appear when the process dies between starting a session
// and finalizing it, or when a finalize write failed and the in-memory
// state was discarded.
type StaleSessionSweeper struct {
	sessions *services.SessionService
	registry *focus.Registry
	grace    time.Duration
	schedule cron.Schedule
}

// NewStaleSessionSweeper creates a new sweeper. cronExpr is a standard
// five-field cron expression; grace is how long past its planned end an
// unfinalized session may linger before it is abandoned.
func NewStaleSessionSweeper(sessions *services.SessionService, registry *focus.Registry, cronExpr string, grace time.Duration) (*StaleSessionSweeper, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cronExpr, err)
	}
	return &StaleSessionSweeper{
		sessions: sessions,
		registry: registry,
		grace:    grace,
		schedule: schedule,
	}, nil
}

// Run abandons every stale session not backed by a live controller.
func (j *StaleSessionSweeper) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.grace)
	stale, err := j.sessions.ListStaleInProgress(ctx, cutoff)
	if err != nil {
		return err
	}

	active := make(map[string]string, len(j.registry.ActiveUserIDs()))
	for _, userID := range j.registry.ActiveUserIDs() {
		if ctrl, ok := j.registry.Get(userID); ok {
			active[ctrl.SessionID()] = userID
		}
	}

	swept := 0
	for _, session := range stale {
		// Long sessions still driven by a controller are not stale,
		// only ones nothing will ever finalize.
		if _, live := active[session.ID]; live {
			continue
		}
		// Past the planned end plus grace?
		plannedEnd := session.StartTimestamp.Add(time.Duration(session.PlannedDurationMinutes) * time.Minute)
		if plannedEnd.After(cutoff) {
			continue
		}

		err := j.sessions.FinalizeSession(ctx, &models.FinalizeSessionRequest{
			SessionID:             session.ID,
			Status:                models.SessionAbandoned,
			ActualDurationMinutes: 0,
			FocusAccuracy:         models.FocusAccuracy(0, 0),
		})
		if err != nil {
			log.Printf("⚠️  [SWEEPER] Failed to abandon session %s: %v", session.ID, err)
			continue
		}
		swept++
	}

	if swept > 0 {
		log.Printf("🧹 [SWEEPER] Abandoned %d stale sessions", swept)
	}
	return nil
}

// GetNextRunTime returns the next cron occurrence.
func (j *StaleSessionSweeper) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
