package services

import (
	"context"
	"testing"

	"ticus/internal/models"
)

func TestSettingsService_DefaultsWhenUnset(t *testing.T) {
	svc := NewSettingsService(newTestDB(t))

	settings, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if settings.CheckinPolicy != models.PolicyInterval {
		t.Errorf("policy = %q, want interval", settings.CheckinPolicy)
	}
	if settings.CheckinIntervalMinutes != 25 {
		t.Errorf("interval = %d, want 25", settings.CheckinIntervalMinutes)
	}
	if !settings.SoundEnabled {
		t.Error("expected sound enabled by default")
	}
}

func TestSettingsService_PartialUpdate(t *testing.T) {
	svc := NewSettingsService(newTestDB(t))
	ctx := context.Background()

	interval := 10
	updated, err := svc.Update(ctx, "user-1", &models.UpdateUserSettingsRequest{
		CheckinIntervalMinutes: &interval,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.CheckinIntervalMinutes != 10 {
		t.Errorf("interval = %d, want 10", updated.CheckinIntervalMinutes)
	}
	// Untouched fields keep their defaults.
	if updated.CheckinPolicy != models.PolicyInterval {
		t.Errorf("policy = %q, want interval", updated.CheckinPolicy)
	}

	// Second update persists on top of the first.
	policy := models.PolicyPreferredTime
	at := "21:30"
	updated, err = svc.Update(ctx, "user-1", &models.UpdateUserSettingsRequest{
		CheckinPolicy:       &policy,
		PreferredPromptTime: &at,
	})
	if err != nil {
		t.Fatalf("second Update failed: %v", err)
	}
	if updated.CheckinIntervalMinutes != 10 {
		t.Errorf("interval reset to %d", updated.CheckinIntervalMinutes)
	}

	got, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CheckinPolicy != models.PolicyPreferredTime || got.PreferredPromptTime != "21:30" {
		t.Errorf("got policy=%q time=%q", got.CheckinPolicy, got.PreferredPromptTime)
	}
}

func TestSettingsService_UpdateRejectsInvalid(t *testing.T) {
	svc := NewSettingsService(newTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.UpdateUserSettingsRequest
	}{
		{"zero interval", models.UpdateUserSettingsRequest{CheckinIntervalMinutes: intPtr(0)}},
		{"bad policy", models.UpdateUserSettingsRequest{CheckinPolicy: strPtr("hourly")}},
		{"bad time", models.UpdateUserSettingsRequest{PreferredPromptTime: strPtr("25:00")}},
		{"negative goal", models.UpdateUserSettingsRequest{DailyGoalMinutes: intPtr(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, "user-1", &tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// Failed updates must not corrupt stored settings.
	got, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CheckinIntervalMinutes != 25 {
		t.Errorf("interval = %d after rejected updates, want 25", got.CheckinIntervalMinutes)
	}
}

func TestSettingsService_CachedReadsReturnCopies(t *testing.T) {
	svc := NewSettingsService(newTestDB(t))
	ctx := context.Background()

	first, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first.CheckinIntervalMinutes = 1

	second, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if second.CheckinIntervalMinutes != 25 {
		t.Errorf("caller mutation leaked into cache: interval = %d", second.CheckinIntervalMinutes)
	}
}

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }

func TestSettingsService_InvalidateDropsCachedRead(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettingsService(db)
	other := NewSettingsService(db)
	ctx := context.Background()

	before, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if before.CheckinIntervalMinutes != 25 {
		t.Fatalf("interval = %d, want default 25", before.CheckinIntervalMinutes)
	}

	// A write through another instance does not touch svc's cache.
	interval := 15
	if _, err := other.Update(ctx, "user-1", &models.UpdateUserSettingsRequest{
		CheckinIntervalMinutes: &interval,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	stale, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stale.CheckinIntervalMinutes != 25 {
		t.Fatalf("expected cached read, got interval %d", stale.CheckinIntervalMinutes)
	}

	svc.Invalidate("user-1")
	fresh, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fresh.CheckinIntervalMinutes != 15 {
		t.Errorf("interval = %d, want 15 after invalidate", fresh.CheckinIntervalMinutes)
	}
}
