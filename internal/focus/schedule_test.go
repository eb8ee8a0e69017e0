package focus

import (
	"testing"
	"time"

	"ticus/internal/models"
)

func intervalSettings(minutes int) *models.UserSettings {
	s := models.DefaultUserSettings("user-1")
	s.CheckinPolicy = models.PolicyInterval
	s.CheckinIntervalMinutes = minutes
	return s
}

func preferredSettings(at string) *models.UserSettings {
	s := models.DefaultUserSettings("user-1")
	s.CheckinPolicy = models.PolicyPreferredTime
	s.PreferredPromptTime = at
	return s
}

func TestNewPromptSchedule_Validation(t *testing.T) {
	tests := []struct {
		name     string
		settings *models.UserSettings
		wantErr  bool
	}{
		{"interval ok", intervalSettings(25), false},
		{"minimum interval", intervalSettings(1), false},
		{"interval below minimum", intervalSettings(0), true},
		{"preferred ok", preferredSettings("09:00"), false},
		{"preferred malformed", preferredSettings("nine am"), true},
		{"unknown policy", &models.UserSettings{CheckinPolicy: "random"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPromptSchedule(tt.settings, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPromptSchedule error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPromptSchedule_Interval(t *testing.T) {
	sched, err := NewPromptSchedule(intervalSettings(5), time.UTC)
	if err != nil {
		t.Fatalf("NewPromptSchedule failed: %v", err)
	}

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := sched.First(start)
	if first.Elapsed != 5*time.Minute {
		t.Errorf("First mark elapsed = %v, want 5m", first.Elapsed)
	}

	if sched.Due(first, start.Add(4*time.Minute), 4*time.Minute) {
		t.Error("Mark should not be due before the interval has elapsed")
	}
	if !sched.Due(first, start.Add(5*time.Minute), 5*time.Minute) {
		t.Error("Mark should be due at exactly the interval")
	}
	// A mark overshot while the scheduler was not evaluating (e.g. a
	// prompt was outstanding) is due immediately, not skipped.
	if !sched.Due(first, start.Add(9*time.Minute), 9*time.Minute) {
		t.Error("Overdue mark should be due immediately")
	}

	next := sched.Next(start.Add(6*time.Minute), 6*time.Minute)
	if next.Elapsed != 11*time.Minute {
		t.Errorf("Next mark elapsed = %v, want 11m", next.Elapsed)
	}
}

func TestPromptSchedule_IntervalIgnoresWallClock(t *testing.T) {
	sched, _ := NewPromptSchedule(intervalSettings(10), time.UTC)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mark := sched.First(start)

	// Hours of wall-clock time pass but only 3 minutes of session time
	// (the rest was paused): the mark is not due.
	if sched.Due(mark, start.Add(6*time.Hour), 3*time.Minute) {
		t.Error("Interval mark must be measured in elapsed session time, not wall clock")
	}
}

func TestPromptSchedule_PreferredTime(t *testing.T) {
	sched, err := NewPromptSchedule(preferredSettings("09:00"), time.UTC)
	if err != nil {
		t.Fatalf("NewPromptSchedule failed: %v", err)
	}

	// Session starts at 09:05: the daily time has passed, so the first
	// prompt rolls to the following day.
	start := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	first := sched.First(start)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !first.At.Equal(want) {
		t.Errorf("First mark at %v, want %v", first.At, want)
	}

	// Session starts at 08:30: the prompt fires the same day.
	earlier := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	sameDay := sched.First(earlier)
	wantSame := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !sameDay.At.Equal(wantSame) {
		t.Errorf("First mark at %v, want %v", sameDay.At, wantSame)
	}

	if sched.Due(sameDay, earlier, 0) {
		t.Error("Mark should not be due before 09:00")
	}
	if !sched.Due(sameDay, wantSame, 90*time.Minute) {
		t.Error("Mark should be due at 09:00 regardless of elapsed")
	}
	if !sched.Due(sameDay, wantSame.Add(3*time.Hour), 0) {
		t.Error("Mark in the past should be due immediately")
	}
}

func TestPromptSchedule_PreferredTimeExactStartRollsOver(t *testing.T) {
	sched, _ := NewPromptSchedule(preferredSettings("09:00"), time.UTC)

	// Starting exactly at the preferred instant schedules the next day:
	// the occurrence must be strictly after the reference time.
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := sched.First(start)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !first.At.Equal(want) {
		t.Errorf("First mark at %v, want %v", first.At, want)
	}
}

func TestPromptSchedule_PreferredTimeLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	sched, _ := NewPromptSchedule(preferredSettings("09:00"), loc)

	// 13:30 UTC on 2026-03-02 is 08:30 in New York; the prompt lands at
	// 09:00 New York time the same day.
	start := time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)
	first := sched.First(start)
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if !first.At.Equal(want) {
		t.Errorf("First mark at %v, want %v", first.At, want)
	}
}
