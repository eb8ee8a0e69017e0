package focus

import (
	"testing"
	"time"
)

func TestSessionClock_Elapsed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start, 25*time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"at start", start, 0},
		{"ten seconds in", start.Add(10 * time.Second), 10 * time.Second},
		{"sub-second truncated", start.Add(10*time.Second + 700*time.Millisecond), 10 * time.Second},
		{"before start clamps to zero", start.Add(-5 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clock.Elapsed(tt.now); got != tt.want {
				t.Errorf("Elapsed(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestSessionClock_PauseFreezesElapsed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start, time.Hour)

	if !clock.Pause(start.Add(10 * time.Second)) {
		t.Fatal("Pause should succeed from unpaused state")
	}
	if clock.Pause(start.Add(11 * time.Second)) {
		t.Error("Second Pause should be a no-op")
	}

	// Frozen at the pause instant regardless of how far now advances.
	if got := clock.Elapsed(start.Add(5 * time.Minute)); got != 10*time.Second {
		t.Errorf("Elapsed while paused = %v, want 10s", got)
	}

	if !clock.Resume(start.Add(40 * time.Second)) {
		t.Fatal("Resume should succeed from paused state")
	}
	if clock.Resume(start.Add(41 * time.Second)) {
		t.Error("Second Resume should be a no-op")
	}

	// Start T, pause T+10s, resume T+40s: the 30s pause span never
	// counts, so elapsed at T+50s is 20s, not 50s.
	if got := clock.Elapsed(start.Add(50 * time.Second)); got != 20*time.Second {
		t.Errorf("Elapsed after pause span = %v, want 20s", got)
	}
}

func TestSessionClock_ElapsedEqualAcrossPause(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start, time.Hour)

	// For any sequence of pause/resume pairs, elapsed right after a
	// resume equals elapsed right before the matching pause.
	now := start
	for i := 0; i < 5; i++ {
		now = now.Add(time.Duration(7+i) * time.Second)
		before := clock.Elapsed(now)
		clock.Pause(now)
		now = now.Add(time.Duration(30*i+13) * time.Second)
		clock.Resume(now)
		if after := clock.Elapsed(now); after != before {
			t.Fatalf("iteration %d: elapsed after resume = %v, before pause = %v", i, after, before)
		}
	}
}

func TestSessionClock_Remaining(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start, time.Minute)

	if got := clock.Remaining(start.Add(20 * time.Second)); got != 40*time.Second {
		t.Errorf("Remaining = %v, want 40s", got)
	}
	if got := clock.Remaining(start.Add(2 * time.Minute)); got != 0 {
		t.Errorf("Remaining past planned duration = %v, want 0", got)
	}
}

func TestSessionClock_CompletionFiresExactlyOnce(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start, time.Minute)

	if clock.CompletionDue(start.Add(59 * time.Second)) {
		t.Error("Completion should not fire before the planned duration")
	}
	if !clock.CompletionDue(start.Add(60 * time.Second)) {
		t.Error("Completion should fire at the planned duration")
	}
	// Later ticks still observe elapsed >= planned but must not re-fire.
	if clock.CompletionDue(start.Add(61 * time.Second)) {
		t.Error("Completion fired twice")
	}
	if clock.CompletionDue(start.Add(5 * time.Minute)) {
		t.Error("Completion fired twice")
	}
}
