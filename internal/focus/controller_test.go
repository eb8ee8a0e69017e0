package focus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ticus/internal/models"
)

type fakeStore struct {
	mu          sync.Mutex
	checkIns    []models.CheckIn
	finalizes   []models.FinalizeSessionRequest
	checkInErr  error
	finalizeErr error
}

func (s *fakeStore) RecordCheckIn(ctx context.Context, ci *models.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkInErr != nil {
		return s.checkInErr
	}
	s.checkIns = append(s.checkIns, *ci)
	return nil
}

func (s *fakeStore) FinalizeSession(ctx context.Context, req *models.FinalizeSessionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizes = append(s.finalizes, *req)
	return s.finalizeErr
}

func (s *fakeStore) finalizeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finalizes)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (n *fakeNotifier) Notify(userID string, event models.SessionEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *fakeNotifier) byType(eventType string) []models.SessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.SessionEvent
	for _, ev := range n.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// harness drives a controller with a simulated one-second cadence:
// both the session tick and, when a prompt is outstanding, the
// response countdown.
type harness struct {
	t        *testing.T
	ctrl     *Controller
	store    *fakeStore
	notifier *fakeNotifier
	mirror   *MemoryMirror
	now      time.Time
}

var testBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, settings *models.UserSettings, plannedMinutes int) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
		mirror:   NewMemoryMirror(),
		now:      testBase,
	}

	session := models.Session{
		ID:                     "sess-1",
		UserID:                 "user-1",
		Subject:                "algebra",
		PlannedDurationMinutes: plannedMinutes,
		StartTimestamp:         testBase,
		Status:                 models.SessionInProgress,
	}

	ctrl, err := NewController(Options{
		Session:  session,
		Settings: settings,
		Location: time.UTC,
		Store:    h.store,
		Mirror:   h.mirror,
		Notifier: h.notifier,
		Now:      func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	h.ctrl = ctrl
	return h
}

// advance simulates d of wall-clock time in one-second steps. The
// countdown tick fires for prompts that were already outstanding at
// the start of the second, matching the real ticker ordering.
func (h *harness) advance(d time.Duration) {
	for i := 0; i < int(d/time.Second); i++ {
		pendingBefore := h.ctrl.View().PromptPending
		h.now = h.now.Add(time.Second)
		h.ctrl.Tick(h.now)
		if pendingBefore && h.ctrl.View().PromptPending {
			h.ctrl.countdownTick(h.now)
		}
	}
}

func TestController_CompletesAtPlannedDuration(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 1)

	h.advance(59 * time.Second)
	if h.store.finalizeCount() != 0 {
		t.Fatal("Session finalized before the planned duration")
	}

	h.advance(1 * time.Second)
	if h.store.finalizeCount() != 1 {
		t.Fatalf("Expected exactly one finalize call, got %d", h.store.finalizeCount())
	}

	final := h.store.finalizes[0]
	if final.Status != models.SessionCompleted {
		t.Errorf("Expected status completed, got %s", final.Status)
	}
	if final.ActualDurationMinutes != 1 {
		t.Errorf("Expected actual duration 1 minute, got %d", final.ActualDurationMinutes)
	}
	if final.FocusAccuracy != 100 {
		t.Errorf("Expected accuracy 100 with zero check-ins, got %v", final.FocusAccuracy)
	}

	// Ticks after the terminal transition are no-ops.
	h.advance(10 * time.Second)
	if h.store.finalizeCount() != 1 {
		t.Errorf("Tick after completion produced another finalize call")
	}

	if got := len(h.notifier.byType(models.EventSessionCompleted)); got != 1 {
		t.Errorf("Expected one session_completed event, got %d", got)
	}
}

func TestController_IntervalPromptAndResponse(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)

	h.advance(59 * time.Second)
	if h.ctrl.View().PromptPending {
		t.Fatal("Prompt opened before the interval elapsed")
	}

	h.advance(1 * time.Second)
	view := h.ctrl.View()
	if !view.PromptPending {
		t.Fatal("Expected prompt outstanding at elapsed 60s")
	}
	if view.ResponseRemaining != 30 {
		t.Errorf("Expected full 30s response window, got %d", view.ResponseRemaining)
	}

	// Answer after 12 seconds of the window.
	h.advance(12 * time.Second)
	checkIn, err := h.ctrl.Respond(true)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !checkIn.WasFocused {
		t.Error("Expected a focused check-in")
	}
	if checkIn.ResponseTimeSeconds != 12 {
		t.Errorf("Expected response time 12s, got %d", checkIn.ResponseTimeSeconds)
	}

	view = h.ctrl.View()
	if view.PromptPending {
		t.Error("Prompt should return to idle after a response")
	}
	if len(view.CheckIns) != 1 {
		t.Fatalf("Expected one check-in, got %d", len(view.CheckIns))
	}
	if len(h.store.checkIns) != 1 {
		t.Errorf("Expected one persisted check-in, got %d", len(h.store.checkIns))
	}

	// Next prompt fires one interval of elapsed time after the response.
	h.advance(59 * time.Second)
	if h.ctrl.View().PromptPending {
		t.Error("Next prompt opened too early")
	}
	h.advance(1 * time.Second)
	if !h.ctrl.View().PromptPending {
		t.Error("Expected next prompt one interval after the response")
	}
}

func TestController_PromptTimeoutAutoFails(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)

	h.advance(60 * time.Second)
	if !h.ctrl.View().PromptPending {
		t.Fatal("Expected prompt outstanding at elapsed 60s")
	}

	// Let the full window expire without a response.
	h.advance(30 * time.Second)

	view := h.ctrl.View()
	if view.PromptPending {
		t.Error("Prompt should auto-resolve at the end of the window")
	}
	if len(view.CheckIns) != 1 {
		t.Fatalf("Expected exactly one auto-recorded check-in, got %d", len(view.CheckIns))
	}
	ci := view.CheckIns[0]
	if ci.WasFocused {
		t.Error("Timed-out check-in must record was_focused=false")
	}
	if ci.ResponseTimeSeconds != 30 {
		t.Errorf("Timed-out check-in response time = %d, want full 30s window", ci.ResponseTimeSeconds)
	}

	resolved := h.notifier.byType(models.EventPromptResolved)
	if len(resolved) != 1 || !resolved[0].AutoResolved {
		t.Errorf("Expected one auto-resolved prompt event, got %+v", resolved)
	}
}

func TestController_SinglePromptOutstanding(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)

	// First prompt at 60s; leave it unanswered. While it is
	// outstanding, the 120s mark passes without a second prompt.
	h.advance(60 * time.Second)
	dueEvents := h.notifier.byType(models.EventPromptDue)
	if len(dueEvents) != 1 {
		t.Fatalf("Expected one prompt_due event, got %d", len(dueEvents))
	}

	h.advance(29 * time.Second)
	if got := len(h.notifier.byType(models.EventPromptDue)); got != 1 {
		t.Errorf("A second prompt opened while one was outstanding (%d events)", got)
	}
}

func TestController_PauseResumeElapsed(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 60)

	// Start at T, pause at T+10s, resume at T+40s: the paused span
	// never counts, so elapsed at T+50s is 20s, not 50s.
	h.advance(10 * time.Second)
	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause should be idempotent: %v", err)
	}

	h.advance(30 * time.Second)
	if got := h.ctrl.View().ElapsedSeconds; got != 10 {
		t.Errorf("Elapsed while paused = %ds, want 10s", got)
	}

	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume should be idempotent: %v", err)
	}

	h.advance(10 * time.Second)
	if got := h.ctrl.View().ElapsedSeconds; got != 20 {
		t.Errorf("Elapsed at T+50s = %ds, want 20s", got)
	}
}

func TestController_PauseSuspendsPromptMachinery(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)

	h.advance(60 * time.Second)
	if !h.ctrl.View().PromptPending {
		t.Fatal("Expected prompt outstanding at elapsed 60s")
	}
	h.advance(5 * time.Second)
	remaining := h.ctrl.View().ResponseRemaining

	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	// Pause suspends both the session clock and the response countdown.
	h.advance(2 * time.Minute)
	view := h.ctrl.View()
	if !view.PromptPending {
		t.Error("Prompt auto-resolved while paused")
	}
	if view.ResponseRemaining != remaining {
		t.Errorf("Countdown advanced while paused: %d -> %d", remaining, view.ResponseRemaining)
	}

	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	h.advance(time.Duration(remaining) * time.Second)
	if h.ctrl.View().PromptPending {
		t.Error("Prompt should time out after resume consumed the rest of the window")
	}
}

func TestController_CheckinCountsConsistent(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)

	// Focused response, unfocused response, then a timeout.
	h.advance(60 * time.Second)
	if _, err := h.ctrl.Respond(true); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	h.advance(60 * time.Second)
	if _, err := h.ctrl.Respond(false); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	h.advance(60 * time.Second)
	h.advance(30 * time.Second) // timeout

	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	final := h.store.finalizes[0]
	if final.TotalCheckins != 3 {
		t.Errorf("Expected 3 total check-ins, got %d", final.TotalCheckins)
	}
	if final.SuccessfulCheckins != 1 {
		t.Errorf("Expected 1 successful check-in, got %d", final.SuccessfulCheckins)
	}

	unfocused := 0
	for _, ci := range h.ctrl.View().CheckIns {
		if !ci.WasFocused {
			unfocused++
		}
	}
	if final.TotalCheckins != final.SuccessfulCheckins+unfocused {
		t.Errorf("total (%d) != successful (%d) + unfocused (%d)",
			final.TotalCheckins, final.SuccessfulCheckins, unfocused)
	}
}

func TestController_EndIdempotent(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 60)
	h.advance(90 * time.Second)

	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Fatalf("Second End should be a silent no-op: %v", err)
	}
	if err := h.ctrl.End(models.SessionCompleted); err != nil {
		t.Fatalf("End with a different status after termination should also no-op: %v", err)
	}

	if h.store.finalizeCount() != 1 {
		t.Errorf("Expected exactly one finalize call, got %d", h.store.finalizeCount())
	}
	if h.store.finalizes[0].Status != models.SessionAbandoned {
		t.Errorf("Expected abandoned, got %s", h.store.finalizes[0].Status)
	}
	if h.store.finalizes[0].ActualDurationMinutes != 1 {
		t.Errorf("Expected actual duration 1 minute from 90s elapsed, got %d", h.store.finalizes[0].ActualDurationMinutes)
	}
}

func TestController_CompletionWithPromptOutstanding(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 2)

	h.advance(60 * time.Second)
	if !h.ctrl.View().PromptPending {
		t.Fatal("Expected prompt outstanding at elapsed 60s")
	}
	h.advance(10 * time.Second)

	// Completion at 120s while the prompt is still unanswered: the
	// session finalizes and the prompt is dropped without a check-in.
	h.now = h.now.Add(50 * time.Second)
	h.ctrl.Tick(h.now)

	if h.store.finalizeCount() != 1 {
		t.Fatalf("Expected one finalize call, got %d", h.store.finalizeCount())
	}
	final := h.store.finalizes[0]
	if final.Status != models.SessionCompleted {
		t.Errorf("Expected completed, got %s", final.Status)
	}
	if final.TotalCheckins != 0 {
		t.Errorf("Outstanding prompt must not record a check-in on completion, got %d", final.TotalCheckins)
	}
}

func TestController_SimultaneousPromptAndCompletion(t *testing.T) {
	// planned 1 minute, interval 1 minute: at elapsed 60s both the
	// scheduler and the completion condition trigger. Completion wins
	// and finalizes correctly.
	h := newHarness(t, intervalSettings(1), 1)

	h.advance(60 * time.Second)
	if h.store.finalizeCount() != 1 {
		t.Fatalf("Expected one finalize call, got %d", h.store.finalizeCount())
	}
	if h.store.finalizes[0].Status != models.SessionCompleted {
		t.Errorf("Expected completed, got %s", h.store.finalizes[0].Status)
	}
	if h.store.finalizes[0].TotalCheckins != 0 {
		t.Errorf("Expected no check-ins, got %d", h.store.finalizes[0].TotalCheckins)
	}
}

func TestController_RespondWithoutPrompt(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 60)
	h.advance(10 * time.Second)

	if _, err := h.ctrl.Respond(true); !errors.Is(err, ErrNoPromptPending) {
		t.Errorf("Expected ErrNoPromptPending, got %v", err)
	}
	if len(h.ctrl.View().CheckIns) != 0 {
		t.Error("Respond without a prompt must not record a check-in")
	}
}

func TestController_PersistFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)
	h.store.checkInErr = errors.New("service unavailable")

	h.advance(60 * time.Second)
	checkIn, err := h.ctrl.Respond(true)
	if err == nil {
		t.Fatal("Expected the persistence error to surface")
	}
	if checkIn == nil {
		t.Fatal("The check-in must still be recorded in memory")
	}

	view := h.ctrl.View()
	if view.PromptPending {
		t.Error("Prompt should return to idle despite the persistence failure")
	}
	if len(view.CheckIns) != 1 {
		t.Errorf("In-memory state rolled back: %d check-ins", len(view.CheckIns))
	}
}

func TestController_FinalizeFailureStillTerminal(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 60)
	h.store.finalizeErr = errors.New("service unavailable")
	h.advance(30 * time.Second)

	if err := h.ctrl.End(models.SessionAbandoned); err == nil {
		t.Fatal("Expected the finalize error to surface")
	}
	// Terminal regardless: a retry is a no-op, the stale-session
	// sweeper reconciles the row server-side.
	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Errorf("Second End should be a no-op, got %v", err)
	}
	if h.store.finalizeCount() != 1 {
		t.Errorf("Expected one finalize attempt, got %d", h.store.finalizeCount())
	}
}

func TestController_MirrorClearedOnEnd(t *testing.T) {
	h := newHarness(t, intervalSettings(25), 60)

	h.advance(5 * time.Second)
	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if _, err := h.mirror.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Expected a mirror snapshot after pause: %v", err)
	}

	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if _, err := h.mirror.Load(context.Background(), "user-1"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Expected the mirror to be cleared on end, got %v", err)
	}
}

func TestController_TickAfterTeardownIsNoOp(t *testing.T) {
	h := newHarness(t, intervalSettings(1), 25)
	h.advance(60 * time.Second)

	if err := h.ctrl.End(models.SessionAbandoned); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	// Stray timer callbacks racing the teardown must do nothing.
	h.now = h.now.Add(time.Second)
	h.ctrl.Tick(h.now)
	h.ctrl.countdownTick(h.now)

	if h.store.finalizeCount() != 1 {
		t.Errorf("Stray tick after teardown changed terminal state")
	}
	if len(h.ctrl.View().CheckIns) != 0 {
		t.Errorf("Stray countdown tick recorded a check-in after teardown")
	}
}

func TestFocusAccuracyRoundTrip(t *testing.T) {
	tests := []struct {
		successful, total int
		want              float64
	}{
		{3, 4, 75},
		{0, 0, 100},
		{2, 2, 100},
		{0, 5, 0},
	}

	for _, tt := range tests {
		if got := models.FocusAccuracy(tt.successful, tt.total); got != tt.want {
			t.Errorf("FocusAccuracy(%d, %d) = %v, want %v", tt.successful, tt.total, got, tt.want)
		}
	}
}
