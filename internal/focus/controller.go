package focus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticus/internal/logging"
	"ticus/internal/metrics"
	"ticus/internal/models"
)

// SessionStore is the persistence contract the controller depends on.
// Calls are at-least-once: a failure is surfaced to the caller but the
// in-memory state is never rolled back.
type SessionStore interface {
	RecordCheckIn(ctx context.Context, checkIn *models.CheckIn) error
	FinalizeSession(ctx context.Context, req *models.FinalizeSessionRequest) error
}

// Notifier receives session events for delivery to the user. It must
// not block; the controller calls it while holding its lock.
type Notifier interface {
	Notify(userID string, event models.SessionEvent)
}

// ErrNoPromptPending is returned when responding without an
// outstanding check-in prompt.
var ErrNoPromptPending = errors.New("no check-in prompt is outstanding")

const persistTimeout = 10 * time.Second

// Controller owns the ActiveSessionState of one running focus session
// and mediates every transition. All state is guarded by mu; timer
// callbacks and HTTP handlers go through the same lock.
type Controller struct {
	session  models.Session
	checkIns []models.CheckIn

	clock    *SessionClock
	schedule *PromptSchedule
	window   time.Duration

	promptPending     bool
	responseRemaining time.Duration
	nextMark          PromptMark

	store        SessionStore
	mirror       Mirror
	notifier     Notifier
	soundEnabled bool
	logger       *slog.Logger

	now func() time.Time

	mu            sync.Mutex
	running       bool // set by Run; self-driven timers only exist then
	tickStop      chan struct{}
	tickStopped   bool
	countdownStop chan struct{}

	terminal    bool
	onTerminate func(userID string)
}

// Options configures a new controller. Session must already be
// persisted with status in_progress. ElapsedSeconds and CheckIns are
// non-zero only when restoring from a mirror snapshot.
type Options struct {
	Session        models.Session
	CheckIns       []models.CheckIn
	ElapsedSeconds int
	StartPaused    bool

	Settings *models.UserSettings
	Location *time.Location
	Window   time.Duration // response window, defaults to 30s

	Store       SessionStore
	Mirror      Mirror
	Notifier    Notifier
	Now         func() time.Time
	OnTerminate func(userID string)
}

// NewController builds a controller and computes the first scheduled
// prompt. It does not start ticking; call Run for that (tests drive
// Tick directly).
func NewController(opts Options) (*Controller, error) {
	schedule, err := NewPromptSchedule(opts.Settings, opts.Location)
	if err != nil {
		return nil, err
	}

	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	window := opts.Window
	if window <= 0 {
		window = 30 * time.Second
	}

	now := nowFn()
	elapsed := time.Duration(opts.ElapsedSeconds) * time.Second
	planned := time.Duration(opts.Session.PlannedDurationMinutes) * time.Minute

	// The clock is anchored to "now minus restored elapsed" rather than
	// the persisted start timestamp: after a restart the wall-clock gap
	// since the original start must not count as focus time.
	clock := NewSessionClock(now.Add(-elapsed), planned)

	c := &Controller{
		session:      opts.Session,
		checkIns:     append([]models.CheckIn(nil), opts.CheckIns...),
		clock:        clock,
		schedule:     schedule,
		window:       window,
		store:        opts.Store,
		mirror:       opts.Mirror,
		notifier:     opts.Notifier,
		soundEnabled: opts.Settings.SoundEnabled,
		logger:       logging.WithSession(opts.Session.ID, opts.Session.UserID),
		now:          nowFn,
		tickStop:     make(chan struct{}),
		onTerminate:  opts.OnTerminate,
	}

	if opts.ElapsedSeconds > 0 {
		c.nextMark = schedule.Next(now, elapsed)
	} else {
		c.nextMark = schedule.First(now)
	}

	if opts.StartPaused {
		clock.Pause(now)
	}

	return c, nil
}

// Run starts the once-per-second session tick in its own goroutine.
// Without Run the controller is purely reactive: Tick must be invoked
// by the caller (tests drive transitions this way).
func (c *Controller) Run() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.tickStop:
				return
			case <-ticker.C:
				c.Tick(c.now())
			}
		}
	}()
}

// Tick advances the session by one observation of the clock. It is a
// no-op while paused or after the session reached a terminal state.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal || c.clock.Paused() {
		return
	}

	if c.clock.CompletionDue(now) {
		c.endLocked(models.SessionCompleted, now)
		return
	}

	elapsed := c.clock.Elapsed(now)
	if !c.promptPending && c.schedule.Due(c.nextMark, now, elapsed) {
		c.openPromptLocked(now)
	}

	c.emit(models.SessionEvent{
		Type:             models.EventTick,
		ElapsedSeconds:   int(elapsed / time.Second),
		RemainingSeconds: int(c.clock.Remaining(now) / time.Second),
	})
}

// Pause freezes the clock, the prompt scheduler and any outstanding
// response countdown. Idempotent: pausing a paused session is a no-op.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal {
		return nil
	}
	now := c.now()
	if !c.clock.Pause(now) {
		return nil
	}

	c.logger.Debug("session paused", "elapsed_seconds", int(c.clock.Elapsed(now)/time.Second))
	c.emit(models.SessionEvent{Type: models.EventSessionPaused, Paused: true})
	c.saveMirrorLocked(now)
	return nil
}

// Resume unfreezes the session. Idempotent: resuming an unpaused
// session is a no-op.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal {
		return nil
	}
	now := c.now()
	if !c.clock.Resume(now) {
		return nil
	}

	c.logger.Debug("session resumed", "elapsed_seconds", int(c.clock.Elapsed(now)/time.Second))
	c.emit(models.SessionEvent{Type: models.EventSessionResumed})
	c.saveMirrorLocked(now)
	return nil
}

// Respond records the user's answer to the outstanding prompt. The
// response time is the portion of the window already consumed. Returns
// ErrNoPromptPending when no prompt is outstanding; a persistence
// failure is returned alongside the recorded check-in, with the
// in-memory state already advanced.
func (c *Controller) Respond(wasFocused bool) (*models.CheckIn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal || !c.promptPending {
		return nil, ErrNoPromptPending
	}

	responseTime := c.window - c.responseRemaining
	if responseTime < 0 {
		responseTime = 0
	}
	if responseTime > c.window {
		responseTime = c.window
	}

	return c.resolvePromptLocked(c.now(), wasFocused, responseTime, false)
}

// End finalizes the session with the given terminal status. Safe to
// call more than once: anything after the first call is a no-op. An
// outstanding prompt is implicitly abandoned without recording a
// check-in.
func (c *Controller) End(status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal {
		return nil
	}
	return c.endLocked(status, c.now())
}

// Halt stops both timers and saves the mirror without finalizing.
// Used on graceful shutdown so the session can resume after restart.
func (c *Controller) Halt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal {
		return
	}
	c.stopTimersLocked()
	c.saveMirrorLocked(c.now())
}

// SaveMirror persists the current state to the durable mirror.
func (c *Controller) SaveMirror() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return
	}
	c.saveMirrorLocked(c.now())
}

// View returns an API snapshot of the active state.
func (c *Controller) View() models.ActiveSessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	view := models.ActiveSessionView{
		Session:           c.session,
		ElapsedSeconds:    int(c.clock.Elapsed(now) / time.Second),
		RemainingSeconds:  int(c.clock.Remaining(now) / time.Second),
		Paused:            c.clock.Paused(),
		PromptPending:     c.promptPending,
		ResponseRemaining: int(c.responseRemaining / time.Second),
		CheckIns:          append([]models.CheckIn(nil), c.checkIns...),
	}
	if !c.nextMark.At.IsZero() {
		at := c.nextMark.At
		view.NextPromptAt = &at
	}
	return view
}

// SessionID returns the id of the owned session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// openPromptLocked transitions IDLE -> AWAITING_RESPONSE and starts
// the response countdown ticker.
func (c *Controller) openPromptLocked(now time.Time) {
	c.promptPending = true
	c.responseRemaining = c.window

	if c.running {
		stop := make(chan struct{})
		c.countdownStop = stop
		go c.runCountdown(stop)
	}

	c.logger.Debug("check-in prompt due",
		"elapsed_seconds", int(c.clock.Elapsed(now)/time.Second))
	c.emit(models.SessionEvent{
		Type:                  models.EventPromptDue,
		ResponseWindowSeconds: int(c.window / time.Second),
		Sound:                 c.soundEnabled,
	})
}

// runCountdown drives the response countdown at one-second cadence.
// The ticker is fully stopped when the prompt resolves; a stray fire
// racing the stop finds promptPending false and does nothing.
func (c *Controller) runCountdown(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.countdownTick(c.now())
		}
	}
}

// countdownTick decrements the response countdown by one second and
// auto-fails the prompt at zero.
func (c *Controller) countdownTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal || !c.promptPending {
		return
	}
	if c.clock.Paused() {
		// Pause suspends the countdown along with the clock.
		return
	}

	c.responseRemaining -= time.Second
	if c.responseRemaining > 0 {
		return
	}

	metrics.PromptTimeouts.Inc()
	c.logger.Info("check-in prompt expired unanswered")
	if _, err := c.resolvePromptLocked(now, false, c.window, true); err != nil {
		c.logger.Warn("failed to persist auto-failed check-in", "error", err)
	}
}

// resolvePromptLocked records a check-in, returns the prompt state to
// IDLE, stops the countdown and computes the next scheduled prompt.
func (c *Controller) resolvePromptLocked(now time.Time, wasFocused bool, responseTime time.Duration, auto bool) (*models.CheckIn, error) {
	checkIn := models.CheckIn{
		ID:                  uuid.New().String(),
		SessionID:           c.session.ID,
		Timestamp:           now,
		WasFocused:          wasFocused,
		ResponseTimeSeconds: int(responseTime / time.Second),
	}
	c.checkIns = append(c.checkIns, checkIn)

	c.stopCountdownLocked()
	c.promptPending = false
	c.nextMark = c.schedule.Next(now, c.clock.Elapsed(now))

	metrics.CheckinsRecorded.WithLabelValues(boolLabel(wasFocused)).Inc()
	c.emit(models.SessionEvent{
		Type:         models.EventPromptResolved,
		WasFocused:   &checkIn.WasFocused,
		AutoResolved: auto,
	})

	var persistErr error
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		persistErr = c.store.RecordCheckIn(ctx, &checkIn)
		cancel()
		if persistErr != nil {
			metrics.PersistFailures.WithLabelValues("record_checkin").Inc()
			c.emit(models.SessionEvent{
				Type:    models.EventPersistError,
				Message: "failed to save check-in, it will be retried by the history sync",
			})
		}
	}

	c.saveMirrorLocked(now)
	return &checkIn, persistErr
}

// endLocked performs the one-shot terminal transition.
func (c *Controller) endLocked(status string, now time.Time) error {
	c.terminal = true
	c.stopTimersLocked()

	elapsed := c.clock.Elapsed(now)
	total := len(c.checkIns)
	successful := 0
	for _, ci := range c.checkIns {
		if ci.WasFocused {
			successful++
		}
	}
	accuracy := models.FocusAccuracy(successful, total)

	c.session.Status = status
	c.session.ActualDurationMinutes = int(elapsed / time.Minute)
	c.session.TotalCheckins = total
	c.session.SuccessfulCheckins = successful
	c.session.FocusAccuracy = accuracy
	finalized := now
	c.session.FinalizedAt = &finalized

	metrics.SessionsFinalized.WithLabelValues(status).Inc()
	metrics.ActiveSessions.Dec()

	eventType := models.EventSessionEnded
	if status == models.SessionCompleted {
		eventType = models.EventSessionCompleted
	}
	c.emit(models.SessionEvent{
		Type:           eventType,
		Status:         status,
		FocusAccuracy:  accuracy,
		ElapsedSeconds: int(elapsed / time.Second),
	})

	var persistErr error
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		persistErr = c.store.FinalizeSession(ctx, &models.FinalizeSessionRequest{
			SessionID:             c.session.ID,
			Status:                status,
			ActualDurationMinutes: c.session.ActualDurationMinutes,
			TotalCheckins:         total,
			SuccessfulCheckins:    successful,
			FocusAccuracy:         accuracy,
		})
		cancel()
		if persistErr != nil {
			metrics.PersistFailures.WithLabelValues("finalize_session").Inc()
			c.logger.Error("failed to finalize session", "error", persistErr)
		}
	}

	if c.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := c.mirror.Clear(ctx, c.session.UserID); err != nil {
			c.logger.Warn("failed to clear session mirror", "error", err)
		}
		cancel()
	}

	c.logger.Info("session finalized",
		"status", status,
		"actual_minutes", c.session.ActualDurationMinutes,
		"total_checkins", total,
		"focus_accuracy", accuracy)

	if c.onTerminate != nil {
		c.onTerminate(c.session.UserID)
	}

	return persistErr
}

// stopTimersLocked deterministically stops the session tick and any
// outstanding response countdown.
func (c *Controller) stopTimersLocked() {
	if !c.tickStopped {
		close(c.tickStop)
		c.tickStopped = true
	}
	c.stopCountdownLocked()
}

func (c *Controller) stopCountdownLocked() {
	if c.countdownStop != nil {
		close(c.countdownStop)
		c.countdownStop = nil
	}
}

// saveMirrorLocked mirrors the active state for resume-after-restart.
// Best effort: a mirror failure never blocks a transition.
func (c *Controller) saveMirrorLocked(now time.Time) {
	if c.mirror == nil {
		return
	}
	snap := &Snapshot{
		Session:        c.session,
		CheckIns:       append([]models.CheckIn(nil), c.checkIns...),
		ElapsedSeconds: int(c.clock.Elapsed(now) / time.Second),
		SavedAt:        now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.mirror.Save(ctx, c.session.UserID, snap); err != nil {
		c.logger.Warn("failed to save session mirror", "error", err)
	}
}

func (c *Controller) emit(event models.SessionEvent) {
	if c.notifier == nil {
		return
	}
	event.SessionID = c.session.ID
	event.Timestamp = c.now()
	c.notifier.Notify(c.session.UserID, event)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
