package focus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ticus/internal/metrics"
	"ticus/internal/models"
)

// ErrSessionActive is returned when starting a session for a user who
// already has one running. At most one active session per user.
var ErrSessionActive = errors.New("user already has an active session")

// Registry owns the active session controllers, one per user at most.
// It is the single construction point for controllers so the
// one-active-session invariant has exactly one enforcement site.
type Registry struct {
	store    SessionStore
	mirror   Mirror
	notifier Notifier
	loc      *time.Location
	window   time.Duration
	now      func() time.Time

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(store SessionStore, mirror Mirror, notifier Notifier, loc *time.Location, window time.Duration) *Registry {
	return &Registry{
		store:       store,
		mirror:      mirror,
		notifier:    notifier,
		loc:         loc,
		window:      window,
		now:         time.Now,
		controllers: make(map[string]*Controller),
	}
}

// Start builds and runs a controller for an already-persisted
// in_progress session. Fails with ErrSessionActive if the user already
// has one.
func (r *Registry) Start(session models.Session, settings *models.UserSettings) (*Controller, error) {
	r.mu.Lock()
	if _, exists := r.controllers[session.UserID]; exists {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}

	ctrl, err := NewController(Options{
		Session:     session,
		Settings:    settings,
		Location:    r.loc,
		Window:      r.window,
		Store:       r.store,
		Mirror:      r.mirror,
		Notifier:    r.notifier,
		Now:         r.now,
		OnTerminate: r.remove,
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.controllers[session.UserID] = ctrl
	r.mu.Unlock()

	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()

	// Mirror and tick outside the registry lock: the controller's
	// terminate hook takes it back.
	ctrl.SaveMirror()
	ctrl.Run()
	return ctrl, nil
}

// Get returns the user's active controller, if any.
func (r *Registry) Get(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.controllers[userID]
	return ctrl, ok
}

// Restore rebuilds a controller from the durable mirror after a
// restart. The restored session comes back paused so stale wall-clock
// time cannot inflate elapsed time; the user resumes explicitly.
// Returns ErrNoSnapshot when there is nothing to restore.
func (r *Registry) Restore(ctx context.Context, userID string, settings *models.UserSettings) (*Controller, error) {
	r.mu.Lock()
	if ctrl, exists := r.controllers[userID]; exists {
		r.mu.Unlock()
		return ctrl, nil
	}
	r.mu.Unlock()

	if r.mirror == nil {
		return nil, ErrNoSnapshot
	}

	snap, err := r.mirror.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap.Session.Terminal() {
		// A finalized session left a stale mirror entry behind.
		if clearErr := r.mirror.Clear(ctx, userID); clearErr != nil {
			slog.Warn("failed to clear stale session mirror", "user_id", userID, "error", clearErr)
		}
		return nil, ErrNoSnapshot
	}

	ctrl, err := NewController(Options{
		Session:        snap.Session,
		CheckIns:       snap.CheckIns,
		ElapsedSeconds: snap.ElapsedSeconds,
		StartPaused:    true,
		Settings:       settings,
		Location:       r.loc,
		Window:         r.window,
		Store:          r.store,
		Mirror:         r.mirror,
		Notifier:       r.notifier,
		Now:            r.now,
		OnTerminate:    r.remove,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, exists := r.controllers[userID]; exists {
		// Lost the race to a concurrent restore; keep the winner.
		r.mu.Unlock()
		ctrl.Halt()
		return existing, nil
	}
	r.controllers[userID] = ctrl
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()

	slog.Info("restored active session from mirror",
		"user_id", userID,
		"session_id", snap.Session.ID,
		"elapsed_seconds", snap.ElapsedSeconds)

	ctrl.Run()
	return ctrl, nil
}

// ActiveUserIDs lists users with a running controller.
func (r *Registry) ActiveUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown halts every controller without finalizing, saving mirrors
// so sessions survive the restart.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ctrls := make([]*Controller, 0, len(r.controllers))
	for _, ctrl := range r.controllers {
		ctrls = append(ctrls, ctrl)
	}
	r.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Halt()
	}
}

// remove drops a terminated controller. Called by the controller's
// OnTerminate hook, never while the registry lock is held elsewhere on
// the same goroutine.
func (r *Registry) remove(userID string) {
	r.mu.Lock()
	delete(r.controllers, userID)
	r.mu.Unlock()
}
