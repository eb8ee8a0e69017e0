// Package metrics exposes the Prometheus instruments for the focus
// core. The HTTP-level metrics come from the fiberprometheus middleware
// registered in main; these cover the session state machine itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts session starts.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticus_sessions_started_total",
		Help: "Number of focus sessions started.",
	})

	// SessionsFinalized counts terminal sessions by status.
	SessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticus_sessions_finalized_total",
		Help: "Number of focus sessions finalized, by terminal status.",
	}, []string{"status"})

	// ActiveSessions tracks currently running controllers.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticus_active_sessions",
		Help: "Number of in-memory active session controllers.",
	})

	// CheckinsRecorded counts check-ins by outcome.
	CheckinsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticus_checkins_recorded_total",
		Help: "Number of check-ins recorded, by focus outcome.",
	}, []string{"focused"})

	// PromptTimeouts counts prompts that auto-failed unanswered.
	PromptTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticus_prompt_timeouts_total",
		Help: "Number of check-in prompts that expired without a response.",
	})

	// PersistFailures counts persistence errors surfaced by the core.
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticus_persist_failures_total",
		Help: "Number of failed persistence calls from the session core, by operation.",
	}, []string{"operation"})
)
