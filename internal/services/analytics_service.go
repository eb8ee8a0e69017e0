package services

import (
	"context"
	"fmt"
	"time"

	"ticus/internal/database"
	"ticus/internal/models"
)

// AnalyticsSummary aggregates finalized sessions over a date range.
type AnalyticsSummary struct {
	From                 time.Time        `json:"from"`
	To                   time.Time        `json:"to"`
	TotalSessions        int              `json:"totalSessions"`
	CompletedSessions    int              `json:"completedSessions"`
	AbandonedSessions    int              `json:"abandonedSessions"`
	TotalFocusMinutes    int              `json:"totalFocusMinutes"`
	AverageFocusAccuracy float64          `json:"averageFocusAccuracy"`
	TotalCheckins        int              `json:"totalCheckins"`
	SuccessfulCheckins   int              `json:"successfulCheckins"`
	Subjects             []SubjectSummary `json:"subjects"`
}

// SubjectSummary is the per-subject slice of a summary.
type SubjectSummary struct {
	Subject           string  `json:"subject"`
	Sessions          int     `json:"sessions"`
	TotalFocusMinutes int     `json:"totalFocusMinutes"`
	AverageAccuracy   float64 `json:"averageAccuracy"`
}

// DailyProgress reports today's focus minutes against the user's goal.
type DailyProgress struct {
	Date             string `json:"date"`
	FocusMinutes     int    `json:"focusMinutes"`
	DailyGoalMinutes int    `json:"dailyGoalMinutes"`
	GoalReached      bool   `json:"goalReached"`
}

// AnalyticsService computes study statistics from finalized sessions.
type AnalyticsService struct {
	db       *database.DB
	settings *SettingsService
	loc      *time.Location
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(db *database.DB, settings *SettingsService, loc *time.Location) *AnalyticsService {
	return &AnalyticsService{db: db, settings: settings, loc: loc}
}

// Summary aggregates finalized sessions whose start falls in [from, to).
func (s *AnalyticsService) Summary(ctx context.Context, userID string, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{From: from, To: to}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(actual_duration_minutes), 0),
		       COALESCE(AVG(focus_accuracy), 0),
		       COALESCE(SUM(total_checkins), 0),
		       COALESCE(SUM(successful_checkins), 0)
		FROM sessions
		WHERE user_id = ? AND status != ? AND start_timestamp >= ? AND start_timestamp < ?`,
		models.SessionCompleted, userID, models.SessionInProgress, from.Unix(), to.Unix())
	err := row.Scan(&summary.TotalSessions, &summary.CompletedSessions,
		&summary.TotalFocusMinutes, &summary.AverageFocusAccuracy,
		&summary.TotalCheckins, &summary.SuccessfulCheckins)
	if err != nil {
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}
	summary.AbandonedSessions = summary.TotalSessions - summary.CompletedSessions

	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, COUNT(*), COALESCE(SUM(actual_duration_minutes), 0), COALESCE(AVG(focus_accuracy), 0)
		FROM sessions
		WHERE user_id = ? AND status != ? AND start_timestamp >= ? AND start_timestamp < ?
		GROUP BY subject
		ORDER BY SUM(actual_duration_minutes) DESC`,
		userID, models.SessionInProgress, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to compute subject breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub SubjectSummary
		if err := rows.Scan(&sub.Subject, &sub.Sessions, &sub.TotalFocusMinutes, &sub.AverageAccuracy); err != nil {
			return nil, fmt.Errorf("failed to scan subject summary: %w", err)
		}
		summary.Subjects = append(summary.Subjects, sub)
	}
	return summary, rows.Err()
}

// TodayProgress returns the user's focus minutes for the current local
// day measured against their daily goal.
func (s *AnalyticsService) TodayProgress(ctx context.Context, userID string) (*DailyProgress, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	var minutes int
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(actual_duration_minutes), 0)
		FROM sessions
		WHERE user_id = ? AND status != ? AND start_timestamp >= ? AND start_timestamp < ?`,
		userID, models.SessionInProgress, dayStart.Unix(), dayEnd.Unix()).Scan(&minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily progress: %w", err)
	}

	return &DailyProgress{
		Date:             dayStart.Format("2006-01-02"),
		FocusMinutes:     minutes,
		DailyGoalMinutes: settings.DailyGoalMinutes,
		GoalReached:      settings.DailyGoalMinutes > 0 && minutes >= settings.DailyGoalMinutes,
	}, nil
}
