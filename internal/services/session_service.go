package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ticus/internal/database"
	"ticus/internal/models"
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFinal    = errors.New("session already finalized")
)

// SessionArchiver receives finalized sessions and their check-ins for
// long-term storage. Implementations must not block the caller.
type SessionArchiver interface {
	ArchiveFinalized(req *models.FinalizeSessionRequest)
	ArchiveCheckIns(sessionID string, checkIns []models.CheckIn)
}

// SessionService is the persistence client for session and check-in
// records. Check-ins are append-only; session status transitions are
// forward-only and enforced in SQL.
type SessionService struct {
	db      *database.DB
	archive SessionArchiver // optional, nil when Mongo is not configured
}

// NewSessionService creates a new session service.
func NewSessionService(db *database.DB, archive SessionArchiver) *SessionService {
	return &SessionService{db: db, archive: archive}
}

// Create persists a new in_progress session and returns it with its
// assigned identifier.
func (s *SessionService) Create(ctx context.Context, userID, subject string, plannedMinutes int, start time.Time) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		Subject:                subject,
		PlannedDurationMinutes: plannedMinutes,
		StartTimestamp:         start,
		Status:                 models.SessionInProgress,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, subject, planned_duration_minutes, start_timestamp, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Subject, session.PlannedDurationMinutes,
		start.Unix(), session.Status, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Get returns one session owned by userID.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, subject, planned_duration_minutes, start_timestamp, status,
		       actual_duration_minutes, total_checkins, successful_checkins, focus_accuracy,
		       finalized_at, created_at, updated_at
		FROM sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	return scanSession(row)
}

// List returns the user's finalized sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID string, limit, offset int) ([]models.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, planned_duration_minutes, start_timestamp, status,
		       actual_duration_minutes, total_checkins, successful_checkins, focus_accuracy,
		       finalized_at, created_at, updated_at
		FROM sessions
		WHERE user_id = ? AND status != ?
		ORDER BY start_timestamp DESC
		LIMIT ? OFFSET ?`, userID, models.SessionInProgress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// RecordCheckIn appends one immutable check-in record.
func (s *SessionService) RecordCheckIn(ctx context.Context, checkIn *models.CheckIn) error {
	if checkIn.ID == "" {
		checkIn.ID = uuid.New().String()
	}
	focused := 0
	if checkIn.WasFocused {
		focused = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkins (id, session_id, timestamp, was_focused, response_time_seconds)
		VALUES (?, ?, ?, ?, ?)`,
		checkIn.ID, checkIn.SessionID, checkIn.Timestamp.Unix(), focused, checkIn.ResponseTimeSeconds)
	if err != nil {
		return fmt.Errorf("failed to record check-in: %w", err)
	}
	return nil
}

// ListCheckIns returns a session's check-ins in timestamp order.
func (s *SessionService) ListCheckIns(ctx context.Context, sessionID string) ([]models.CheckIn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, timestamp, was_focused, response_time_seconds
		FROM checkins WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []models.CheckIn
	for rows.Next() {
		var ci models.CheckIn
		var ts int64
		var focused int
		if err := rows.Scan(&ci.ID, &ci.SessionID, &ts, &focused, &ci.ResponseTimeSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		ci.Timestamp = time.Unix(ts, 0).UTC()
		ci.WasFocused = focused == 1
		checkIns = append(checkIns, ci)
	}
	return checkIns, rows.Err()
}

// FinalizeSession writes the terminal metrics exactly once. The WHERE
// clause guards the forward-only transition: a row that already left
// in_progress is never touched again.
func (s *SessionService) FinalizeSession(ctx context.Context, req *models.FinalizeSessionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, actual_duration_minutes = ?, total_checkins = ?,
		    successful_checkins = ?, focus_accuracy = ?, finalized_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		req.Status, req.ActualDurationMinutes, req.TotalCheckins,
		req.SuccessfulCheckins, req.FocusAccuracy, now.Unix(), now.Unix(),
		req.SessionID, models.SessionInProgress)
	if err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	if affected == 0 {
		// Either unknown or already terminal; distinguish for the caller.
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, req.SessionID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to finalize session: %w", err)
		}
		return ErrSessionFinal
	}

	if s.archive != nil {
		s.archive.ArchiveFinalized(req)
		if checkIns, err := s.ListCheckIns(ctx, req.SessionID); err != nil {
			log.Printf("⚠️  Failed to load check-ins for archive of session %s: %v", req.SessionID, err)
		} else {
			s.archive.ArchiveCheckIns(req.SessionID, checkIns)
		}
	}
	return nil
}

// ListStaleInProgress returns in_progress sessions that started before
// the cutoff, for the stale-session sweeper.
func (s *SessionService) ListStaleInProgress(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, planned_duration_minutes, start_timestamp, status,
		       actual_duration_minutes, total_checkins, successful_checkins, focus_accuracy,
		       finalized_at, created_at, updated_at
		FROM sessions WHERE status = ? AND start_timestamp < ?`,
		models.SessionInProgress, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// DeleteFinalizedBefore removes finalized sessions (and their
// check-ins) older than the cutoff. Returns the number of sessions
// removed.
func (s *SessionService) DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM checkins WHERE session_id IN (
			SELECT id FROM sessions WHERE status != ? AND start_timestamp < ?
		)`, models.SessionInProgress, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old check-ins: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE status != ? AND start_timestamp < ?`,
		models.SessionInProgress, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sessions: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var start, created, updated int64
	var finalized sql.NullInt64

	err := row.Scan(&s.ID, &s.UserID, &s.Subject, &s.PlannedDurationMinutes, &start, &s.Status,
		&s.ActualDurationMinutes, &s.TotalCheckins, &s.SuccessfulCheckins, &s.FocusAccuracy,
		&finalized, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.StartTimestamp = time.Unix(start, 0).UTC()
	s.CreatedAt = time.Unix(created, 0).UTC()
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	if finalized.Valid {
		t := time.Unix(finalized.Int64, 0).UTC()
		s.FinalizedAt = &t
	}
	return &s, nil
}
