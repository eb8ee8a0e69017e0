package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticus/internal/config"
	"ticus/internal/database"
	"ticus/internal/models"
)

var ErrSlotNotFound = errors.New("timetable slot not found")

// TimetableService manages the weekly study plan and the named
// templates it can be seeded from.
type TimetableService struct {
	db        *database.DB
	templates *config.TemplateStore
}

// NewTimetableService creates a new timetable service.
func NewTimetableService(db *database.DB, templates *config.TemplateStore) *TimetableService {
	return &TimetableService{db: db, templates: templates}
}

// List returns the user's slots ordered by weekday then start time.
func (s *TimetableService) List(ctx context.Context, userID string) ([]models.TimetableEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, weekday, start_time, duration_minutes, subject, created_at, updated_at
		FROM timetable_entries WHERE user_id = ?
		ORDER BY weekday ASC, start_time ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timetable: %w", err)
	}
	defer rows.Close()

	var entries []models.TimetableEntry
	for rows.Next() {
		entry, err := scanTimetableEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ListAll returns every slot across all users, for reminder startup.
func (s *TimetableService) ListAll(ctx context.Context) ([]models.TimetableEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, weekday, start_time, duration_minutes, subject, created_at, updated_at
		FROM timetable_entries ORDER BY user_id, weekday, start_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to list timetable slots: %w", err)
	}
	defer rows.Close()

	var entries []models.TimetableEntry
	for rows.Next() {
		entry, err := scanTimetableEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Get returns one slot owned by userID.
func (s *TimetableService) Get(ctx context.Context, slotID, userID string) (*models.TimetableEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, weekday, start_time, duration_minutes, subject, created_at, updated_at
		FROM timetable_entries WHERE id = ? AND user_id = ?`, slotID, userID)
	return scanTimetableEntry(row)
}

// Create adds one slot to the user's timetable.
func (s *TimetableService) Create(ctx context.Context, userID string, req *models.CreateTimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &models.TimetableEntry{
		ID:              uuid.New().String(),
		UserID:          userID,
		Weekday:         req.Weekday,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Subject:         req.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timetable_entries (id, user_id, weekday, start_time, duration_minutes, subject, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Weekday, entry.StartTime,
		entry.DurationMinutes, entry.Subject, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create timetable entry: %w", err)
	}
	return entry, nil
}

// Update replaces a slot's fields.
func (s *TimetableService) Update(ctx context.Context, slotID, userID string, req *models.CreateTimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE timetable_entries
		SET weekday = ?, start_time = ?, duration_minutes = ?, subject = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		req.Weekday, req.StartTime, req.DurationMinutes, req.Subject, now.Unix(), slotID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update timetable entry: %w", err)
	}
	if affected == 0 {
		return nil, ErrSlotNotFound
	}

	return s.Get(ctx, slotID, userID)
}

// Delete removes one slot.
func (s *TimetableService) Delete(ctx context.Context, slotID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM timetable_entries WHERE id = ? AND user_id = ?`, slotID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete timetable entry: %w", err)
	}
	if affected == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Templates returns the currently loaded timetable templates.
func (s *TimetableService) Templates() []models.TimetableTemplate {
	return s.templates.All()
}

// ApplyTemplate replaces the user's whole timetable with the named
// template's slots.
func (s *TimetableService) ApplyTemplate(ctx context.Context, userID, name string) ([]models.TimetableEntry, error) {
	tmpl, ok := s.templates.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to clear timetable: %w", err)
	}

	now := time.Now()
	for _, slot := range tmpl.Slots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO timetable_entries (id, user_id, weekday, start_time, duration_minutes, subject, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), userID, slot.Weekday, slot.StartTime,
			slot.DurationMinutes, slot.Subject, now.Unix(), now.Unix())
		if err != nil {
			return nil, fmt.Errorf("failed to apply template slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit template: %w", err)
	}

	return s.List(ctx, userID)
}

func scanTimetableEntry(row rowScanner) (*models.TimetableEntry, error) {
	var e models.TimetableEntry
	var created, updated int64
	err := row.Scan(&e.ID, &e.UserID, &e.Weekday, &e.StartTime, &e.DurationMinutes, &e.Subject, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan timetable entry: %w", err)
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return &e, nil
}
