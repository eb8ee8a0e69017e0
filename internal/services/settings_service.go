package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ticus/internal/database"
	"ticus/internal/models"
)

// SettingsService stores per-user focus preferences. Reads are served
// from an in-process cache because the scheduler consults settings on
// every session start.
type SettingsService struct {
	db    *database.DB
	cache *gocache.Cache
}

// NewSettingsService creates a new settings service.
func NewSettingsService(db *database.DB) *SettingsService {
	return &SettingsService{
		db:    db,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Get returns the user's settings, falling back to defaults when the
// user has never saved any.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	if cached, found := s.cache.Get(userID); found {
		settings := *cached.(*models.UserSettings)
		return &settings, nil
	}

	var settings models.UserSettings
	var sound int
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, checkin_policy, checkin_interval_minutes, preferred_prompt_time,
		       sound_enabled, daily_goal_minutes, updated_at
		FROM user_settings WHERE user_id = ?`, userID).
		Scan(&settings.UserID, &settings.CheckinPolicy, &settings.CheckinIntervalMinutes,
			&settings.PreferredPromptTime, &sound, &settings.DailyGoalMinutes, &updated)
	if err == sql.ErrNoRows {
		defaults := models.DefaultUserSettings(userID)
		s.cache.Set(userID, defaults, gocache.DefaultExpiration)
		copied := *defaults
		return &copied, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings.SoundEnabled = sound == 1
	settings.UpdatedAt = time.Unix(updated, 0).UTC()

	s.cache.Set(userID, &settings, gocache.DefaultExpiration)
	copied := settings
	return &copied, nil
}

// Update merges a partial update into the user's settings, validates
// the result and persists it.
func (s *SettingsService) Update(ctx context.Context, userID string, req *models.UpdateUserSettingsRequest) (*models.UserSettings, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	req.Apply(settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	settings.UpdatedAt = now
	sound := 0
	if settings.SoundEnabled {
		sound = 1
	}

	// Portable upsert: try the update first, insert on zero rows.
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_settings
		SET checkin_policy = ?, checkin_interval_minutes = ?, preferred_prompt_time = ?,
		    sound_enabled = ?, daily_goal_minutes = ?, updated_at = ?
		WHERE user_id = ?`,
		settings.CheckinPolicy, settings.CheckinIntervalMinutes, settings.PreferredPromptTime,
		sound, settings.DailyGoalMinutes, now.Unix(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if affected == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, checkin_policy, checkin_interval_minutes,
				preferred_prompt_time, sound_enabled, daily_goal_minutes, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, settings.CheckinPolicy, settings.CheckinIntervalMinutes,
			settings.PreferredPromptTime, sound, settings.DailyGoalMinutes, now.Unix())
		if err != nil {
			return nil, fmt.Errorf("failed to insert settings: %w", err)
		}
	}

	s.Invalidate(userID)
	copied := *settings
	return &copied, nil
}

// Invalidate drops the cached settings for one user.
func (s *SettingsService) Invalidate(userID string) {
	s.cache.Delete(userID)
}
