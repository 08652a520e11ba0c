package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// SettingsService manages per-user locale settings.
type SettingsService struct {
	client *database.Client
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(client *database.Client) *SettingsService {
	return &SettingsService{client: client}
}

// Get returns a user's settings, or defaults (UTC, "en") when none are stored.
func (s *SettingsService) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	if userID == 0 {
		return nil, NewValidationError("user_id", "required")
	}
	var settings models.UserSettings
	err := s.client.DB().GetContext(ctx, &settings,
		`SELECT user_id, timezone, language, updated_at FROM user_settings WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserSettings{UserID: userID, Timezone: "UTC", Language: "en"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// Upsert stores a user's settings. The timezone must be a valid IANA name.
func (s *SettingsService) Upsert(ctx context.Context, userID int64, req models.UpsertSettingsRequest) (*models.UserSettings, error) {
	if userID == 0 {
		return nil, NewValidationError("user_id", "required")
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, NewValidationError("timezone", "unknown IANA timezone")
	}
	if req.Language == "" {
		req.Language = "en"
	}

	settings := models.UserSettings{
		UserID:    userID,
		Timezone:  req.Timezone,
		Language:  req.Language,
		UpdatedAt: time.Now().UTC(),
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExec(
		`INSERT INTO user_settings (user_id, timezone, language, updated_at)
		 VALUES (:user_id, :timezone, :language, :updated_at)
		 ON CONFLICT (user_id) DO UPDATE SET timezone = excluded.timezone,
		     language = excluded.language, updated_at = excluded.updated_at`, settings); err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}
	if err := auditTx(tx, "user_settings", fmt.Sprintf("%d", userID), models.AuditActionUpdated, ActorAPI,
		map[string]any{"timezone": settings.Timezone, "language": settings.Language}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &settings, nil
}
