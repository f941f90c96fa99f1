package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrIncognitoNotFound = errors.New("incognito setting not found")

// IncognitoRepository stores per (user, conversation) ephemeral-mode settings.
type IncognitoRepository interface {
	Upsert(ctx context.Context, setting models.IncognitoSetting) error
	Get(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, error)
	Delete(ctx context.Context, userID, conversationID string) (bool, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]models.IncognitoSetting, error)
}

// IncognitoRepo is a sqlx implementation of IncognitoRepository.
type IncognitoRepo struct {
	db *sqlx.DB
}

// NewIncognitoRepo constructs an IncognitoRepo.
func NewIncognitoRepo(db *sqlx.DB) *IncognitoRepo {
	return &IncognitoRepo{db: db}
}

// Upsert replaces any prior setting for the (user, conversation) pair.
func (r *IncognitoRepo) Upsert(ctx context.Context, setting models.IncognitoSetting) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO incognito_settings (user_id, conversation_id, enabled_at, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, conversation_id) DO UPDATE SET enabled_at = EXCLUDED.enabled_at, expires_at = EXCLUDED.expires_at`,
		setting.UserID, setting.ConversationID, setting.EnabledAt, setting.ExpiresAt)
	return err
}

// Get fetches the setting for the pair, if any.
func (r *IncognitoRepo) Get(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, error) {
	var setting models.IncognitoSetting
	err := r.db.GetContext(ctx, &setting,
		`SELECT user_id, conversation_id, enabled_at, expires_at FROM incognito_settings
         WHERE user_id=$1 AND conversation_id=$2`, userID, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IncognitoSetting{}, ErrIncognitoNotFound
	}
	return setting, err
}

// Delete removes the setting and reports whether one existed.
func (r *IncognitoRepo) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM incognito_settings WHERE user_id=$1 AND conversation_id=$2`, userID, conversationID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// ListExpired returns every setting whose expiry has passed.
func (r *IncognitoRepo) ListExpired(ctx context.Context, asOf time.Time) ([]models.IncognitoSetting, error) {
	var settings []models.IncognitoSetting
	err := r.db.SelectContext(ctx, &settings,
		`SELECT user_id, conversation_id, enabled_at, expires_at FROM incognito_settings WHERE expires_at <= $1`, asOf)
	return settings, err
}
