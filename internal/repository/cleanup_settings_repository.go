package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
)

const cleanupColumns = `id, max_age_hours, cleanup_interval_hours, batch_size, max_workers, last_cleanup, created_at, updated_at`

// CleanupSettingsRepository manages the singleton cleanup_settings row.
type CleanupSettingsRepository struct {
	pool *database.Pool
}

// NewCleanupSettingsRepository creates a new instance of CleanupSettingsRepository.
func NewCleanupSettingsRepository(pool *database.Pool) *CleanupSettingsRepository {
	return &CleanupSettingsRepository{pool: pool}
}

// Get returns the settings row, inserting the defaults on first use.
func (r *CleanupSettingsRepository) Get(ctx context.Context) (*models.CleanupSettings, error) {
	var settings models.CleanupSettings
	err := r.pool.Tx(ctx, "cleanup_settings_get", func(ctx context.Context, tx *sqlx.Tx) error {
		return getOrCreateSettings(ctx, tx, &settings)
	})
	if err != nil {
		return nil, fmt.Errorf("get cleanup settings: %w", err)
	}
	return &settings, nil
}

// Update patches the non-nil fields and returns the stored row.
func (r *CleanupSettingsRepository) Update(ctx context.Context, patch models.CleanupSettingsPatch) (*models.CleanupSettings, error) {
	var settings models.CleanupSettings
	err := r.pool.Tx(ctx, "cleanup_settings_update", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := getOrCreateSettings(ctx, tx, &settings); err != nil {
			return err
		}
		if patch.MaxAgeHours != nil {
			settings.MaxAgeHours = *patch.MaxAgeHours
		}
		if patch.CleanupIntervalHours != nil {
			settings.CleanupIntervalHours = *patch.CleanupIntervalHours
		}
		if patch.BatchSize != nil {
			settings.BatchSize = *patch.BatchSize
		}
		if patch.MaxWorkers != nil {
			settings.MaxWorkers = *patch.MaxWorkers
		}
		const update = `UPDATE cleanup_settings SET max_age_hours = $2, cleanup_interval_hours = $3, batch_size = $4, max_workers = $5, updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`
		return tx.QueryRowxContext(ctx, update, settings.ID, settings.MaxAgeHours, settings.CleanupIntervalHours,
			settings.BatchSize, settings.MaxWorkers).Scan(&settings.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("update cleanup settings: %w", err)
	}
	return &settings, nil
}

// TouchLastCleanup records the time of the latest cleanup run.
func (r *CleanupSettingsRepository) TouchLastCleanup(ctx context.Context, at time.Time) error {
	return r.pool.Tx(ctx, "cleanup_settings_touch", func(ctx context.Context, tx *sqlx.Tx) error {
		var settings models.CleanupSettings
		if err := getOrCreateSettings(ctx, tx, &settings); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cleanup_settings SET last_cleanup = $2, updated_at = NOW() WHERE id = $1`, settings.ID, at); err != nil {
			return fmt.Errorf("touch last cleanup: %w", err)
		}
		return nil
	})
}

func getOrCreateSettings(ctx context.Context, tx *sqlx.Tx, dest *models.CleanupSettings) error {
	err := tx.GetContext(ctx, dest, `SELECT `+cleanupColumns+` FROM cleanup_settings ORDER BY id LIMIT 1 FOR UPDATE`)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	d := models.DefaultCleanupSettings()
	const insert = `INSERT INTO cleanup_settings (max_age_hours, cleanup_interval_hours, batch_size, max_workers)
		VALUES ($1, $2, $3, $4) RETURNING ` + cleanupColumns
	return tx.GetContext(ctx, dest, insert, d.MaxAgeHours, d.CleanupIntervalHours, d.BatchSize, d.MaxWorkers)
}
