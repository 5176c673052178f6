package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/outfit-wizard-api/pkg/database"
)

// schema creates every wardrobe table and index. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_clothing_items (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		slot VARCHAR(50) NOT NULL,
		color VARCHAR(50) NOT NULL,
		style VARCHAR(255) NOT NULL,
		gender VARCHAR(50) NOT NULL,
		size VARCHAR(50) NOT NULL,
		image_path VARCHAR(255),
		url VARCHAR(255),
		tags TEXT[] NOT NULL DEFAULT '{}',
		season VARCHAR(10),
		notes TEXT,
		price DECIMAL(10, 2),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_user ON user_clothing_items(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_slot ON user_clothing_items(slot)`,
	`CREATE INDEX IF NOT EXISTS idx_items_style ON user_clothing_items(style)`,
	`CREATE INDEX IF NOT EXISTS idx_items_tags ON user_clothing_items USING gin(tags)`,
	`CREATE TABLE IF NOT EXISTS saved_outfits (
		id SERIAL PRIMARY KEY,
		outfit_id VARCHAR(50) NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_path VARCHAR(255) NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		season VARCHAR(10),
		notes TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outfit_id ON saved_outfits(outfit_id)`,
	`CREATE INDEX IF NOT EXISTS idx_outfit_tags ON saved_outfits USING gin(tags)`,
	`CREATE TABLE IF NOT EXISTS saved_outfit_items (
		outfit_id VARCHAR(50) NOT NULL REFERENCES saved_outfits(outfit_id) ON DELETE CASCADE,
		slot VARCHAR(50) NOT NULL,
		item_id INTEGER NOT NULL REFERENCES user_clothing_items(id) ON DELETE CASCADE,
		PRIMARY KEY (outfit_id, slot)
	)`,
	`CREATE TABLE IF NOT EXISTS shared_outfits (
		id SERIAL PRIMARY KEY,
		outfit_id VARCHAR(50) NOT NULL REFERENCES saved_outfits(outfit_id) ON DELETE CASCADE,
		from_user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		to_user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		shared_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (outfit_id, from_user, to_user)
	)`,
	`CREATE TABLE IF NOT EXISTS item_price_history (
		id SERIAL PRIMARY KEY,
		item_id INTEGER NOT NULL REFERENCES user_clothing_items(id) ON DELETE CASCADE,
		price DECIMAL(10, 2) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS item_color_history (
		id SERIAL PRIMARY KEY,
		item_id INTEGER NOT NULL REFERENCES user_clothing_items(id) ON DELETE CASCADE,
		old_color VARCHAR(50) NOT NULL,
		new_color VARCHAR(50) NOT NULL,
		changed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orphaned_items_audit (
		id SERIAL PRIMARY KEY,
		original_id INTEGER NOT NULL,
		slot VARCHAR(50) NOT NULL,
		image_path VARCHAR(255) NOT NULL,
		removed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cleanup_settings (
		id SERIAL PRIMARY KEY,
		max_age_hours INT NOT NULL,
		cleanup_interval_hours INT NOT NULL,
		batch_size INT NOT NULL,
		max_workers INT NOT NULL,
		last_cleanup TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// EnsureSchema creates the wardrobe tables when they are missing.
func EnsureSchema(ctx context.Context, pool *database.Pool) error {
	return pool.Tx(ctx, "ensure_schema", func(ctx context.Context, tx *sqlx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
