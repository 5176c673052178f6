package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
)

const outfitColumns = `outfit_id, user_id, image_path, tags, season, notes, created_at`

// OutfitRepository persists saved outfits, their item links and shares.
type OutfitRepository struct {
	pool *database.Pool
}

// NewOutfitRepository creates a new instance of OutfitRepository.
func NewOutfitRepository(pool *database.Pool) *OutfitRepository {
	return &OutfitRepository{pool: pool}
}

// Create inserts the outfit and its slot links in one transaction.
func (r *OutfitRepository) Create(ctx context.Context, outfit *models.SavedOutfit) error {
	const insert = `INSERT INTO saved_outfits (outfit_id, user_id, image_path, tags, season, notes)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	const link = `INSERT INTO saved_outfit_items (outfit_id, slot, item_id) VALUES ($1, $2, $3)`
	tags := outfit.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	return r.pool.Tx(ctx, "outfits_create", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, insert, outfit.OutfitID, outfit.UserID, outfit.ImagePath, tags, outfit.Season, outfit.Notes).
			Scan(&outfit.CreatedAt); err != nil {
			return fmt.Errorf("insert outfit: %w", err)
		}
		for _, item := range outfit.Items {
			if _, err := tx.ExecContext(ctx, link, outfit.OutfitID, item.Slot, item.ItemID); err != nil {
				return fmt.Errorf("insert outfit item: %w", err)
			}
		}
		return nil
	})
}

// GetByID returns one outfit with its item links.
func (r *OutfitRepository) GetByID(ctx context.Context, outfitID string) (*models.SavedOutfit, error) {
	var outfit models.SavedOutfit
	err := r.pool.Do(ctx, "outfits_get", func(ctx context.Context, q database.Querier) error {
		if err := q.GetContext(ctx, &outfit, `SELECT `+outfitColumns+` FROM saved_outfits WHERE outfit_id = $1`, outfitID); err != nil {
			return err
		}
		return q.SelectContext(ctx, &outfit.Items,
			`SELECT outfit_id, slot, item_id FROM saved_outfit_items WHERE outfit_id = $1 ORDER BY slot`, outfitID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get outfit: %w", err)
	}
	return &outfit, nil
}

// ListByUser returns the user's outfits newest first, with item links.
func (r *OutfitRepository) ListByUser(ctx context.Context, userID int64) ([]models.SavedOutfit, error) {
	var outfits []models.SavedOutfit
	err := r.pool.Do(ctx, "outfits_list", func(ctx context.Context, q database.Querier) error {
		if err := q.SelectContext(ctx, &outfits,
			`SELECT `+outfitColumns+` FROM saved_outfits WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID); err != nil {
			return err
		}
		if len(outfits) == 0 {
			return nil
		}
		ids := make([]string, len(outfits))
		for i, o := range outfits {
			ids[i] = o.OutfitID
		}
		var links []models.OutfitItem
		if err := q.SelectContext(ctx, &links,
			`SELECT outfit_id, slot, item_id FROM saved_outfit_items WHERE outfit_id = ANY($1) ORDER BY outfit_id, slot`, pq.Array(ids)); err != nil {
			return err
		}
		byOutfit := make(map[string][]models.OutfitItem, len(outfits))
		for _, l := range links {
			byOutfit[l.OutfitID] = append(byOutfit[l.OutfitID], l)
		}
		for i := range outfits {
			outfits[i].Items = byOutfit[outfits[i].OutfitID]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list outfits: %w", err)
	}
	return outfits, nil
}

// ListOutfitItems joins every saved outfit of the user to its items.
func (r *OutfitRepository) ListOutfitItems(ctx context.Context, userID int64) ([]models.OutfitItemRow, error) {
	const query = `SELECT so.outfit_id, i.id AS item_id, i.color, i.style
		FROM saved_outfits so
		JOIN saved_outfit_items soi ON soi.outfit_id = so.outfit_id
		JOIN user_clothing_items i ON i.id = soi.item_id
		WHERE so.user_id = $1
		ORDER BY so.created_at, so.outfit_id, soi.slot`
	var rows []models.OutfitItemRow
	err := r.pool.Do(ctx, "outfits_items_join", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &rows, query, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list outfit items: %w", err)
	}
	return rows, nil
}

// UpdateDetails patches tags, season and notes. Nil fields are left untouched.
func (r *OutfitRepository) UpdateDetails(ctx context.Context, outfitID string, userID int64, patch models.OutfitDetailsPatch) error {
	sets, args := detailSets(patch.Tags, patch.Season, patch.Notes, 3)
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE saved_outfits SET %s WHERE outfit_id = $1 AND user_id = $2`, strings.Join(sets, ", "))
	return r.pool.Tx(ctx, "outfits_update_details", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, append([]interface{}{outfitID, userID}, args...)...)
		if err != nil {
			return fmt.Errorf("update outfit details: %w", err)
		}
		return requireAffected(res)
	})
}

// Delete removes the outfit and returns its composite path.
func (r *OutfitRepository) Delete(ctx context.Context, outfitID string, userID int64) (string, error) {
	var path string
	err := r.pool.Tx(ctx, "outfits_delete", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &path,
			`DELETE FROM saved_outfits WHERE outfit_id = $1 AND user_id = $2 RETURNING image_path`, outfitID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("delete outfit: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// Count returns the number of saved outfits across all users.
func (r *OutfitRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.Do(ctx, "outfits_count", func(ctx context.Context, q database.Querier) error {
		return q.GetContext(ctx, &n, `SELECT COUNT(*) FROM saved_outfits`)
	})
	if err != nil {
		return 0, fmt.Errorf("count outfits: %w", err)
	}
	return n, nil
}

// Share records a directed share. Duplicate pairs surface as AlreadyExists.
func (r *OutfitRepository) Share(ctx context.Context, share *models.SharedOutfit) error {
	const insert = `INSERT INTO shared_outfits (outfit_id, from_user, to_user) VALUES ($1, $2, $3) RETURNING shared_at`
	return r.pool.Tx(ctx, "outfits_share", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, insert, share.OutfitID, share.FromUser, share.ToUser).Scan(&share.SharedAt); err != nil {
			return fmt.Errorf("insert share: %w", err)
		}
		return nil
	})
}

// ListShared returns outfits shared with the user, newest first.
func (r *OutfitRepository) ListShared(ctx context.Context, toUser int64) ([]models.SharedOutfit, error) {
	const query = `SELECT s.outfit_id, s.from_user, s.to_user, s.shared_at, so.image_path, u.email AS from_email
		FROM shared_outfits s
		JOIN saved_outfits so ON so.outfit_id = s.outfit_id
		JOIN users u ON u.id = s.from_user
		WHERE s.to_user = $1
		ORDER BY s.shared_at DESC`
	var shares []models.SharedOutfit
	err := r.pool.Do(ctx, "outfits_list_shared", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &shares, query, toUser)
	})
	if err != nil {
		return nil, fmt.Errorf("list shared outfits: %w", err)
	}
	return shares, nil
}

// Unshare removes a directed share.
func (r *OutfitRepository) Unshare(ctx context.Context, outfitID string, fromUser, toUser int64) error {
	return r.pool.Tx(ctx, "outfits_unshare", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM shared_outfits WHERE outfit_id = $1 AND from_user = $2 AND to_user = $3`,
			outfitID, fromUser, toUser)
		if err != nil {
			return fmt.Errorf("delete share: %w", err)
		}
		return requireAffected(res)
	})
}
