package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
)

const itemColumns = `id, user_id, slot, color, style, gender, size, image_path, url, tags, season, notes, price, created_at`

// ItemRepository persists clothing items and their audit trails.
type ItemRepository struct {
	pool *database.Pool
}

// NewItemRepository creates a new instance of ItemRepository.
func NewItemRepository(pool *database.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// List returns the user's items ordered by slot, newest first within a slot.
func (r *ItemRepository) List(ctx context.Context, userID int64) ([]models.ClothingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM user_clothing_items WHERE user_id = $1 ORDER BY slot, created_at DESC, id DESC`
	var items []models.ClothingItem
	err := r.pool.Do(ctx, "items_list", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &items, query, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListWithImages returns every item that still references a bitmap.
func (r *ItemRepository) ListWithImages(ctx context.Context) ([]models.ClothingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM user_clothing_items WHERE image_path IS NOT NULL ORDER BY id`
	var items []models.ClothingItem
	err := r.pool.Do(ctx, "items_with_images", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &items, query)
	})
	if err != nil {
		return nil, fmt.Errorf("list items with images: %w", err)
	}
	return items, nil
}

// GetByID returns an item by identifier.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*models.ClothingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM user_clothing_items WHERE id = $1`
	var item models.ClothingItem
	err := r.pool.Do(ctx, "items_get", func(ctx context.Context, q database.Querier) error {
		return q.GetContext(ctx, &item, query, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// Create inserts the item and its initial price history row in one transaction.
func (r *ItemRepository) Create(ctx context.Context, item *models.ClothingItem) error {
	const insert = `INSERT INTO user_clothing_items (user_id, slot, color, style, gender, size, image_path, url, tags, season, notes, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id, created_at`
	tags := item.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	return r.pool.Tx(ctx, "items_create", func(ctx context.Context, tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx, insert,
			item.UserID, item.Slot, item.Colour, item.Styles, item.Genders, item.Sizes,
			item.ImagePath, item.URL, tags, item.Season, item.Notes, item.Price)
		if err := row.Scan(&item.ID, &item.CreatedAt); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		if item.Price != nil {
			if err := insertPriceHistory(ctx, tx, item.ID, *item.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update replaces the editable attributes of an item owned by userID and
// appends colour/price history rows when those values change.
func (r *ItemRepository) Update(ctx context.Context, id, userID int64, upd models.ItemUpdate) error {
	const current = `SELECT color, price FROM user_clothing_items WHERE id = $1 AND user_id = $2 FOR UPDATE`
	const update = `UPDATE user_clothing_items SET color = $3, style = $4, gender = $5, size = $6, url = $7, price = $8 WHERE id = $1 AND user_id = $2`
	return r.pool.Tx(ctx, "items_update", func(ctx context.Context, tx *sqlx.Tx) error {
		var prev struct {
			Colour colour.RGB `db:"color"`
			Price  *float64   `db:"price"`
		}
		if err := tx.GetContext(ctx, &prev, current, id, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("load item: %w", err)
		}
		if prev.Colour != upd.Colour {
			if _, err := tx.ExecContext(ctx, `INSERT INTO item_color_history (item_id, old_color, new_color) VALUES ($1, $2, $3)`,
				id, prev.Colour, upd.Colour); err != nil {
				return fmt.Errorf("insert colour history: %w", err)
			}
		}
		if upd.Price != nil && (prev.Price == nil || *prev.Price != *upd.Price) {
			if err := insertPriceHistory(ctx, tx, id, *upd.Price); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, update, id, userID, upd.Colour, upd.Styles, upd.Genders, upd.Sizes, upd.URL, upd.Price)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return requireAffected(res)
	})
}

// UpdateDetails patches tags, season and notes. Nil fields are left untouched.
func (r *ItemRepository) UpdateDetails(ctx context.Context, id, userID int64, patch models.ItemDetailsPatch) error {
	sets, args := detailSets(patch.Tags, patch.Season, patch.Notes, 3)
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE user_clothing_items SET %s WHERE id = $1 AND user_id = $2`, strings.Join(sets, ", "))
	return r.pool.Tx(ctx, "items_update_details", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, append([]interface{}{id, userID}, args...)...)
		if err != nil {
			return fmt.Errorf("update item details: %w", err)
		}
		return requireAffected(res)
	})
}

// UpdateImagePath swaps the bitmap reference and colour and returns the
// previous reference.
func (r *ItemRepository) UpdateImagePath(ctx context.Context, id, userID int64, path string, c colour.RGB) (*string, error) {
	var old *string
	err := r.pool.Tx(ctx, "items_update_image", func(ctx context.Context, tx *sqlx.Tx) error {
		var prev struct {
			ImagePath *string    `db:"image_path"`
			Colour    colour.RGB `db:"color"`
		}
		if err := tx.GetContext(ctx, &prev, `SELECT image_path, color FROM user_clothing_items WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("load item image: %w", err)
		}
		old = prev.ImagePath
		if prev.Colour != c {
			if _, err := tx.ExecContext(ctx, `INSERT INTO item_color_history (item_id, old_color, new_color) VALUES ($1, $2, $3)`,
				id, prev.Colour, c); err != nil {
				return fmt.Errorf("insert colour history: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE user_clothing_items SET image_path = $2, color = $3 WHERE id = $1`, id, path, c); err != nil {
			return fmt.Errorf("update item image: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// Delete removes the item and returns the image it referenced.
func (r *ItemRepository) Delete(ctx context.Context, id, userID int64) (*string, error) {
	var path *string
	err := r.pool.Tx(ctx, "items_delete", func(ctx context.Context, tx *sqlx.Tx) error {
		path = nil
		err := tx.GetContext(ctx, &path, `DELETE FROM user_clothing_items WHERE id = $1 AND user_id = $2 RETURNING image_path`, id, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}

// MarkOrphaned records audit rows and nulls the image reference of each
// item. Items whose reference already changed are skipped.
func (r *ItemRepository) MarkOrphaned(ctx context.Context, orphans []models.OrphanedItemAudit) ([]int64, error) {
	if len(orphans) == 0 {
		return nil, nil
	}
	var marked []int64
	err := r.pool.Tx(ctx, "items_mark_orphaned", func(ctx context.Context, tx *sqlx.Tx) error {
		marked = marked[:0]
		for _, o := range orphans {
			res, err := tx.ExecContext(ctx, `UPDATE user_clothing_items SET image_path = NULL WHERE id = $1 AND image_path = $2`, o.OriginalID, o.ImagePath)
			if err != nil {
				return fmt.Errorf("null orphan image: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO orphaned_items_audit (original_id, slot, image_path) VALUES ($1, $2, $3)`,
				o.OriginalID, o.Slot, o.ImagePath); err != nil {
				return fmt.Errorf("insert orphan audit: %w", err)
			}
			marked = append(marked, o.OriginalID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

// PriceHistory returns price changes for an item, newest first.
func (r *ItemRepository) PriceHistory(ctx context.Context, itemID int64) ([]models.PriceHistoryEntry, error) {
	const query = `SELECT id, item_id, price, created_at FROM item_price_history WHERE item_id = $1 ORDER BY created_at DESC, id DESC`
	var entries []models.PriceHistoryEntry
	err := r.pool.Do(ctx, "items_price_history", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &entries, query, itemID)
	})
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	return entries, nil
}

// ColourHistory returns colour changes for an item, newest first.
func (r *ItemRepository) ColourHistory(ctx context.Context, itemID int64) ([]models.ColourHistoryEntry, error) {
	const query = `SELECT id, item_id, old_color, new_color, changed_at FROM item_color_history WHERE item_id = $1 ORDER BY changed_at DESC, id DESC`
	var entries []models.ColourHistoryEntry
	err := r.pool.Do(ctx, "items_colour_history", func(ctx context.Context, q database.Querier) error {
		return q.SelectContext(ctx, &entries, query, itemID)
	})
	if err != nil {
		return nil, fmt.Errorf("colour history: %w", err)
	}
	return entries, nil
}

func insertPriceHistory(ctx context.Context, tx *sqlx.Tx, itemID int64, price float64) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO item_price_history (item_id, price, created_at) VALUES ($1, $2, $3)`,
		itemID, price, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

// detailSets builds the SET clauses shared by item and outfit detail patches.
func detailSets(tags *[]string, season *models.Season, notes *string, next int) ([]string, []interface{}) {
	var sets []string
	var args []interface{}
	if tags != nil {
		sets = append(sets, fmt.Sprintf("tags = $%d", next))
		args = append(args, pq.StringArray(*tags))
		next++
	}
	if season != nil {
		sets = append(sets, fmt.Sprintf("season = $%d", next))
		args = append(args, *season)
		next++
	}
	if notes != nil {
		sets = append(sets, fmt.Sprintf("notes = $%d", next))
		args = append(args, *notes)
	}
	return sets, args
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
