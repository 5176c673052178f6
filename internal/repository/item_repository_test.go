package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
)

var itemCols = []string{"id", "user_id", "slot", "color", "style", "gender", "size", "image_path", "url", "tags", "season", "notes", "price", "created_at"}

func TestItemListOrdersBySlotThenNewest(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	now := time.Now()
	rows := sqlmock.NewRows(itemCols).
		AddRow(2, 1, "pants", "0,0,255", "Casual", "unisex", "M,L", "user_images/pants_b.png", nil, "{summer}", "Summer", nil, "19.99", now).
		AddRow(1, 1, "shirt", "255,0,0", "Casual,Formal", "male", "M", nil, nil, "{}", nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_clothing_items WHERE user_id = $1 ORDER BY slot, created_at DESC, id DESC")).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	pants := items[0]
	assert.Equal(t, models.SlotPants, pants.Slot)
	assert.Equal(t, colour.RGB{B: 255}, pants.Colour)
	assert.Equal(t, models.TagSet{"M", "L"}, pants.Sizes)
	assert.Equal(t, []string{"summer"}, []string(pants.Tags))
	require.NotNil(t, pants.Price)
	assert.InDelta(t, 19.99, *pants.Price, 1e-9)
	require.NotNil(t, pants.Season)
	assert.Equal(t, models.SeasonSummer, *pants.Season)

	shirt := items[1]
	assert.Nil(t, shirt.ImagePath)
	assert.True(t, shirt.Styles.Contains("formal"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemCreateWritesPriceHistory(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	price := 25.0
	path := "user_images/shirt_x.png"
	item := &models.ClothingItem{
		UserID:    1,
		Slot:      models.SlotShirt,
		Colour:    colour.RGB{R: 255},
		Styles:    models.NewTagSet("Casual"),
		Genders:   models.NewTagSet("male"),
		Sizes:     models.NewTagSet("M"),
		ImagePath: &path,
		Price:     &price,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO user_clothing_items").
		WithArgs(int64(1), "shirt", "255,0,0", "Casual", "male", "M", path, nil, "{}", nil, nil, price).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))
	mock.ExpectExec("INSERT INTO item_price_history").
		WithArgs(int64(7), price, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), item))
	assert.Equal(t, int64(7), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemCreateWithoutPriceSkipsHistory(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO user_clothing_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, time.Now()))
	mock.ExpectCommit()

	item := &models.ClothingItem{UserID: 1, Slot: models.SlotShoes, Styles: models.NewTagSet("Sport"), Genders: models.NewTagSet("unisex"), Sizes: models.NewTagSet("L")}
	require.NoError(t, repo.Create(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemUpdateAppendsHistoryOnChange(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	newPrice := 30.0
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT color, price FROM user_clothing_items WHERE id = $1 AND user_id = $2 FOR UPDATE")).
		WithArgs(int64(3), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"color", "price"}).AddRow("255,0,0", "25.00"))
	mock.ExpectExec("INSERT INTO item_color_history").
		WithArgs(int64(3), "255,0,0", "0,0,255").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO item_price_history").
		WithArgs(int64(3), newPrice, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE user_clothing_items SET color").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 3, 1, models.ItemUpdate{
		Colour:  colour.RGB{B: 255},
		Styles:  models.NewTagSet("Casual"),
		Genders: models.NewTagSet("unisex"),
		Sizes:   models.NewTagSet("M"),
		Price:   &newPrice,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemUpdateUnchangedWritesNoHistory(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	price := 25.0
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT color, price").
		WillReturnRows(sqlmock.NewRows([]string{"color", "price"}).AddRow("255,0,0", "25.00"))
	mock.ExpectExec("UPDATE user_clothing_items SET color").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 3, 1, models.ItemUpdate{
		Colour: colour.RGB{R: 255}, Styles: models.NewTagSet("Casual"), Genders: models.NewTagSet("male"), Sizes: models.NewTagSet("M"), Price: &price,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemUpdateMissingRow(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT color, price").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Update(context.Background(), 99, 1, models.ItemUpdate{})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemUpdateDetailsOnlyTouchesGivenFields(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	notes := "dry clean"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_clothing_items SET notes = $3 WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(3), int64(1), notes).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateDetails(context.Background(), 3, 1, models.ItemDetailsPatch{Notes: &notes}))
	require.NoError(t, repo.UpdateDetails(context.Background(), 3, 1, models.ItemDetailsPatch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemDeleteReturnsImagePath(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM user_clothing_items WHERE id = $1 AND user_id = $2 RETURNING image_path")).
		WithArgs(int64(4), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"image_path"}).AddRow("user_images/shirt_a.png"))
	mock.ExpectCommit()

	path, err := repo.Delete(context.Background(), 4, 1)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, "user_images/shirt_a.png", *path)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM user_clothing_items").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = repo.Delete(context.Background(), 4, 1)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemMarkOrphanedSkipsAlreadyChangedRows(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_clothing_items SET image_path = NULL WHERE id = $1 AND image_path = $2")).
		WithArgs(int64(1), "user_images/a.png").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO orphaned_items_audit").
		WithArgs(int64(1), "shirt", "user_images/a.png").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE user_clothing_items SET image_path = NULL").
		WithArgs(int64(2), "user_images/b.png").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	marked, err := repo.MarkOrphaned(context.Background(), []models.OrphanedItemAudit{
		{OriginalID: 1, Slot: models.SlotShirt, ImagePath: "user_images/a.png"},
		{OriginalID: 2, Slot: models.SlotPants, ImagePath: "user_images/b.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemHistories(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewItemRepository(pool)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM item_price_history WHERE item_id = $1 ORDER BY created_at DESC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "price", "created_at"}).
			AddRow(2, 3, "30.00", now).
			AddRow(1, 3, "25.00", now.Add(-time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM item_color_history WHERE item_id = $1 ORDER BY changed_at DESC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "old_color", "new_color", "changed_at"}).
			AddRow(1, 3, "255,0,0", "0,0,255", now))

	prices, err := repo.PriceHistory(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.InDelta(t, 30.0, prices[0].Price, 1e-9)

	colours, err := repo.ColourHistory(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, colours, 1)
	assert.Equal(t, colour.RGB{B: 255}, colours[0].NewColour)
	assert.NoError(t, mock.ExpectationsWereMet())
}
