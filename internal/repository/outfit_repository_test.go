package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

var outfitCols = []string{"outfit_id", "user_id", "image_path", "tags", "season", "notes", "created_at"}

func TestOutfitCreateLinksItems(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO saved_outfits").
		WithArgs("o1", int64(1), "wardrobe/user_1/outfit_o1.png", "{}", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	for _, slot := range []string{"shirt", "pants", "shoes"} {
		mock.ExpectExec("INSERT INTO saved_outfit_items").
			WithArgs("o1", slot, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	outfit := &models.SavedOutfit{
		OutfitID:  "o1",
		UserID:    1,
		ImagePath: "wardrobe/user_1/outfit_o1.png",
		Items: []models.OutfitItem{
			{Slot: models.SlotShirt, ItemID: 1},
			{Slot: models.SlotPants, ItemID: 2},
			{Slot: models.SlotShoes, ItemID: 3},
		},
	}
	require.NoError(t, repo.Create(context.Background(), outfit))
	assert.False(t, outfit.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutfitListByUserAttachesItems(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM saved_outfits WHERE user_id = $1 ORDER BY created_at DESC")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(outfitCols).
			AddRow("o2", 1, "wardrobe/user_1/outfit_o2.png", "{date}", nil, nil, now).
			AddRow("o1", 1, "wardrobe/user_1/outfit_o1.png", "{}", "Summer", "notes", now.Add(-time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM saved_outfit_items WHERE outfit_id = ANY($1)")).
		WithArgs(pq.Array([]string{"o2", "o1"})).
		WillReturnRows(sqlmock.NewRows([]string{"outfit_id", "slot", "item_id"}).
			AddRow("o1", "pants", 2).
			AddRow("o1", "shirt", 1))

	outfits, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, outfits, 2)
	assert.Empty(t, outfits[0].Items)
	assert.Len(t, outfits[1].Items, 2)
	assert.Equal(t, []string{"date"}, []string(outfits[0].Tags))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutfitItemsJoin(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	mock.ExpectQuery("FROM saved_outfits so\\s+JOIN saved_outfit_items").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"outfit_id", "item_id", "color", "style"}).
			AddRow("o1", 10, "255,0,0", "Casual").
			AddRow("o1", 12, "0,0,0", "Casual,Sport"))

	rows, err := repo.ListOutfitItems(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.TagSet{"Casual", "Sport"}, rows[1].Styles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutfitDeleteReturnsPath(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM saved_outfits WHERE outfit_id = $1 AND user_id = $2 RETURNING image_path")).
		WithArgs("o1", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"image_path"}).AddRow("wardrobe/user_1/outfit_o1.png"))
	mock.ExpectCommit()

	path, err := repo.Delete(context.Background(), "o1", 1)
	require.NoError(t, err)
	assert.Equal(t, "wardrobe/user_1/outfit_o1.png", path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutfitShareDuplicate(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO shared_outfits").
		WithArgs("o1", int64(1), int64(2)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Share(context.Background(), &models.SharedOutfit{OutfitID: "o1", FromUser: 1, ToUser: 2})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutfitUnshareMissing(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewOutfitRepository(pool)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM shared_outfits").
		WithArgs("o1", int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Unshare(context.Background(), "o1", 1, 2)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupSettingsGetInsertsDefaults(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewCleanupSettingsRepository(pool)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM cleanup_settings ORDER BY id LIMIT 1 FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO cleanup_settings").
		WithArgs(24, 12, 100, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "max_age_hours", "cleanup_interval_hours", "batch_size", "max_workers", "last_cleanup", "created_at", "updated_at"}).
			AddRow(1, 24, 12, 100, 4, nil, now, now))
	mock.ExpectCommit()

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24, settings.MaxAgeHours)
	assert.Equal(t, 4, settings.MaxWorkers)
	assert.Nil(t, settings.LastCleanup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupSettingsUpdatePatchesFields(t *testing.T) {
	pool, mock := newMock(t)
	repo := NewCleanupSettingsRepository(pool)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM cleanup_settings ORDER BY id LIMIT 1 FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "max_age_hours", "cleanup_interval_hours", "batch_size", "max_workers", "last_cleanup", "created_at", "updated_at"}).
			AddRow(1, 24, 12, 100, 4, nil, now, now))
	mock.ExpectQuery("UPDATE cleanup_settings SET max_age_hours").
		WithArgs(int64(1), 48, 12, 100, 4).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectCommit()

	maxAge := 48
	settings, err := repo.Update(context.Background(), models.CleanupSettingsPatch{MaxAgeHours: &maxAge})
	require.NoError(t, err)
	assert.Equal(t, 48, settings.MaxAgeHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}
