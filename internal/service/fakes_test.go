package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

// fakeItems is an in-memory item repository.
type fakeItems struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]models.ClothingItem
	orphaned []models.OrphanedItemAudit
	listErr  error
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: map[int64]models.ClothingItem{}}
}

func (f *fakeItems) put(item models.ClothingItem) models.ClothingItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == 0 {
		f.nextID++
		item.ID = f.nextID
	} else if item.ID > f.nextID {
		f.nextID = item.ID
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	f.items[item.ID] = item
	return item
}

func (f *fakeItems) sorted(filter func(models.ClothingItem) bool) []models.ClothingItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ClothingItem{}
	for _, item := range f.items {
		if filter(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeItems) List(_ context.Context, userID int64) ([]models.ClothingItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(func(i models.ClothingItem) bool { return i.UserID == userID }), nil
}

func (f *fakeItems) ListWithImages(context.Context) ([]models.ClothingItem, error) {
	return f.sorted(func(i models.ClothingItem) bool { return i.ImagePath != nil }), nil
}

func (f *fakeItems) GetByID(_ context.Context, id int64) (*models.ClothingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (f *fakeItems) Create(_ context.Context, item *models.ClothingItem) error {
	*item = f.put(*item)
	return nil
}

func (f *fakeItems) Update(_ context.Context, id, userID int64, upd models.ItemUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	item.Colour, item.Styles, item.Genders, item.Sizes, item.URL, item.Price = upd.Colour, upd.Styles, upd.Genders, upd.Sizes, upd.URL, upd.Price
	f.items[id] = item
	return nil
}

func (f *fakeItems) UpdateDetails(_ context.Context, id, userID int64, patch models.ItemDetailsPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	if patch.Tags != nil {
		item.Tags = *patch.Tags
	}
	if patch.Season != nil {
		item.Season = patch.Season
	}
	if patch.Notes != nil {
		item.Notes = patch.Notes
	}
	f.items[id] = item
	return nil
}

func (f *fakeItems) UpdateImagePath(_ context.Context, id, userID int64, path string, c colour.RGB) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.UserID != userID {
		return nil, sql.ErrNoRows
	}
	old := item.ImagePath
	item.ImagePath = &path
	item.Colour = c
	f.items[id] = item
	return old, nil
}

func (f *fakeItems) Delete(_ context.Context, id, userID int64) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.UserID != userID {
		return nil, sql.ErrNoRows
	}
	delete(f.items, id)
	return item.ImagePath, nil
}

func (f *fakeItems) MarkOrphaned(_ context.Context, orphans []models.OrphanedItemAudit) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, o := range orphans {
		item, ok := f.items[o.OriginalID]
		if !ok || item.ImagePath == nil {
			continue
		}
		item.ImagePath = nil
		f.items[o.OriginalID] = item
		f.orphaned = append(f.orphaned, o)
		ids = append(ids, o.OriginalID)
	}
	return ids, nil
}

func (f *fakeItems) PriceHistory(context.Context, int64) ([]models.PriceHistoryEntry, error) {
	return []models.PriceHistoryEntry{}, nil
}

func (f *fakeItems) ColourHistory(context.Context, int64) ([]models.ColourHistoryEntry, error) {
	return []models.ColourHistoryEntry{}, nil
}

// fakeOutfits is an in-memory outfit repository that joins against items.
type fakeOutfits struct {
	mu      sync.Mutex
	items   *fakeItems
	outfits map[string]models.SavedOutfit
	shares  []models.SharedOutfit
}

func newFakeOutfits(items *fakeItems) *fakeOutfits {
	return &fakeOutfits{items: items, outfits: map[string]models.SavedOutfit{}}
}

func (f *fakeOutfits) Create(_ context.Context, outfit *models.SavedOutfit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	outfit.CreatedAt = time.Now()
	f.outfits[outfit.OutfitID] = *outfit
	return nil
}

func (f *fakeOutfits) GetByID(_ context.Context, outfitID string) (*models.SavedOutfit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outfits[outfitID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (f *fakeOutfits) ListByUser(_ context.Context, userID int64) ([]models.SavedOutfit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.SavedOutfit{}
	for _, o := range f.outfits {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOutfits) ListOutfitItems(ctx context.Context, userID int64) ([]models.OutfitItemRow, error) {
	outfits, _ := f.ListByUser(ctx, userID)
	var rows []models.OutfitItemRow
	for _, o := range outfits {
		for _, link := range o.Items {
			item, err := f.items.GetByID(ctx, link.ItemID)
			if err != nil {
				continue
			}
			rows = append(rows, models.OutfitItemRow{OutfitID: o.OutfitID, ItemID: item.ID, Colour: item.Colour, Styles: item.Styles})
		}
	}
	return rows, nil
}

func (f *fakeOutfits) UpdateDetails(_ context.Context, outfitID string, userID int64, patch models.OutfitDetailsPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outfits[outfitID]
	if !ok || o.UserID != userID {
		return sql.ErrNoRows
	}
	if patch.Tags != nil {
		o.Tags = *patch.Tags
	}
	if patch.Season != nil {
		o.Season = patch.Season
	}
	if patch.Notes != nil {
		o.Notes = patch.Notes
	}
	f.outfits[outfitID] = o
	return nil
}

func (f *fakeOutfits) Delete(_ context.Context, outfitID string, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outfits[outfitID]
	if !ok || o.UserID != userID {
		return "", sql.ErrNoRows
	}
	delete(f.outfits, outfitID)
	return o.ImagePath, nil
}

func (f *fakeOutfits) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outfits), nil
}

func (f *fakeOutfits) Share(_ context.Context, share *models.SharedOutfit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shares {
		if s.OutfitID == share.OutfitID && s.FromUser == share.FromUser && s.ToUser == share.ToUser {
			return appErrors.Clone(appErrors.ErrAlreadyExists, "duplicate share")
		}
	}
	share.SharedAt = time.Now()
	f.shares = append(f.shares, *share)
	return nil
}

func (f *fakeOutfits) ListShared(_ context.Context, toUser int64) ([]models.SharedOutfit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.SharedOutfit{}
	for _, s := range f.shares {
		if s.ToUser == toUser {
			s.ImagePath = f.outfits[s.OutfitID].ImagePath
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeOutfits) Unshare(_ context.Context, outfitID string, fromUser, toUser int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.shares {
		if s.OutfitID == outfitID && s.FromUser == fromUser && s.ToUser == toUser {
			f.shares = append(f.shares[:i], f.shares[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeUsers map[int64]models.User

func (f fakeUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

type invalidationRecorder struct {
	mu    sync.Mutex
	users []int64
}

func (r *invalidationRecorder) Invalidate(_ context.Context, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

type staticPrefs struct {
	prefs *models.Preferences
}

func (s staticPrefs) Preferences(context.Context, models.UserContext) (*models.Preferences, error) {
	if s.prefs == nil {
		return &models.Preferences{ColourPrefs: map[string]int{}, StylePrefs: map[string]int{}}, nil
	}
	return s.prefs, nil
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "user_images", "wardrobe", "merged_outfits")
	require.NoError(t, err)
	return store
}

func newTestLinker() *ImageLinker {
	return NewImageLinker(storage.NewSignedURLSigner("test-secret", time.Hour), "/api/v1")
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// storedItem saves a solid bitmap for item and registers it with items.
func storedItem(t *testing.T, items *fakeItems, store *storage.LocalStorage, item models.ClothingItem) models.ClothingItem {
	t.Helper()
	rel := "user_images/" + string(item.Slot) + "_" + item.Colour.Hex()[1:] + "_" + time.Now().Format("150405.000000000") + ".png"
	_, err := store.Save(rel, solidPNG(t, 40, 40, color.RGBA{item.Colour.R, item.Colour.G, item.Colour.B, 255}))
	require.NoError(t, err)
	item.ImagePath = &rel
	return items.put(item)
}
