package service

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/imaging"
	"github.com/noah-isme/outfit-wizard-api/pkg/jobs"
	"github.com/noah-isme/outfit-wizard-api/pkg/sanitize"
)

type itemRepository interface {
	List(ctx context.Context, userID int64) ([]models.ClothingItem, error)
	ListWithImages(ctx context.Context) ([]models.ClothingItem, error)
	GetByID(ctx context.Context, id int64) (*models.ClothingItem, error)
	Create(ctx context.Context, item *models.ClothingItem) error
	Update(ctx context.Context, id, userID int64, upd models.ItemUpdate) error
	UpdateDetails(ctx context.Context, id, userID int64, patch models.ItemDetailsPatch) error
	UpdateImagePath(ctx context.Context, id, userID int64, path string, c colour.RGB) (*string, error)
	Delete(ctx context.Context, id, userID int64) (*string, error)
	MarkOrphaned(ctx context.Context, orphans []models.OrphanedItemAudit) ([]int64, error)
	PriceHistory(ctx context.Context, itemID int64) ([]models.PriceHistoryEntry, error)
	ColourHistory(ctx context.Context, itemID int64) ([]models.ColourHistoryEntry, error)
}

type imageStorage interface {
	Save(rel string, data []byte) (string, error)
	Copy(src, dst string) error
	Delete(rel string) error
	Exists(rel string) bool
	Path(rel string) string
}

// WardrobeConfig tunes item storage and bulk operations.
type WardrobeConfig struct {
	UploadDir           string
	BulkBatchSize       int
	BulkWorkers         int
	SimilarityThreshold float64
}

// WardrobeService implements the item side of the wardrobe store.
type WardrobeService struct {
	items     itemRepository
	files     imageStorage
	links     *ImageLinker
	prefs     preferenceInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       WardrobeConfig
}

// NewWardrobeService constructs a WardrobeService. prefs may be nil.
func NewWardrobeService(items itemRepository, files imageStorage, links *ImageLinker, prefs preferenceInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg WardrobeConfig) *WardrobeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "user_images"
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 10
	}
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 4
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	return &WardrobeService{items: items, files: files, links: links, prefs: prefs, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// ListItems returns the caller's items with signed image URLs.
func (s *WardrobeService) ListItems(ctx context.Context, uc models.UserContext) ([]models.ClothingItem, error) {
	items, err := s.items.List(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "items not found", "failed to list items")
	}
	for i := range items {
		s.attachURL(&items[i])
	}
	return items, nil
}

// GetItem returns one item owned by the caller.
func (s *WardrobeService) GetItem(ctx context.Context, uc models.UserContext, id int64) (*models.ClothingItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "item not found", "failed to load item")
	}
	if item.UserID != uc.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	s.attachURL(item)
	return item, nil
}

// AddItem stores the uploaded bitmap, extracts its dominant colour and
// inserts the item. The file is removed again when any later step fails.
func (s *WardrobeService) AddItem(ctx context.Context, uc models.UserContext, form dto.AddItemForm, data []byte) (item *models.ClothingItem, err error) {
	defer func() { s.metrics.RecordUpload(form.Slot, err == nil) }()

	if err := s.validator.Struct(form); err != nil {
		return nil, validationError(err, "invalid item payload")
	}
	styles, genders, sizes, err := itemTags(form.Styles, form.Genders, form.Sizes)
	if err != nil {
		return nil, err
	}
	upload, err := imaging.Normalize(data)
	if err != nil {
		return nil, err
	}

	slot := models.Slot(form.Slot)
	rel := path.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s.png", slot, uuid.NewString()))
	if _, err := s.files.Save(rel, upload.PNG); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	c, err := imaging.DominantColour(upload.Image, form.Slot)
	if err != nil {
		s.discard(rel)
		return nil, err
	}

	item = &models.ClothingItem{
		UserID:    uc.UserID,
		Slot:      slot,
		Colour:    c,
		Styles:    styles,
		Genders:   genders,
		Sizes:     sizes,
		ImagePath: &rel,
		URL:       form.URL,
		Price:     form.Price,
	}
	if err := s.items.Create(ctx, item); err != nil {
		s.discard(rel)
		return nil, translate(err, "item not found", "failed to create item")
	}

	s.logger.Info("item added",
		zap.Int64("user_id", uc.UserID),
		zap.Int64("item_id", item.ID),
		zap.String("slot", string(slot)),
		zap.String("colour", c.String()),
	)
	s.attachURL(item)
	return item, nil
}

// EditItem replaces colour, style, gender, size, URL and price of an item.
func (s *WardrobeService) EditItem(ctx context.Context, uc models.UserContext, id int64, req dto.EditItemRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid item payload")
	}
	c, err := colour.ParseStrict(req.Colour)
	if err != nil {
		return validationError(err, "colour must be r,g,b")
	}
	styles, genders, sizes, err := itemTags(req.Styles, req.Genders, req.Sizes)
	if err != nil {
		return err
	}
	upd := models.ItemUpdate{
		Colour:  c,
		Styles:  styles,
		Genders: genders,
		Sizes:   sizes,
		URL:     req.URL,
		Price:   req.Price,
	}
	if err := s.items.Update(ctx, id, uc.UserID, upd); err != nil {
		return translate(err, "item not found", "failed to update item")
	}
	s.invalidate(ctx, uc.UserID)
	return nil
}

// UpdateItemDetails patches tags, season and notes.
func (s *WardrobeService) UpdateItemDetails(ctx context.Context, uc models.UserContext, id int64, req dto.DetailsRequest) error {
	patch, err := detailsPatch(s.validator, req)
	if err != nil {
		return err
	}
	if err := s.items.UpdateDetails(ctx, id, uc.UserID, models.ItemDetailsPatch(patch)); err != nil {
		return translate(err, "item not found", "failed to update item details")
	}
	return nil
}

// UpdateItemImage swaps the bitmap of an item. The new file is written
// first, the row updated second and the old file removed last.
func (s *WardrobeService) UpdateItemImage(ctx context.Context, uc models.UserContext, id int64, data []byte) (*models.ClothingItem, error) {
	item, err := s.GetItem(ctx, uc, id)
	if err != nil {
		return nil, err
	}
	upload, err := imaging.Normalize(data)
	if err != nil {
		return nil, err
	}
	c, err := imaging.DominantColour(upload.Image, string(item.Slot))
	if err != nil {
		return nil, err
	}

	rel := path.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s.png", item.Slot, uuid.NewString()))
	if _, err := s.files.Save(rel, upload.PNG); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	old, err := s.items.UpdateImagePath(ctx, id, uc.UserID, rel, c)
	if err != nil {
		s.discard(rel)
		return nil, translate(err, "item not found", "failed to update item image")
	}
	if old != nil && *old != rel {
		s.discard(*old)
	}

	s.invalidate(ctx, uc.UserID)

	item.ImagePath = &rel
	item.Colour = c
	s.attachURL(item)
	return item, nil
}

// DeleteItem removes the row first, then best-effort removes the bitmap.
func (s *WardrobeService) DeleteItem(ctx context.Context, uc models.UserContext, id int64) error {
	imagePath, err := s.items.Delete(ctx, id, uc.UserID)
	if err != nil {
		return translate(err, fmt.Sprintf("item %d not found", id), "failed to delete item")
	}
	s.invalidate(ctx, uc.UserID)
	if imagePath != nil {
		s.discard(*imagePath)
	}
	return nil
}

// itemTags builds the sanitised tag sets of an item. Each set must keep at
// least one label after cleaning.
func itemTags(styles, genders, sizes []string) (models.TagSet, models.TagSet, models.TagSet, error) {
	st := models.NewTagSet(sanitize.Tags(styles)...)
	ge := models.NewTagSet(genders...)
	si := models.NewTagSet(sizes...)
	switch {
	case len(st) == 0:
		return nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "at least one style is required")
	case len(ge) == 0:
		return nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "at least one gender is required")
	case len(si) == 0:
		return nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "at least one size is required")
	}
	return st, ge, si, nil
}

func (s *WardrobeService) invalidate(ctx context.Context, userID int64) {
	if s.prefs != nil {
		s.prefs.Invalidate(ctx, userID)
	}
}

// BulkDelete deletes ids in batches of ten on a small worker pool. One
// failing id never stops the others.
func (s *WardrobeService) BulkDelete(ctx context.Context, uc models.UserContext, req dto.BulkDeleteRequest) (*models.BulkDeleteStats, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk delete payload")
	}
	ids := make([]int64, 0, len(req.IDs))
	seen := make(map[int64]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	results := jobs.RunBatches(ctx, ids, s.cfg.BulkBatchSize, s.cfg.BulkWorkers, func(ctx context.Context, id int64) error {
		return s.DeleteItem(ctx, uc, id)
	})

	stats := &models.BulkDeleteStats{Errors: []string{}}
	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("item %d: %s", r.Item, appErrors.FromError(r.Err).Message))
			continue
		}
		stats.Deleted++
	}
	s.logger.Info("bulk delete finished",
		zap.Int64("user_id", uc.UserID),
		zap.Int("deleted", stats.Deleted),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// ReconcileOrphans nulls the image reference of every item whose bitmap is
// missing or undecodable and records an audit row for it. Running it twice
// changes nothing the second time.
func (s *WardrobeService) ReconcileOrphans(ctx context.Context) (*models.ReconcileReport, error) {
	items, err := s.items.ListWithImages(ctx)
	if err != nil {
		return nil, translate(err, "items not found", "failed to list items")
	}
	var orphans []models.OrphanedItemAudit
	for _, item := range items {
		if item.ImagePath == nil {
			continue
		}
		if s.files.Exists(*item.ImagePath) && imaging.IsValidFile(s.files.Path(*item.ImagePath)) {
			continue
		}
		s.logger.Warn("orphaned item", zap.Int64("item_id", item.ID), zap.String("slot", string(item.Slot)), zap.String("path", *item.ImagePath))
		orphans = append(orphans, models.OrphanedItemAudit{OriginalID: item.ID, Slot: item.Slot, ImagePath: *item.ImagePath})
	}

	report := &models.ReconcileReport{Checked: len(items), Orphaned: []int64{}}
	if len(orphans) == 0 {
		return report, nil
	}
	marked, err := s.items.MarkOrphaned(ctx, orphans)
	if err != nil {
		return nil, translate(err, "items not found", "failed to mark orphaned items")
	}
	report.Orphaned = append(report.Orphaned, marked...)
	return report, nil
}

// PriceHistory returns the price changes of an item owned by the caller.
func (s *WardrobeService) PriceHistory(ctx context.Context, uc models.UserContext, id int64) ([]models.PriceHistoryEntry, error) {
	if _, err := s.GetItem(ctx, uc, id); err != nil {
		return nil, err
	}
	entries, err := s.items.PriceHistory(ctx, id)
	if err != nil {
		return nil, translate(err, "item not found", "failed to load price history")
	}
	return entries, nil
}

// ColourHistory returns the colour changes of an item owned by the caller.
func (s *WardrobeService) ColourHistory(ctx context.Context, uc models.UserContext, id int64) ([]models.ColourHistoryEntry, error) {
	if _, err := s.GetItem(ctx, uc, id); err != nil {
		return nil, err
	}
	entries, err := s.items.ColourHistory(ctx, id)
	if err != nil {
		return nil, translate(err, "item not found", "failed to load colour history")
	}
	return entries, nil
}

// SimilarItems ranks the caller's other items by cosine similarity of their
// colour, style and slot features and returns up to n above the threshold.
func (s *WardrobeService) SimilarItems(ctx context.Context, uc models.UserContext, id int64, n int) ([]models.SimilarItem, error) {
	if n <= 0 {
		n = 3
	}
	items, err := s.items.List(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "items not found", "failed to list items")
	}
	ref := -1
	for i := range items {
		if items[i].ID == id {
			ref = i
			break
		}
	}
	if ref < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}

	features := itemFeatures(items)
	out := make([]models.SimilarItem, 0, n)
	for i := range items {
		if i == ref {
			continue
		}
		sim := cosine(features[ref], features[i])
		if sim < s.cfg.SimilarityThreshold {
			continue
		}
		s.attachURL(&items[i])
		out = append(out, models.SimilarItem{Item: items[i], Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *WardrobeService) attachURL(item *models.ClothingItem) {
	if item.ImagePath != nil {
		item.ImageURL = s.links.URL(item.UserID, *item.ImagePath)
	}
}

func (s *WardrobeService) discard(rel string) {
	if err := s.files.Delete(rel); err != nil {
		s.logger.Warn("failed to remove image", zap.String("path", rel), zap.Error(err))
	}
}

// itemFeatures encodes each item as normalised RGB followed by one-hot
// style and slot columns over the vocabulary of items.
func itemFeatures(items []models.ClothingItem) [][]float64 {
	styleIdx := map[string]int{}
	for _, item := range items {
		for _, st := range item.Styles {
			key := normaliseKey(st)
			if _, ok := styleIdx[key]; !ok {
				styleIdx[key] = len(styleIdx)
			}
		}
	}
	width := 3 + len(styleIdx) + len(models.Slots)
	out := make([][]float64, len(items))
	for i, item := range items {
		v := make([]float64, width)
		v[0] = float64(item.Colour.R) / 255
		v[1] = float64(item.Colour.G) / 255
		v[2] = float64(item.Colour.B) / 255
		for _, st := range item.Styles {
			v[3+styleIdx[normaliseKey(st)]] = 1
		}
		for j, slot := range models.Slots {
			if item.Slot == slot {
				v[3+len(styleIdx)+j] = 1
			}
		}
		out[i] = v
	}
	return out
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, sim))
}
