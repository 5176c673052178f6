package service

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/imaging"
)

const defaultOccasionBoost = 1.5

type itemLister interface {
	List(ctx context.Context, userID int64) ([]models.ClothingItem, error)
}

type preferenceSource interface {
	Preferences(ctx context.Context, uc models.UserContext) (*models.Preferences, error)
}

// ComposerConfig tunes outfit composition.
type ComposerConfig struct {
	CompositeDir  string
	OccasionBoost float64
}

// ComposerService selects one item per slot and renders the composite.
type ComposerService struct {
	items     itemLister
	prefs     preferenceSource
	files     imageStorage
	links     *ImageLinker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ComposerConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposerService constructs a ComposerService. A nil rng is seeded from the clock.
func NewComposerService(items itemLister, prefs preferenceSource, files imageStorage, links *ImageLinker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ComposerConfig, rng *rand.Rand) *ComposerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CompositeDir == "" {
		cfg.CompositeDir = "merged_outfits"
	}
	if cfg.OccasionBoost <= 0 {
		cfg.OccasionBoost = defaultOccasionBoost
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &ComposerService{items: items, prefs: prefs, files: files, links: links, metrics: metrics, validator: validate, logger: logger, cfg: cfg, rng: rng}
}

// Compose filters the caller's wardrobe by size, style and gender, picks the
// best scoring item per slot and, when every slot is filled, writes an
// ephemeral composite. Nothing is persisted in the database.
func (s *ComposerService) Compose(ctx context.Context, uc models.UserContext, req models.ComposeRequest) (*models.ComposedOutfit, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordComposition("error")
		return nil, validationError(err, "invalid compose request")
	}

	items, err := s.items.List(ctx, uc.UserID)
	if err != nil {
		s.metrics.RecordComposition("error")
		return nil, translate(err, "items not found", "failed to list items")
	}
	prefs, err := s.prefs.Preferences(ctx, uc)
	if err != nil {
		s.metrics.RecordComposition("error")
		return nil, err
	}

	partitions := partitionBySlot(FilterItems(items, req))
	out := &models.ComposedOutfit{Items: map[models.Slot]models.ClothingItem{}, MissingSlots: []models.Slot{}}
	for _, slot := range models.Slots {
		candidates := partitions[slot]
		if len(candidates) == 0 {
			out.MissingSlots = append(out.MissingSlots, slot)
			continue
		}
		out.Items[slot] = s.pick(candidates, prefs, req.Occasion)
	}
	out.HarmonyScore = outfitHarmony(out.Items)

	if !out.Complete() {
		s.metrics.RecordComposition("partial")
		s.logger.Info("outfit composed with missing slots",
			zap.Int64("user_id", uc.UserID),
			zap.Any("missing", out.MissingSlots),
		)
		return out, nil
	}

	data, err := renderComposite(s.files, out.Items)
	if err != nil {
		s.metrics.RecordComposition("error")
		return nil, err
	}
	rel := path.Join(s.cfg.CompositeDir, fmt.Sprintf("user_%d", uc.UserID), fmt.Sprintf("outfit_%s.png", uuid.NewString()))
	if _, err := s.files.Save(rel, data); err != nil {
		s.metrics.RecordComposition("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store composite")
	}
	out.CompositePath = rel
	out.ImageURL = s.links.URL(uc.UserID, rel)
	s.metrics.RecordComposition("complete")
	return out, nil
}

// FilterItems keeps items whose size and style sets contain the request's
// values and whose gender set contains the requested gender or unisex.
func FilterItems(items []models.ClothingItem, req models.ComposeRequest) []models.ClothingItem {
	out := make([]models.ClothingItem, 0, len(items))
	for _, item := range items {
		if !item.Sizes.Contains(req.Size) || !item.Styles.Contains(req.Style) {
			continue
		}
		if !item.Genders.Contains(req.Gender) && !item.Genders.Contains(models.GenderUnisex) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ScoreItem is colourPref[colour] plus the style preferences of every style
// of item, multiplied by boost when occasion is one of its styles.
func ScoreItem(item models.ClothingItem, prefs *models.Preferences, occasion string, boost float64) float64 {
	var score float64
	if prefs != nil {
		score = float64(prefs.ColourPrefs[item.Colour.String()])
		for _, st := range item.Styles {
			score += float64(prefs.StylePrefs[normaliseKey(st)])
		}
	}
	if occasion = strings.TrimSpace(occasion); occasion != "" && item.Styles.Contains(occasion) {
		score *= boost
	}
	return score
}

// pick returns the highest scoring candidate. Ties go to the earliest
// inserted item; an all-zero partition is drawn uniformly at random.
func (s *ComposerService) pick(candidates []models.ClothingItem, prefs *models.Preferences, occasion string) models.ClothingItem {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	best, bestScore := 0, 0.0
	for i, item := range candidates {
		if score := ScoreItem(item, prefs, occasion, s.cfg.OccasionBoost); score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore == 0 {
		s.mu.Lock()
		best = s.rng.IntN(len(candidates))
		s.mu.Unlock()
	}
	return candidates[best]
}

func partitionBySlot(items []models.ClothingItem) map[models.Slot][]models.ClothingItem {
	out := make(map[models.Slot][]models.ClothingItem, len(models.Slots))
	for _, item := range items {
		out[item.Slot] = append(out[item.Slot], item)
	}
	return out
}

// outfitHarmony is the mean pairwise harmony of the chosen colours.
func outfitHarmony(items map[models.Slot]models.ClothingItem) float64 {
	var colours []colour.RGB
	for _, slot := range models.Slots {
		if item, ok := items[slot]; ok {
			colours = append(colours, item.Colour)
		}
	}
	var sum float64
	var n int
	for i := 0; i < len(colours); i++ {
		for j := i + 1; j < len(colours); j++ {
			sum += colour.Harmony(colours[i], colours[j])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// renderComposite loads the bitmap of every slot and pastes them onto one
// canvas. Items without a readable bitmap leave their tile blank.
func renderComposite(files imageStorage, items map[models.Slot]models.ClothingItem) ([]byte, error) {
	var tiles [3]image.Image
	for i, slot := range models.Slots {
		item, ok := items[slot]
		if !ok || item.ImagePath == nil || !files.Exists(*item.ImagePath) {
			continue
		}
		img, err := imaging.DecodeFile(files.Path(*item.ImagePath))
		if err != nil {
			continue
		}
		tiles[i] = img
	}
	return imaging.EncodePNG(imaging.Composite(tiles))
}
