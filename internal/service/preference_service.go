package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
)

const (
	recommendSourceLearned = "learned"
	recommendSourceTheory  = "colour_theory"
)

type outfitItemsReader interface {
	ListOutfitItems(ctx context.Context, userID int64) ([]models.OutfitItemRow, error)
}

// PreferenceService mines colour and style preferences from saved outfits.
type PreferenceService struct {
	outfits outfitItemsReader
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewPreferenceService constructs a PreferenceService. cache may be nil.
func NewPreferenceService(outfits outfitItemsReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{outfits: outfits, cache: cache, ttl: ttl, logger: logger}
}

func preferenceCacheKey(userID int64) string {
	return fmt.Sprintf("preferences:user:%d", userID)
}

// Preferences returns the frequency and harmony tables for the caller.
func (s *PreferenceService) Preferences(ctx context.Context, uc models.UserContext) (*models.Preferences, error) {
	value, err := s.cache.Remember(ctx, preferenceCacheKey(uc.UserID), s.ttl, &models.Preferences{}, func() (interface{}, error) {
		rows, err := s.outfits.ListOutfitItems(ctx, uc.UserID)
		if err != nil {
			return nil, translate(err, "outfits not found", "failed to load saved outfits")
		}
		s.logger.Debug("preferences mined", zap.Int64("user_id", uc.UserID), zap.Int("rows", len(rows)))
		return MinePreferences(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.Preferences), nil
}

// Invalidate drops the cached preferences of userID.
func (s *PreferenceService) Invalidate(ctx context.Context, userID int64) {
	_ = s.cache.Invalidate(ctx, preferenceCacheKey(userID))
}

// MinePreferences counts colours and styles per item occurrence and scores
// every unordered pair of distinct colours seen together in one outfit.
func MinePreferences(rows []models.OutfitItemRow) *models.Preferences {
	prefs := &models.Preferences{
		ColourPrefs: map[string]int{},
		StylePrefs:  map[string]int{},
		Harmony:     []models.ColourPairScore{},
	}

	var order []string
	byOutfit := map[string][]colour.RGB{}
	for _, row := range rows {
		if _, ok := byOutfit[row.OutfitID]; !ok {
			order = append(order, row.OutfitID)
			byOutfit[row.OutfitID] = nil
		}
		byOutfit[row.OutfitID] = append(byOutfit[row.OutfitID], row.Colour)
		prefs.ColourPrefs[row.Colour.String()]++
		for _, st := range row.Styles {
			prefs.StylePrefs[normaliseKey(st)]++
		}
	}
	prefs.Outfits = len(order)

	pairs := map[[2]colour.RGB]*models.ColourPairScore{}
	var pairOrder [][2]colour.RGB
	for _, id := range order {
		colours := distinctColours(byOutfit[id])
		for i := 0; i < len(colours); i++ {
			for j := i + 1; j < len(colours); j++ {
				key := orderedPair(colours[i], colours[j])
				if p, ok := pairs[key]; ok {
					p.Count++
					continue
				}
				pairs[key] = &models.ColourPairScore{A: key[0], B: key[1], Score: colour.Harmony(key[0], key[1]), Count: 1}
				pairOrder = append(pairOrder, key)
			}
		}
	}
	for _, key := range pairOrder {
		prefs.Harmony = append(prefs.Harmony, *pairs[key])
	}
	sort.SliceStable(prefs.Harmony, func(i, j int) bool {
		return prefs.Harmony[i].Score > prefs.Harmony[j].Score
	})
	return prefs
}

// RecommendColours returns up to n partner colours for base ranked by the
// harmony observed in the caller's outfits. Without observed partners it
// falls back to the two analogous colours and the complement.
func (s *PreferenceService) RecommendColours(ctx context.Context, uc models.UserContext, base colour.RGB, n int) ([]models.ColourRecommendation, error) {
	if n <= 0 {
		n = 3
	}
	prefs, err := s.Preferences(ctx, uc)
	if err != nil {
		return nil, err
	}
	return RecommendFrom(prefs, base, n), nil
}

// RecommendFrom is the pure part of RecommendColours.
func RecommendFrom(prefs *models.Preferences, base colour.RGB, n int) []models.ColourRecommendation {
	out := make([]models.ColourRecommendation, 0, n)
	if prefs != nil {
		for _, pair := range prefs.Harmony {
			var partner colour.RGB
			switch base {
			case pair.A:
				partner = pair.B
			case pair.B:
				partner = pair.A
			default:
				continue
			}
			out = append(out, recommendation(partner, pair.Score, recommendSourceLearned))
			if len(out) == n {
				return out
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	analogous := colour.AnalogousOf(base, 30)
	for _, c := range []colour.RGB{analogous[0], analogous[1], colour.ComplementOf(base)} {
		if len(out) == n {
			break
		}
		out = append(out, recommendation(c, colour.Harmony(base, c), recommendSourceTheory))
	}
	return out
}

func recommendation(c colour.RGB, score float64, source string) models.ColourRecommendation {
	return models.ColourRecommendation{Colour: c, Hex: c.Hex(), Name: c.Name(), Score: score, Source: source}
}

func distinctColours(in []colour.RGB) []colour.RGB {
	seen := map[colour.RGB]struct{}{}
	out := make([]colour.RGB, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func orderedPair(a, b colour.RGB) [2]colour.RGB {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]colour.RGB{a, b}
}
