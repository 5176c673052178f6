package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/sanitize"
)

type outfitRepository interface {
	Create(ctx context.Context, outfit *models.SavedOutfit) error
	GetByID(ctx context.Context, outfitID string) (*models.SavedOutfit, error)
	ListByUser(ctx context.Context, userID int64) ([]models.SavedOutfit, error)
	UpdateDetails(ctx context.Context, outfitID string, userID int64, patch models.OutfitDetailsPatch) error
	Delete(ctx context.Context, outfitID string, userID int64) (string, error)
	Share(ctx context.Context, share *models.SharedOutfit) error
	ListShared(ctx context.Context, toUser int64) ([]models.SharedOutfit, error)
	Unshare(ctx context.Context, outfitID string, fromUser, toUser int64) error
}

type itemGetter interface {
	GetByID(ctx context.Context, id int64) (*models.ClothingItem, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type preferenceInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// OutfitConfig locates saved and ephemeral composites.
type OutfitConfig struct {
	WardrobeDir  string
	CompositeDir string
}

// OutfitService persists composed outfits and manages shares.
type OutfitService struct {
	outfits   outfitRepository
	items     itemGetter
	users     userLookup
	prefs     preferenceInvalidator
	files     imageStorage
	links     *ImageLinker
	validator *validator.Validate
	logger    *zap.Logger
	cfg       OutfitConfig
}

// NewOutfitService constructs an OutfitService. prefs may be nil.
func NewOutfitService(outfits outfitRepository, items itemGetter, users userLookup, prefs preferenceInvalidator, files imageStorage, links *ImageLinker, validate *validator.Validate, logger *zap.Logger, cfg OutfitConfig) *OutfitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WardrobeDir == "" {
		cfg.WardrobeDir = "wardrobe"
	}
	if cfg.CompositeDir == "" {
		cfg.CompositeDir = "merged_outfits"
	}
	return &OutfitService{outfits: outfits, items: items, users: users, prefs: prefs, files: files, links: links, validator: validate, logger: logger, cfg: cfg}
}

// SaveOutfit copies the ephemeral composite into the caller's wardrobe
// directory, or re-renders it when it was already cleaned up, and inserts
// the outfit. The copy is removed when the insert fails.
func (s *OutfitService) SaveOutfit(ctx context.Context, uc models.UserContext, req models.SaveOutfitRequest) (*models.SavedOutfit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid outfit payload")
	}

	chosen := map[models.Slot]int64{
		models.SlotShirt: req.ShirtID,
		models.SlotPants: req.PantsID,
		models.SlotShoes: req.ShoesID,
	}
	items := make(map[models.Slot]models.ClothingItem, len(chosen))
	links := make([]models.OutfitItem, 0, len(chosen))
	for _, slot := range models.Slots {
		item, err := s.items.GetByID(ctx, chosen[slot])
		if err != nil {
			return nil, translate(err, fmt.Sprintf("%s %d not found", slot, chosen[slot]), "failed to load item")
		}
		if item.UserID != uc.UserID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %d not found", slot, chosen[slot]))
		}
		if item.Slot != slot {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d is not a %s", item.ID, slot))
		}
		items[slot] = *item
		links = append(links, models.OutfitItem{Slot: slot, ItemID: item.ID})
	}

	outfitID := uuid.NewString()
	rel := path.Join(s.cfg.WardrobeDir, fmt.Sprintf("user_%d", uc.UserID), fmt.Sprintf("outfit_%s.png", outfitID))
	if err := s.persistComposite(uc, req.CompositePath, rel, items); err != nil {
		return nil, err
	}

	outfit := &models.SavedOutfit{
		OutfitID:  outfitID,
		UserID:    uc.UserID,
		ImagePath: rel,
		Tags:      sanitize.Tags(req.Tags),
		Season:    req.Season,
		Notes:     sanitize.Ptr(req.Notes),
		Items:     links,
	}
	if err := s.outfits.Create(ctx, outfit); err != nil {
		s.discard(rel)
		return nil, translate(err, "outfit not found", "failed to save outfit")
	}
	s.invalidate(ctx, uc.UserID)

	s.logger.Info("outfit saved", zap.Int64("user_id", uc.UserID), zap.String("outfit_id", outfitID))
	outfit.ImageURL = s.links.URL(uc.UserID, rel)
	return outfit, nil
}

// persistComposite writes the composite for dst. Only ephemeral composites of
// the caller are copied; anything else is rendered from the items again.
func (s *OutfitService) persistComposite(uc models.UserContext, src, dst string, items map[models.Slot]models.ClothingItem) error {
	own := path.Join(s.cfg.CompositeDir, fmt.Sprintf("user_%d", uc.UserID)) + "/"
	if src != "" && strings.HasPrefix(path.Clean(src), own) && s.files.Exists(src) {
		if err := s.files.Copy(src, dst); err == nil {
			return nil
		} else {
			s.logger.Warn("copy composite failed, re-rendering", zap.String("path", src), zap.Error(err))
		}
	}
	data, err := renderComposite(s.files, items)
	if err != nil {
		return err
	}
	if _, err := s.files.Save(dst, data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store composite")
	}
	return nil
}

// ListSavedOutfits returns the caller's outfits, newest first.
func (s *OutfitService) ListSavedOutfits(ctx context.Context, uc models.UserContext) ([]models.SavedOutfit, error) {
	outfits, err := s.outfits.ListByUser(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to list outfits")
	}
	for i := range outfits {
		outfits[i].ImageURL = s.links.URL(outfits[i].UserID, outfits[i].ImagePath)
	}
	return outfits, nil
}

// GetOutfit returns one outfit owned by the caller.
func (s *OutfitService) GetOutfit(ctx context.Context, uc models.UserContext, outfitID string) (*models.SavedOutfit, error) {
	outfit, err := s.outfits.GetByID(ctx, outfitID)
	if err != nil {
		return nil, translate(err, "outfit not found", "failed to load outfit")
	}
	if outfit.UserID != uc.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "outfit not found")
	}
	outfit.ImageURL = s.links.URL(outfit.UserID, outfit.ImagePath)
	return outfit, nil
}

// UpdateOutfitDetails patches tags, season and notes.
func (s *OutfitService) UpdateOutfitDetails(ctx context.Context, uc models.UserContext, outfitID string, req dto.DetailsRequest) error {
	patch, err := detailsPatch(s.validator, req)
	if err != nil {
		return err
	}
	if err := s.outfits.UpdateDetails(ctx, outfitID, uc.UserID, patch); err != nil {
		return translate(err, "outfit not found", "failed to update outfit")
	}
	return nil
}

// DeleteSavedOutfit removes the row and then the composite bitmap.
func (s *OutfitService) DeleteSavedOutfit(ctx context.Context, uc models.UserContext, outfitID string) error {
	imagePath, err := s.outfits.Delete(ctx, outfitID, uc.UserID)
	if err != nil {
		return translate(err, "outfit not found", "failed to delete outfit")
	}
	if imagePath != "" {
		s.discard(imagePath)
	}
	s.invalidate(ctx, uc.UserID)
	return nil
}

// ShareOutfit shares an outfit owned by the caller with another user.
func (s *OutfitService) ShareOutfit(ctx context.Context, uc models.UserContext, outfitID string, req dto.ShareOutfitRequest) (*models.SharedOutfit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid share payload")
	}
	outfit, err := s.outfits.GetByID(ctx, outfitID)
	if err != nil {
		return nil, translate(err, "outfit not found", "failed to load outfit")
	}
	if outfit.UserID != uc.UserID {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only the owner can share this outfit")
	}

	recipient, err := s.recipient(ctx, req)
	if err != nil {
		return nil, err
	}
	if recipient.ID == uc.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot share an outfit with yourself")
	}

	share := &models.SharedOutfit{OutfitID: outfitID, FromUser: uc.UserID, ToUser: recipient.ID}
	if err := s.outfits.Share(ctx, share); err != nil {
		if appErrors.IsKind(err, appErrors.ErrAlreadyExists) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "outfit already shared with this user")
		}
		return nil, translate(err, "outfit not found", "failed to share outfit")
	}
	share.ImagePath = outfit.ImagePath
	share.FromEmail = uc.Email
	share.ImageURL = s.links.URL(uc.UserID, outfit.ImagePath)
	return share, nil
}

func (s *OutfitService) recipient(ctx context.Context, req dto.ShareOutfitRequest) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if req.ToUserID > 0 {
		user, err = s.users.FindByID(ctx, req.ToUserID)
	} else {
		user, err = s.users.FindByEmail(ctx, req.ToEmail)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, translate(err, "recipient not found", "failed to load recipient")
	}
	return user, nil
}

// ListSharedOutfits returns outfits other users shared with the caller.
func (s *OutfitService) ListSharedOutfits(ctx context.Context, uc models.UserContext) ([]models.SharedOutfit, error) {
	shares, err := s.outfits.ListShared(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "shares not found", "failed to list shared outfits")
	}
	for i := range shares {
		shares[i].ImageURL = s.links.URL(shares[i].FromUser, shares[i].ImagePath)
	}
	return shares, nil
}

// UnshareOutfit withdraws a share made by the caller.
func (s *OutfitService) UnshareOutfit(ctx context.Context, uc models.UserContext, outfitID string, toUser int64) error {
	if err := s.outfits.Unshare(ctx, outfitID, uc.UserID, toUser); err != nil {
		return translate(err, "share not found", "failed to unshare outfit")
	}
	return nil
}

func (s *OutfitService) invalidate(ctx context.Context, userID int64) {
	if s.prefs != nil {
		s.prefs.Invalidate(ctx, userID)
	}
}

func (s *OutfitService) discard(rel string) {
	if err := s.files.Delete(rel); err != nil {
		s.logger.Warn("failed to remove composite", zap.String("path", rel), zap.Error(err))
	}
}
