package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
)

// SavedOutfit is a composition the user chose to keep.
type SavedOutfit struct {
	OutfitID  string         `db:"outfit_id" json:"outfit_id"`
	UserID    int64          `db:"user_id" json:"user_id"`
	ImagePath string         `db:"image_path" json:"image_path"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
	Season    *Season        `db:"season" json:"season,omitempty"`
	Notes     *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`

	Items    []OutfitItem `db:"-" json:"items,omitempty"`
	ImageURL string       `db:"-" json:"image_url,omitempty"`
}

// OutfitItem links a saved outfit to the item filling one slot.
type OutfitItem struct {
	OutfitID string `db:"outfit_id" json:"-"`
	Slot     Slot   `db:"slot" json:"slot"`
	ItemID   int64  `db:"item_id" json:"item_id"`
}

// OutfitDetailsPatch updates only the non-nil fields.
type OutfitDetailsPatch struct {
	Tags   *[]string
	Season *Season
	Notes  *string
}

// SharedOutfit is a directed share of one outfit between two users.
type SharedOutfit struct {
	OutfitID  string    `db:"outfit_id" json:"outfit_id"`
	FromUser  int64     `db:"from_user" json:"from_user"`
	ToUser    int64     `db:"to_user" json:"to_user"`
	SharedAt  time.Time `db:"shared_at" json:"shared_at"`
	ImagePath string    `db:"image_path" json:"image_path,omitempty"`
	FromEmail string    `db:"from_email" json:"from_email,omitempty"`
	ImageURL  string    `db:"-" json:"image_url,omitempty"`
}

// OutfitItemRow is one (outfit, item) pair joined for preference mining.
type OutfitItemRow struct {
	OutfitID string     `db:"outfit_id"`
	ItemID   int64      `db:"item_id"`
	Colour   colour.RGB `db:"color"`
	Styles   TagSet     `db:"style"`
}

// ComposeRequest is the input of one composition.
type ComposeRequest struct {
	Size     string `json:"size" validate:"required,max=8"`
	Style    string `json:"style" validate:"required,max=50"`
	Gender   string `json:"gender" validate:"required,oneof=male female unisex"`
	Occasion string `json:"occasion" validate:"omitempty,max=50"`
}

// ComposedOutfit is an unsaved composition. CompositePath is the ephemeral
// bitmap under merged_outfits and is empty when a slot is missing.
type ComposedOutfit struct {
	Items         map[Slot]ClothingItem `json:"items"`
	MissingSlots  []Slot                `json:"missing_slots"`
	CompositePath string                `json:"composite_path,omitempty"`
	HarmonyScore  float64               `json:"harmony_score"`
	ImageURL      string                `json:"image_url,omitempty"`
}

// Complete reports whether every slot was filled.
func (c ComposedOutfit) Complete() bool {
	return len(c.MissingSlots) == 0 && len(c.Items) == len(Slots)
}

// SaveOutfitRequest persists a composition chosen by the user.
type SaveOutfitRequest struct {
	ShirtID       int64    `json:"shirt_id" validate:"required,gt=0"`
	PantsID       int64    `json:"pants_id" validate:"required,gt=0"`
	ShoesID       int64    `json:"shoes_id" validate:"required,gt=0"`
	CompositePath string   `json:"composite_path"`
	Tags          []string `json:"tags" validate:"omitempty,dive,max=50"`
	Season        *Season  `json:"season" validate:"omitempty,oneof=Spring Summer Fall Winter"`
	Notes         *string  `json:"notes" validate:"omitempty,max=2000"`
}
