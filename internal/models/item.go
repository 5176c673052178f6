package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
)

// Slot is the garment role an item fills in an outfit.
type Slot string

const (
	SlotShirt Slot = "shirt"
	SlotPants Slot = "pants"
	SlotShoes Slot = "shoes"
)

// Slots lists the outfit slots in composite order.
var Slots = []Slot{SlotShirt, SlotPants, SlotShoes}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s == SlotShirt || s == SlotPants || s == SlotShoes
}

// Season is an optional item or outfit season.
type Season string

const (
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonFall   Season = "Fall"
	SeasonWinter Season = "Winter"
)

// GenderUnisex matches every requested gender when composing.
const GenderUnisex = "unisex"

// TagSet is an ordered set of labels stored as a comma separated string.
type TagSet []string

// NewTagSet trims, drops blanks and removes case-insensitive duplicates.
func NewTagSet(values ...string) TagSet {
	out := make(TagSet, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || out.Contains(part) {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}

// Contains reports case-insensitive membership.
func (t TagSet) Contains(v string) bool {
	for _, tag := range t {
		if strings.EqualFold(tag, v) {
			return true
		}
	}
	return false
}

// String joins the set with commas.
func (t TagSet) String() string {
	return strings.Join(t, ",")
}

// Value stores the set as CSV.
func (t TagSet) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan reads the CSV column form.
func (t *TagSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = TagSet{}
	case string:
		*t = NewTagSet(v)
	case []byte:
		*t = NewTagSet(string(v))
	default:
		return fmt.Errorf("tagset: cannot scan %T", src)
	}
	return nil
}

// ClothingItem is one garment owned by one user.
type ClothingItem struct {
	ID        int64          `db:"id" json:"id"`
	UserID    int64          `db:"user_id" json:"user_id"`
	Slot      Slot           `db:"slot" json:"slot"`
	Colour    colour.RGB     `db:"color" json:"colour"`
	Styles    TagSet         `db:"style" json:"styles"`
	Genders   TagSet         `db:"gender" json:"genders"`
	Sizes     TagSet         `db:"size" json:"sizes"`
	ImagePath *string        `db:"image_path" json:"image_path,omitempty"`
	URL       *string        `db:"url" json:"url,omitempty"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
	Season    *Season        `db:"season" json:"season,omitempty"`
	Notes     *string        `db:"notes" json:"notes,omitempty"`
	Price     *float64       `db:"price" json:"price,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`

	ImageURL string `db:"-" json:"image_url,omitempty"`
}

// ItemUpdate carries the editable core attributes of an item.
type ItemUpdate struct {
	Colour  colour.RGB
	Styles  TagSet
	Genders TagSet
	Sizes   TagSet
	URL     *string
	Price   *float64
}

// ItemDetailsPatch updates only the non-nil fields.
type ItemDetailsPatch struct {
	Tags   *[]string
	Season *Season
	Notes  *string
}

// Empty reports whether the patch changes nothing.
func (p ItemDetailsPatch) Empty() bool {
	return p.Tags == nil && p.Season == nil && p.Notes == nil
}

// PriceHistoryEntry records one price change.
type PriceHistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	ItemID    int64     `db:"item_id" json:"item_id"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ColourHistoryEntry records one colour change.
type ColourHistoryEntry struct {
	ID        int64      `db:"id" json:"id"`
	ItemID    int64      `db:"item_id" json:"item_id"`
	OldColour colour.RGB `db:"old_color" json:"old_colour"`
	NewColour colour.RGB `db:"new_color" json:"new_colour"`
	ChangedAt time.Time  `db:"changed_at" json:"changed_at"`
}

// OrphanedItemAudit is appended when an item's bitmap disappears.
type OrphanedItemAudit struct {
	ID         int64     `db:"id" json:"id"`
	OriginalID int64     `db:"original_id" json:"original_id"`
	Slot       Slot      `db:"slot" json:"slot"`
	ImagePath  string    `db:"image_path" json:"image_path"`
	RemovedAt  time.Time `db:"removed_at" json:"removed_at"`
}

// SimilarItem pairs an item with its similarity to a reference item.
type SimilarItem struct {
	Item       ClothingItem `json:"item"`
	Similarity float64      `json:"similarity"`
}

// BulkDeleteStats summarises a bulk delete.
type BulkDeleteStats struct {
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// Success reports whether every id was deleted.
func (s BulkDeleteStats) Success() bool {
	return s.Failed == 0
}
