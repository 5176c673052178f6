package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	"github.com/noah-isme/outfit-wizard-api/pkg/export"
)

type outfitExportSource interface {
	ListByUser(ctx context.Context, userID int64) ([]models.SavedOutfit, error)
	ListOutfitItems(ctx context.Context, userID int64) ([]models.OutfitItemRow, error)
}

type csvRenderer interface {
	Render(t export.Table) ([]byte, error)
}

type lookbookRenderer interface {
	RenderLookbook(title string, pages []export.LookbookPage) ([]byte, error)
}

type pathResolver interface {
	Path(rel string) string
}

// ExportService renders the caller's wardrobe as CSV and saved outfits as a PDF lookbook.
type ExportService struct {
	items   itemLister
	outfits outfitExportSource
	files   pathResolver
	csv     csvRenderer
	pdf     lookbookRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(items itemLister, outfits outfitExportSource, files pathResolver, csv csvRenderer, pdf lookbookRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{items: items, outfits: outfits, files: files, csv: csv, pdf: pdf, logger: logger}
}

var itemColumns = []string{"id", "slot", "colour", "hex", "styles", "genders", "sizes", "tags", "season", "price", "notes", "created_at"}

// ItemsCSV renders every item of the caller, one row per item.
func (s *ExportService) ItemsCSV(ctx context.Context, uc models.UserContext) ([]byte, error) {
	items, err := s.items.List(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "items not found", "failed to list items")
	}
	table := export.Table{Columns: itemColumns, Rows: make([][]string, 0, len(items))}
	for _, item := range items {
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(item.ID, 10),
			string(item.Slot),
			item.Colour.String(),
			item.Colour.Hex(),
			item.Styles.String(),
			item.Genders.String(),
			item.Sizes.String(),
			strings.Join(item.Tags, ";"),
			seasonString(item.Season),
			priceString(item.Price),
			derefString(item.Notes),
			item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	data, err := s.csv.Render(table)
	if err != nil {
		return nil, translate(err, "items not found", "failed to render items csv")
	}
	return data, nil
}

// Lookbook renders one PDF page per saved outfit with its colour swatches.
func (s *ExportService) Lookbook(ctx context.Context, uc models.UserContext) ([]byte, error) {
	outfits, err := s.outfits.ListByUser(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to list outfits")
	}
	rows, err := s.outfits.ListOutfitItems(ctx, uc.UserID)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to list outfit items")
	}
	colours := map[string][]colour.RGB{}
	for _, row := range rows {
		colours[row.OutfitID] = append(colours[row.OutfitID], row.Colour)
	}

	pages := make([]export.LookbookPage, 0, len(outfits))
	for i, o := range outfits {
		subtitle := o.CreatedAt.UTC().Format("2006-01-02")
		if o.Season != nil {
			subtitle += " - " + string(*o.Season)
		}
		if len(o.Tags) > 0 {
			subtitle += " - " + strings.Join(o.Tags, ", ")
		}
		pages = append(pages, export.LookbookPage{
			Title:     fmt.Sprintf("Outfit %d", i+1),
			Subtitle:  subtitle,
			ImagePath: s.files.Path(o.ImagePath),
			Colours:   colours[o.OutfitID],
			Notes:     derefString(o.Notes),
		})
	}

	data, err := s.pdf.RenderLookbook(fmt.Sprintf("Lookbook of %s", uc.Email), pages)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to render lookbook")
	}
	s.logger.Debug("lookbook rendered", zap.Int64("user_id", uc.UserID), zap.Int("pages", len(pages)))
	return data, nil
}

func seasonString(s *models.Season) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func priceString(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
