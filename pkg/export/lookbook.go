package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
)

// LookbookPage is one saved outfit in the PDF lookbook.
type LookbookPage struct {
	Title     string
	Subtitle  string
	ImagePath string
	Colours   []colour.RGB
	Notes     string
}

// PDFExporter renders lookbooks with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderLookbook writes one page per outfit: the composite image, a row of
// colour swatches and the outfit notes. Missing images are skipped, not fatal.
func (e *PDFExporter) RenderLookbook(title string, pages []LookbookPage) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(title, true)

	if len(pages) == 0 {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 10, "No saved outfits yet.", "", 1, "C", false, 0, "")
	}

	for _, page := range pages {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, page.Title, "", 1, "L", false, 0, "")
		if page.Subtitle != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, page.Subtitle, "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)

		if page.ImagePath != "" {
			if _, err := os.Stat(page.ImagePath); err == nil {
				opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
				// 600x200 composite at 240mm wide.
				pdf.ImageOptions(page.ImagePath, 15, pdf.GetY(), 240, 80, false, opts, 0, "")
				pdf.SetY(pdf.GetY() + 84)
			}
		}

		x := 15.0
		y := pdf.GetY()
		for _, c := range page.Colours {
			pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
			pdf.Rect(x, y, 12, 12, "FD")
			pdf.SetXY(x, y+13)
			pdf.SetFont("Arial", "", 7)
			pdf.CellFormat(12, 4, c.Hex(), "", 0, "C", false, 0, "")
			x += 16
		}
		if len(page.Colours) > 0 {
			pdf.SetXY(15, y+20)
		}

		if notes := strings.TrimSpace(page.Notes); notes != "" {
			pdf.SetFont("Arial", "I", 10)
			pdf.MultiCell(0, 5, notes, "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
