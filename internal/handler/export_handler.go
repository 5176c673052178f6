package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

type exportService interface {
	ItemsCSV(ctx context.Context, uc models.UserContext) ([]byte, error)
	Lookbook(ctx context.Context, uc models.UserContext) ([]byte, error)
}

// ExportHandler streams wardrobe exports.
type ExportHandler struct {
	service exportService
	now     func() time.Time
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service, now: time.Now}
}

// ItemsCSV godoc
// @Summary Export items as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} binary
// @Router /exports/items.csv [get]
func (h *ExportHandler) ItemsCSV(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	data, err := h.service.ItemsCSV(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.attach(c, "text/csv; charset=utf-8", fmt.Sprintf("wardrobe_%s.csv", h.now().Format("20060102")), data)
}

// Lookbook godoc
// @Summary Export saved outfits as a PDF lookbook
// @Tags Exports
// @Produce application/pdf
// @Success 200 {file} binary
// @Router /exports/lookbook.pdf [get]
func (h *ExportHandler) Lookbook(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	data, err := h.service.Lookbook(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.attach(c, "application/pdf", fmt.Sprintf("lookbook_%s.pdf", h.now().Format("20060102")), data)
}

func (h *ExportHandler) attach(c *gin.Context, contentType, name string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}
