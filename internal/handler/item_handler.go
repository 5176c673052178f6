package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

const defaultMaxUploadBytes = 10 << 20

type wardrobeService interface {
	ListItems(ctx context.Context, uc models.UserContext) ([]models.ClothingItem, error)
	GetItem(ctx context.Context, uc models.UserContext, id int64) (*models.ClothingItem, error)
	AddItem(ctx context.Context, uc models.UserContext, form dto.AddItemForm, data []byte) (*models.ClothingItem, error)
	EditItem(ctx context.Context, uc models.UserContext, id int64, req dto.EditItemRequest) error
	UpdateItemDetails(ctx context.Context, uc models.UserContext, id int64, req dto.DetailsRequest) error
	UpdateItemImage(ctx context.Context, uc models.UserContext, id int64, data []byte) (*models.ClothingItem, error)
	DeleteItem(ctx context.Context, uc models.UserContext, id int64) error
	BulkDelete(ctx context.Context, uc models.UserContext, req dto.BulkDeleteRequest) (*models.BulkDeleteStats, error)
	PriceHistory(ctx context.Context, uc models.UserContext, id int64) ([]models.PriceHistoryEntry, error)
	ColourHistory(ctx context.Context, uc models.UserContext, id int64) ([]models.ColourHistoryEntry, error)
	SimilarItems(ctx context.Context, uc models.UserContext, id int64, n int) ([]models.SimilarItem, error)
}

// ItemHandler exposes the clothing item endpoints.
type ItemHandler struct {
	service  wardrobeService
	maxBytes int64
}

// NewItemHandler constructs the handler. maxUploadBytes bounds image uploads.
func NewItemHandler(service wardrobeService, maxUploadBytes int64) *ItemHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ItemHandler{service: service, maxBytes: maxUploadBytes}
}

// List godoc
// @Summary List wardrobe items
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListItems(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Get godoc
// @Summary Get wardrobe item
// @Tags Items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(c.Request.Context(), uc, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Add godoc
// @Summary Upload a clothing item
// @Description Stores the image, extracts its dominant colour and records the item
// @Tags Items
// @Accept multipart/form-data
// @Produce json
// @Param slot formData string true "shirt, pants or shoes"
// @Param styles formData []string true "Styles" collectionFormat(multi)
// @Param genders formData []string true "Genders" collectionFormat(multi)
// @Param sizes formData []string true "Sizes" collectionFormat(multi)
// @Param url formData string false "Shop URL"
// @Param price formData number false "Price"
// @Param image formData file true "Image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /items [post]
func (h *ItemHandler) Add(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	var form dto.AddItemForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item form"))
		return
	}
	data, ok := h.readImage(c)
	if !ok {
		return
	}

	item, err := h.service.AddItem(c.Request.Context(), uc, form, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Edit godoc
// @Summary Edit item attributes
// @Tags Items
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param payload body dto.EditItemRequest true "Attributes"
// @Success 200 {object} response.Envelope
// @Router /items/{id} [put]
func (h *ItemHandler) Edit(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req dto.EditItemRequest
	if !bindJSON(c, &req, "invalid item payload") {
		return
	}
	if err := h.service.EditItem(c.Request.Context(), uc, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "item updated", nil)
}

// UpdateDetails godoc
// @Summary Update item tags, season and notes
// @Tags Items
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param payload body dto.DetailsRequest true "Details"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/details [patch]
func (h *ItemHandler) UpdateDetails(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req dto.DetailsRequest
	if !bindJSON(c, &req, "invalid details payload") {
		return
	}
	if err := h.service.UpdateItemDetails(c.Request.Context(), uc, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "item details updated", nil)
}

// UpdateImage godoc
// @Summary Replace item image
// @Tags Items
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Item ID"
// @Param image formData file true "Image"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/image [put]
func (h *ItemHandler) UpdateImage(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	data, ok := h.readImage(c)
	if !ok {
		return
	}
	item, err := h.service.UpdateItemImage(c.Request.Context(), uc, id, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "item image updated", item)
}

// Delete godoc
// @Summary Delete item
// @Tags Items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteItem(c.Request.Context(), uc, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "item deleted", nil)
}

// BulkDelete godoc
// @Summary Delete many items
// @Description Deletes each id independently; success is false when any id failed
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeleteRequest true "Item ids"
// @Success 200 {object} response.Envelope
// @Router /items/bulk-delete [post]
func (h *ItemHandler) BulkDelete(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkDeleteRequest
	if !bindJSON(c, &req, "invalid bulk delete payload") {
		return
	}
	stats, err := h.service.BulkDelete(c.Request.Context(), uc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "items deleted"
	if !stats.Success() {
		message = "some items could not be deleted"
	}
	response.JSON(c, http.StatusOK, response.Result{Success: stats.Success(), Message: message, Data: stats})
}

// PriceHistory godoc
// @Summary Item price history
// @Tags Items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/price-history [get]
func (h *ItemHandler) PriceHistory(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.PriceHistory(c.Request.Context(), uc, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ColourHistory godoc
// @Summary Item colour history
// @Tags Items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/colour-history [get]
func (h *ItemHandler) ColourHistory(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.ColourHistory(c.Request.Context(), uc, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Similar godoc
// @Summary Similar items
// @Tags Items
// @Produce json
// @Param id path int true "Item ID"
// @Param n query int false "Maximum results"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/similar [get]
func (h *ItemHandler) Similar(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "3"))
	if err != nil || n < 0 || n > 50 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "n must be between 0 and 50"))
		return
	}
	items, err := h.service.SimilarItems(c.Request.Context(), uc, id, n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func (h *ItemHandler) readImage(c *gin.Context) ([]byte, bool) {
	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image is required"))
		return nil, false
	}
	if header.Size > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image exceeds upload limit"))
		return nil, false
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image"))
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read image"))
		return nil, false
	}
	if int64(len(data)) > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image exceeds upload limit"))
		return nil, false
	}
	return data, true
}
