package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

type composer interface {
	Compose(ctx context.Context, uc models.UserContext, req models.ComposeRequest) (*models.ComposedOutfit, error)
}

type outfitService interface {
	SaveOutfit(ctx context.Context, uc models.UserContext, req models.SaveOutfitRequest) (*models.SavedOutfit, error)
	ListSavedOutfits(ctx context.Context, uc models.UserContext) ([]models.SavedOutfit, error)
	GetOutfit(ctx context.Context, uc models.UserContext, outfitID string) (*models.SavedOutfit, error)
	UpdateOutfitDetails(ctx context.Context, uc models.UserContext, outfitID string, req dto.DetailsRequest) error
	DeleteSavedOutfit(ctx context.Context, uc models.UserContext, outfitID string) error
	ShareOutfit(ctx context.Context, uc models.UserContext, outfitID string, req dto.ShareOutfitRequest) (*models.SharedOutfit, error)
	ListSharedOutfits(ctx context.Context, uc models.UserContext) ([]models.SharedOutfit, error)
	UnshareOutfit(ctx context.Context, uc models.UserContext, outfitID string, toUser int64) error
}

// OutfitHandler serves composition, saved outfits and sharing.
type OutfitHandler struct {
	composer composer
	outfits  outfitService
}

// NewOutfitHandler constructs the handler.
func NewOutfitHandler(composer composer, outfits outfitService) *OutfitHandler {
	return &OutfitHandler{composer: composer, outfits: outfits}
}

// Compose godoc
// @Summary Compose an outfit
// @Description Picks one item per slot for the requested size, style and gender and renders a preview
// @Tags Outfits
// @Accept json
// @Produce json
// @Param payload body models.ComposeRequest true "Criteria"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /outfits/compose [post]
func (h *OutfitHandler) Compose(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req models.ComposeRequest
	if !bindJSON(c, &req, "invalid compose payload") {
		return
	}
	outfit, err := h.composer.Compose(c.Request.Context(), uc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outfit, nil)
}

// Save godoc
// @Summary Save an outfit
// @Tags Outfits
// @Accept json
// @Produce json
// @Param payload body models.SaveOutfitRequest true "Outfit"
// @Success 201 {object} response.Envelope
// @Router /outfits [post]
func (h *OutfitHandler) Save(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req models.SaveOutfitRequest
	if !bindJSON(c, &req, "invalid outfit payload") {
		return
	}
	saved, err := h.outfits.SaveOutfit(c.Request.Context(), uc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, response.Result{Success: true, Message: "outfit saved", Data: saved})
}

// List godoc
// @Summary List saved outfits
// @Tags Outfits
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /outfits [get]
func (h *OutfitHandler) List(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	outfits, err := h.outfits.ListSavedOutfits(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outfits, map[string]interface{}{"total": len(outfits)})
}

// Get godoc
// @Summary Get saved outfit
// @Tags Outfits
// @Produce json
// @Param id path string true "Outfit ID"
// @Success 200 {object} response.Envelope
// @Router /outfits/{id} [get]
func (h *OutfitHandler) Get(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	outfit, err := h.outfits.GetOutfit(c.Request.Context(), uc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outfit, nil)
}

// UpdateDetails godoc
// @Summary Update outfit tags, season and notes
// @Tags Outfits
// @Accept json
// @Produce json
// @Param id path string true "Outfit ID"
// @Param payload body dto.DetailsRequest true "Details"
// @Success 200 {object} response.Envelope
// @Router /outfits/{id} [patch]
func (h *OutfitHandler) UpdateDetails(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.DetailsRequest
	if !bindJSON(c, &req, "invalid details payload") {
		return
	}
	if err := h.outfits.UpdateOutfitDetails(c.Request.Context(), uc, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "outfit details updated", nil)
}

// Delete godoc
// @Summary Delete saved outfit
// @Tags Outfits
// @Produce json
// @Param id path string true "Outfit ID"
// @Success 200 {object} response.Envelope
// @Router /outfits/{id} [delete]
func (h *OutfitHandler) Delete(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	if err := h.outfits.DeleteSavedOutfit(c.Request.Context(), uc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "outfit deleted", nil)
}

// Share godoc
// @Summary Share outfit with another user
// @Tags Outfits
// @Accept json
// @Produce json
// @Param id path string true "Outfit ID"
// @Param payload body dto.ShareOutfitRequest true "Recipient"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outfits/{id}/share [post]
func (h *OutfitHandler) Share(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.ShareOutfitRequest
	if !bindJSON(c, &req, "invalid share payload") {
		return
	}
	shared, err := h.outfits.ShareOutfit(c.Request.Context(), uc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, response.Result{Success: true, Message: "outfit shared", Data: shared})
}

// Unshare godoc
// @Summary Revoke a share
// @Tags Outfits
// @Produce json
// @Param id path string true "Outfit ID"
// @Param userId path int true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Router /outfits/{id}/share/{userId} [delete]
func (h *OutfitHandler) Unshare(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	toUser, ok := int64Param(c, "userId")
	if !ok {
		return
	}
	if err := h.outfits.UnshareOutfit(c.Request.Context(), uc, c.Param("id"), toUser); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "share revoked", nil)
}

// Shared godoc
// @Summary Outfits shared with the caller
// @Tags Outfits
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /outfits/shared [get]
func (h *OutfitHandler) Shared(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	shared, err := h.outfits.ListSharedOutfits(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shared, map[string]interface{}{"total": len(shared)})
}
