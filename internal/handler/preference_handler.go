package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

type preferenceService interface {
	Preferences(ctx context.Context, uc models.UserContext) (*models.Preferences, error)
	RecommendColours(ctx context.Context, uc models.UserContext, base colour.RGB, n int) ([]models.ColourRecommendation, error)
}

// PreferenceHandler exposes learned preferences and colour recommendations.
type PreferenceHandler struct {
	service preferenceService
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(service preferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

// Preferences godoc
// @Summary Learned preferences
// @Description Colour and style frequencies plus colour pair harmony mined from saved outfits
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) Preferences(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	prefs, err := h.service.Preferences(c.Request.Context(), uc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Recommend godoc
// @Summary Recommend partner colours
// @Tags Preferences
// @Produce json
// @Param base query string true "Base colour as r,g,b"
// @Param n query int false "Number of colours"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /colours/recommend [get]
func (h *PreferenceHandler) Recommend(c *gin.Context) {
	uc, ok := callerFromContext(c)
	if !ok {
		return
	}
	base, err := colour.ParseStrict(c.Query("base"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "base must be r,g,b"))
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "3"))
	if err != nil || n < 1 || n > 20 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "n must be between 1 and 20"))
		return
	}
	recs, err := h.service.RecommendColours(c.Request.Context(), uc, base, n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recs, map[string]interface{}{"base": base.Hex()})
}
