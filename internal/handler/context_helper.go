package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/middleware"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

// callerFromContext returns the authenticated caller or writes a 401.
func callerFromContext(c *gin.Context) (models.UserContext, bool) {
	uc, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.UserContext{}, false
	}
	return uc, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+name))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
