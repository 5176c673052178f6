package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

// ContextUserKey is the gin context key storing the caller's UserContext.
const ContextUserKey = "currentUser"

// TokenValidator resolves a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims.UserContext())
		c.Next()
	}
}

// CurrentUser returns the caller attached by JWT.
func CurrentUser(c *gin.Context) (models.UserContext, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.UserContext{}, false
	}
	uc, ok := value.(models.UserContext)
	return uc, ok && uc.UserID > 0
}
