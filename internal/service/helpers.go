package service

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/sanitize"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

// translate maps repository errors into the application taxonomy. Errors
// that already carry a kind keep it.
func translate(err error, notFound, internal string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// ImageLinker turns stored paths into signed, expiring image URLs.
type ImageLinker struct {
	signer *storage.SignedURLSigner
	base   string
}

// NewImageLinker builds links of the form <apiPrefix>/images/<token>.
func NewImageLinker(signer *storage.SignedURLSigner, apiPrefix string) *ImageLinker {
	return &ImageLinker{signer: signer, base: strings.TrimRight(apiPrefix, "/") + "/images/"}
}

// URL signs rel for owner. It returns "" when signing is not configured.
func (l *ImageLinker) URL(owner int64, rel string) string {
	if l == nil || l.signer == nil || rel == "" {
		return ""
	}
	token, _, err := l.signer.Generate(owner, rel)
	if err != nil {
		return ""
	}
	return l.base + token
}

func normaliseKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// detailsPatch validates req and converts it into a sanitised patch shared
// by items and outfits. An empty patch is a validation error.
func detailsPatch(validate *validator.Validate, req dto.DetailsRequest) (models.OutfitDetailsPatch, error) {
	if err := validate.Struct(req); err != nil {
		return models.OutfitDetailsPatch{}, validationError(err, "invalid details payload")
	}
	var patch models.OutfitDetailsPatch
	if req.Tags != nil {
		tags := sanitize.Tags(*req.Tags)
		patch.Tags = &tags
	}
	if req.Season != nil {
		season := models.Season(*req.Season)
		patch.Season = &season
	}
	if req.Notes != nil {
		notes := sanitize.Text(*req.Notes)
		patch.Notes = &notes
	}
	if patch.Tags == nil && patch.Season == nil && patch.Notes == nil {
		return patch, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	return patch, nil
}
