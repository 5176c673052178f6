package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

type imageTokenParser interface {
	Parse(token string) (ownerID int64, relPath string, err error)
}

type imageFiles interface {
	Open(rel string) (*os.File, error)
}

// ImageHandler serves stored bitmaps behind signed tokens.
type ImageHandler struct {
	tokens   imageTokenParser
	files    imageFiles
	userDirs []string
}

// NewImageHandler constructs the handler. Paths under userDirs must sit in the
// token owner's user_<id> folder.
func NewImageHandler(tokens imageTokenParser, files imageFiles, userDirs ...string) *ImageHandler {
	return &ImageHandler{tokens: tokens, files: files, userDirs: userDirs}
}

// Serve godoc
// @Summary Serve a stored image
// @Tags Images
// @Produce png
// @Param token path string true "Signed image token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /images/{token} [get]
func (h *ImageHandler) Serve(c *gin.Context) {
	owner, rel, err := h.tokens.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired image link"))
		return
	}
	if !h.ownedBy(owner, rel) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired image link"))
		return
	}

	file, err := h.files.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "image not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat image"))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Header("Content-Type", "image/png")
	http.ServeContent(c.Writer, c.Request, path.Base(rel), info.ModTime(), file)
}

func (h *ImageHandler) ownedBy(owner int64, rel string) bool {
	clean := path.Clean(rel)
	if clean != rel || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return false
	}
	for _, dir := range h.userDirs {
		if strings.HasPrefix(clean, dir+"/") {
			return strings.HasPrefix(clean, fmt.Sprintf("%s/user_%d/", dir, owner))
		}
	}
	return true
}
