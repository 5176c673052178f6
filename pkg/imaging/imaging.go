// Package imaging decodes garment photographs, extracts their dominant
// colour and renders outfit composites.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

// MaxDimension is the maximum width or height for stored images.
const MaxDimension = 1024

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Upload is a decoded, size-bounded image together with its PNG encoding.
type Upload struct {
	Image image.Image
	PNG   []byte
}

// Normalize sniffs the real format of data, decodes it, downscales anything
// larger than MaxDimension and re-encodes it as PNG.
func Normalize(data []byte) (*Upload, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrImageDecode, "image is empty")
	}
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, appErrors.Clone(appErrors.ErrImageDecode, fmt.Sprintf("unsupported image format: %s", detected))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrImageDecode, err, "image could not be decoded")
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, appErrors.Clone(appErrors.ErrImageDecode, "image has no pixels")
	}

	img = downscale(img, MaxDimension)
	encoded, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &Upload{Image: img, PNG: encoded}, nil
}

// EncodePNG renders img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFile opens and fully decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrImageDecode, err, fmt.Sprintf("decode %s", path))
	}
	return img, nil
}

// IsValidFile reports whether path exists and decodes as an image.
func IsValidFile(path string) bool {
	if path == "" {
		return false
	}
	_, err := DecodeFile(path)
	return err == nil
}

// downscale resizes the image so neither dimension exceeds maxDim, keeping
// the aspect ratio. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(newW, 1), max(newH, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
