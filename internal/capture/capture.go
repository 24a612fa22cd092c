// Package capture turns uploaded files and camera snapshots into the single
// image shape the scan pipeline submits for analysis.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"nutritrack/internal/meal"
)

// MaxWidth is the width images are scaled down to before submission.
const MaxWidth = 800

// maxBytes bounds a single capture.
const maxBytes = 10 << 20

var (
	// ErrEmptyImage is returned when a capture produced no data.
	ErrEmptyImage = errors.New("empty image")
	// ErrUnsupportedType is returned for anything but JPEG and PNG.
	ErrUnsupportedType = errors.New("invalid file type, only JPEG, JPG and PNG images are allowed")
	// ErrTooLarge is returned when an image exceeds the size limit.
	ErrTooLarge = errors.New("image too large")
	// ErrInvalidImage is returned for payloads that cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Upload is a photo selected from the device.
type Upload struct {
	File *multipart.FileHeader
}

// Capture reads and normalizes the uploaded file.
func (u Upload) Capture(ctx context.Context) (meal.Image, error) {
	if u.File == nil {
		return meal.Image{}, ErrEmptyImage
	}
	extension := strings.ToLower(filepath.Ext(u.File.Filename))
	if !allowedExtensions[extension] {
		return meal.Image{}, ErrUnsupportedType
	}
	if u.File.Size > maxBytes {
		return meal.Image{}, ErrTooLarge
	}

	src, err := u.File.Open()
	if err != nil {
		return meal.Image{}, fmt.Errorf("open file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return meal.Image{}, fmt.Errorf("read image: %w", err)
	}
	return Decode(data)
}

// Camera is a snapshot taken in the browser, delivered as a data URI such as
// "data:image/jpeg;base64,....".
type Camera struct {
	DataURI string
}

// Capture decodes and normalizes the snapshot.
func (c Camera) Capture(ctx context.Context) (meal.Image, error) {
	meta, payload, ok := strings.Cut(c.DataURI, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return meal.Image{}, fmt.Errorf("%w: not a base64 data URI", ErrInvalidImage)
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	if !allowedTypes[contentType] {
		return meal.Image{}, ErrUnsupportedType
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes {
		return meal.Image{}, ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return meal.Image{}, fmt.Errorf("%w: decode data URI: %v", ErrInvalidImage, err)
	}
	return Decode(data)
}

// Decode checks that data is a JPEG or PNG and scales it down to MaxWidth.
func Decode(data []byte) (meal.Image, error) {
	if len(data) == 0 {
		return meal.Image{}, ErrEmptyImage
	}
	if len(data) > maxBytes {
		return meal.Image{}, ErrTooLarge
	}
	contentType := http.DetectContentType(data)
	if !allowedTypes[contentType] {
		return meal.Image{}, ErrUnsupportedType
	}
	return Normalize(meal.Image{Data: data, MIMEType: contentType}, MaxWidth)
}

// Normalize scales img down to maxWidth keeping its aspect ratio. Images that
// are already narrow enough are returned untouched.
func Normalize(img meal.Image, maxWidth uint) (meal.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return meal.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if uint(cfg.Width) <= maxWidth {
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return meal.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	scaled := resize.Resize(maxWidth, 0, decoded, resize.Lanczos3)

	var buf bytes.Buffer
	switch img.MIMEType {
	case "image/jpeg":
		err = jpeg.Encode(&buf, scaled, nil)
	case "image/png":
		err = png.Encode(&buf, scaled)
	default:
		return meal.Image{}, fmt.Errorf("unsupported image format: %s", img.MIMEType)
	}
	if err != nil {
		return meal.Image{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return meal.Image{Data: buf.Bytes(), MIMEType: img.MIMEType}, nil
}

// Extension returns the file extension used when archiving img.
func Extension(img meal.Image) string {
	if img.MIMEType == "image/png" {
		return ".png"
	}
	return ".jpg"
}
