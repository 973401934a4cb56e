// Package avatar normalizes uploaded profile images. Every stored avatar is
// the result of decoding the upload, resizing to a fixed 250x250 square, and
// re-encoding as PNG; raw uploaded bytes are never persisted.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// Size is the canonical square dimension in pixels.
	Size = 250
	// MaxBytes is the upload size cap.
	MaxBytes = 1 << 20
)

// ErrUnsupportedMedia is returned for payloads that are too large or whose
// sniffed content type is not an accepted image format.
var ErrUnsupportedMedia = errors.New("unsupported media")

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Normalize validates the uploaded bytes and returns the canonical avatar:
// a 250x250 PNG, regardless of the input's dimensions or format.
func Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data) > MaxBytes {
		return nil, fmt.Errorf("%w: payload must be a jpeg or png up to 1MB", ErrUnsupportedMedia)
	}
	mt := mimetype.Detect(data)
	if !acceptedTypes[mt.String()] {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedMedia, mt.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	// Scale to cover the square, then center-crop; non-square inputs lose
	// their edges rather than being stretched.
	resized := imaging.Fill(img, Size, Size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
