package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/adrium/goheif"
	"github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrEmptyInput is returned for zero-length uploads
	ErrEmptyInput = errors.New("empty input")
	// ErrUnsupportedFormat is returned when no decoder accepts the data
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// DecodeError reports an upload that could not be turned into an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode decodes JPEG, PNG, GIF, BMP, TIFF, WebP and HEIF/HEIC data.
// The returned format name is the one reported by the decoder.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: ErrEmptyInput}
	}

	if IsHEIFMagic(data) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", &DecodeError{Err: fmt.Errorf("heif: %w", err)}
		}
		return img, "heif", nil
	}

	r := bytes.NewReader(data)
	img, format, err := image.Decode(r)
	if err == nil {
		return img, format, nil
	}

	if IsWebPMagic(data) {
		r.Reset(data)
		if img, err = webp.Decode(r); err == nil {
			return img, "webp", nil
		}
		return nil, "", &DecodeError{Err: fmt.Errorf("webp: %w", err)}
	}

	if errors.Is(err, image.ErrFormat) {
		return nil, "", &DecodeError{Err: ErrUnsupportedFormat}
	}
	return nil, "", &DecodeError{Err: err}
}

// IsWebPMagic checks for a RIFF container holding WebP data
func IsWebPMagic(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
