package converter

import (
	"errors"
	"image"
	"strings"
)

var (
	// ErrFileTooLarge is returned when the file exceeds the size limit
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrInvalidImageDimensions is returned when image dimensions are invalid
	ErrInvalidImageDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Validation limits
const (
	DefaultMaxFileSize = 32 * 1024 * 1024 // 32MB max upload
	MaxImageWidth      = 20000            // 20K pixels max width
	MaxImageHeight     = 20000            // 20K pixels max height
	MaxImagePixels     = 250_000_000      // 250 megapixels max total pixels
	MinImageDimension  = 1
)

// ValidateFile checks the upload size before decoding
func ValidateFile(data []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(data) > maxSize {
		return ErrFileTooLarge
	}
	if len(data) == 0 {
		return &DecodeError{Err: ErrEmptyInput}
	}
	return nil
}

// ValidateImage checks decoded image dimensions are within acceptable limits
func ValidateImage(img image.Image) error {
	if img == nil {
		return &DecodeError{Err: ErrEmptyInput}
	}
	return ValidateDimensions(img.Bounds().Dx(), img.Bounds().Dy())
}

// ValidateDimensions applies the same limits to a planned output size
func ValidateDimensions(width, height int) error {
	if width < MinImageDimension || height < MinImageDimension {
		return ErrInvalidImageDimensions
	}

	if width > MaxImageWidth || height > MaxImageHeight {
		return ErrImageTooLarge
	}

	// Check total pixel count (prevent decompression bomb attacks)
	if int64(width)*int64(height) > MaxImagePixels {
		return ErrImageTooLarge
	}

	return nil
}

// EstimateOutputSize estimates the JPEG output size for a quality so the
// encode sink can be sized up front
func EstimateOutputSize(width, height, quality int) int64 {
	pixels := int64(width) * int64(height)

	var multiplier float64
	switch {
	case quality >= 90:
		multiplier = 2.0
	case quality >= 70:
		multiplier = 1.0
	case quality >= 50:
		multiplier = 0.5
	default:
		multiplier = 0.3
	}

	return int64(float64(pixels) * multiplier)
}

// IsHEIFMagic checks if the data has HEIF magic bytes
func IsHEIFMagic(data []byte) bool {
	if len(data) < 12 {
		return false
	}

	// ISOBMFF: [4 bytes size] + "ftyp" + [brand]
	if string(data[4:8]) != "ftyp" {
		return false
	}

	brand := strings.ToLower(string(data[8:12]))
	switch brand {
	case "heic", "heix", "heim", "heis", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}
