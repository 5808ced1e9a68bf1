// Package jpeg provides the JPEG codecs used by the target-size encoder.
//
// Std wraps the standard library encoder and is always available. Turbo binds
// libjpeg through cgo and honours the optimize flag (per-image Huffman tables);
// it is compiled only with the "libjpeg" build tag. Default returns the best
// codec the binary was built with.
package jpeg

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

const (
	// DefaultQuality is the quality used when a caller passes none
	DefaultQuality = 80
	// MinQuality is the minimum quality
	MinQuality = 1
	// MaxQuality is the maximum quality
	MaxQuality = 100
)

// ClampQuality forces q into [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// Std encodes with image/jpeg. The standard encoder always writes the
// default Huffman tables, so optimize is accepted and ignored.
type Std struct{}

// Name identifies the codec in logs and metrics.
func (Std) Name() string { return "std" }

// OptimizesHuffman reports false: outputs are somewhat larger than libjpeg's
// at the same quality.
func (Std) OptimizesHuffman() bool { return false }

// Encode writes img as a baseline JPEG at the given quality.
func (Std) Encode(w io.Writer, img image.Image, quality int, optimize bool) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
		return fmt.Errorf("jpeg encode failed: %w", err)
	}
	return nil
}
