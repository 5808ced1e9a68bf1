package targetsize

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalize returns img as an opaque RGBA image anchored at the origin.
// Palette, gray and alpha-bearing sources are converted; alpha is dropped,
// not composited, so transparent pixels keep their stored color.
func Normalize(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Opaque() {
		return rgba
	}
	return flatten(imaging.Clone(img))
}

// Resize scales img to width x height with a Lanczos filter. A zero width or
// height is derived from the other to keep the aspect ratio.
func Resize(img image.Image, width, height int) *image.RGBA {
	return flatten(imaging.Resize(img, width, height, imaging.Lanczos))
}

// flatten forces every alpha sample to opaque and reinterprets the pixels as
// RGBA, which is exact once alpha is 0xff.
func flatten(n *image.NRGBA) *image.RGBA {
	for i := 3; i < len(n.Pix); i += 4 {
		n.Pix[i] = 0xff
	}
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}
