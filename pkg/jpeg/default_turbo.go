//go:build cgo && libjpeg

package jpeg

// Default returns the libjpeg codec.
func Default() Turbo {
	return Turbo{}
}
