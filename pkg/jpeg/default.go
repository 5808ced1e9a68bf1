//go:build !(cgo && libjpeg)

package jpeg

// Default returns the standard library codec; build with -tags libjpeg for
// optimized Huffman coding.
func Default() Std {
	return Std{}
}
