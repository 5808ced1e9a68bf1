// Package targetsize encodes images to JPEG against a byte budget.
//
// Compress searches the quality range for the largest output that still fits
// under the budget. Expand does the opposite: it upscales an image whose
// maximum-quality encoding is smaller than the budget.
package targetsize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/harliandi/go-convert/pkg/jpeg"
)

const (
	MinQuality    = 5
	MaxQuality    = 95
	StartQuality  = 50
	MaxIterations = 10

	// DefaultQuality is used by Compress when no target is given.
	DefaultQuality = 80
	// ExpandQuality is used for every Expand encode that has a target.
	ExpandQuality = 100
	// ExpandDefaultQuality is used by Expand when no target is given.
	ExpandDefaultQuality = 95
	// MaxScale caps the linear upscale factor.
	MaxScale = 4.0
)

var (
	ErrNilImage    = errors.New("nil image")
	ErrUnknownMode = errors.New("unknown encode mode")
)

// Mode selects which side of the budget the result should land on.
type Mode int

const (
	// Compress keeps the output at or below the target.
	Compress Mode = iota
	// Expand grows the output towards the target.
	Expand
)

func (m Mode) String() string {
	switch m {
	case Compress:
		return "compress"
	case Expand:
		return "expand"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Codec is a JPEG encoder. pkg/jpeg provides the implementations.
type Codec interface {
	Name() string
	Encode(w io.Writer, img image.Image, quality int, optimize bool) error
}

// Options tune a single Encode call. The zero value is usable.
type Options struct {
	// Codec defaults to jpeg.Default().
	Codec Codec
	// Sink receives every trial encode. It is reset before each trial and
	// left holding the final encoding; the caller owns it afterwards.
	Sink *bytes.Buffer
	// MaxWidth, MaxHeight and MaxPixels bound the Expand upscale. The scale
	// is lowered to the largest factor that fits; zero means unbounded.
	MaxWidth  int
	MaxHeight int
	MaxPixels int64
}

// Result describes a finished encode.
type Result struct {
	Data    []byte
	Size    int
	Quality int
	Width   int
	Height  int
	// Scale is the linear resize factor applied by Expand, 1 otherwise.
	Scale float64
	// Iterations counts the trial encodes spent searching.
	Iterations int
}

// EncodeError wraps a codec failure.
type EncodeError struct {
	Quality int
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode at quality %d: %v", e.Quality, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Encode normalizes img to opaque RGB and encodes it against targetBytes.
// A targetBytes <= 0 means no target.
func Encode(img image.Image, targetBytes int, mode Mode, opts *Options) (*Result, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	e := newEncoder(opts)
	rgb := Normalize(img)

	switch mode {
	case Compress:
		return e.compress(rgb, targetBytes)
	case Expand:
		return e.expand(rgb, targetBytes)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

// TargetFromKB parses a kilobyte count into bytes. Blank, unparsable or
// non-positive input yields 0, which callers treat as no target.
func TargetFromKB(kb string) int {
	n, err := strconv.Atoi(strings.TrimSpace(kb))
	if err != nil || n <= 0 {
		return 0
	}
	if n > math.MaxInt/1024 {
		return math.MaxInt
	}
	return n * 1024
}

// ScaleFactor estimates the linear factor that grows an encoding of
// currentBytes to targetBytes, assuming size tracks pixel count.
func ScaleFactor(currentBytes, targetBytes int) float64 {
	if currentBytes <= 0 {
		return MaxScale
	}
	return math.Min(math.Sqrt(float64(targetBytes)/float64(currentBytes)), MaxScale)
}

type encoder struct {
	codec     Codec
	sink      *bytes.Buffer
	maxWidth  int
	maxHeight int
	maxPixels int64
}

func newEncoder(opts *Options) *encoder {
	e := &encoder{}
	if opts != nil {
		e.codec = opts.Codec
		e.sink = opts.Sink
		e.maxWidth = opts.MaxWidth
		e.maxHeight = opts.MaxHeight
		e.maxPixels = opts.MaxPixels
	}
	if e.codec == nil {
		e.codec = jpeg.Default()
	}
	if e.sink == nil {
		e.sink = new(bytes.Buffer)
	}
	return e
}

// trial encodes into the sink and reports the encoded length.
func (e *encoder) trial(img image.Image, quality int, optimize bool) (int, error) {
	e.sink.Reset()
	if err := e.codec.Encode(e.sink, img, quality, optimize); err != nil {
		return 0, &EncodeError{Quality: quality, Err: err}
	}
	return e.sink.Len(), nil
}

// snapshot copies the sink out as a Result for img.
func (e *encoder) snapshot(img image.Image, quality int) *Result {
	b := img.Bounds()
	return &Result{
		Data:    bytes.Clone(e.sink.Bytes()),
		Size:    e.sink.Len(),
		Quality: quality,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Scale:   1,
	}
}

func (e *encoder) final(img image.Image, quality int, optimize bool) (*Result, error) {
	if _, err := e.trial(img, quality, optimize); err != nil {
		return nil, err
	}
	return e.snapshot(img, quality), nil
}

func (e *encoder) compress(img image.Image, targetBytes int) (*Result, error) {
	if targetBytes <= 0 {
		return e.final(img, DefaultQuality, true)
	}

	best, iterations, err := e.searchQuality(img, targetBytes, MinQuality, MaxQuality)
	if err != nil {
		return nil, err
	}

	res, err := e.final(img, best, true)
	if err != nil {
		return nil, err
	}
	res.Iterations = iterations
	return res, nil
}

// searchQuality binary-searches [low, high] for the highest quality whose
// encoding fits in targetBytes. When nothing fits, the lowest quality tried
// wins. Bounds with low > high return StartQuality untouched.
func (e *encoder) searchQuality(img image.Image, targetBytes, low, high int) (best, iterations int, err error) {
	best = StartQuality
	feasible := false
	lowest := 0

	for iterations < MaxIterations && low <= high {
		mid := (low + high) / 2
		iterations++

		size, err := e.trial(img, mid, true)
		if err != nil {
			return 0, iterations, err
		}

		if lowest == 0 || mid < lowest {
			lowest = mid
		}

		if size <= targetBytes {
			best = mid
			feasible = true
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	if !feasible && lowest > 0 {
		best = lowest
	}
	return best, iterations, nil
}

func (e *encoder) expand(img *image.RGBA, targetBytes int) (*Result, error) {
	if targetBytes <= 0 {
		return e.final(img, ExpandDefaultQuality, true)
	}

	size, err := e.trial(img, ExpandQuality, false)
	if err != nil {
		return nil, err
	}
	if size >= targetBytes {
		return e.snapshot(img, ExpandQuality), nil
	}

	scale, width, height := e.fit(img.Rect.Dx(), img.Rect.Dy(), ScaleFactor(size, targetBytes))
	if width <= img.Rect.Dx() && height <= img.Rect.Dy() {
		// Already at the size limit
		return e.snapshot(img, ExpandQuality), nil
	}

	upscaled := Resize(img, width, height)

	res, err := e.final(upscaled, ExpandQuality, false)
	if err != nil {
		return nil, err
	}
	res.Scale = scale
	return res, nil
}

// fit lowers scale until width x height stays within the encoder's bounds and
// returns the resulting dimensions.
func (e *encoder) fit(width, height int, scale float64) (float64, int, int) {
	if e.maxWidth > 0 {
		scale = math.Min(scale, float64(e.maxWidth)/float64(width))
	}
	if e.maxHeight > 0 {
		scale = math.Min(scale, float64(e.maxHeight)/float64(height))
	}
	if e.maxPixels > 0 {
		scale = math.Min(scale, math.Sqrt(float64(e.maxPixels)/(float64(width)*float64(height))))
	}
	if scale < 1 {
		scale = 1
	}

	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	// Float rounding can overshoot by a pixel
	if e.maxWidth > 0 && w > e.maxWidth {
		w = e.maxWidth
	}
	if e.maxHeight > 0 && h > e.maxHeight {
		h = e.maxHeight
	}
	for e.maxPixels > 0 && int64(w)*int64(h) > e.maxPixels && w > width {
		w--
		h = int(float64(height) * float64(w) / float64(width))
	}
	return scale, max(w, width), max(h, height)
}
