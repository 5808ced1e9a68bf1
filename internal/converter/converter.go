package converter

import (
	"errors"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/harliandi/go-convert/pkg/jpeg"
	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/harliandi/go-convert/pkg/targetsize"
	"github.com/sirupsen/logrus"
)

// ResizeRequest describes the resize tool's inputs. Zero fields are unset.
type ResizeRequest struct {
	Width       int
	Height      int
	TargetBytes int
}

// Converter decodes uploads and runs them through the target-size encoder
type Converter struct {
	codec       targetsize.Codec
	sinks       *SinkPool
	maxFileSize int
	logger      *logrus.Logger
}

// Option configures a Converter
type Option func(*Converter)

// WithCodec overrides the JPEG codec
func WithCodec(codec targetsize.Codec) Option {
	return func(c *Converter) { c.codec = codec }
}

// WithMaxFileSize sets the upload size limit in bytes
func WithMaxFileSize(n int) Option {
	return func(c *Converter) { c.maxFileSize = n }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// New creates a Converter using the default JPEG codec
func New(opts ...Option) *Converter {
	c := &Converter{
		codec:       jpeg.Default(),
		sinks:       NewSinkPool(),
		maxFileSize: DefaultMaxFileSize,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Codec returns the name of the JPEG codec in use
func (c *Converter) Codec() string {
	return c.codec.Name()
}

// OptimizedHuffman reports whether the codec writes per-image Huffman
// tables. Codecs that do not say are assumed not to.
func (c *Converter) OptimizedHuffman() bool {
	o, ok := c.codec.(interface{ OptimizesHuffman() bool })
	return ok && o.OptimizesHuffman()
}

// Compress encodes data as a JPEG no larger than targetBytes when that is
// reachable. targetBytes <= 0 encodes once at the default quality.
func (c *Converter) Compress(data []byte, targetBytes int) (*targetsize.Result, error) {
	img, err := c.load(data)
	if err != nil {
		metrics.RecordEncode(targetsize.Compress.String(), statusFor(err), 0, len(data), 0)
		return nil, err
	}
	return c.encode(img, len(data), targetBytes, targetsize.Compress)
}

// Resize optionally resizes data to the requested dimensions and then grows
// the encoding towards req.TargetBytes.
func (c *Converter) Resize(data []byte, req ResizeRequest) (*targetsize.Result, error) {
	img, err := c.load(data)
	if err != nil {
		metrics.RecordEncode(targetsize.Expand.String(), statusFor(err), 0, len(data), 0)
		return nil, err
	}

	if req.Width > 0 || req.Height > 0 {
		bounds := img.Bounds()
		w, h := ResolveDimensions(bounds.Dx(), bounds.Dy(), req.Width, req.Height)
		if err := ValidateDimensions(w, h); err != nil {
			return nil, err
		}
		if w != bounds.Dx() || h != bounds.Dy() {
			img = targetsize.Resize(img, w, h)
		}
	}

	return c.encode(img, len(data), req.TargetBytes, targetsize.Expand)
}

func (c *Converter) load(data []byte) (image.Image, error) {
	if err := ValidateFile(data, c.maxFileSize); err != nil {
		return nil, err
	}

	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if err := ValidateImage(img); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"bytes":  len(data),
	}).Debug("Decoded upload")
	return img, nil
}

func (c *Converter) encode(img image.Image, inputBytes, targetBytes int, mode targetsize.Mode) (*targetsize.Result, error) {
	start := time.Now()

	bounds := img.Bounds()
	sink := c.sinks.Get(EstimateOutputSize(bounds.Dx(), bounds.Dy(), targetsize.StartQuality))
	defer c.sinks.Put(sink)

	res, err := targetsize.Encode(img, targetBytes, mode, &targetsize.Options{
		Codec:     c.codec,
		Sink:      sink,
		MaxWidth:  MaxImageWidth,
		MaxHeight: MaxImageHeight,
		MaxPixels: MaxImagePixels,
	})
	duration := time.Since(start)
	if err != nil {
		metrics.RecordEncode(mode.String(), statusFor(err), duration.Seconds(), inputBytes, 0)
		c.logger.WithError(err).WithField("mode", mode.String()).Error("Encode failed")
		return nil, err
	}

	metrics.RecordEncode(mode.String(), "success", duration.Seconds(), inputBytes, res.Size)
	if mode == targetsize.Compress && targetBytes > 0 {
		metrics.RecordSearchIterations(res.Iterations)
	}

	c.logger.WithFields(logrus.Fields{
		"mode":       mode.String(),
		"target":     targetBytes,
		"size":       res.Size,
		"quality":    res.Quality,
		"scale":      res.Scale,
		"iterations": res.Iterations,
		"width":      res.Width,
		"height":     res.Height,
		"duration":   duration,
	}).Info("Encode finished")
	return res, nil
}

// ResolveDimensions fills in a missing width or height from the source
// aspect ratio. Non-positive requests count as missing.
func ResolveDimensions(srcW, srcH, width, height int) (int, int) {
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		return width, int(float64(srcH) * float64(width) / float64(srcW))
	case height > 0:
		return int(float64(srcW) * float64(height) / float64(srcH)), height
	default:
		return srcW, srcH
	}
}

// ParseDimension parses a width or height form value; anything that is not
// a positive integer is treated as unset.
func ParseDimension(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func statusFor(err error) string {
	var decodeErr *DecodeError
	var encodeErr *targetsize.EncodeError
	switch {
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &encodeErr):
		return "encode_error"
	default:
		return "invalid_input"
	}
}
