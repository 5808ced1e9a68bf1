package converter

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/harliandi/go-convert/pkg/targetsize"
	"golang.org/x/image/bmp"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x ^ y) & 0xff),
				A: 255,
			})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	c := New(WithMaxFileSize(1024))
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.maxFileSize != 1024 {
		t.Errorf("Expected maxFileSize 1024, got %d", c.maxFileSize)
	}
	if c.Codec() == "" {
		t.Error("Expected a codec name")
	}
}

func TestConverter_OptimizedHuffman(t *testing.T) {
	if New(WithCodec(stubCodec{})).OptimizedHuffman() {
		t.Error("codec without OptimizesHuffman reported optimized Huffman tables")
	}
	if !New(WithCodec(huffmanCodec{})).OptimizedHuffman() {
		t.Error("expected optimized Huffman tables to be reported")
	}
}

type stubCodec struct{}

func (stubCodec) Name() string { return "stub" }

func (stubCodec) Encode(w io.Writer, img image.Image, quality int, _ bool) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

type huffmanCodec struct{ stubCodec }

func (huffmanCodec) OptimizesHuffman() bool { return true }

func TestConverter_Compress_InvalidInput(t *testing.T) {
	c := New()

	tests := []struct {
		name  string
		input []byte
	}{
		{"Empty input", nil},
		{"Invalid data", []byte("not an image at all")},
		{"Truncated PNG", pngBytes(t, createTestImage(32, 32))[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compress(tt.input, 10*1024)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("Compress() error = %v, want DecodeError", err)
			}
		})
	}
}

func TestConverter_Compress_FileTooLarge(t *testing.T) {
	c := New(WithMaxFileSize(100))

	_, err := c.Compress(pngBytes(t, createTestImage(64, 64)), 0)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Compress() error = %v, want ErrFileTooLarge", err)
	}
}

func TestConverter_Compress(t *testing.T) {
	c := New()
	data := pngBytes(t, createTestImage(256, 192))

	res, err := c.Compress(data, 8*1024)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if res.Size > 8*1024 && res.Quality != targetsize.MinQuality {
		t.Errorf("size %d exceeds target at quality %d", res.Size, res.Quality)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 192 {
		t.Errorf("Wrong dimensions: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestConverter_Compress_NoTarget(t *testing.T) {
	c := New()

	res, err := c.Compress(pngBytes(t, createTestImage(64, 64)), 0)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if res.Quality != targetsize.DefaultQuality {
		t.Errorf("Expected quality %d, got %d", targetsize.DefaultQuality, res.Quality)
	}
}

func TestConverter_Compress_Formats(t *testing.T) {
	c := New()
	src := createTestImage(48, 32)

	var gifBuf, bmpBuf, jpegBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, src, nil); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(&jpegBuf, src, nil); err != nil {
		t.Fatal(err)
	}

	inputs := map[string][]byte{
		"png":  pngBytes(t, src),
		"gif":  gifBuf.Bytes(),
		"bmp":  bmpBuf.Bytes(),
		"jpeg": jpegBuf.Bytes(),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			res, err := c.Compress(data, 0)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if res.Width != 48 || res.Height != 32 {
				t.Errorf("Wrong dimensions: %dx%d", res.Width, res.Height)
			}
		})
	}
}

func TestConverter_Resize(t *testing.T) {
	c := New()
	data := pngBytes(t, createTestImage(200, 100))

	tests := []struct {
		name         string
		req          ResizeRequest
		wantW, wantH int
		wantQuality  int
	}{
		{"No resize, no target", ResizeRequest{}, 200, 100, targetsize.ExpandDefaultQuality},
		{"Width only", ResizeRequest{Width: 100}, 100, 50, targetsize.ExpandDefaultQuality},
		{"Height only", ResizeRequest{Height: 25}, 50, 25, targetsize.ExpandDefaultQuality},
		{"Both", ResizeRequest{Width: 40, Height: 40}, 40, 40, targetsize.ExpandDefaultQuality},
		{"Small target", ResizeRequest{TargetBytes: 1}, 200, 100, targetsize.ExpandQuality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Resize(data, tt.req)
			if err != nil {
				t.Fatalf("Resize() error = %v", err)
			}
			if res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("Resize() = %dx%d, want %dx%d", res.Width, res.Height, tt.wantW, tt.wantH)
			}
			if res.Quality != tt.wantQuality {
				t.Errorf("Resize() quality = %d, want %d", res.Quality, tt.wantQuality)
			}
		})
	}
}

func TestConverter_Resize_Expands(t *testing.T) {
	c := New()
	data := pngBytes(t, createTestImage(64, 64))

	res, err := c.Resize(data, ResizeRequest{TargetBytes: 50 * 1024 * 1024})
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if res.Scale != targetsize.MaxScale {
		t.Errorf("Expected capped scale %v, got %v", targetsize.MaxScale, res.Scale)
	}
	if res.Width != 256 || res.Height != 256 {
		t.Errorf("Wrong dimensions: %dx%d", res.Width, res.Height)
	}
}

func TestConverter_Resize_UpscaleStaysWithinLimits(t *testing.T) {
	c := New()
	data := pngBytes(t, createTestImage(6000, 2))

	res, err := c.Resize(data, ResizeRequest{TargetBytes: 1 << 30})
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if err := ValidateDimensions(res.Width, res.Height); err != nil {
		t.Errorf("output %dx%d (scale %.2f) exceeds limits: %v", res.Width, res.Height, res.Scale, err)
	}
	if res.Scale >= targetsize.MaxScale {
		t.Errorf("Expected scale below %v, got %v", targetsize.MaxScale, res.Scale)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
	if cfg.Width != res.Width || cfg.Height != res.Height {
		t.Errorf("Result says %dx%d, JPEG is %dx%d", res.Width, res.Height, cfg.Width, cfg.Height)
	}
}

func TestConverter_Resize_TooLarge(t *testing.T) {
	c := New()
	data := pngBytes(t, createTestImage(10, 10))

	_, err := c.Resize(data, ResizeRequest{Width: MaxImageWidth + 1})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Resize() error = %v, want ErrImageTooLarge", err)
	}
}

func TestResolveDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, w, h int
		wantW, wantH     int
	}{
		{1920, 1080, 0, 0, 1920, 1080},
		{1920, 1080, 960, 0, 960, 540},
		{1920, 1080, 0, 540, 960, 540},
		{1920, 1080, 100, 100, 100, 100},
		{3, 2, 2, 0, 2, 1},
		{1920, 1080, -5, 0, 1920, 1080},
	}

	for _, tt := range tests {
		w, h := ResolveDimensions(tt.srcW, tt.srcH, tt.w, tt.h)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ResolveDimensions(%d, %d, %d, %d) = %dx%d, want %dx%d",
				tt.srcW, tt.srcH, tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"-10", 0},
		{"0", 0},
		{"640", 640},
		{" 480 ", 480},
	}

	for _, tt := range tests {
		if got := ParseDimension(tt.in); got != tt.want {
			t.Errorf("ParseDimension(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
