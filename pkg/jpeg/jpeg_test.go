package jpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func TestClampQuality(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, MinQuality},
		{0, MinQuality},
		{1, 1},
		{80, 80},
		{100, 100},
		{150, MaxQuality},
	}

	for _, tt := range tests {
		if got := ClampQuality(tt.in); got != tt.want {
			t.Errorf("ClampQuality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStdEncode(t *testing.T) {
	img := gradient(320, 240)

	var buf bytes.Buffer
	if err := (Std{}).Encode(&buf, img, 85, true); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	config, err := jpeg.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
	if config.Width != 320 || config.Height != 240 {
		t.Fatalf("Wrong dimensions: %dx%d", config.Width, config.Height)
	}
}

func TestStdEncode_QualityOrdering(t *testing.T) {
	img := gradient(400, 400)

	var low, high bytes.Buffer
	if err := (Std{}).Encode(&low, img, 10, false); err != nil {
		t.Fatal(err)
	}
	if err := (Std{}).Encode(&high, img, 95, false); err != nil {
		t.Fatal(err)
	}
	if high.Len() <= low.Len() {
		t.Errorf("Quality 95 size %d <= Quality 10 size %d", high.Len(), low.Len())
	}
}

func TestStd_DoesNotOptimizeHuffman(t *testing.T) {
	if (Std{}).OptimizesHuffman() {
		t.Error("Std must not claim Huffman optimization")
	}

	img := gradient(128, 96)
	var plain, optimized bytes.Buffer
	if err := (Std{}).Encode(&plain, img, 85, false); err != nil {
		t.Fatal(err)
	}
	if err := (Std{}).Encode(&optimized, img, 85, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain.Bytes(), optimized.Bytes()) {
		t.Error("Std output changed with optimize set")
	}
}

func TestDefault(t *testing.T) {
	codec := Default()
	if codec.Name() == "" {
		t.Fatal("Default codec has no name")
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, gradient(64, 64), DefaultQuality, true); err != nil {
		t.Fatalf("Default codec encode failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Empty output")
	}
}
