package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRenderKeepsAspectRatio(t *testing.T) {
	src, err := Decode(encodePNG(t, testImage(800, 600)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tests := []struct {
		width, height int
	}{
		{500, 375},
		{250, 188},
		{100, 75},
	}
	for _, tc := range tests {
		out, contentType, err := src.Render(tc.width)
		if err != nil {
			t.Fatalf("render %d: %v", tc.width, err)
		}
		if contentType != "image/png" {
			t.Fatalf("content type = %q, want image/png", contentType)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if cfg.Width != tc.width || cfg.Height != tc.height {
			t.Fatalf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tc.width, tc.height)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	raw := encodePNG(t, testImage(320, 200))
	first, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, w := range []int{500, 250, 100} {
		a, _, err := first.Render(w)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		b, _, err := second.Render(w)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("width %d: output differs between runs", w)
		}
	}
}

func TestRenderJPEGStaysJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(300, 300), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	src, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, contentType, err := src.Render(100)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("content type = %q", contentType)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
}

func TestDecodeRejectsNonImage(t *testing.T) {
	if _, err := Decode([]byte("Hello Webstack!")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestResizeTinyHeight(t *testing.T) {
	img := Resize(testImage(1000, 1), 100)
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 1 {
		t.Fatalf("bounds = %v", b)
	}
	if _, _, err := (Source{Image: testImage(10, 10), Format: "png"}).Render(0); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth, got %v", err)
	}
}

// withDimensions rewrites the IHDR chunk of a PNG so it declares w x h
// while the pixel data stays tiny.
func withDimensions(t *testing.T, pngData []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), pngData...)
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected png layout")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	bomb := withDimensions(t, encodePNG(t, testImage(1, 1)), 8000, 8000)
	if _, err := Decode(bomb); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for 8000x8000, got %v", err)
	}

	wide := withDimensions(t, encodePNG(t, testImage(1, 1)), 1<<31-1, 1)
	if _, err := Decode(wide); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for very wide image, got %v", err)
	}
}

func TestDecodeAcceptsImageUnderPixelLimit(t *testing.T) {
	src, err := Decode(encodePNG(t, testImage(64, 48)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := src.Image.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("bounds = %v", b)
	}
}
