// Package thumbnail scales images to fixed widths.
//
// Output depends only on the input bytes and the width, so regenerating a
// variant after a redelivered job yields identical bytes.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when the bytes are not a decodable image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrInvalidWidth is returned for non-positive target widths.
var ErrInvalidWidth = errors.New("thumbnail width must be positive")

const jpegQuality = 90

// MaxPixels bounds width*height of an accepted original. Decoding allocates
// the full bitmap, so larger images are refused before any pixel is read.
const MaxPixels = 40_000_000

// Source is a decoded original.
type Source struct {
	Image  image.Image
	Format string
}

// Decode parses src once so several widths can be derived from it.
func Decode(src []byte) (Source, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Source{}, ErrUnsupportedFormat
		}
		return Source{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Source{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFormat, cfg.Width, cfg.Height, MaxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Source{}, ErrUnsupportedFormat
		}
		return Source{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return Source{Image: img, Format: format}, nil
}

// Render scales s to width, preserving aspect ratio, and encodes it.
// JPEG sources stay JPEG; everything else is written as PNG.
func (s Source) Render(width int) ([]byte, string, error) {
	if width <= 0 {
		return nil, "", ErrInvalidWidth
	}
	scaled := Resize(s.Image, width)
	var buf bytes.Buffer
	if s.Format == "jpeg" {
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// Resize returns img scaled to exactly width pixels wide. The height keeps
// the original aspect ratio and is at least one pixel.
func Resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := 1
	if b.Dx() > 0 {
		height = (b.Dy()*width + b.Dx()/2) / b.Dx()
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
