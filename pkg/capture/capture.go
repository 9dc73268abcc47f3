// Package capture grabs the watched screen region and prepares it for
// detection and OCR.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/vova616/screenshot"
)

// Capturer produces one frame per call
type Capturer interface {
	Capture(ctx context.Context) (*overlay.Frame, error)
}

// Options controls preprocessing of a captured image
type Options struct {
	UpscaleBelow  int
	UpscaleFactor float64
	Binarize      bool
}

// Screen captures a fixed rectangle of the primary display
type Screen struct {
	Left, Top, Width, Height int
	Options                  Options
}

func (s *Screen) Capture(ctx context.Context) (*overlay.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, overlay.NewInvalidGeometryError("capture", "region %dx%d", s.Width, s.Height)
	}

	slog.Debug("Capturing region", "left", s.Left, "top", s.Top, "width", s.Width, "height", s.Height)
	img, err := screenshot.CaptureRect(image.Rect(s.Left, s.Top, s.Left+s.Width, s.Top+s.Height))
	if err != nil {
		return nil, overlay.NewAdapterFailureError("capture", err)
	}

	return NewFrame(img, s.Left, s.Top, s.Options), nil
}

// File replays a saved screenshot as if it were the screen region
type File struct {
	Path      string
	Left, Top int
	Options   Options
}

func (f *File) Capture(ctx context.Context) (*overlay.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	return NewFrame(img, f.Left, f.Top, f.Options), nil
}

// NewFrame builds a frame from a raw capture whose logical origin on screen
// is (left, top).
func NewFrame(img image.Image, left, top int, opts Options) *overlay.Frame {
	b := img.Bounds()
	raw, scale := Upscale(img, opts)
	processed := raw
	if opts.Binarize {
		processed = Binarize(raw)
	}

	slog.Info("Region captured and processed",
		"width", b.Dx(),
		"height", b.Dy(),
		"scale", scale,
		"binarized", opts.Binarize)

	return &overlay.Frame{
		Image:  processed,
		Raw:    raw,
		Left:   left,
		Top:    top,
		Width:  b.Dx(),
		Height: b.Dy(),
		Scale:  scale,
	}
}

// Upscale enlarges narrow captures so small glyphs survive OCR. The returned
// image always has its origin at (0,0).
func Upscale(img image.Image, opts Options) (image.Image, float64) {
	b := img.Bounds()
	if opts.UpscaleBelow > 0 && opts.UpscaleFactor > 1 && b.Dx() < opts.UpscaleBelow {
		w := int(float64(b.Dx()) * opts.UpscaleFactor)
		h := int(float64(b.Dy()) * opts.UpscaleFactor)
		slog.Debug("Image resized for better OCR", "from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), "to", fmt.Sprintf("%dx%d", w, h))
		return imaging.Resize(img, w, h, imaging.Lanczos), opts.UpscaleFactor
	}
	if b.Min != (image.Point{}) {
		return imaging.Clone(img), 1
	}
	return img, 1
}

// Binarize converts img to black and white at the Otsu threshold.
func Binarize(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	level := OtsuLevel(gray)
	return segment.Threshold(gray, level)
}

// OtsuLevel returns the threshold maximising between-class variance of the
// luminance histogram.
func OtsuLevel(img image.Image) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*bl) / 1000 >> 8
			hist[lum]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, best float64
	var wB int
	level := 0
	for t, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * n)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	// segment.Threshold keeps pixels >= level white; Otsu's class boundary
	// is "<= t is background".
	return uint8(min(level+1, 255))
}
