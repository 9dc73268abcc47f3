package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PNGSurface composites elements over the latest capture and writes the
// result to a PNG file after every change. The file is replaced atomically.
type PNGSurface struct {
	Path string

	mu       sync.Mutex
	backdrop image.Image
	elements map[string]Element
	status   string
	dirty    bool
}

func NewPNGSurface(path string) *PNGSurface {
	return &PNGSurface{Path: path, elements: make(map[string]Element)}
}

func (s *PNGSurface) SetBackdrop(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backdrop != img {
		s.backdrop = img
		s.dirty = true
	}
}

func (s *PNGSurface) Draw(el Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[el.ID] = el
	s.dirty = true
	return nil
}

func (s *PNGSurface) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, id)
	s.dirty = true
	return nil
}

func (s *PNGSurface) Status(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = msg
	s.dirty = true
	return nil
}

// Snapshot returns the current composite, or nil before the first frame
func (s *PNGSurface) Snapshot() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose()
}

func (s *PNGSurface) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.Path == "" {
		return nil
	}
	img := s.compose()
	if img == nil {
		return nil
	}

	tmp := filepath.Join(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".tmp")
	if err := writePNG(tmp, img); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace overlay: %w", err)
	}
	s.dirty = false
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *PNGSurface) compose() image.Image {
	if s.backdrop == nil {
		return nil
	}
	b := s.backdrop.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), s.backdrop, b.Min, draw.Src)

	ids := make([]string, 0, len(s.elements))
	for id := range s.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		el := s.elements[id]
		draw.Draw(dst, el.Box.Rect(), el.Image, image.Point{}, draw.Over)
	}

	if s.status != "" {
		drawStatus(dst, s.status)
	}
	return dst
}

// drawStatus writes msg in a dark strip across the top edge
func drawStatus(dst draw.Image, msg string) {
	face := basicfont.Face7x13
	strip := image.Rect(0, 0, dst.Bounds().Dx(), face.Height+6)
	draw.Draw(dst, strip, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(4, 3+face.Ascent),
	}
	d.DrawString(msg)
}

// LogSurface only logs what would be shown. It backs headless runs.
type LogSurface struct{}

func (LogSurface) Draw(el Element) error {
	slog.Info("Overlay element", "id", el.ID, "screen", el.Screen, "text", el.Text)
	return nil
}

func (LogSurface) Remove(id string) error {
	slog.Debug("Overlay element removed", "id", id)
	return nil
}

func (LogSurface) Status(msg string) error {
	slog.Info("Overlay status", "status", msg)
	return nil
}
