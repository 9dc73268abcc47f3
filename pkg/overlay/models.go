package overlay

import (
	"fmt"
	"image"
	"time"
)

// Point is a vertex of an OCR polygon in crop-local pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an axis-aligned rectangle. X2 and Y2 are exclusive.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Valid reports whether the box has positive area and non-negative corners.
func (b Box) Valid() bool {
	return b.X1 >= 0 && b.Y1 >= 0 && b.X2 > b.X1 && b.Y2 > b.Y1
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

// Offset translates the box by (dx, dy).
func (b Box) Offset(dx, dy int) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Frame is one captured snapshot of the screen region.
//
// Image is the processed buffer used for detection and OCR. Raw is the
// unprocessed capture at the same resolution, used for compositing. Left,
// Top, Width and Height describe the region in logical screen pixels; Scale
// is the ratio between the buffer and the logical size.
type Frame struct {
	Image  image.Image
	Raw    image.Image
	Left   int
	Top    int
	Width  int
	Height int
	Scale  float64
}

// Bounds returns the frame buffer bounds as a Box.
func (f *Frame) Bounds() Box {
	return BoxFromRect(f.Image.Bounds())
}

// Region is a detected candidate text area in frame-local coordinates.
type Region struct {
	ID         int
	Crop       image.Image
	Box        Box
	Confidence float64
}

// RawLine is one OCR line before merging. Poly is in crop-local coordinates.
type RawLine struct {
	Text     string
	Poly     [4]Point
	Score    float64
	RegionID int
}

type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// TextBlock is merged, recognized text of one bubble in frame coordinates.
type TextBlock struct {
	Text        string      `json:"text"`
	Box         Box         `json:"box"`
	Confidence  float64     `json:"confidence"`
	Orientation Orientation `json:"orientation"`
}

// TranslationRecord is one entry of the translation history.
type TranslationRecord struct {
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}
