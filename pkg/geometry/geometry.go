// Package geometry converts boxes between the coordinate spaces a cycle
// passes through: rotated crop, crop, frame and screen.
package geometry

import (
	"image"
	"math"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/disintegration/imaging"
)

// ToFrameSpace maps a crop-local box into frame space. No clamping.
func ToFrameSpace(box overlay.Box, origin image.Point) overlay.Box {
	return box.Offset(origin.X, origin.Y)
}

// RotateBox maps a box in the upright crop into the rotated crop produced by
// RotateCrop. h is the height of the upright crop.
func RotateBox(box overlay.Box, h int) (overlay.Box, error) {
	if h <= 0 {
		return overlay.Box{}, overlay.NewInvalidGeometryError("rotate box", "crop height %d", h)
	}
	return overlay.Box{
		X1: h - box.Y2,
		Y1: box.X1,
		X2: h - box.Y1,
		Y2: box.X2,
	}, nil
}

// UnrotateBox maps a box detected in the rotated crop back into the upright
// crop. h is the height of the upright crop.
func UnrotateBox(box overlay.Box, h int) (overlay.Box, error) {
	if h <= 0 {
		return overlay.Box{}, overlay.NewInvalidGeometryError("unrotate box", "crop height %d", h)
	}
	return overlay.Box{
		X1: box.Y1,
		Y1: h - box.X2,
		X2: box.Y2,
		Y2: h - box.X1,
	}, nil
}

// RotateCrop turns a tall crop a quarter turn so that vertical text runs
// horizontally. The pixel mapping matches RotateBox.
func RotateCrop(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, overlay.NewInvalidGeometryError("rotate crop", "empty crop %dx%d", b.Dx(), b.Dy())
	}
	return imaging.Rotate270(img), nil
}

// PolygonBox reduces an OCR quadrilateral to its bounding box.
func PolygonBox(poly [4]overlay.Point) overlay.Box {
	box := overlay.Box{X1: poly[0].X, Y1: poly[0].Y, X2: poly[0].X, Y2: poly[0].Y}
	for _, p := range poly[1:] {
		box.X1 = min(box.X1, p.X)
		box.Y1 = min(box.Y1, p.Y)
		box.X2 = max(box.X2, p.X)
		box.Y2 = max(box.Y2, p.Y)
	}
	return box
}

// BoxPolygon expands a box into a clockwise polygon starting top-left.
func BoxPolygon(box overlay.Box) [4]overlay.Point {
	return [4]overlay.Point{
		{X: box.X1, Y: box.Y1},
		{X: box.X2, Y: box.Y1},
		{X: box.X2, Y: box.Y2},
		{X: box.X1, Y: box.Y2},
	}
}

// Clamp restricts box to bounds.
func Clamp(box, bounds overlay.Box) overlay.Box {
	return overlay.Box{
		X1: max(box.X1, bounds.X1),
		Y1: max(box.Y1, bounds.Y1),
		X2: min(box.X2, bounds.X2),
		Y2: min(box.Y2, bounds.Y2),
	}
}

// Scale multiplies every coordinate by f, rounding outward so the scaled box
// still covers the original area.
func Scale(box overlay.Box, f float64) overlay.Box {
	if f == 1 {
		return box
	}
	return overlay.Box{
		X1: int(math.Floor(float64(box.X1) * f)),
		Y1: int(math.Floor(float64(box.Y1) * f)),
		X2: int(math.Ceil(float64(box.X2) * f)),
		Y2: int(math.Ceil(float64(box.Y2) * f)),
	}
}

// ToScreenSpace maps a frame-space box to logical screen coordinates.
func ToScreenSpace(box overlay.Box, frame *overlay.Frame) overlay.Box {
	scale := frame.Scale
	if scale <= 0 {
		scale = 1
	}
	return Scale(box, 1/scale).Offset(frame.Left, frame.Top)
}
