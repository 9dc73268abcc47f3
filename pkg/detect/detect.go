// Package detect normalizes detector output into frame-local regions.
package detect

import (
	"context"
	"log/slog"
	"sort"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/geometry"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
)

// Adapter wraps a Detector
type Adapter struct {
	Detector      providers.Detector
	MinConfidence float64
}

// New creates an adapter that drops detections below minConfidence
func New(d providers.Detector, minConfidence float64) *Adapter {
	return &Adapter{Detector: d, MinConfidence: minConfidence}
}

// Detect runs the detector on frame.Image and returns one Region per usable
// box. Boxes are clamped to the frame; boxes left without area are dropped.
// A detector failure is returned as ADAPTER_FAILURE.
func (a *Adapter) Detect(ctx context.Context, frame *overlay.Frame) ([]overlay.Region, error) {
	detections, err := a.Detector.Detect(ctx, frame.Image)
	if err != nil {
		return nil, overlay.NewAdapterFailureError("detect "+a.Detector.Name(), err)
	}

	bounds := frame.Bounds()
	origin := frame.Image.Bounds().Min

	// Stable region ids regardless of the order the detector reports.
	sort.SliceStable(detections, func(i, j int) bool {
		bi, bj := detections[i].Box, detections[j].Box
		if bi.Y1 != bj.Y1 {
			return bi.Y1 < bj.Y1
		}
		return bi.X1 < bj.X1
	})

	regions := make([]overlay.Region, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < a.MinConfidence {
			slog.Debug("Dropping low-confidence detection", "box", d.Box, "confidence", d.Confidence)
			continue
		}

		box := geometry.Clamp(d.Box, bounds).Offset(-origin.X, -origin.Y)
		if !box.Valid() {
			err := overlay.NewInvalidGeometryError("detect", "box %v outside frame %v", d.Box, bounds)
			slog.Warn("Dropping region", "err", err)
			continue
		}

		regions = append(regions, overlay.Region{
			ID:         len(regions),
			Crop:       imaging.Crop(frame.Image, box.Offset(origin.X, origin.Y).Rect()),
			Box:        box,
			Confidence: d.Confidence,
		})
	}

	slog.Info("Detection complete", "detector", a.Detector.Name(), "candidates", len(detections), "regions", len(regions))
	return regions, nil
}
