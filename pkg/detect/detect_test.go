package detect

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

type stubDetector struct {
	detections []providers.Detection
	err        error
}

func (s *stubDetector) Name() string { return "stub" }
func (s *stubDetector) Detect(ctx context.Context, img image.Image) ([]providers.Detection, error) {
	return s.detections, s.err
}

func testFrame() *overlay.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	return &overlay.Frame{Image: img, Raw: img, Width: 200, Height: 100, Scale: 1}
}

func TestAdapter_Detect(t *testing.T) {
	d := &stubDetector{detections: []providers.Detection{
		{Box: overlay.Box{X1: 150, Y1: 10, X2: 190, Y2: 60}, Confidence: 0.9},
		{Box: overlay.Box{X1: 10, Y1: 10, X2: 40, Y2: 60}, Confidence: 0.8},
		{Box: overlay.Box{X1: 50, Y1: 50, X2: 60, Y2: 60}, Confidence: 0.1},  // below threshold
		{Box: overlay.Box{X1: 180, Y1: 80, X2: 250, Y2: 140}, Confidence: 0.7}, // clamped
		{Box: overlay.Box{X1: 300, Y1: 10, X2: 320, Y2: 20}, Confidence: 0.9},  // outside
		{Box: overlay.Box{X1: 70, Y1: 20, X2: 70, Y2: 40}, Confidence: 0.9},    // zero width
	}}

	regions, err := New(d, 0.3).Detect(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	want := []overlay.Box{
		{X1: 10, Y1: 10, X2: 40, Y2: 60},
		{X1: 150, Y1: 10, X2: 190, Y2: 60},
		{X1: 180, Y1: 80, X2: 200, Y2: 100},
	}
	if len(regions) != len(want) {
		t.Fatalf("Detect() returned %d regions, want %d", len(regions), len(want))
	}
	for i, r := range regions {
		if r.ID != i {
			t.Errorf("regions[%d].ID = %d", i, r.ID)
		}
		if r.Box != want[i] {
			t.Errorf("regions[%d].Box = %v, want %v", i, r.Box, want[i])
		}
		if r.Crop.Bounds().Dx() != want[i].Width() || r.Crop.Bounds().Dy() != want[i].Height() {
			t.Errorf("regions[%d] crop = %v, want %dx%d", i, r.Crop.Bounds(), want[i].Width(), want[i].Height())
		}
	}
}

func TestAdapter_DetectEmpty(t *testing.T) {
	regions, err := New(&stubDetector{}, 0.3).Detect(context.Background(), testFrame())
	if err != nil || len(regions) != 0 {
		t.Errorf("Detect() = %v, %v; want empty, nil", regions, err)
	}
}

func TestAdapter_DetectFailure(t *testing.T) {
	_, err := New(&stubDetector{err: fmt.Errorf("model not loaded")}, 0.3).Detect(context.Background(), testFrame())
	if !overlay.Is(err, overlay.ErrorAdapterFailure) {
		t.Errorf("Detect() error = %v, want ADAPTER_FAILURE", err)
	}
}
