package tesseract

import (
	"image"
	"testing"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/otiai10/gosseract/v2"
)

func TestProvider_Name(t *testing.T) {
	if p := New("jpn", ""); p.Name() != "tesseract" {
		t.Errorf("Expected name 'tesseract', got '%s'", p.Name())
	}
}

func TestNew_Languages(t *testing.T) {
	p := New("jpn+jpn_vert", "")
	if len(p.Languages) != 2 || p.Languages[0] != "jpn" || p.Languages[1] != "jpn_vert" {
		t.Errorf("Languages = %v", p.Languages)
	}
	if err := New("", "").ValidateConfig(providers.Config{}); err == nil {
		t.Error("ValidateConfig() with empty language returned nil error")
	}
}

func TestLinesFromBoxes(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(2, 4, 60, 24), Word: "吾 輩 は 猫\n", Confidence: 87},
		{Box: image.Rect(2, 30, 60, 50), Word: " \n", Confidence: 95},
	}

	lines := linesFromBoxes(boxes)
	if len(lines) != 1 {
		t.Fatalf("linesFromBoxes() returned %d lines, want 1", len(lines))
	}
	want := overlay.RawLine{
		Text:  "吾輩は猫",
		Poly:  [4]overlay.Point{{X: 2, Y: 4}, {X: 60, Y: 4}, {X: 60, Y: 24}, {X: 2, Y: 24}},
		Score: 0.87,
	}
	if lines[0] != want {
		t.Errorf("line = %+v, want %+v", lines[0], want)
	}
}
