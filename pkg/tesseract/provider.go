// Package tesseract recognizes text lines with a local Tesseract install.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/geometry"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Provider implements providers.Recognizer with gosseract
type Provider struct {
	Languages    []string
	TessdataPath string
}

// New creates a recognizer for a "+"-joined language list, e.g. "jpn+jpn_vert"
func New(language, tessdataPath string) *Provider {
	return &Provider{
		Languages:    strings.Split(language, "+"),
		TessdataPath: tessdataPath,
	}
}

func (p *Provider) Name() string {
	return "tesseract"
}

func (p *Provider) ValidateConfig(config providers.Config) error {
	if len(p.Languages) == 0 || p.Languages[0] == "" {
		return fmt.Errorf("tesseract language not set")
	}
	return nil
}

func (p *Provider) Recognize(ctx context.Context, crop image.Image) ([]overlay.RawLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, crop, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if p.TessdataPath != "" {
		if err := client.SetTessdataPrefix(p.TessdataPath); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(p.Languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(encoded.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	return linesFromBoxes(boxes), nil
}

// linesFromBoxes converts Tesseract text lines to raw lines. Tesseract puts
// spaces between CJK glyphs; they are removed.
func linesFromBoxes(boxes []gosseract.BoundingBox) []overlay.RawLine {
	lines := make([]overlay.RawLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), "")
		if text == "" {
			continue
		}
		lines = append(lines, overlay.RawLine{
			Text:  text,
			Poly:  geometry.BoxPolygon(overlay.BoxFromRect(b.Box)),
			Score: b.Confidence / 100.0,
		})
	}
	return lines
}
