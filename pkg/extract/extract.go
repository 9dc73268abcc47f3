// Package extract turns detected regions into text blocks: one OCR call per
// region, orientation correction, line filtering and merge.
package extract

import (
	"context"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/geometry"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultMinLineScore  = 0.5
	DefaultVerticalRatio = 1.2
	DefaultConcurrency   = 4
)

// Engine merges OCR lines of each region into a TextBlock
type Engine struct {
	Recognizer    providers.Recognizer
	MinLineScore  float64
	VerticalRatio float64
	Concurrency   int
}

// New creates an engine with default thresholds
func New(r providers.Recognizer) *Engine {
	return &Engine{
		Recognizer:    r,
		MinLineScore:  DefaultMinLineScore,
		VerticalRatio: DefaultVerticalRatio,
		Concurrency:   DefaultConcurrency,
	}
}

// IsVertical reports whether a crop of w x h should be read as vertical text
func (e *Engine) IsVertical(w, h int) bool {
	return float64(h) > e.VerticalRatio*float64(w)
}

// Extract runs OCR once on region and merges the surviving lines. It returns
// (nil, nil) when no line survives filtering.
func (e *Engine) Extract(ctx context.Context, region overlay.Region) (*overlay.TextBlock, error) {
	b := region.Crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, overlay.NewInvalidGeometryError("extract", "region %d has empty crop %dx%d", region.ID, w, h)
	}

	orientation := overlay.Horizontal
	crop := region.Crop
	if e.IsVertical(w, h) {
		orientation = overlay.Vertical
		rotated, err := geometry.RotateCrop(crop)
		if err != nil {
			return nil, err
		}
		crop = rotated
	}

	lines, err := e.recognize(ctx, region.ID, crop)
	if err != nil {
		return nil, err
	}

	type kept struct {
		text  string
		box   overlay.Box
		score float64
	}
	cropBox := overlay.Box{X2: w, Y2: h}
	survivors := make([]kept, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" || line.Score < e.MinLineScore {
			slog.Debug("Dropping OCR line", "region", line.RegionID, "text", text, "score", line.Score)
			continue
		}

		box := geometry.PolygonBox(line.Poly)
		if orientation == overlay.Vertical {
			if box, err = geometry.UnrotateBox(box, h); err != nil {
				return nil, err
			}
		}
		box = geometry.Clamp(box, cropBox)
		if !box.Valid() {
			slog.Debug("Dropping line outside crop", "region", line.RegionID, "text", text)
			continue
		}
		survivors = append(survivors, kept{text: text, box: box, score: line.Score})
	}

	if len(survivors) == 0 {
		return nil, nil
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].box.Y1 < survivors[j].box.Y1
	})

	var text strings.Builder
	scores := make([]float64, len(survivors))
	union := survivors[0].box
	for i, s := range survivors {
		text.WriteString(s.text)
		scores[i] = s.score
		union = union.Union(s.box)
	}

	return &overlay.TextBlock{
		Text:        text.String(),
		Box:         geometry.ToFrameSpace(union, image.Pt(region.Box.X1, region.Box.Y1)),
		Confidence:  stat.Mean(scores, nil),
		Orientation: orientation,
	}, nil
}

// recognize runs OCR on crop and tags every line with the region it came from
func (e *Engine) recognize(ctx context.Context, regionID int, crop image.Image) ([]overlay.RawLine, error) {
	lines, err := e.Recognizer.Recognize(ctx, crop)
	if err != nil {
		return nil, overlay.NewAdapterFailureError("ocr "+e.Recognizer.Name(), err)
	}
	tagged := make([]overlay.RawLine, len(lines))
	for i, line := range lines {
		line.RegionID = regionID
		tagged[i] = line
	}
	return tagged, nil
}

// ExtractAll extracts every region concurrently. Failed regions are logged
// and skipped. Blocks come back in region order.
func (e *Engine) ExtractAll(ctx context.Context, regions []overlay.Region) []overlay.TextBlock {
	results := make([]*overlay.TextBlock, len(regions))

	var g errgroup.Group
	g.SetLimit(max(1, e.Concurrency))
	for i, region := range regions {
		g.Go(func() error {
			block, err := e.Extract(ctx, region)
			if err != nil {
				slog.Warn("Region extraction failed", "region", region.ID, "code", overlay.CodeOf(err), "err", err)
				return nil
			}
			results[i] = block
			return nil
		})
	}
	_ = g.Wait()

	blocks := make([]overlay.TextBlock, 0, len(regions))
	for _, block := range results {
		if block != nil {
			blocks = append(blocks, *block)
		}
	}

	slog.Info("Extraction complete", "regions", len(regions), "blocks", len(blocks))
	return blocks
}
