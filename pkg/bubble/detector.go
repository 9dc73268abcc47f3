// Package bubble is a model-free speech bubble detector. It finds glyph-sized
// dark connected components and clusters the ones close enough to belong to
// the same block of text.
package bubble

import (
	"context"
	"image"
	"log/slog"
	"sort"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
)

// Detector implements providers.Detector without an external model
type Detector struct {
	// Luminance below Threshold counts as ink
	Threshold uint8
	// Components whose padded boxes touch within Gap pixels are clustered
	Gap int
	// Clusters with fewer glyphs than MinGlyphs are discarded as noise
	MinGlyphs int
}

// New creates a detector with defaults tuned for 2x upscaled manga pages
func New() *Detector {
	return &Detector{Threshold: 128, Gap: 24, MinGlyphs: 2}
}

func (d *Detector) Name() string {
	return "heuristic"
}

type component struct {
	box    overlay.Box
	glyphs int
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]providers.Detection, error) {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()

	glyphs := findGlyphComponents(ctx, gray, d.Threshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clusters := clusterComponents(glyphs, d.Gap)

	detections := make([]providers.Detection, 0, len(clusters))
	for _, c := range clusters {
		if c.glyphs < d.MinGlyphs {
			continue
		}
		box := c.box.Offset(b.Min.X, b.Min.Y)
		detections = append(detections, providers.Detection{
			Box:        box,
			Confidence: confidence(c.glyphs),
		})
	}

	slog.Debug("Heuristic detection completed", "glyphs", len(glyphs), "clusters", len(clusters), "bubbles", len(detections))
	return detections, nil
}

// confidence grows with the number of glyphs in a cluster
func confidence(glyphs int) float64 {
	return min(0.95, 0.3+0.05*float64(glyphs))
}

func findGlyphComponents(ctx context.Context, img *image.NRGBA, threshold uint8) []component {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	visited := make([]bool, width*height)
	var components []component
	var stack []image.Point

	for y := 0; y < height; y++ {
		if y%64 == 0 && ctx.Err() != nil {
			return nil
		}
		for x := 0; x < width; x++ {
			if visited[y*width+x] || !isInkPixel(img, x, y, threshold) {
				continue
			}

			box := overlay.Box{X1: x, Y1: y, X2: x + 1, Y2: y + 1}
			visited[y*width+x] = true
			stack = append(stack[:0], image.Pt(x, y))
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				box = box.Union(overlay.Box{X1: p.X, Y1: p.Y, X2: p.X + 1, Y2: p.Y + 1})

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= width || ny >= height || visited[ny*width+nx] {
							continue
						}
						if isInkPixel(img, nx, ny, threshold) {
							visited[ny*width+nx] = true
							stack = append(stack, image.Pt(nx, ny))
						}
					}
				}
			}

			if isValidGlyphSize(box.Width(), box.Height(), width, height) {
				components = append(components, component{box: box, glyphs: 1})
			}
		}
	}

	return components
}

// isInkPixel reads the luminance of a grayscale NRGBA image at (x, y)
// relative to its bounds.
func isInkPixel(img *image.NRGBA, x, y int, threshold uint8) bool {
	return img.Pix[y*img.Stride+x*4] < threshold
}

func isValidGlyphSize(w, h, imgWidth, imgHeight int) bool {
	minSide := 3
	maxWidth := max(imgWidth/4, minSide)
	maxHeight := max(imgHeight/4, minSide)
	return w >= minSide && h >= minSide && w <= maxWidth && h <= maxHeight
}

// shouldMerge reports whether two boxes lie within gap pixels of each other
func shouldMerge(a, b overlay.Box, gap int) bool {
	return a.X1-gap < b.X2 && b.X1-gap < a.X2 && a.Y1-gap < b.Y2 && b.Y1-gap < a.Y2
}

// clusterComponents merges components until no two clusters are within gap
// of each other. Output is ordered top to bottom, then left to right.
func clusterComponents(components []component, gap int) []component {
	clusters := append([]component(nil), components...)

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if !shouldMerge(clusters[i].box, clusters[j].box, gap) {
					continue
				}
				clusters[i].box = clusters[i].box.Union(clusters[j].box)
				clusters[i].glyphs += clusters[j].glyphs
				clusters = append(clusters[:j], clusters[j+1:]...)
				merged = true
				j = i
			}
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].box.Y1 != clusters[j].box.Y1 {
			return clusters[i].box.Y1 < clusters[j].box.Y1
		}
		return clusters[i].box.X1 < clusters[j].box.X1
	})
	return clusters
}
