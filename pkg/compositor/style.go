package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const minFontSize = 12

// Style controls how a translated bubble is drawn
type Style struct {
	BlurRadius float64
	Radius     int
	Fill       color.NRGBA
	Text       color.NRGBA
	Outline    color.NRGBA
	DebugBoxes bool

	font  *opentype.Font
	mu    sync.Mutex
	faces map[int]font.Face
}

// StyleOptions are the user-facing settings a Style is built from
type StyleOptions struct {
	FontPath     string
	BlurRadius   float64
	FillAlpha    uint8
	CornerRadius int
	FillColor    string
	TextColor    string
	OutlineColor string
	DebugBoxes   bool
}

// NewStyle parses colours and loads the font. An empty FontPath uses Go Regular.
func NewStyle(opts StyleOptions) (*Style, error) {
	data := goregular.TTF
	if opts.FontPath != "" {
		b, err := os.ReadFile(opts.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", opts.FontPath, err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	fill, err := ParseColor(opts.FillColor, opts.FillAlpha)
	if err != nil {
		return nil, err
	}
	text, err := ParseColor(opts.TextColor, 255)
	if err != nil {
		return nil, err
	}
	outline, err := ParseColor(opts.OutlineColor, 255)
	if err != nil {
		return nil, err
	}

	return &Style{
		BlurRadius: opts.BlurRadius,
		Radius:     opts.CornerRadius,
		Fill:       fill,
		Text:       text,
		Outline:    outline,
		DebugBoxes: opts.DebugBoxes,
		font:       f,
		faces:      make(map[int]font.Face),
	}, nil
}

// DefaultStyle is white fill at alpha 180, white text with a black outline
func DefaultStyle() *Style {
	s, err := NewStyle(StyleOptions{
		BlurRadius:   5,
		FillAlpha:    180,
		CornerRadius: 10,
		FillColor:    "#ffffff",
		TextColor:    "#ffffff",
		OutlineColor: "#000000",
	})
	if err != nil {
		panic(err)
	}
	return s
}

// ParseColor reads a #rrggbb hex colour
func ParseColor(hex string, alpha uint8) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

func (s *Style) face(size int) font.Face {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(s.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// Parsed fonts only fail here on invalid options.
		panic(err)
	}
	s.faces[size] = f
	return f
}

// FontSize is the starting text size for a bubble of height h
func FontSize(h int) int {
	return max(minFontSize, int(float64(h)*0.2))
}

// RenderBubble draws the translation over the blurred bubble patch of raw
// at box. The result has the size of box.
func (s *Style) RenderBubble(raw image.Image, box overlay.Box, text string) *image.RGBA {
	w, h := box.Width(), box.Height()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	patch := imaging.Crop(raw, box.Rect())
	if s.BlurRadius > 0 {
		draw.Draw(dst, dst.Bounds(), blur.Gaussian(patch, s.BlurRadius), image.Point{}, draw.Src)
	} else {
		draw.Draw(dst, dst.Bounds(), patch, image.Point{}, draw.Src)
	}

	mask := &roundedRect{rect: dst.Bounds(), radius: s.Radius}
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(s.Fill), image.Point{}, mask, image.Point{}, draw.Over)

	margin := max(2, w/20)
	face, lines := s.layout(text, w-2*margin, h-2*margin, FontSize(h))
	drawCentered(dst, face, lines, s.Text, s.Outline)

	if s.DebugBoxes {
		Outline(dst, []overlay.Box{{X2: w, Y2: h}}, color.NRGBA{B: 255, A: 255}, 2)
	}
	return dst
}

// layout wraps text to maxWidth, shrinking from size towards the minimum
// until the lines fit maxHeight.
func (s *Style) layout(text string, maxWidth, maxHeight, size int) (font.Face, []string) {
	for {
		face := s.face(size)
		lines := Wrap(face, text, maxWidth)
		lineHeight := face.Metrics().Height.Ceil()
		if len(lines)*lineHeight <= maxHeight || size <= minFontSize {
			return face, lines
		}
		size--
	}
}

// Wrap breaks text into lines no wider than maxWidth. Words longer than a
// line are split between runes.
func Wrap(face font.Face, text string, maxWidth int) []string {
	fits := func(s string) bool {
		return font.MeasureString(face, s).Ceil() <= maxWidth
	}

	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if fits(candidate) {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for word != "" && !fits(word) {
			runes := []rune(word)
			cut := 1
			for cut < len(runes) && fits(string(runes[:cut+1])) {
				cut++
			}
			lines = append(lines, string(runes[:cut]))
			word = string(runes[cut:])
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func drawCentered(dst draw.Image, face font.Face, lines []string, fill, outline color.Color) {
	b := dst.Bounds()
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	top := (b.Dy() - lineHeight*len(lines)) / 2

	d := &font.Drawer{Dst: dst, Face: face}
	for i, line := range lines {
		width := d.MeasureString(line).Ceil()
		x := (b.Dx() - width) / 2
		y := top + i*lineHeight + metrics.Ascent.Ceil()

		d.Src = image.NewUniform(outline)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				d.Dot = fixed.P(x+dx, y+dy)
				d.DrawString(line)
			}
		}
		d.Src = image.NewUniform(fill)
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}

// Outline strokes each box onto dst
func Outline(dst draw.Image, boxes []overlay.Box, c color.Color, thickness int) {
	src := image.NewUniform(c)
	for _, b := range boxes {
		r := b.Rect()
		for _, edge := range []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
			image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
			image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
		} {
			draw.Draw(dst, edge.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
		}
	}
}

// roundedRect is an alpha mask that is opaque inside a rectangle with
// rounded corners
type roundedRect struct {
	rect   image.Rectangle
	radius int
}

func (r *roundedRect) ColorModel() color.Model { return color.AlphaModel }
func (r *roundedRect) Bounds() image.Rectangle { return r.rect }

func (r *roundedRect) At(x, y int) color.Color {
	if !image.Pt(x, y).In(r.rect) {
		return color.Alpha{}
	}
	rad := min(r.radius, r.rect.Dx()/2, r.rect.Dy()/2)
	if rad <= 0 {
		return color.Alpha{A: 255}
	}

	// Distance from the nearest corner centre, only inside corner squares.
	cx, cy := -1.0, -1.0
	px, py := float64(x)+0.5, float64(y)+0.5
	switch {
	case x < r.rect.Min.X+rad:
		cx = float64(r.rect.Min.X + rad)
	case x >= r.rect.Max.X-rad:
		cx = float64(r.rect.Max.X - rad)
	}
	switch {
	case y < r.rect.Min.Y+rad:
		cy = float64(r.rect.Min.Y + rad)
	case y >= r.rect.Max.Y-rad:
		cy = float64(r.rect.Max.Y - rad)
	}
	if cx < 0 || cy < 0 {
		return color.Alpha{A: 255}
	}
	if math.Hypot(px-cx, py-cy) > float64(rad) {
		return color.Alpha{}
	}
	return color.Alpha{A: 255}
}
