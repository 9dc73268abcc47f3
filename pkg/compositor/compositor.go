// Package compositor turns translated blocks into drawable overlay elements
// and keeps a render surface in sync with the latest cycle.
package compositor

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/geometry"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/google/uuid"
)

// Pair is a block with its translation. Pairs are 1:1 and in reading order.
type Pair struct {
	Block       overlay.TextBlock
	Translation string
}

// Element is one drawable translated bubble
type Element struct {
	ID string
	// Box is in frame buffer pixels, Screen in logical screen pixels
	Box    overlay.Box
	Screen overlay.Box
	Text   string
	Image  image.Image
}

// Surface displays elements. Draw replaces any element with the same id.
// Implementations need not be safe for concurrent use; the compositor
// serializes calls.
type Surface interface {
	Draw(el Element) error
	Remove(id string) error
	Status(msg string) error
}

// Backdrop is implemented by surfaces that paint over the captured frame
type Backdrop interface {
	SetBackdrop(img image.Image)
}

// Flusher is implemented by surfaces that batch changes
type Flusher interface {
	Flush() error
}

// Compositor owns what the surface currently shows
type Compositor struct {
	surface Surface
	style   *Style

	mu      sync.Mutex
	shown   map[string]Element
	frame   *overlay.Frame
	// drawnOn is the frame the shown element images were cut from
	drawnOn *overlay.Frame
	pairs   []Pair
	visible bool
}

func New(surface Surface, style *Style) *Compositor {
	if style == nil {
		style = DefaultStyle()
	}
	return &Compositor{
		surface: surface,
		style:   style,
		shown:   make(map[string]Element),
		visible: true,
	}
}

// ElementID is stable for the same box and translation
func ElementID(box overlay.Box, translation string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(box.String()+"\x00"+translation)).String()
}

// Render makes the surface show exactly pairs over frame, or nothing when
// the overlay is hidden. Pairs with an empty translation are not drawn.
func (c *Compositor) Render(frame *overlay.Frame, pairs []Pair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
	c.pairs = pairs
	return c.apply()
}

// Clear removes every element and forgets the last snapshot
func (c *Compositor) Clear() error {
	return c.Render(nil, nil)
}

// SetVisible shows or hides the last rendered snapshot without re-running
// the pipeline
func (c *Compositor) SetVisible(visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = visible
	return c.apply()
}

// Visible reports whether elements are currently emitted
func (c *Compositor) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Status forwards a one-line message to the surface
func (c *Compositor) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.surface.Status(msg); err != nil {
		slog.Warn("Failed to show status", "status", msg, "err", err)
	}
	c.flush()
}

// Shown returns the ids currently on the surface, sorted
func (c *Compositor) Shown() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.shown))
	for id := range c.shown {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Compositor) apply() error {
	desired := c.desired()

	if bd, ok := c.surface.(Backdrop); ok && c.frame != nil {
		bd.SetBackdrop(c.frame.Raw)
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for id := range c.shown {
		if _, ok := desired[id]; ok {
			continue
		}
		keep(c.surface.Remove(id))
		delete(c.shown, id)
	}

	// Bubble images carry the frame's pixels, so a new frame redraws all.
	redraw := c.frame != c.drawnOn
	ids := make([]string, 0, len(desired))
	for id := range desired {
		if _, ok := c.shown[id]; !ok || redraw {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		el := desired[id]
		el.Image = c.style.RenderBubble(c.frame.Raw, el.Box, el.Text)
		if err := c.surface.Draw(el); err != nil {
			keep(fmt.Errorf("failed to draw element %s: %w", id, err))
			delete(c.shown, id)
			continue
		}
		c.shown[id] = el
	}
	if len(c.shown) > 0 {
		c.drawnOn = c.frame
	} else {
		c.drawnOn = nil
	}

	keep(c.flush())
	return firstErr
}

func (c *Compositor) desired() map[string]Element {
	desired := make(map[string]Element)
	if !c.visible || c.frame == nil {
		return desired
	}
	bounds := c.frame.Bounds()
	for _, p := range c.pairs {
		if p.Translation == "" {
			continue
		}
		box := geometry.Clamp(p.Block.Box, bounds)
		if !box.Valid() {
			continue
		}
		id := ElementID(box, p.Translation)
		desired[id] = Element{
			ID:     id,
			Box:    box,
			Screen: geometry.ToScreenSpace(box, c.frame),
			Text:   p.Translation,
		}
	}
	return desired
}

func (c *Compositor) flush() error {
	if f, ok := c.surface.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
