// Package textblock groups split bubbles back together and puts blocks in
// reading order.
package textblock

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultMaxDX = 30
	DefaultMaxDY = 20
)

// Grouper merges blocks that a detector split out of a single bubble.
// Thresholds are in native capture pixels.
type Grouper struct {
	MaxDX int
	MaxDY int
}

func NewGrouper() Grouper {
	return Grouper{MaxDX: DefaultMaxDX, MaxDY: DefaultMaxDY}
}

// Scaled returns the grouper adjusted for a frame upscaled by scale.
func (g Grouper) Scaled(scale float64) Grouper {
	if scale <= 0 {
		return g
	}
	return Grouper{
		MaxDX: int(math.Round(float64(g.MaxDX) * scale)),
		MaxDY: int(math.Round(float64(g.MaxDY) * scale)),
	}
}

// joins reports whether b continues the group whose last member is a
func (g Grouper) joins(a, b overlay.TextBlock) bool {
	return abs(a.Box.X1-b.Box.X1) <= g.MaxDX && abs(b.Box.Y1-a.Box.Y2) <= g.MaxDY
}

// Group greedily assigns each block to the first group whose most recently
// added member it joins. Blocks are visited in a canonical order so the
// result does not depend on input order.
func (g Grouper) Group(blocks []overlay.TextBlock) []overlay.TextBlock {
	sorted := slices.Clone(blocks)
	slices.SortStableFunc(sorted, canonical)

	var groups [][]overlay.TextBlock
	for _, b := range sorted {
		placed := false
		for i, members := range groups {
			if g.joins(members[len(members)-1], b) {
				groups[i] = append(members, b)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []overlay.TextBlock{b})
		}
	}

	merged := make([]overlay.TextBlock, 0, len(groups))
	for _, members := range groups {
		merged = append(merged, mergeGroup(members))
	}
	return merged
}

func mergeGroup(members []overlay.TextBlock) overlay.TextBlock {
	if len(members) == 1 {
		return members[0]
	}

	slices.SortStableFunc(members, func(a, b overlay.TextBlock) int {
		return cmp.Compare(a.Box.Y1, b.Box.Y1)
	})

	var text strings.Builder
	scores := make([]float64, len(members))
	box := members[0].Box
	vertical := 0
	for i, m := range members {
		text.WriteString(m.Text)
		scores[i] = m.Confidence
		box = box.Union(m.Box)
		if m.Orientation == overlay.Vertical {
			vertical++
		}
	}

	orientation := overlay.Horizontal
	if vertical*2 > len(members) {
		orientation = overlay.Vertical
	}

	return overlay.TextBlock{
		Text:        text.String(),
		Box:         box,
		Confidence:  stat.Mean(scores, nil),
		Orientation: orientation,
	}
}

// canonical is a total order over blocks used before greedy grouping
func canonical(a, b overlay.TextBlock) int {
	return cmp.Or(
		cmp.Compare(a.Box.X1, b.Box.X1),
		cmp.Compare(a.Box.Y1, b.Box.Y1),
		cmp.Compare(a.Box.X2, b.Box.X2),
		cmp.Compare(a.Box.Y2, b.Box.Y2),
		strings.Compare(a.Text, b.Text),
		cmp.Compare(a.Confidence, b.Confidence),
		cmp.Compare(a.Orientation, b.Orientation),
	)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
