package textblock

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
)

// Policy selects the reading order applied to every block of a frame
type Policy string

const (
	// RightToLeft reads columns from the right edge, top to bottom within a
	// column. This is manga order.
	RightToLeft Policy = "rtl"
	// LeftToRight reads from the left edge, top to bottom.
	LeftToRight Policy = "ltr"
)

// ParsePolicy accepts "rtl" or "ltr" in any case
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case RightToLeft, LeftToRight:
		return p, nil
	case "":
		return RightToLeft, nil
	default:
		return "", fmt.Errorf("unknown reading order %q", s)
	}
}

// Sort returns blocks in reading order. Ties on the primary keys fall back to
// x2, y2 and text so the order is total.
func Sort(blocks []overlay.TextBlock, policy Policy) []overlay.TextBlock {
	sorted := slices.Clone(blocks)
	slices.SortStableFunc(sorted, func(a, b overlay.TextBlock) int {
		primary := cmp.Compare(b.Box.X1, a.Box.X1)
		if policy == LeftToRight {
			primary = -primary
		}
		return cmp.Or(
			primary,
			cmp.Compare(a.Box.Y1, b.Box.Y1),
			cmp.Compare(a.Box.X2, b.Box.X2),
			cmp.Compare(a.Box.Y2, b.Box.Y2),
			strings.Compare(a.Text, b.Text),
		)
	})
	return sorted
}
