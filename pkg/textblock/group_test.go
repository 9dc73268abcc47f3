package textblock

import (
	"math"
	"reflect"
	"testing"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
)

func block(text string, x1, y1, x2, y2 int, conf float64) overlay.TextBlock {
	return overlay.TextBlock{Text: text, Box: overlay.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: conf}
}

func TestGrouper_Group(t *testing.T) {
	top := block("吾輩は", 100, 50, 160, 120, 0.9)
	bottom := block("猫である", 110, 130, 170, 200, 0.7)
	far := block("名前はまだ無い", 400, 50, 460, 200, 0.8)

	groups := NewGrouper().Group([]overlay.TextBlock{bottom, far, top})
	if len(groups) != 2 {
		t.Fatalf("Group() returned %d blocks, want 2: %+v", len(groups), groups)
	}

	merged := groups[0]
	if merged.Text != "吾輩は猫である" {
		t.Errorf("merged text = %q", merged.Text)
	}
	if want := (overlay.Box{X1: 100, Y1: 50, X2: 170, Y2: 200}); merged.Box != want {
		t.Errorf("merged box = %v, want %v", merged.Box, want)
	}
	if math.Abs(merged.Confidence-0.8) > 1e-9 {
		t.Errorf("merged confidence = %v, want 0.8", merged.Confidence)
	}
	if !reflect.DeepEqual(groups[1], far) {
		t.Errorf("singleton changed: %+v", groups[1])
	}
}

func TestGrouper_GroupAgainstLastMember(t *testing.T) {
	// c is close to a but not to b, the most recently added member of a's
	// group, so it starts its own group.
	a := block("a", 0, 0, 50, 40, 1)
	b := block("b", 25, 50, 80, 90, 1)
	c := block("c", 26, 45, 60, 60, 1)

	groups := Grouper{MaxDX: 30, MaxDY: 20}.Group([]overlay.TextBlock{a, b, c})
	texts := make([]string, len(groups))
	for i, g := range groups {
		texts[i] = g.Text
	}
	if !reflect.DeepEqual(texts, []string{"ab", "c"}) && !reflect.DeepEqual(texts, []string{"ac", "b"}) {
		t.Errorf("Group() texts = %v", texts)
	}
}

func TestGrouper_PermutationInvariant(t *testing.T) {
	blocks := []overlay.TextBlock{
		block("一", 100, 50, 160, 120, 0.9),
		block("二", 110, 130, 170, 200, 0.7),
		block("三", 120, 210, 170, 260, 0.6),
		block("四", 400, 50, 460, 200, 0.8),
	}
	want := NewGrouper().Group(blocks)

	permute(len(blocks), func(idx []int) {
		in := make([]overlay.TextBlock, len(idx))
		for i, j := range idx {
			in[i] = blocks[j]
		}
		if got := NewGrouper().Group(in); !reflect.DeepEqual(got, want) {
			t.Errorf("Group(%v) = %+v, want %+v", idx, got, want)
		}
	})
}

func TestGrouper_Scaled(t *testing.T) {
	g := NewGrouper().Scaled(2)
	if g.MaxDX != 60 || g.MaxDY != 40 {
		t.Errorf("Scaled(2) = %+v, want 60/40", g)
	}
	if g := NewGrouper().Scaled(0); g.MaxDX != 30 {
		t.Errorf("Scaled(0) = %+v, want unchanged", g)
	}
}

func TestGrouper_GroupEmpty(t *testing.T) {
	if got := NewGrouper().Group(nil); len(got) != 0 {
		t.Errorf("Group(nil) = %v", got)
	}
}

// permute calls fn with every permutation of 0..n-1 (Heap's algorithm)
func permute(n int, fn func([]int)) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			fn(append([]int(nil), idx...))
			return
		}
		for i := 0; i < k; i++ {
			generate(k - 1)
			if k%2 == 0 {
				idx[i], idx[k-1] = idx[k-1], idx[i]
			} else {
				idx[0], idx[k-1] = idx[k-1], idx[0]
			}
		}
	}
	generate(n)
}
