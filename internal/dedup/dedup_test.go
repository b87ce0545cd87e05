package dedup_test

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/surveyscribe/internal/dedup"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

func TestNormalise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"• Worcester Bosch 35kW boiler will be installed;", "worcester bosch 35kw boiler installed"},
		{"  The   FLUE, is   vertical!  ", "flue vertical"},
		{"", ""},
		{"ﬁlling loop", "filling loop"}, // NFKC folds the ligature
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := dedup.Normalise(tt.in); got != tt.want {
				t.Errorf("Normalise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	a := dedup.Tokens("worcester bosch boiler")
	b := dedup.Tokens("worcester bosch combi")
	if got := dedup.Jaccard(a, b); got != 0.5 {
		t.Errorf("Jaccard = %v, want 0.5", got)
	}
	if got := dedup.Jaccard(nil, nil); got != 0 {
		t.Errorf("Jaccard(empty, empty) = %v, want 0", got)
	}
}

func TestEquivalent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"exact after normalising", "Flue is vertical.", "flue IS vertical", true},
		{"containment", "Magnetic filter", "Fit a magnetic filter on the return", true},
		{"near duplicate", "Worcester Bosch 35kW boiler will be installed", "A 35kW Worcester Bosch boiler is recommended", true},
		{"different topics", "Loft ladder needed", "Customer works from home", false},
		{"no partial word containment", "flue", "fluent speaker", false},
		{"empty pair", "", "  ", true},
		{"empty vs text", "", "boiler", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := dedup.Equivalent(tt.a, tt.b, dedup.DefaultThreshold); got != tt.want {
				t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	t.Parallel()

	for _, in := range []float64{0, -1, 1.5} {
		if got := dedup.Threshold(in); got != dedup.DefaultThreshold {
			t.Errorf("Threshold(%v) = %v, want default", in, got)
		}
	}
	if got := dedup.Threshold(0.8); got != 0.8 {
		t.Errorf("Threshold(0.8) = %v", got)
	}
}

func TestDedupe_KeepsLongestInFirstPosition(t *testing.T) {
	t.Parallel()

	in := []string{
		"• Magnetic filter;",
		"• Flue is horizontal;",
		"• Fit a magnetic filter on the return;",
	}
	got := dedup.Dedupe(in, dedup.DefaultThreshold)
	want := []string{"• Fit a magnetic filter on the return;", "• Flue is horizontal;"}
	if !slices.Equal(got, want) {
		t.Errorf("Dedupe = %q, want %q", got, want)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	t.Parallel()

	in := []string{
		"Worcester Bosch 35kW boiler will be installed",
		"A 35kW Worcester Bosch boiler is recommended",
		"Condensate to run internally",
		"condensate to run internally to the kitchen waste",
		"Loft ladder required",
	}
	once := dedup.Dedupe(in, dedup.DefaultThreshold)
	twice := dedup.Dedupe(once, dedup.DefaultThreshold)
	if !slices.Equal(once, twice) {
		t.Errorf("Dedupe not idempotent:\nonce  %q\ntwice %q", once, twice)
	}
	if len(once) != 3 {
		t.Errorf("len = %d, want 3: %q", len(once), once)
	}
}

func TestDedupe_Placeholder(t *testing.T) {
	t.Parallel()

	t.Run("dropped when real content exists", func(t *testing.T) {
		t.Parallel()
		got := dedup.Dedupe([]string{"• No additional notes;", "• Loft ladder needed;"}, 0)
		if !slices.Equal(got, []string{"• Loft ladder needed;"}) {
			t.Errorf("got %q", got)
		}
	})
	t.Run("sole content otherwise", func(t *testing.T) {
		t.Parallel()
		got := dedup.Dedupe([]string{"No additional notes.", "no additional notes"}, 0)
		if !slices.Equal(got, []string{notes.Placeholder}) {
			t.Errorf("got %q", got)
		}
	})
	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		if got := dedup.Dedupe(nil, 0); got != nil {
			t.Errorf("got %q, want nil", got)
		}
	})
}

func TestMerge(t *testing.T) {
	t.Parallel()

	existing := []string{"• Flue is horizontal;", "• Condensate to run internally;"}
	incoming := []string{
		"• Flue is horizontal;",
		"• Condensate to run internally to the kitchen waste;",
		"• Loft ladder required;",
	}
	got := dedup.Merge(existing, incoming, dedup.DefaultThreshold)
	want := []string{
		"• Flue is horizontal;",
		"• Condensate to run internally to the kitchen waste;",
		"• Loft ladder required;",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Merge = %q, want %q", got, want)
	}

	again := dedup.Merge(got, incoming, dedup.DefaultThreshold)
	if !slices.Equal(again, got) {
		t.Errorf("re-merge changed content:\nfirst  %q\nsecond %q", got, again)
	}
}

func TestMerge_SelfIsNoOp(t *testing.T) {
	t.Parallel()

	x := dedup.Dedupe([]string{
		"• Gas meter is external;",
		"• Customer works from home;",
		"• Existing back boiler to be removed;",
	}, dedup.DefaultThreshold)
	if got := dedup.Merge(x, x, dedup.DefaultThreshold); !slices.Equal(got, x) {
		t.Errorf("Merge(x, x) = %q, want %q", got, x)
	}
}

func TestMerge_PlaceholderReplacedByContent(t *testing.T) {
	t.Parallel()

	got := dedup.Merge([]string{notes.Placeholder}, []string{"• Scaffold needed;"}, 0)
	if !slices.Equal(got, []string{"• Scaffold needed;"}) {
		t.Errorf("got %q", got)
	}
	got = dedup.Merge([]string{notes.Placeholder}, nil, 0)
	if !slices.Equal(got, []string{notes.Placeholder}) {
		t.Errorf("got %q", got)
	}
}

// distinctLines returns n lines that share too few tokens to be
// near-duplicates of each other.
func distinctLines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("• Boiler note %d fitting%d bracket%d;", i, i, i)
	}
	return out
}

func TestMerge_LargeDistinctInput(t *testing.T) {
	t.Parallel()

	lines := distinctLines(2000)
	start := time.Now()
	got := dedup.Merge(lines[:500], lines, dedup.DefaultThreshold)
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Merge of %d lines took %v", len(lines), elapsed)
	}
	if !slices.Equal(got, lines) {
		t.Errorf("Merge kept %d lines, want %d in input order", len(got), len(lines))
	}
}

func TestMerge_ReplacementChainsCollapse(t *testing.T) {
	t.Parallel()

	// The incoming line replaces the first kept line and then also covers
	// the second, which was unrelated to the first.
	existing := []string{"• Flue terminal rear wall;", "• Above the kitchen window;"}
	incoming := []string{"• Flue terminal rear wall above the kitchen window;"}
	got := dedup.Merge(existing, incoming, dedup.DefaultThreshold)
	if want := incoming; !slices.Equal(got, want) {
		t.Errorf("Merge = %q, want %q", got, want)
	}
}

func BenchmarkDedupe(b *testing.B) {
	lines := distinctLines(2000)
	b.ResetTimer()
	for range b.N {
		dedup.Dedupe(lines, dedup.DefaultThreshold)
	}
}

func BenchmarkMerge(b *testing.B) {
	lines := distinctLines(2000)
	b.ResetTimer()
	for range b.N {
		dedup.Merge(lines[:500], lines, dedup.DefaultThreshold)
	}
}
