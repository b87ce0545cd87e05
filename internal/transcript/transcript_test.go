package transcript_test

import (
	"encoding/json"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/surveyscribe/internal/transcript"
	"github.com/MrWong99/surveyscribe/internal/transcript/phonetic"
)

func TestNormaliser_DefaultRewrites(t *testing.T) {
	t.Parallel()

	n := transcript.NewNormaliser(transcript.DefaultRewrites())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"brand", "fit a worcester bosh combi", "fit a Worcester Bosch combi"},
		{"kw with space", "a 35 kw boiler", "a 35kW boiler"},
		{"kay", "30 kay combi", "30kW combi"},
		{"kilowatts", "24 kilowatts", "24kW"},
		{"bare rating", "replace with a 30 combi", "replace with a 30kW combi"},
		{"condensate", "condense eight runs outside", "condensate runs outside"},
		{"flu becomes flue", "the flu exits at the rear", "the flue exits at the rear"},
		{"flu jab untouched", "customer had a flu jab", "customer had a flu jab"},
		{"flue untouched", "the flue is fine", "the flue is fine"},
		{"case insensitive", "VALIANT boiler", "Vaillant boiler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Normalise(tt.in); got != tt.want {
				t.Errorf("Normalise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormaliser_InvalidRuleSkipped(t *testing.T) {
	t.Parallel()

	n := transcript.NewNormaliser([]transcript.Rewrite{
		{Pattern: `(unclosed`, Replacement: "x"},
		{Pattern: `\bcat\b`, Replacement: "dog"},
	})
	if n.Len() != 1 {
		t.Fatalf("Len = %d, want 1", n.Len())
	}
	if got := n.Normalise("the cat sat"); got != "the dog sat" {
		t.Errorf("got %q", got)
	}
}

func TestNormaliser_RulesApplyInOrder(t *testing.T) {
	t.Parallel()

	n := transcript.NewNormaliser([]transcript.Rewrite{
		{Pattern: `alpha`, Replacement: "beta"},
		{Pattern: `beta`, Replacement: "gamma"},
	})
	if got := n.Normalise("alpha"); got != "gamma" {
		t.Errorf("got %q, want %q", got, "gamma")
	}
}

func TestNormaliser_Vocabulary(t *testing.T) {
	t.Parallel()

	n := transcript.NewNormaliser(nil,
		transcript.WithVocabulary(phonetic.New(), []string{"Worcester Bosch"}),
	)
	got := n.Normalise("fit a worcester bosh, then test")
	if got != "fit a Worcester Bosch, then test" {
		t.Errorf("got %q", got)
	}
}

func TestRewrite_Decode(t *testing.T) {
	t.Parallel()

	var fromJSON []transcript.Rewrite
	if err := json.Unmarshal([]byte(`[["a","b"],["flu","flue","jab"],{"pattern":"c","replacement":"d"}]`), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	want := []transcript.Rewrite{
		{Pattern: "a", Replacement: "b"},
		{Pattern: "flu", Replacement: "flue", UnlessFollowedBy: "jab"},
		{Pattern: "c", Replacement: "d"},
	}
	if !slices.Equal(fromJSON, want) {
		t.Errorf("json = %+v, want %+v", fromJSON, want)
	}

	var fromYAML []transcript.Rewrite
	src := "- [a, b]\n- [flu, flue, jab]\n- pattern: c\n  replacement: d\n"
	if err := yaml.Unmarshal([]byte(src), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !slices.Equal(fromYAML, want) {
		t.Errorf("yaml = %+v, want %+v", fromYAML, want)
	}

	var bad transcript.Rewrite
	if err := json.Unmarshal([]byte(`["only-one"]`), &bad); err == nil {
		t.Error("expected error for single-element array")
	}
}

func TestSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{
			"sentences",
			"Flue is horizontal. Gas meter is outside! Is there a loft?",
			[]string{"Flue is horizontal", "Gas meter is outside", "Is there a loft"},
		},
		{
			"soft boundary keeps lead word",
			"The boiler is in the kitchen, so we'll move it to the loft",
			[]string{"The boiler is in the kitchen", "so we'll move it to the loft"},
		},
		{
			"dash boundary",
			"Old tank in the loft - need to remove it",
			[]string{"Old tank in the loft", "need to remove it"},
		},
		{
			"decimal not split",
			"Run is 2.5 metres long.",
			[]string{"Run is 2.5 metres long"},
		},
		{
			"comma without lead word",
			"Radiators, pipes and valves stay",
			[]string{"Radiators, pipes and valves stay"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := transcript.Segment(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Segment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSegment_Deterministic(t *testing.T) {
	t.Parallel()

	in := "Okay. Fit a new combi, then cap the old pipes. Flue out the back - which needs a plume kit."
	first := transcript.Segment(in)
	for range 5 {
		if got := transcript.Segment(in); !slices.Equal(got, first) {
			t.Fatalf("Segment not deterministic: %q vs %q", got, first)
		}
	}
}
