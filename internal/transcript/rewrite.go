package transcript

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rewrite is a single ordered normalisation rule. Pattern is an RE2 regular
// expression matched case-insensitively; Replacement may reference capture
// groups with ${n}. When UnlessFollowedBy is set, a match is left untouched
// if the next word after it equals that word (case-insensitive), which
// stands in for the look-ahead RE2 lacks.
//
// A Rewrite decodes from either an object or a compact array
// ["pattern", "replacement"] / ["pattern", "replacement", "unless"].
type Rewrite struct {
	Pattern          string `json:"pattern" yaml:"pattern"`
	Replacement      string `json:"replacement" yaml:"replacement"`
	UnlessFollowedBy string `json:"unlessFollowedBy,omitempty" yaml:"unlessFollowedBy,omitempty"`
}

type rewriteFields Rewrite

// UnmarshalJSON implements [json.Unmarshaler].
func (r *Rewrite) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err == nil {
		return r.fromParts(parts)
	}
	var f rewriteFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("transcript: decode rewrite: %w", err)
	}
	*r = Rewrite(f)
	return nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (r *Rewrite) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var parts []string
		if err := value.Decode(&parts); err != nil {
			return fmt.Errorf("transcript: decode rewrite: %w", err)
		}
		return r.fromParts(parts)
	}
	var f rewriteFields
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("transcript: decode rewrite: %w", err)
	}
	*r = Rewrite(f)
	return nil
}

func (r *Rewrite) fromParts(parts []string) error {
	switch len(parts) {
	case 2:
		*r = Rewrite{Pattern: parts[0], Replacement: parts[1]}
	case 3:
		*r = Rewrite{Pattern: parts[0], Replacement: parts[1], UnlessFollowedBy: parts[2]}
	default:
		return fmt.Errorf("transcript: rewrite array needs 2 or 3 elements, got %d", len(parts))
	}
	return nil
}

// DefaultRewrites returns the built-in dictation corrections. The slice is
// freshly allocated on every call.
func DefaultRewrites() []Rewrite {
	return []Rewrite{
		// Brand names.
		{Pattern: `\bworcester\s+(?:bosh|boss|borsch|bosch)\b`, Replacement: "Worcester Bosch"},
		{Pattern: `\bwooster\s+bosch\b`, Replacement: "Worcester Bosch"},
		{Pattern: `\b(?:vis+e?man+|vies+man+|vi\s+man)\b`, Replacement: "Viessmann"},
		{Pattern: `\b(?:valiant|vaillante?)\b`, Replacement: "Vaillant"},
		{Pattern: `\b(?:backsy|baxy)\b`, Replacement: "Baxi"},
		{Pattern: `\bmagna\s*clean\b`, Replacement: "MagnaClean"},

		// Units. "35 kw", "35 kay", "35 kilowatts" -> "35kW".
		{Pattern: `\b(\d{1,3})\s*(?:kw|kws|kay|kilo\s*watts?)\b`, Replacement: "${1}kW"},
		// A bare output rating followed by a boiler word.
		{Pattern: `\b(\d{2})\s+(combi|boiler|system boiler|regular boiler|heat only)\b`, Replacement: "${1}kW ${2}"},

		// Technical terms.
		{Pattern: `\bcondense\s*(?:eight|ate)\b`, Replacement: "condensate"},
		{Pattern: `\bcondensing\s+pipe\b`, Replacement: "condensate pipe"},
		{Pattern: `\bpower\s+(?:flesh|flash|flushed)\b`, Replacement: "power flush"},
		{Pattern: `\bplum\s+kit\b`, Replacement: "plume kit"},
		{Pattern: `\bt\s*r\s*v'?s\b`, Replacement: "TRVs"},
		{Pattern: `\bflu\b`, Replacement: "flue", UnlessFollowedBy: "jab"},
	}
}
