// Package transcript turns raw dictated text into atomic statements.
//
// A [Normaliser] first rewrites recurring speech-to-text errors (brand names,
// unit misreads, homophones) using ordered rules. [Segment] then splits the
// normalised text into statements on sentence boundaries and on soft cue
// phrases that open a new clause mid-sentence. Both steps are pure: the same
// input always produces the same output.
package transcript

import (
	"regexp"
	"strings"
)

// Statement is an atomic clause of transcript text. It is the unit the
// intent router classifies.
type Statement = string

var (
	hardBoundary = regexp.MustCompile(`[.!?]+\s+`)

	// softBoundary matches a comma or a spaced dash followed by a lead word.
	// Group 1 is the lead word, which starts the next statement.
	softBoundary = regexp.MustCompile(`(?i)(?:,|\s[-\x{2013}\x{2014}])\s*((?:so|which|we(?:'|\x{2019})ll|we will|then|need to|needs to|also|and then|plus|but)\b)`)
)

// Segment splits text into ordered, trimmed, non-empty statements. Empty
// input yields an empty (nil) slice.
func Segment(text string) []Statement {
	var out []Statement
	for _, sentence := range hardBoundary.Split(text, -1) {
		for _, part := range splitSoft(sentence) {
			part = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(part), ".!?"))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func splitSoft(sentence string) []string {
	matches := softBoundary.FindAllStringSubmatchIndex(sentence, -1)
	if len(matches) == 0 {
		return []string{sentence}
	}
	parts := make([]string, 0, len(matches)+1)
	start := 0
	for _, m := range matches {
		parts = append(parts, sentence[start:m[0]])
		start = m[2]
	}
	return append(parts, sentence[start:])
}
