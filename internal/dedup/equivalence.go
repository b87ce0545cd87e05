// Package dedup implements the duplicate test and the merge primitives shared
// by intra-section cleanup and cross-submission merging.
//
// Two candidate lines are equivalent when their normalised forms are equal,
// when one normalised form contains the other, or when the Jaccard similarity
// of their token sets reaches a threshold. [Dedupe] and [Merge] are both built
// on [Equivalent] so the two paths cannot drift apart.
//
// All functions are pure and safe for concurrent use.
package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// DefaultThreshold is the Jaccard similarity at or above which two lines are
// considered near-duplicates.
const DefaultThreshold = 0.6

// stopWords are dropped before tokenising. Negations are deliberately absent.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "onto": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"will": {}, "would": {}, "shall": {}, "should": {}, "can": {}, "could": {},
	"has": {}, "have": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"we": {}, "well": {}, "i": {}, "you": {}, "they": {}, "there": {},
	"so": {}, "then": {}, "also": {}, "just": {}, "please": {}, "very": {},
	"some": {}, "any": {},
}

// Threshold clamps t into (0, 1], substituting [DefaultThreshold] for
// out-of-range values.
func Threshold(t float64) float64 {
	if t <= 0 || t > 1 {
		return DefaultThreshold
	}
	return t
}

// Normalise folds s to its comparison form: Unicode NFKC, lower case,
// punctuation replaced by spaces, stop-words removed and whitespace
// collapsed.
func Normalise(s string) string {
	return strings.Join(words(s), " ")
}

// Tokens returns the set of normalised tokens of s.
func Tokens(s string) map[string]struct{} {
	ws := words(s)
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Equivalent reports whether a and b describe the same thing: equal
// normalised text, containment of one normalised text in the other, or a
// token Jaccard similarity of at least threshold.
func Equivalent(a, b string, threshold float64) bool {
	return equivalent(prepare(a), prepare(b), Threshold(threshold))
}

// IsPlaceholder reports whether line is the "no additional notes"
// placeholder in any of its bullet or prose renderings.
func IsPlaceholder(line string) bool {
	var sb strings.Builder
	for _, r := range strings.ToLower(line) {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String() == "noadditionalnotes"
}

func words(s string) []string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// placeholderOnly returns the canonical placeholder line list.
func placeholderOnly() []string {
	return []string{notes.Placeholder}
}
