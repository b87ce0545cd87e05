package dedup

import (
	"slices"
	"strings"
)

// line is a candidate with its comparison form computed once.
type line struct {
	text   string
	padded string   // " " + normalised + " ", for word-boundary containment
	size   int      // length of the normalised form
	tokens []string // sorted, unique
}

func prepare(s string) line {
	ws := words(s)
	norm := strings.Join(ws, " ")
	toks := slices.Clone(ws)
	slices.Sort(toks)
	return line{
		text:   s,
		padded: " " + norm + " ",
		size:   len(norm),
		tokens: slices.Compact(toks),
	}
}

func prepareAll(lines []string) []line {
	out := make([]line, len(lines))
	for i, s := range lines {
		out[i] = prepare(s)
	}
	return out
}

func texts(lines []line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text
	}
	return out
}

// equivalent is [Equivalent] over prepared lines. Containment of one
// normalised form in the other implies its token set is a subset, so the
// substring search only runs for subset pairs.
func equivalent(a, b line, threshold float64) bool {
	if a.size == 0 || b.size == 0 {
		return a.size == b.size
	}
	inter := intersect(a.tokens, b.tokens)
	if inter == len(a.tokens) || inter == len(b.tokens) {
		if strings.Contains(a.padded, b.padded) || strings.Contains(b.padded, a.padded) {
			return true
		}
	}
	if inter == 0 {
		return false
	}
	union := len(a.tokens) + len(b.tokens) - inter
	return float64(inter)/float64(union) >= threshold
}

// intersect counts the common elements of two sorted unique slices.
func intersect(a, b []string) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch c := strings.Compare(a[i], b[j]); {
		case c == 0:
			n++
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return n
}
