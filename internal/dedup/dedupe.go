package dedup

import "strings"

// Dedupe removes exact, containment and near-duplicate lines from lines.
//
// Lines are scanned left to right. For each line not yet consumed, every
// later equivalent line is consumed and the longest variant of the group is
// kept at the position of the first member. When a longer variant replaced
// a group's first member the scan repeats, so the result contains no
// equivalent pair and Dedupe is idempotent.
//
// The placeholder line never takes part in comparisons. It is dropped when
// any real line survives and is returned alone when nothing else exists.
// Blank lines are dropped.
func Dedupe(lines []string, threshold float64) []string {
	real, sawPlaceholder := splitPlaceholder(lines)
	if len(real) == 0 {
		if sawPlaceholder {
			return placeholderOnly()
		}
		return nil
	}
	return texts(dedupe(prepareAll(real), Threshold(threshold)))
}

func dedupe(lines []line, threshold float64) []line {
	for {
		next, replaced := collapse(lines, threshold)
		if !replaced {
			return next
		}
		lines = next
	}
}

// collapse performs one left-to-right grouping pass. It reports whether any
// group kept a member other than its first; only then can the output hold
// an equivalent pair.
func collapse(lines []line, threshold float64) ([]line, bool) {
	consumed := make([]bool, len(lines))
	out := make([]line, 0, len(lines))
	replaced := false
	for i, anchor := range lines {
		if consumed[i] {
			continue
		}
		best := anchor
		for j := i + 1; j < len(lines); j++ {
			if consumed[j] || !equivalent(anchor, lines[j], threshold) {
				continue
			}
			consumed[j] = true
			if lines[j].size > best.size {
				best = lines[j]
				replaced = true
			}
		}
		out = append(out, best)
	}
	return out, replaced
}

// splitPlaceholder trims lines, drops blanks and placeholder lines, and
// reports whether a placeholder was seen.
func splitPlaceholder(lines []string) ([]string, bool) {
	out := make([]string, 0, len(lines))
	seen := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		switch {
		case l == "":
		case IsPlaceholder(l):
			seen = true
		default:
			out = append(out, l)
		}
	}
	return out, seen
}
