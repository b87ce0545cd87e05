package dedup

// Merge folds incoming lines into existing lines for the same section.
//
// existing is deduplicated first. Each incoming line is then compared with
// every kept line: a line with no equivalent is appended; a line that is
// equivalent to a kept line replaces it in place only when it is longer.
// A final dedupe pass resolves chains, and runs only when a replacement
// happened.
//
// Merge(x, x) equals Dedupe(x), and re-merging the same incoming lines is a
// no-op: Merge(Merge(x, y), y) == Merge(x, y).
func Merge(existing, incoming []string, threshold float64) []string {
	threshold = Threshold(threshold)

	kept, existingPlaceholder := splitPlaceholder(existing)
	fresh, incomingPlaceholder := splitPlaceholder(incoming)
	if len(kept) == 0 && len(fresh) == 0 {
		if existingPlaceholder || incomingPlaceholder {
			return placeholderOnly()
		}
		return nil
	}

	out := dedupe(prepareAll(kept), threshold)
	replaced := false
	for _, l := range dedupe(prepareAll(fresh), threshold) {
		idx := -1
		for k, have := range out {
			if equivalent(have, l, threshold) {
				idx = k
				break
			}
		}
		switch {
		case idx < 0:
			out = append(out, l)
		case l.size > out[idx].size:
			out[idx] = l
			replaced = true
		}
	}
	if replaced {
		out = dedupe(out, threshold)
	}
	return texts(out)
}
