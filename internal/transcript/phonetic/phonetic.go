// Package phonetic snaps misheard product and brand names onto a known
// vocabulary using Double Metaphone codes and Jaro-Winkler similarity.
//
// A candidate window is compared only against vocabulary entries with the
// same number of words. Every aligned word pair must either share a Double
// Metaphone code or be a close Jaro-Winkler match, and the whole phrase must
// clear the phrase threshold. Aligning word by word keeps an ordinary word
// next to a brand name ("worcester boiler") from being swallowed by a
// two-word entry ("Worcester Bosch").
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhraseThreshold = 0.85
	defaultWordThreshold   = 0.90
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhraseThreshold sets the minimum Jaro-Winkler score between the whole
// window and the vocabulary entry. Default: 0.85.
func WithPhraseThreshold(t float64) Option {
	return func(m *Matcher) { m.phraseThreshold = t }
}

// WithWordThreshold sets the Jaro-Winkler score that lets an aligned word
// pair pass without a shared phonetic code. Default: 0.90.
func WithWordThreshold(t float64) Option {
	return func(m *Matcher) { m.wordThreshold = t }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phraseThreshold float64
	wordThreshold   float64
}

// New returns a [Matcher] with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phraseThreshold: defaultPhraseThreshold,
		wordThreshold:   defaultWordThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the vocabulary entry closest to word. When nothing clears
// the thresholds, corrected is word unchanged, confidence is 0 and matched
// is false.
func (m *Matcher) Match(word string, vocab []string) (corrected string, confidence float64, matched bool) {
	in := strings.Fields(strings.ToLower(word))
	if len(in) == 0 {
		return word, 0, false
	}
	full := strings.Join(in, " ")

	best, bestScore := "", 0.0
	for _, entry := range vocab {
		ev := strings.Fields(strings.ToLower(entry))
		if len(ev) != len(in) || !m.aligned(in, ev) {
			continue
		}
		score := matchr.JaroWinkler(full, strings.Join(ev, " "), false)
		if score >= m.phraseThreshold && score > bestScore {
			best, bestScore = entry, score
		}
	}
	if best == "" {
		return word, 0, false
	}
	return best, bestScore, true
}

func (m *Matcher) aligned(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if sharesCode(a[i], b[i]) {
			continue
		}
		if matchr.JaroWinkler(a[i], b[i], false) >= m.wordThreshold {
			continue
		}
		return false
	}
	return true
}

func sharesCode(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
