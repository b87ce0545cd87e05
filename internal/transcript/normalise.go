package transcript

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// NormaliserOption configures a [Normaliser].
type NormaliserOption func(*Normaliser)

// WithVocabulary enables a final pass that snaps misheard multi-word names
// onto the canonical spellings in vocab using m. A nil matcher or an empty
// vocabulary disables the pass.
func WithVocabulary(m VocabularyMatcher, vocab []string) NormaliserOption {
	return func(n *Normaliser) {
		n.matcher = m
		n.vocab = vocab
	}
}

// VocabularyMatcher resolves a word or n-gram to the closest vocabulary
// entry. It mirrors phonetic.Matcher so alternative matchers can be swapped
// in.
type VocabularyMatcher interface {
	Match(word string, vocab []string) (corrected string, confidence float64, matched bool)
}

type compiledRewrite struct {
	re     *regexp.Regexp
	repl   string
	unless string
}

// Normaliser applies ordered rewrite rules to fix recurring dictation
// errors before classification. It is read-only after construction and
// safe for concurrent use.
type Normaliser struct {
	rules   []compiledRewrite
	matcher VocabularyMatcher
	vocab   []string
}

// NewNormaliser compiles rules in order. A rule whose pattern does not
// compile is skipped with a warning; the remaining rules still apply.
func NewNormaliser(rules []Rewrite, opts ...NormaliserOption) *Normaliser {
	n := &Normaliser{rules: make([]compiledRewrite, 0, len(rules))}
	for i, r := range rules {
		if strings.TrimSpace(r.Pattern) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			slog.Warn("transcript: skipping invalid rewrite rule", "index", i, "pattern", r.Pattern, "err", err)
			continue
		}
		n.rules = append(n.rules, compiledRewrite{
			re:     re,
			repl:   r.Replacement,
			unless: strings.ToLower(strings.TrimSpace(r.UnlessFollowedBy)),
		})
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Len returns the number of rules that compiled successfully.
func (n *Normaliser) Len() int { return len(n.rules) }

// Normalise applies every rule once across the whole text, in order, so
// later rules see the output of earlier ones.
func (n *Normaliser) Normalise(text string) string {
	for _, r := range n.rules {
		text = r.apply(text)
	}
	if n.matcher != nil && len(n.vocab) > 0 {
		text = snapVocabulary(text, n.matcher, n.vocab)
	}
	return text
}

func (r compiledRewrite) apply(text string) string {
	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		if r.unless != "" && nextWord(text[m[1]:]) == r.unless {
			continue
		}
		sb.WriteString(text[last:m[0]])
		sb.Write(r.re.ExpandString(nil, r.repl, text, m))
		last = m[1]
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// nextWord returns the lower-cased leading word of s, skipping spaces.
func nextWord(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(s)
	}
	return strings.ToLower(s[:end])
}

// snapVocabulary walks the token stream and replaces the longest n-gram
// window that matches a vocabulary entry. Windows shorter than four
// characters are never snapped.
func snapVocabulary(text string, m VocabularyMatcher, vocab []string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}
	maxWords := 1
	for _, v := range vocab {
		if n := len(strings.Fields(v)); n > maxWords {
			maxWords = n
		}
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		maxN := min(maxWords, len(tokens)-i)
		consumed := 0
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			core, trail := splitTrailingPunct(window)
			if len(core) < 4 {
				continue
			}
			entry, _, ok := m.Match(core, vocab)
			if !ok {
				continue
			}
			out = append(out, entry+trail)
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}
	return strings.Join(out, " ")
}

func splitTrailingPunct(s string) (string, string) {
	core := strings.TrimRightFunc(s, unicode.IsPunct)
	return core, s[len(core):]
}
