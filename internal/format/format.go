// Package format renders a section's accumulated text as semicolon-terminated
// bullet lines and as prose.
package format

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Bullet prefixes every rendered line.
const Bullet = "• "

var (
	// clauseBoundary splits general sections into independent clauses.
	clauseBoundary = regexp.MustCompile(`(?i)\s*[;,]\s*|\s+(?:and|but|also)\s+`)

	// routeCue marks a spatial transition in a pipe route. The cue word
	// starts the next step.
	routeCue = regexp.MustCompile(`(?i)\s+\b(from|through|under|up|down|into|past|along|across|behind|via|over|then)\b\s+`)

	// routeSeparator splits route text before cue-word splitting.
	routeSeparator = regexp.MustCompile(`\s*[;,]\s*`)

	fillers = []string{"then", "we'll", "we will", "please", "note that", "note", "also", "so", "and", "okay", "ok"}
)

// SplitClauses splits text on semicolons, commas and the conjunctions
// "and", "but" and "also". Empty clauses are dropped.
func SplitClauses(text string) []string {
	return nonEmpty(clauseBoundary.Split(text, -1))
}

// RouteSteps splits a pipe-route description into ordered steps at spatial
// cue words such as "from", "through" and "under".
func RouteSteps(text string) []string {
	var steps []string
	for _, part := range routeSeparator.Split(text, -1) {
		last := 0
		for _, m := range routeCue.FindAllStringSubmatchIndex(part, -1) {
			steps = append(steps, part[last:m[0]])
			last = m[2]
		}
		steps = append(steps, part[last:])
	}
	return nonEmpty(steps)
}

// Lines renders text as bullet lines. Route sections are split into route
// steps; every other section is split into clauses.
func Lines(text string, routeSection bool) []string {
	var parts []string
	if routeSection {
		parts = RouteSteps(text)
	} else {
		parts = SplitClauses(text)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := Clause(p); c != "" {
			out = append(out, Bullet+c+";")
		}
	}
	return out
}

// Clause cleans one clause: strips bullet markers, filler lead-ins and
// trailing punctuation and capitalises the first letter.
func Clause(s string) string {
	s = Unbullet(s)
	for {
		stripped := stripFiller(s)
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.TrimRightFunc(s, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	return capitalise(s)
}

// Unbullet removes a leading bullet marker and the trailing semicolon.
func Unbullet(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "•*-– \t")
	line = strings.TrimSuffix(line, ";")
	return strings.TrimSpace(line)
}

func stripFiller(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) })
	lower := strings.ToLower(s)
	for _, f := range fillers {
		if !strings.HasPrefix(lower, f) {
			continue
		}
		rest := s[len(f):]
		if rest == "" {
			return ""
		}
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsSpace(r) || r == ',' || r == ':' {
			return strings.TrimLeftFunc(rest, func(r rune) bool { return unicode.IsSpace(r) || r == ',' || r == ':' })
		}
	}
	return s
}

// Prose joins bullet lines into capitalised sentences.
func Prose(lines []string) string {
	sentences := make([]string, 0, len(lines))
	for _, l := range lines {
		c := strings.TrimRight(Unbullet(l), ".!?;, ")
		if c == "" {
			continue
		}
		sentences = append(sentences, capitalise(c)+".")
	}
	return strings.Join(sentences, " ")
}

// PlainText joins bullet lines with newlines.
func PlainText(lines []string) string {
	return strings.Join(lines, "\n")
}

// SplitPlainText is the inverse of [PlainText]: it returns the non-empty
// lines of text, each re-rendered as a bullet line.
func SplitPlainText(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if c := Clause(l); c != "" {
			out = append(out, Bullet+c+";")
		}
	}
	return out
}

// SplitProse breaks prose into sentences and renders each as a bullet line.
func SplitProse(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if c := Clause(s); c != "" {
			out = append(out, Bullet+c+";")
		}
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

func capitalise(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
