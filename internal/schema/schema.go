// Package schema resolves arbitrary section definitions into the fixed,
// ordered canonical section list and maps variant spellings onto it.
package schema

import (
	"sort"
	"strings"
	"unicode"

	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// LegacyInternalName is an internal-only section that older schema sources
// still carry. It is never part of a resolved schema.
const LegacyInternalName = "Internal notes"

// FuturePlansDescription is used when the source omits a description for
// [notes.FuturePlans].
const FuturePlansDescription = "Work the customer is considering later that is not part of this job."

// Entry is one raw section definition as supplied by a schema source.
type Entry struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Order       *int   `json:"order,omitempty" yaml:"order,omitempty"`
}

// Schema is a resolved canonical section list. It is immutable and safe for
// concurrent use.
type Schema struct {
	sections []notes.CanonicalSection
	lookup   map[string]string
}

// Resolve builds the canonical schema from entries:
//
//   - names are trimmed; empty names and [LegacyInternalName] are dropped
//   - entries with an explicit order sort first, ascending; entries without
//     one follow; original position breaks ties
//   - entries whose names are spelling variants of an earlier entry are
//     dropped
//   - [notes.FuturePlans] is moved or appended last
//   - orders are renumbered 1..n
//
// When no usable entry remains the result is [Default].
func Resolve(entries []Entry) *Schema {
	type indexed struct {
		Entry
		pos int
	}
	legacy := foldKey(LegacyInternalName)
	items := make([]indexed, 0, len(entries))
	for i, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.Description = strings.TrimSpace(e.Description)
		if e.Name == "" || foldKey(e.Name) == legacy {
			continue
		}
		items = append(items, indexed{Entry: e, pos: i})
	}
	if len(items) == 0 {
		return Default()
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.Order != nil && b.Order != nil:
			if *a.Order != *b.Order {
				return *a.Order < *b.Order
			}
			return a.pos < b.pos
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		default:
			return a.pos < b.pos
		}
	})

	future := foldKey(notes.FuturePlans)
	futureDesc := ""
	seen := make(map[string]struct{}, len(items))
	var kept []Entry
	for _, it := range items {
		k := foldKey(it.Name)
		if k == future {
			if futureDesc == "" {
				futureDesc = it.Description
			}
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, it.Entry)
	}
	if futureDesc == "" {
		futureDesc = FuturePlansDescription
	}
	kept = append(kept, Entry{Name: notes.FuturePlans, Description: futureDesc})

	s := &Schema{
		sections: make([]notes.CanonicalSection, len(kept)),
		lookup:   make(map[string]string, 2*len(kept)),
	}
	for i, e := range kept {
		s.sections[i] = notes.CanonicalSection{Name: e.Name, Description: e.Description, Order: i + 1}
		s.register(e.Name)
	}
	return s
}

func (s *Schema) register(name string) {
	k := foldKey(name)
	for _, key := range []string{k, compact(k)} {
		if _, taken := s.lookup[key]; !taken {
			s.lookup[key] = name
		}
	}
}

// Sections returns a copy of the canonical sections in order.
func (s *Schema) Sections() []notes.CanonicalSection {
	out := make([]notes.CanonicalSection, len(s.sections))
	copy(out, s.sections)
	return out
}

// Names returns the canonical section names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.sections))
	for i, sec := range s.sections {
		out[i] = sec.Name
	}
	return out
}

// Len returns the number of canonical sections.
func (s *Schema) Len() int { return len(s.sections) }

// Lookup resolves an arbitrary spelling to its canonical section name.
// Case, "&" versus "and", punctuation, plural endings and spacing are
// ignored. An unrecognised name returns false.
func (s *Schema) Lookup(name string) (string, bool) {
	k := foldKey(name)
	if k == "" {
		return "", false
	}
	if c, ok := s.lookup[k]; ok {
		return c, true
	}
	c, ok := s.lookup[compact(k)]
	return c, ok
}

// NormaliseKey lowercases name, turns "&" into "and", replaces every other
// non-alphanumeric rune with a space and collapses whitespace.
func NormaliseKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '&':
			b.WriteString(" and ")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// foldKey is the variant-insensitive key: the normalised key with "and"
// removed and plural endings stripped from every word.
func foldKey(name string) string {
	fields := strings.Fields(NormaliseKey(name))
	out := fields[:0]
	for _, w := range fields {
		if w == "and" {
			continue
		}
		out = append(out, singular(w))
	}
	return strings.Join(out, " ")
}

func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

func compact(k string) string { return strings.ReplaceAll(k, " ", "") }
