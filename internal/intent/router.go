// Package intent classifies statements into canonical sections.
//
// Classification is layered. A statement that opens with a section name and
// a colon or dash goes straight to that section. Otherwise an exact override
// phrase wins. Otherwise the topic tables of a [routing.Rules] are tried in
// priority order and the first match decides. Statements nothing claims are
// dropped. After routing, [Router.Reroute] re-splits the broadest topic's
// text and moves clauses that belong to a stricter topic.
package intent

import (
	"strings"
	"unicode"

	"github.com/MrWong99/surveyscribe/internal/format"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/schema"
)

// maxPrefixLen bounds how far into a statement a "Section:" prefix is
// looked for.
const maxPrefixLen = 48

// Router routes statements using one rule set and one schema. It holds no
// mutable state and is safe for concurrent use.
type Router struct {
	rules  *routing.Rules
	schema *schema.Schema
}

// NewRouter creates a router. Nil arguments fall back to the built-in rules
// and schema.
func NewRouter(rules *routing.Rules, sch *schema.Schema) *Router {
	if rules == nil {
		rules = routing.Compile(nil)
	}
	if sch == nil {
		sch = schema.Default()
	}
	return &Router{rules: rules, schema: sch}
}

// SectionFor returns the canonical section a topic feeds under this
// router's schema.
func (r *Router) SectionFor(topic string) (string, bool) {
	t, ok := r.rules.Topic(topic)
	if !ok || t.Section == "" {
		return "", false
	}
	return r.schema.Lookup(t.Section)
}

// Route classifies every statement and accumulates the results.
//
// A statement that mentions a disruption trigger also adds the canonical
// disruption clause, whichever section claims the statement itself, so
// the disruption section never holds more than that one entry.
func (r *Router) Route(statements []string) *Accumulator {
	acc := NewAccumulator()
	disruption, hasDisruption := r.rules.Topic(routing.TopicDisruption)
	disruptSection, _ := r.SectionFor(routing.TopicDisruption)
	for _, st := range statements {
		section, text, ok := r.classify(st)
		disrupts := hasDisruption && disruptSection != "" && disruption.Matches(st)
		if disrupts {
			acc.Add(disruptSection, routing.DisruptionClause)
		}
		switch {
		case ok && disrupts && section == disruptSection:
		case ok:
			acc.Add(section, text)
		case !disrupts:
			acc.Dropped++
		}
	}
	return acc
}

func (r *Router) classify(st string) (section, text string, ok bool) {
	st = strings.TrimSpace(st)
	if st == "" {
		return "", "", false
	}
	if section, rest, ok := r.directPrefix(st); ok {
		if rest == "" {
			return "", "", false
		}
		return section, rest, true
	}
	if mapped, ok := r.rules.Override(st); ok {
		if section, ok := r.schema.Lookup(mapped); ok {
			return section, st, true
		}
	}
	topic, ok := r.rules.Match(st)
	if !ok || topic.Section == "" {
		return "", "", false
	}
	section, ok = r.schema.Lookup(topic.Section)
	if !ok {
		return "", "", false
	}
	if topic.Name == routing.TopicDisruption {
		return section, routing.DisruptionClause, true
	}
	return section, st, true
}

// directPrefix recognises "Flue: ..." and "Pipe work - ..." forms. Every
// separator within the first maxPrefixLen bytes is tried, so hyphenated
// section names still resolve.
func (r *Router) directPrefix(st string) (section, rest string, ok bool) {
	limit := min(len(st), maxPrefixLen)
	for i, c := range st[:limit] {
		if c != ':' && c != '-' && c != '–' && c != '—' {
			continue
		}
		name := strings.TrimSpace(st[:i])
		if name == "" {
			return "", "", false
		}
		if section, ok := r.schema.Lookup(name); ok {
			tail := st[i+len(string(c)):]
			tail = strings.TrimLeftFunc(tail, func(r rune) bool {
				return unicode.IsSpace(r) || r == ':' || r == '-'
			})
			return section, strings.TrimSpace(tail), true
		}
	}
	return "", "", false
}

// Reroute splits every statement in the broad source topic's section into
// clauses. A clause that matches one of the stricter target topics, and not
// the source topic itself, moves to the target's section; the rest stays in
// place. It returns the number of clauses moved per target section.
func (r *Router) Reroute(acc *Accumulator) map[string]int {
	srcName, targets := r.rules.Reroute()
	srcTopic, ok := r.rules.Topic(srcName)
	if !ok {
		return nil
	}
	srcSection, ok := r.SectionFor(srcName)
	if !ok {
		return nil
	}

	moved := make(map[string]int)
	var kept []string
	for _, st := range acc.Statements(srcSection) {
		clauses := format.SplitClauses(st)
		var stay []string
		for _, cl := range clauses {
			if dst, ok := r.rerouteTarget(cl, srcTopic, targets); ok && dst != srcSection {
				acc.Add(dst, cl)
				moved[dst]++
				continue
			}
			stay = append(stay, cl)
		}
		switch {
		case len(stay) == len(clauses):
			kept = append(kept, st)
		case len(stay) > 0:
			kept = append(kept, strings.Join(stay, ", "))
		}
	}
	acc.replace(srcSection, kept)
	return moved
}

func (r *Router) rerouteTarget(clause string, src routing.Topic, targets []string) (string, bool) {
	if src.Matches(clause) {
		return "", false
	}
	t, ok := r.rules.MatchAmong(clause, targets...)
	if !ok || t.Section == "" {
		return "", false
	}
	return r.schema.Lookup(t.Section)
}
