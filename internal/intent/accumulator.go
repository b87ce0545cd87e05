package intent

import "maps"

// Accumulator collects routed statements per canonical section, in arrival
// order. It is not safe for concurrent use.
type Accumulator struct {
	sections map[string][]string
	seen     map[string]map[string]struct{}
	order    []string

	// Dropped counts statements that no rule claimed.
	Dropped int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		sections: make(map[string][]string),
		seen:     make(map[string]map[string]struct{}),
	}
}

// Add appends text to section. An exact repeat of text already held by the
// section is ignored.
func (a *Accumulator) Add(section, text string) {
	if text == "" {
		return
	}
	seen, ok := a.seen[section]
	if !ok {
		seen = make(map[string]struct{})
		a.seen[section] = seen
		a.order = append(a.order, section)
	}
	if _, dup := seen[text]; dup {
		return
	}
	seen[text] = struct{}{}
	a.sections[section] = append(a.sections[section], text)
}

// Statements returns the statements routed to section.
func (a *Accumulator) Statements(section string) []string {
	return append([]string(nil), a.sections[section]...)
}

// Sections returns the sections that received content, in first-seen order.
func (a *Accumulator) Sections() []string {
	out := make([]string, 0, len(a.order))
	for _, s := range a.order {
		if len(a.sections[s]) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Counts returns the number of statements per section.
func (a *Accumulator) Counts() map[string]int {
	out := make(map[string]int, len(a.sections))
	for s, list := range a.sections {
		if len(list) > 0 {
			out[s] = len(list)
		}
	}
	return out
}

// Snapshot returns a copy of the per-section statements.
func (a *Accumulator) Snapshot() map[string][]string {
	out := maps.Clone(a.sections)
	for k, v := range out {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Empty reports whether no section received content.
func (a *Accumulator) Empty() bool { return len(a.Sections()) == 0 }

func (a *Accumulator) replace(section string, list []string) {
	if _, ok := a.sections[section]; !ok {
		return
	}
	a.sections[section] = list
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		seen[s] = struct{}{}
	}
	a.seen[section] = seen
}
