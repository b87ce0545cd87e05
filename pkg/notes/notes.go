// Package notes defines the structured survey notes produced by surveyscribe.
//
// These types are the only externally visible artifact of the structuring
// engine. They are shared by the rule-based engine, the LLM structuring path,
// the HTTP API and the CLI, and they serialise to the JSON shape consumed by
// UI renderers and export collaborators.
package notes

// Placeholder is the bullet line used for a section that has nothing routed
// to it. It never survives alongside real content.
const Placeholder = "No additional notes"

// NoNotesSentence is the prose emitted for an empty section.
const NoNotesSentence = "No additional notes."

// FuturePlans is the canonical section that always exists and is always last.
const FuturePlans = "Future plans"

// Question targets for [MissingInfoQuestion].
const (
	TargetCustomer = "customer"
	TargetExpert   = "expert"
)

// CanonicalSection is one entry of the fixed, ordered report schema.
type CanonicalSection struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Order is the 1-based position of the section. Orders form a total
	// order with no gaps.
	Order int `json:"order" yaml:"order"`
}

// SectionNote carries the notes for a single canonical section.
type SectionNote struct {
	// Section is the canonical section name.
	Section string `json:"section"`

	// PlainText holds bullet clauses, one per line, each terminated by ";".
	PlainText string `json:"plainText"`

	// NaturalLanguage is the prose rendering of PlainText.
	NaturalLanguage string `json:"naturalLanguage"`
}

// IsEmpty reports whether n carries no real content.
func (n SectionNote) IsEmpty() bool {
	return n.PlainText == "" && (n.NaturalLanguage == "" || n.NaturalLanguage == NoNotesSentence)
}

// ChecklistItem is a survey checklist entry supplied by an external
// checklist source. Only Section and Materials are used by the engine.
type ChecklistItem struct {
	ID        string   `json:"id" yaml:"id"`
	Label     string   `json:"label" yaml:"label"`
	Section   string   `json:"section" yaml:"section"`
	Materials []string `json:"materials,omitempty" yaml:"materials,omitempty"`
}

// MissingInfoQuestion is an open question derived from information the
// transcript did not mention.
type MissingInfoQuestion struct {
	// Target is [TargetCustomer] or [TargetExpert].
	Target   string `json:"target"`
	Question string `json:"question"`
}

// Result is the complete structured output for one transcript. It is
// recomputed from scratch on every call.
type Result struct {
	// Sections is ordered by the canonical schema with no duplicate names.
	Sections        []SectionNote         `json:"sections"`
	CustomerSummary string                `json:"customerSummary"`
	MissingInfo     []MissingInfoQuestion `json:"missingInfo"`

	// Materials is the deduplicated materials list derived from satisfied
	// checklist items.
	Materials []string `json:"materials,omitempty"`
}

// Section returns the note for the named section and whether it exists.
func (r *Result) Section(name string) (SectionNote, bool) {
	for _, s := range r.Sections {
		if s.Section == name {
			return s, true
		}
	}
	return SectionNote{}, false
}
