// Package reconcile assembles the final per-section notes and the derived
// summary fields of a [notes.Result].
package reconcile

import (
	"log/slog"

	"github.com/MrWong99/surveyscribe/internal/dedup"
	"github.com/MrWong99/surveyscribe/internal/format"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// Options tunes [Build].
type Options struct {
	// Threshold is the near-duplicate Jaccard threshold. Zero means
	// [dedup.DefaultThreshold].
	Threshold float64

	// ForceStructured emits every canonical section even when nothing was
	// routed or captured.
	ForceStructured bool

	// RouteSection names the section rendered as route steps rather than
	// clauses. Empty disables route rendering.
	RouteSection string
}

// Build produces one [notes.SectionNote] per canonical section, in schema
// order. Lines already captured for a section are merged with newly routed
// statements so repeated or rephrased content never accumulates. A section
// with no real content carries empty plain text and [notes.NoNotesSentence].
//
// When no section has real content the result is empty, unless
// opts.ForceStructured is set, in which case the full skeleton is returned.
func Build(sch *schema.Schema, routed map[string][]string, captured []notes.SectionNote, opts Options) []notes.SectionNote {
	thr := opts.Threshold
	if thr == 0 {
		thr = dedup.DefaultThreshold
	}
	thr = dedup.Threshold(thr)

	prior := capturedLines(sch, captured)

	out := make([]notes.SectionNote, 0, sch.Len())
	hasContent := false
	for _, sec := range sch.Sections() {
		var fresh []string
		for _, st := range routed[sec.Name] {
			fresh = append(fresh, format.Lines(st, sec.Name == opts.RouteSection)...)
		}
		merged := dedup.Merge(prior[sec.Name], fresh, thr)

		var content []string
		for _, l := range merged {
			if !dedup.IsPlaceholder(l) {
				content = append(content, l)
			}
		}
		note := notes.SectionNote{Section: sec.Name, NaturalLanguage: notes.NoNotesSentence}
		if len(content) > 0 {
			hasContent = true
			note.PlainText = format.PlainText(content)
			note.NaturalLanguage = format.Prose(content)
		}
		out = append(out, note)
	}

	if !hasContent && !opts.ForceStructured {
		return []notes.SectionNote{}
	}
	return out
}

// capturedLines groups previously captured notes by canonical section and
// turns them back into bullet lines. Notes under an unknown section name are
// dropped.
func capturedLines(sch *schema.Schema, captured []notes.SectionNote) map[string][]string {
	out := make(map[string][]string, len(captured))
	for _, n := range captured {
		name, ok := sch.Lookup(n.Section)
		if !ok {
			slog.Debug("reconcile: dropping captured note for unknown section", "section", n.Section)
			continue
		}
		switch {
		case n.PlainText != "":
			out[name] = append(out[name], format.SplitPlainText(n.PlainText)...)
		case n.NaturalLanguage != "" && n.NaturalLanguage != notes.NoNotesSentence:
			out[name] = append(out[name], format.SplitProse(n.NaturalLanguage)...)
		}
	}
	return out
}
