package reconcile_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/surveyscribe/internal/reconcile"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

func sectionNames(secs []notes.SectionNote) []string {
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Section
	}
	return out
}

func find(t *testing.T, secs []notes.SectionNote, name string) notes.SectionNote {
	t.Helper()
	for _, s := range secs {
		if s.Section == name {
			return s
		}
	}
	t.Fatalf("section %q not found in %v", name, sectionNames(secs))
	return notes.SectionNote{}
}

func TestBuild_ForcedSkeleton(t *testing.T) {
	t.Parallel()
	sch := schema.Default()
	got := reconcile.Build(sch, nil, nil, reconcile.Options{ForceStructured: true})
	if !slices.Equal(sectionNames(got), sch.Names()) {
		t.Fatalf("sections = %v, want %v", sectionNames(got), sch.Names())
	}
	for _, s := range got {
		if s.PlainText != "" || s.NaturalLanguage != notes.NoNotesSentence {
			t.Errorf("skeleton section %+v", s)
		}
	}
}

func TestBuild_EmptyWithoutForce(t *testing.T) {
	t.Parallel()
	got := reconcile.Build(schema.Default(), nil, nil, reconcile.Options{})
	if got == nil || len(got) != 0 {
		t.Errorf("Build = %v, want empty non-nil slice", got)
	}
}

func TestBuild_NearDuplicateCollapse(t *testing.T) {
	t.Parallel()
	sch := schema.Default()
	routed := map[string][]string{
		"Boiler": {
			"Worcester Bosch 35kW boiler will be installed",
			"A 35kW Worcester Bosch boiler is recommended",
		},
	}
	got := reconcile.Build(sch, routed, nil, reconcile.Options{})
	if len(got) != sch.Len() {
		t.Fatalf("len = %d, want %d", len(got), sch.Len())
	}
	boiler := find(t, got, "Boiler")
	if n := strings.Count(boiler.NaturalLanguage, "35kW"); n != 1 {
		t.Errorf("prose mentions 35kW %d times: %q", n, boiler.NaturalLanguage)
	}
	if want := "• A 35kW Worcester Bosch boiler is recommended;"; boiler.PlainText != want {
		t.Errorf("PlainText = %q, want %q", boiler.PlainText, want)
	}
	if flue := find(t, got, "Flue"); !flue.IsEmpty() || flue.NaturalLanguage != notes.NoNotesSentence {
		t.Errorf("empty section = %+v", flue)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	t.Parallel()
	sch := schema.Default()
	routed := map[string][]string{
		"Boiler":    {"fit a Worcester Bosch 30kW combi", "remove the old back boiler"},
		"Pipe work": {"gas pipe from the meter through the garage"},
	}
	opts := reconcile.Options{RouteSection: "Pipe work"}

	first := reconcile.Build(sch, routed, nil, opts)
	again := reconcile.Build(sch, routed, first, opts)
	if !slices.Equal(first, again) {
		t.Errorf("re-merge changed result:\n%+v\n%+v", first, again)
	}
	self := reconcile.Build(sch, nil, first, opts)
	if !slices.Equal(first, self) {
		t.Errorf("merging captured with nothing changed result:\n%+v\n%+v", first, self)
	}
}

func TestBuild_RouteSection(t *testing.T) {
	t.Parallel()
	got := reconcile.Build(schema.Default(),
		map[string][]string{"Pipe work": {"gas pipe from the meter through the garage"}},
		nil, reconcile.Options{RouteSection: "Pipe work"})
	want := "• Gas pipe;\n• From the meter;\n• Through the garage;"
	if pw := find(t, got, "Pipe work"); pw.PlainText != want {
		t.Errorf("PlainText = %q, want %q", pw.PlainText, want)
	}
}

func TestBuild_PlaceholderExclusivity(t *testing.T) {
	t.Parallel()
	sch := schema.Default()
	captured := []notes.SectionNote{
		{Section: "Flue", PlainText: "• No additional notes;", NaturalLanguage: notes.NoNotesSentence},
		{Section: "Controls", PlainText: "• No additional notes;"},
	}
	got := reconcile.Build(sch, map[string][]string{"Flue": {"terminal at the rear"}}, captured, reconcile.Options{})

	flue := find(t, got, "Flue")
	if flue.PlainText != "• Terminal at the rear;" {
		t.Errorf("flue PlainText = %q", flue.PlainText)
	}
	if strings.Contains(flue.NaturalLanguage, notes.Placeholder) {
		t.Errorf("placeholder survived next to content: %q", flue.NaturalLanguage)
	}
	if c := find(t, got, "Controls"); c.PlainText != "" || c.NaturalLanguage != notes.NoNotesSentence {
		t.Errorf("controls = %+v, want placeholder only", c)
	}
}

func TestBuild_CapturedVariantsAndProse(t *testing.T) {
	t.Parallel()
	captured := []notes.SectionNote{
		{Section: "Pipe Works", PlainText: "• 22mm run to the boiler;"},
		{Section: "pipe work", PlainText: "• 22mm run to the boiler;\n• Condensate to the gully;"},
		{Section: "Flue", NaturalLanguage: "Terminal at the rear. Plume kit needed."},
		{Section: "Roofing", PlainText: "• Replace tiles;"},
	}
	got := reconcile.Build(schema.Default(), nil, captured, reconcile.Options{})

	if pw := find(t, got, "Pipe work"); pw.PlainText != "• 22mm run to the boiler;\n• Condensate to the gully;" {
		t.Errorf("pipe work = %q", pw.PlainText)
	}
	if fl := find(t, got, "Flue"); fl.PlainText != "• Terminal at the rear;\n• Plume kit needed;" {
		t.Errorf("flue = %q", fl.PlainText)
	}
	for _, s := range got {
		if strings.Contains(s.PlainText, "tiles") {
			t.Errorf("unknown-section note misfiled into %q", s.Section)
		}
	}
}

func TestCustomerSummary(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"skips fillers", []string{"okay", "test test", "um so the customer wants a combi"}, "The customer wants a combi."},
		{"strips punctuation", []string{"Right, boiler is in the kitchen!"}, "Boiler is in the kitchen."},
		{"nothing substantive", []string{"ok", "hello", "testing"}, ""},
		{"empty", nil, ""},
		{"invalid leading byte kept", []string{"\xffboiler in the loft"}, "\xffboiler in the loft."},
		{"non-ascii capitalised", []string{"über boiler in the loft"}, "Über boiler in the loft."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := reconcile.CustomerSummary(tt.in); got != tt.want {
				t.Errorf("CustomerSummary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissingInfo(t *testing.T) {
	t.Parallel()
	if got := reconcile.MissingInfo("   "); got != nil {
		t.Errorf("empty transcript questions = %v", got)
	}
	got := reconcile.MissingInfo("fit a combi in the kitchen")
	if len(got) != 2 || got[0].Target != notes.TargetCustomer || got[1].Target != notes.TargetExpert {
		t.Errorf("questions = %+v", got)
	}
	if got := reconcile.MissingInfo("Hive thermostat, condensate to the drain"); len(got) != 0 {
		t.Errorf("questions = %+v, want none", got)
	}
}

func TestMaterialsAndChecklistNotes(t *testing.T) {
	t.Parallel()
	items := []notes.ChecklistItem{
		{ID: "1", Label: "Filter fitted", Section: "Boiler", Materials: []string{"Magnetic filter", "Flue kit"}},
		{ID: "2", Label: "Gas run upsized", Section: "Pipe Works", Materials: []string{"flue kit", " TRVs ", ""}},
		{ID: "3", Label: "Scaffold", Section: "Working at heights", Materials: []string{"Scaffold"}},
		{ID: "4", Label: "Unknown", Section: "Roofing"},
	}
	checked := []string{"2", "1", "4"}

	if got, want := reconcile.Materials(items, checked), []string{"Magnetic filter", "Flue kit", "TRVs"}; !slices.Equal(got, want) {
		t.Errorf("Materials = %v, want %v", got, want)
	}

	byName := reconcile.ChecklistNotes(schema.Default(), items, checked)
	if got := byName["Pipe work"]; !slices.Equal(got, []string{"Gas run upsized"}) {
		t.Errorf("pipe work notes = %v", got)
	}
	if _, ok := byName["Working at heights"]; ok {
		t.Error("unchecked item produced a note")
	}
	if len(byName) != 2 {
		t.Errorf("notes = %v, want Boiler and Pipe work only", byName)
	}
}
