package schema_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

func intPtr(i int) *int { return &i }

func TestResolve_OrderingAndFuturePlans(t *testing.T) {
	t.Parallel()
	s := schema.Resolve([]schema.Entry{
		{Name: "Future plans", Description: "Later"},
		{Name: "  Flue  "},
		{Name: "Boiler", Order: intPtr(2)},
		{Name: ""},
		{Name: "Internal notes"},
		{Name: "Controls", Order: intPtr(1)},
		{Name: "Access", Order: intPtr(2)},
		{Name: "Flue"},
	})

	want := []string{"Controls", "Boiler", "Access", "Flue", notes.FuturePlans}
	if got := s.Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i, sec := range s.Sections() {
		if sec.Order != i+1 {
			t.Errorf("section %q order = %d, want %d", sec.Name, sec.Order, i+1)
		}
	}
	if last := s.Sections()[s.Len()-1]; last.Description != "Later" {
		t.Errorf("future plans description = %q, want source description kept", last.Description)
	}
}

func TestResolve_AppendsFuturePlansWithDefaultDescription(t *testing.T) {
	t.Parallel()
	s := schema.Resolve([]schema.Entry{{Name: "Boiler"}})
	secs := s.Sections()
	if len(secs) != 2 {
		t.Fatalf("len = %d, want 2", len(secs))
	}
	if secs[1].Name != notes.FuturePlans || secs[1].Description != schema.FuturePlansDescription {
		t.Errorf("last section = %+v", secs[1])
	}
}

func TestResolve_VariantNamesCollapse(t *testing.T) {
	t.Parallel()
	s := schema.Resolve([]schema.Entry{
		{Name: "Pipe Works"},
		{Name: "Pipe work"},
		{Name: "Controls & Settings"},
		{Name: "Controls and Settings"},
	})
	want := []string{"Pipe Works", "Controls & Settings", notes.FuturePlans}
	if got := s.Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestResolve_EmptyFallsBackToDefault(t *testing.T) {
	t.Parallel()
	got := schema.Resolve([]schema.Entry{{Name: "  "}, {Name: "internal NOTES"}}).Names()
	if want := schema.Default().Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want default %v", got, want)
	}
}

func TestDefault_Shape(t *testing.T) {
	t.Parallel()
	s := schema.Default()
	names := s.Names()
	if names[len(names)-1] != notes.FuturePlans {
		t.Errorf("last = %q, want %q", names[len(names)-1], notes.FuturePlans)
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate name %q", n)
		}
		seen[n] = true
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	s := schema.Resolve([]schema.Entry{
		{Name: "Pipe work"},
		{Name: "Controls & Settings"},
		{Name: "Working at heights"},
	})

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Pipe work", "Pipe work", true},
		{"Pipe Works", "Pipe work", true},
		{"pipework", "Pipe work", true},
		{"PIPE-WORK", "Pipe work", true},
		{"Controls and Settings", "Controls & Settings", true},
		{"controls settings", "Controls & Settings", true},
		{"working at height", "Working at heights", true},
		{"future plan", notes.FuturePlans, true},
		{"Roofing", "", false},
		{"", "", false},
		{"!!!", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := s.Lookup(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormaliseKey(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Controls & Settings": "controls and settings",
		"  Pipe---Work  ":     "pipe work",
		"Office/Notes!":       "office notes",
		"":                    "",
	}
	for in, want := range tests {
		if got := schema.NormaliseKey(in); got != want {
			t.Errorf("NormaliseKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDefinitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "json objects", in: `[{"name":"Boiler","order":2},{"name":"Flue","description":"d"}]`, want: []string{"Boiler", "Flue"}},
		{name: "json strings", in: `["Boiler", "Flue"]`, want: []string{"Boiler", "Flue"}},
		{name: "json mixed", in: `["Boiler", {"name":"Flue"}]`, want: []string{"Boiler", "Flue"}},
		{name: "json wrapped", in: `{"sections":[{"name":"Boiler"}]}`, want: []string{"Boiler"}},
		{name: "yaml list", in: "- Boiler\n- name: Flue\n  order: 1\n", want: []string{"Boiler", "Flue"}},
		{name: "yaml wrapped", in: "sections:\n  - name: Controls\n", want: []string{"Controls"}},
		{name: "empty", in: "  ", wantErr: true},
		{name: "malformed json", in: `[{"name":`, wantErr: true},
		{name: "yaml scalar", in: "just words", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := schema.ParseDefinitions([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			if !slices.Equal(names, tt.want) {
				t.Errorf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestParseDefinitions_Order(t *testing.T) {
	t.Parallel()
	entries, err := schema.ParseDefinitions([]byte("- name: Flue\n  order: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Order == nil || *entries[0].Order != 3 {
		t.Errorf("order = %v, want 3", entries[0].Order)
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()
	def := schema.Default().Names()
	for _, in := range []string{"", "{not json", `{"sections": []}`} {
		if got := schema.LoadOrDefault([]byte(in)).Names(); !slices.Equal(got, def) {
			t.Errorf("LoadOrDefault(%q) = %v, want default", in, got)
		}
	}
	got := schema.LoadOrDefault([]byte(`["Flue","Boiler"]`)).Names()
	if want := []string{"Flue", "Boiler", notes.FuturePlans}; !slices.Equal(got, want) {
		t.Errorf("LoadOrDefault = %v, want %v", got, want)
	}
}

func TestFromNames(t *testing.T) {
	t.Parallel()
	if got := schema.FromNames(nil, nil); got != nil {
		t.Errorf("FromNames(nil, nil) = %v, want nil", got)
	}

	entries := schema.FromNames([]string{"Boiler", "Pipe work"}, map[string]string{"pipe works": "Routes"})
	if len(entries) != 2 || entries[1].Description != "Routes" {
		t.Errorf("entries = %+v", entries)
	}

	hinted := schema.FromNames(nil, map[string]string{"Flue": "Terminal position only"})
	s := schema.Resolve(hinted)
	for _, sec := range s.Sections() {
		if sec.Name == "Flue" && sec.Description != "Terminal position only" {
			t.Errorf("flue description = %q", sec.Description)
		}
	}
	if s.Len() != schema.Default().Len() {
		t.Errorf("hinted schema len = %d, want default len", s.Len())
	}
}
