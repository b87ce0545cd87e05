package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDefinitions is returned by [ParseDefinitions] for blank input.
var ErrEmptyDefinitions = errors.New("schema: empty definitions")

// ParseDefinitions decodes section definitions from JSON or YAML. Accepted
// shapes are an array of {name, description?, order?} objects, an array of
// bare names (mixing both is fine), or either wrapped as {sections: [...]}.
func ParseDefinitions(data []byte) ([]Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyDefinitions
	}

	var list []rawEntry
	if data[0] == '[' || data[0] == '{' {
		if err := decodeJSON(data, &list); err != nil {
			return nil, err
		}
	} else if err := decodeYAML(data, &list); err != nil {
		return nil, err
	}

	out := make([]Entry, len(list))
	for i, r := range list {
		out[i] = Entry(r)
	}
	return out, nil
}

func decodeJSON(data []byte, list *[]rawEntry) error {
	if data[0] == '[' {
		if err := json.Unmarshal(data, list); err != nil {
			return fmt.Errorf("schema: decode json: %w", err)
		}
		return nil
	}
	var w struct {
		Sections []rawEntry `json:"sections"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("schema: decode json: %w", err)
	}
	*list = w.Sections
	return nil
}

func decodeYAML(data []byte, list *[]rawEntry) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("schema: decode yaml: %w", err)
	}
	n := &root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind == yaml.MappingNode {
		var w struct {
			Sections []rawEntry `yaml:"sections"`
		}
		if err := n.Decode(&w); err != nil {
			return fmt.Errorf("schema: decode yaml: %w", err)
		}
		*list = w.Sections
		return nil
	}
	if err := n.Decode(list); err != nil {
		return fmt.Errorf("schema: decode yaml: %w", err)
	}
	return nil
}

// rawEntry accepts either a bare name or a definition object.
type rawEntry Entry

func (r *rawEntry) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*r = rawEntry{Name: name}
		return nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return err
	}
	*r = rawEntry(e)
	return nil
}

func (r *rawEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*r = rawEntry{Name: n.Value}
		return nil
	}
	var e Entry
	if err := n.Decode(&e); err != nil {
		return err
	}
	*r = rawEntry(e)
	return nil
}

// LoadOrDefault resolves definitions from data. Empty or malformed input,
// or input without any usable entry, yields [Default].
func LoadOrDefault(data []byte) *Schema {
	entries, err := ParseDefinitions(data)
	if err != nil {
		if !errors.Is(err, ErrEmptyDefinitions) {
			slog.Warn("schema: malformed definitions, using default", "err", err)
		}
		return Default()
	}
	return Resolve(entries)
}

// LoadFile reads and resolves the definitions at path. Any failure falls
// back to [Default] with a warning.
func LoadFile(path string) *Schema {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("schema: cannot read definitions, using default", "path", path, "err", err)
		return Default()
	}
	return LoadOrDefault(data)
}

// FromNames builds entries for a caller-supplied section list. Descriptions
// come from hints, keyed by any spelling of the section name. With no
// expected names the hints are applied to [DefaultEntries]; with neither,
// FromNames returns nil.
func FromNames(expected []string, hints map[string]string) []Entry {
	if len(expected) == 0 && len(hints) == 0 {
		return nil
	}
	hint := make(map[string]string, len(hints))
	for k, v := range hints {
		if v = strings.TrimSpace(v); v != "" {
			hint[foldKey(k)] = v
		}
	}

	var entries []Entry
	if len(expected) == 0 {
		entries = DefaultEntries()
	} else {
		entries = make([]Entry, 0, len(expected))
		for _, name := range expected {
			entries = append(entries, Entry{Name: name})
		}
	}
	for i := range entries {
		if d, ok := hint[foldKey(entries[i].Name)]; ok {
			entries[i].Description = d
		}
	}
	return entries
}
