package reconcile

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// Questions asked when the transcript is silent on a topic.
const (
	ControlsQuestion   = "Which heating controls would the customer like, for example a smart thermostat or a programmer?"
	CondensateQuestion = "Where will the condensate pipe run and terminate?"
)

var (
	controlsKeywords   = regexp.MustCompile(`(?i)\b(?:thermostats?|stats?|controls?|programmers?|timers?|hive|nest|tado|trvs?|smart)\b`)
	condensateKeywords = regexp.MustCompile(`(?i)\bcondensate\b`)

	summaryFillers = map[string]struct{}{
		"okay": {}, "ok": {}, "test": {}, "testing": {}, "right": {},
		"um": {}, "umm": {}, "uh": {}, "er": {}, "erm": {}, "so": {}, "hello": {}, "hi": {},
	}
)

// CustomerSummary returns the first substantive statement with any filler
// opener ("okay", "test", "um", ...) removed, capitalised and terminated by a
// full stop. It returns "" when no statement has at least two words left.
func CustomerSummary(statements []string) string {
	for _, st := range statements {
		words := strings.Fields(st)
		for len(words) > 0 {
			w := strings.ToLower(strings.Trim(words[0], ",.!?;:"))
			if _, filler := summaryFillers[w]; !filler {
				break
			}
			words = words[1:]
		}
		if len(words) < 2 {
			continue
		}
		s := strings.TrimRight(strings.Join(words, " "), ".!?,;: ")
		if s == "" {
			continue
		}
		if r, size := utf8.DecodeRuneInString(s); r != utf8.RuneError || size > 1 {
			s = string(unicode.ToUpper(r)) + s[size:]
		}
		return s + "."
	}
	return ""
}

// MissingInfo derives open questions from keywords the transcript lacks. An
// empty transcript yields no questions.
func MissingInfo(text string) []notes.MissingInfoQuestion {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var qs []notes.MissingInfoQuestion
	if !controlsKeywords.MatchString(text) {
		qs = append(qs, notes.MissingInfoQuestion{Target: notes.TargetCustomer, Question: ControlsQuestion})
	}
	if !condensateKeywords.MatchString(text) {
		qs = append(qs, notes.MissingInfoQuestion{Target: notes.TargetExpert, Question: CondensateQuestion})
	}
	return qs
}

// Materials returns the materials of every checked item, in checklist order,
// without duplicates. Duplicates are matched case-insensitively and the
// first spelling wins.
func Materials(items []notes.ChecklistItem, checked []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, it := range items {
		if !slices.Contains(checked, it.ID) {
			continue
		}
		for _, m := range it.Materials {
			m = strings.TrimSpace(m)
			k := strings.ToLower(m)
			if m == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// ChecklistNotes returns the labels of checked items grouped by the
// canonical section each item belongs to. Items whose section does not
// resolve are skipped.
func ChecklistNotes(sch *schema.Schema, items []notes.ChecklistItem, checked []string) map[string][]string {
	out := make(map[string][]string)
	for _, it := range items {
		if !slices.Contains(checked, it.ID) || strings.TrimSpace(it.Label) == "" {
			continue
		}
		name, ok := sch.Lookup(it.Section)
		if !ok {
			continue
		}
		out[name] = append(out[name], strings.TrimSpace(it.Label))
	}
	return out
}
