package routing

import (
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/MrWong99/surveyscribe/internal/transcript"
)

// Topic is one compiled entry of the priority-ordered rule table.
type Topic struct {
	// Name is the topic key, e.g. "flue".
	Name string

	// Section is the canonical section the topic feeds.
	Section string

	patterns []*regexp.Regexp
}

// Matches reports whether any of the topic's patterns match text.
func (t Topic) Matches(text string) bool {
	for _, re := range t.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

type override struct {
	phrase  string
	section string
}

// Rules is a compiled, immutable routing configuration. It is safe for
// concurrent use.
type Rules struct {
	config     *Config
	normaliser *transcript.Normaliser
	overrides  []override
	topics     []Topic
	index      map[string]int
}

// Compile turns cfg into evaluable rules. Missing parts of cfg are filled from
// [Default]. Patterns that fail to compile are skipped with a warning; a topic
// left with no usable patterns never matches.
func Compile(cfg *Config, opts ...transcript.NormaliserOption) *Rules {
	eff := cfg.withDefaults()
	r := &Rules{
		config:     eff,
		normaliser: transcript.NewNormaliser(eff.ASRNormalise, opts...),
		index:      make(map[string]int, len(eff.Intents)),
	}

	for phrase, section := range eff.PhraseOverrides {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		section = strings.TrimSpace(section)
		if phrase == "" || section == "" {
			continue
		}
		r.overrides = append(r.overrides, override{phrase: phrase, section: section})
	}
	// Longest phrase first so "no parking permit" beats "no parking".
	sort.Slice(r.overrides, func(i, j int) bool {
		a, b := r.overrides[i], r.overrides[j]
		if len(a.phrase) != len(b.phrase) {
			return len(a.phrase) > len(b.phrase)
		}
		return a.phrase < b.phrase
	})

	for _, name := range topicOrder(eff.Intents) {
		t := Topic{Name: name, Section: eff.TopicSections[name]}
		for _, p := range eff.Intents[name] {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				slog.Warn("routing: skipping invalid topic pattern", "topic", name, "pattern", p, "err", err)
				continue
			}
			t.patterns = append(t.patterns, re)
		}
		r.index[name] = len(r.topics)
		r.topics = append(r.topics, t)
	}
	return r
}

// topicOrder lists the configured topics in [Priority] order followed by any
// unknown topics sorted by name.
func topicOrder(intents map[string][]string) []string {
	order := make([]string, 0, len(intents))
	for _, name := range Priority {
		if _, ok := intents[name]; ok {
			order = append(order, name)
		}
	}
	var extra []string
	for name := range intents {
		if !slices.Contains(Priority, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// Config returns the effective configuration the rules were compiled from.
// Callers must not modify it.
func (r *Rules) Config() *Config { return r.config }

// Normaliser returns the compiled ASR rewrite rules.
func (r *Rules) Normaliser() *transcript.Normaliser { return r.normaliser }

// Topics returns the compiled topics in evaluation order.
func (r *Rules) Topics() []Topic { return slices.Clone(r.topics) }

// Override returns the section mapped to the longest override phrase
// contained in text, compared case-insensitively.
func (r *Rules) Override(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, o := range r.overrides {
		if strings.Contains(lower, o.phrase) {
			return o.section, true
		}
	}
	return "", false
}

// Match returns the first topic, in priority order, whose patterns match
// text.
func (r *Rules) Match(text string) (Topic, bool) {
	for _, t := range r.topics {
		if t.Matches(text) {
			return t, true
		}
	}
	return Topic{}, false
}

// MatchAmong is like [Rules.Match] but only considers the named topics,
// still in priority order.
func (r *Rules) MatchAmong(text string, names ...string) (Topic, bool) {
	for _, t := range r.topics {
		if slices.Contains(names, t.Name) && t.Matches(text) {
			return t, true
		}
	}
	return Topic{}, false
}

// Topic looks up a compiled topic by name.
func (r *Rules) Topic(name string) (Topic, bool) {
	i, ok := r.index[name]
	if !ok {
		return Topic{}, false
	}
	return r.topics[i], true
}

// Reroute returns the topic whose accumulated text is re-split after
// routing, and the stricter topics its clauses may be moved to.
func (r *Rules) Reroute() (source string, targets []string) {
	return rerouteSource, slices.Clone(rerouteTargets)
}
