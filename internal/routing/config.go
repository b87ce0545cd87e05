// Package routing holds the data-defined rule tables that drive statement
// classification, and the cache that keeps them fresh.
//
// A [Config] is plain data: ordered ASR rewrite rules, exact-phrase
// overrides and per-topic pattern lists. [Compile] turns it into immutable
// [Rules] evaluated by one generic matcher in a fixed topic priority order.
// [Cache] serves the compiled rules with a stale-while-revalidate policy and
// falls back to [Default] whenever nothing better is available.
package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/surveyscribe/internal/transcript"
)

// Topic names, listed in routing priority order.
const (
	TopicControls    = "controls"
	TopicPipework    = "pipework"
	TopicFlue        = "flue"
	TopicHeights     = "heights"
	TopicOffice      = "office"
	TopicAccess      = "access"
	TopicAssistance  = "assistance"
	TopicDisruption  = "disruption"
	TopicFuture      = "future"
	TopicReplacement = "replacement"
)

// Priority is the fixed order in which topics are tested. The first topic
// whose patterns match a statement wins. Topics present in a config but not
// listed here are tested afterwards in name order.
var Priority = []string{
	TopicControls,
	TopicPipework,
	TopicFlue,
	TopicHeights,
	TopicOffice,
	TopicAccess,
	TopicAssistance,
	TopicDisruption,
	TopicFuture,
	TopicReplacement,
}

// DisruptionClause replaces any statement routed to the disruption topic so
// that disruption notes always read the same.
const DisruptionClause = "Power flush required: expect no heating or hot water for most of the day"

// ErrEmptyConfig is returned by [ParseConfig] for blank input.
var ErrEmptyConfig = errors.New("routing: empty config")

// Config is the routing configuration as fetched from a remote or cached
// source. It is treated as read-only once loaded.
type Config struct {
	// ASRNormalise is the ordered list of dictation rewrite rules.
	ASRNormalise []transcript.Rewrite `json:"asrNormalise,omitempty" yaml:"asrNormalise,omitempty"`

	// PhraseOverrides maps an exact phrase to a section name. Matching is
	// case-insensitive and wins over topic patterns.
	PhraseOverrides map[string]string `json:"phraseOverrides,omitempty" yaml:"phraseOverrides,omitempty"`

	// Intents maps a topic name to its ordered match patterns.
	Intents map[string][]string `json:"intents,omitempty" yaml:"intents,omitempty"`

	// TopicSections maps a topic name to the section it feeds. Topics not
	// listed use the built-in mapping.
	TopicSections map[string]string `json:"topicSections,omitempty" yaml:"topicSections,omitempty"`
}

// ParseConfig decodes a routing config from JSON or YAML. Malformed input is
// an error; callers treat it as absent.
func ParseConfig(data []byte) (*Config, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyConfig
	}
	cfg := &Config{}
	if data[0] == '{' {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("routing: decode json: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("routing: decode yaml: %w", err)
	}
	return cfg, nil
}

// withDefaults fills every empty part of c from [Default]. A config that only
// overrides intents keeps the built-in rewrites, and so on.
func (c *Config) withDefaults() *Config {
	d := Default()
	if c == nil {
		return d
	}
	out := *c
	if len(out.ASRNormalise) == 0 {
		out.ASRNormalise = d.ASRNormalise
	}
	if len(out.PhraseOverrides) == 0 {
		out.PhraseOverrides = d.PhraseOverrides
	}
	if len(out.Intents) == 0 {
		out.Intents = d.Intents
	}
	sections := make(map[string]string, len(d.TopicSections)+len(out.TopicSections))
	for k, v := range d.TopicSections {
		sections[k] = v
	}
	for k, v := range out.TopicSections {
		sections[k] = v
	}
	out.TopicSections = sections
	return &out
}
