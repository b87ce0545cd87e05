package config

import (
	"fmt"
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RoutingChanged covers any field of the routing section. The routing
	// cache and file watch are built once, so it also sets RestartRequired.
	RoutingChanged bool

	SchemaChanged bool

	// EngineChanged covers mode, threshold, forcing and vocabulary.
	EngineChanged bool

	ProvidersChanged bool

	// RestartRequired is set when a field changed that only takes effect
	// on the next start: listen address, TLS, telemetry or routing.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.RoutingChanged = old.Routing != new.Routing
	d.SchemaChanged = old.Schema != new.Schema
	d.EngineChanged = old.Engine.Mode != new.Engine.Mode ||
		old.Engine.SimilarityThreshold != new.Engine.SimilarityThreshold ||
		old.Engine.ForceStructured != new.Engine.ForceStructured ||
		!slices.Equal(old.Engine.Vocabulary, new.Engine.Vocabulary)
	d.ProvidersChanged = !sameEntry(old.Providers.LLM, new.Providers.LLM) ||
		!slices.EqualFunc(old.Providers.LLMFallbacks, new.Providers.LLMFallbacks, sameEntry)

	d.RestartRequired = d.RoutingChanged ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!sameTLS(old.Server.TLS, new.Server.TLS) ||
		old.Telemetry != new.Telemetry

	return d
}

// Rebuild reports whether the structuring pipeline must be rebuilt.
func (d ConfigDiff) Rebuild() bool {
	return d.SchemaChanged || d.EngineChanged || d.ProvidersChanged
}

// Fields names the changed sections, for logging.
func (d ConfigDiff) Fields() []string {
	var out []string
	for name, changed := range map[string]bool{
		"server.log_level": d.LogLevelChanged,
		"routing":          d.RoutingChanged,
		"schema":           d.SchemaChanged,
		"engine":           d.EngineChanged,
		"providers":        d.ProvidersChanged,
		"restart":          d.RestartRequired,
	} {
		if changed {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && maps.EqualFunc(a.Options, b.Options, func(x, y any) bool {
		return fmt.Sprint(x) == fmt.Sprint(y)
	})
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
