// Package config provides the configuration schema, loader, watcher and LLM
// provider registry for the surveyscribe service.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the surveyscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a [slog.Level]. Unknown or empty levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Mode selects the structuring path used when a request does not name one.
type Mode string

const (
	// ModeRules uses the deterministic rule-based engine.
	ModeRules Mode = "rules"

	// ModeLLM asks the configured LLM provider first and falls back to the
	// rule-based engine when it fails.
	ModeLLM Mode = "llm"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeRules || m == ModeLLM
}

// Defaults applied by [Config.WithDefaults].
const (
	DefaultListenAddr   = ":8080"
	DefaultRoutingTTL   = 5 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
	DefaultServiceName  = "surveyscribe"
)

// Config is the root configuration structure for surveyscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Routing   RoutingConfig   `yaml:"routing"`
	Schema    SchemaConfig    `yaml:"schema"`
	Engine    EngineConfig    `yaml:"engine"`
	Providers ProvidersConfig `yaml:"providers"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is hot-reloaded by the [Watcher].
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// RoutingConfig locates the remote routing configuration. When both URL and
// File are set, URL is tried first and File serves as the fallback. When
// neither is set, the built-in defaults are used.
type RoutingConfig struct {
	// URL is fetched with GET and must return the routing JSON document.
	URL string `yaml:"url"`

	// File is a local JSON or YAML routing document.
	File string `yaml:"file"`

	// TTL is how long a fetched config is served before a background refresh.
	TTL time.Duration `yaml:"ttl"`

	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Watch invalidates the cache whenever File changes on disk.
	Watch bool `yaml:"watch"`
}

// SchemaConfig locates the section schema definitions.
type SchemaConfig struct {
	// File is a JSON or YAML list of section definitions. Empty means the
	// built-in default schema.
	File string `yaml:"file"`
}

// EngineConfig tunes the structuring engine.
type EngineConfig struct {
	Mode Mode `yaml:"mode"`

	// SimilarityThreshold is the token-overlap ratio above which two lines
	// are treated as duplicates. Zero selects the engine default.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// ForceStructured emits every schema section even when a transcript
	// produces no content.
	ForceStructured bool `yaml:"force_structured"`

	// Vocabulary lists canonical product and brand names that misheard
	// dictation is snapped onto.
	Vocabulary []string `yaml:"vocabulary"`
}

// ProvidersConfig declares the LLM used by [ModeLLM].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when LLM fails or its circuit is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the configuration block for one LLM provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// TelemetryConfig configures OpenTelemetry resource attributes.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of new traces sampled. Zero samples all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// WithDefaults returns a copy of c with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Routing.TTL <= 0 {
		c.Routing.TTL = DefaultRoutingTTL
	}
	if c.Routing.FetchTimeout <= 0 {
		c.Routing.FetchTimeout = DefaultFetchTimeout
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = ModeRules
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
	return c
}
