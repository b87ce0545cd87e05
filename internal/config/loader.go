package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviderNames lists the LLM provider names the built-in factories
// understand. Used by [Validate] to warn about unrecognised names.
var ValidLLMProviderNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Routing.TTL < 0 {
		errs = append(errs, fmt.Errorf("routing.ttl %s must not be negative", cfg.Routing.TTL))
	}
	if cfg.Routing.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("routing.fetch_timeout %s must not be negative", cfg.Routing.FetchTimeout))
	}
	if cfg.Routing.Watch && cfg.Routing.File == "" {
		errs = append(errs, errors.New("routing.watch requires routing.file"))
	}

	if cfg.Engine.Mode != "" && !cfg.Engine.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("engine.mode %q is invalid; valid values: rules, llm", cfg.Engine.Mode))
	}
	if t := cfg.Engine.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("engine.similarity_threshold %.2f is out of range [0, 1]", t))
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %.2f is out of range [0, 1]", r))
	}
	if cfg.Engine.Mode == ModeLLM && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("engine.mode llm requires providers.llm to be configured"))
	}

	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidLLMProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom registration",
		"field", field,
		"name", name,
		"known", ValidLLMProviderNames,
	)
}
