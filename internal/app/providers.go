package app

import (
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/pkg/provider/llm"
	"github.com/MrWong99/surveyscribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/surveyscribe/pkg/provider/llm/openai"
)

// RegisterBuiltinProviders wires the built-in LLM factories into reg.
//
// "openai" uses the native OpenAI client, which supports a strict JSON
// response format. Every other name is served through any-llm-go.
func RegisterBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range anyllm.Supported() {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			// ollama is a local server; it uses BaseURL for the address, not an API key.
			if entry.APIKey != "" && name != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat accepts any YAML number.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func optInt(opts map[string]any, key string) int {
	f, _ := optFloat(opts, key)
	return int(f)
}

// optDuration accepts a Go duration string ("30s") or a number of seconds.
func optDuration(opts map[string]any, key string) time.Duration {
	if s := optString(opts, key); s != "" {
		d, _ := time.ParseDuration(s)
		return d
	}
	if f, ok := optFloat(opts, key); ok {
		return time.Duration(f * float64(time.Second))
	}
	return 0
}
