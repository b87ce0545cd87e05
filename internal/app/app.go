// Package app wires the surveyscribe subsystems into a running service.
//
// New builds the routing cache, the rule engine, the optional LLM path and
// the HTTP server from a [config.Config]. Run serves until its context is
// cancelled, alongside the routing file watch and the config hot-reload
// loop. The structurers are rebuilt in place when the config file changes.
//
// For testing, inject doubles via functional options (WithLLMProvider,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/internal/engine/llmpath"
	"github.com/MrWong99/surveyscribe/internal/health"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/resilience"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/internal/server"
	"github.com/MrWong99/surveyscribe/internal/transcript"
	"github.com/MrWong99/surveyscribe/internal/transcript/phonetic"
	"github.com/MrWong99/surveyscribe/pkg/provider/llm"
)

// rulesEntry names the rule engine inside the LLM fallback chain.
const rulesEntry = "rules"

// pipeline is the set of structurers built from one config generation.
type pipeline struct {
	rules *engine.Engine
	llm   *engine.Fallback
	mode  config.Mode
}

// App owns all subsystem lifetimes.
type App struct {
	cfg        config.Config
	configPath string
	registry   *config.Registry
	metrics    *observe.Metrics
	level      *slog.LevelVar
	llmInject  llm.Provider
	breaker    resilience.CircuitBreakerConfig
	pollEvery  time.Duration

	httpSource *routing.HTTPSource
	cache      *routing.Cache
	pipe       atomic.Pointer[pipeline]
	server     *server.Server
}

var _ server.Backend = (*App)(nil)

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry sets the LLM provider registry. Default: a registry populated
// by [RegisterBuiltinProviders].
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithLLMProvider uses p as the primary LLM instead of creating one from
// cfg.Providers.LLM. Fallback entries are still created from the registry.
func WithLLMProvider(p llm.Provider) Option {
	return func(a *App) { a.llmInject = p }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads adjust the level of the logger built by
// the caller.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigPath enables hot reload of the config file at path during Run.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithReloadInterval sets how often the config file is polled. Default: 5s.
func WithReloadInterval(d time.Duration) Option {
	return func(a *App) { a.pollEvery = d }
}

// WithBreakerConfig tunes the circuit breakers of the LLM fallback chain.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(a *App) { a.breaker = cfg }
}

// New creates the application from cfg. Empty config fields take their
// defaults.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	a := &App{
		cfg: cfg.WithDefaults(),
		breaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
			HalfOpenMax:  1,
		},
	}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
		RegisterBuiltinProviders(a.registry)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}
	a.level.Set(a.cfg.Server.LogLevel.SlogLevel())

	a.cache = a.buildCache()

	p, err := a.buildPipeline(a.cfg)
	if err != nil {
		return nil, err
	}
	a.pipe.Store(p)

	checks := []health.Checker{
		health.Breakers("structurers", a.llmStates, false),
	}
	if a.cache != nil {
		checks = append(checks, health.Routing(a.cache.Snapshot))
		// Warm the cache so the first request does not pay for the fetch.
		a.cache.Get(ctx)
	}
	if a.httpSource != nil {
		checks = append(checks, health.Breakers("routing-source", func() map[string]resilience.State {
			return map[string]resilience.State{"routing-config": a.httpSource.State()}
		}, false))
	}

	a.server = server.New(a,
		server.WithMetrics(a.metrics),
		server.WithHealth(health.New(checks...)),
	)

	slog.Info("app: initialised",
		"mode", a.cfg.Engine.Mode,
		"llm", a.cfg.Providers.LLM.Name,
		"routing_url", a.cfg.Routing.URL,
		"routing_file", a.cfg.Routing.File,
		"schema_file", a.cfg.Schema.File,
	)
	return a, nil
}

// vocabularyOptions returns the normaliser options for cfg's vocabulary.
func vocabularyOptions(cfg config.Config) []transcript.NormaliserOption {
	if len(cfg.Engine.Vocabulary) == 0 {
		return nil
	}
	return []transcript.NormaliserOption{transcript.WithVocabulary(phonetic.New(), cfg.Engine.Vocabulary)}
}

// buildCache creates the routing cache for the configured sources. It
// returns nil when neither a URL nor a file is configured.
func (a *App) buildCache() *routing.Cache {
	var chain routing.Chain
	if a.cfg.Routing.URL != "" {
		a.httpSource = routing.NewHTTPSource(a.cfg.Routing.URL,
			routing.WithRequestTimeout(a.cfg.Routing.FetchTimeout))
		chain = append(chain, a.httpSource)
	}
	if a.cfg.Routing.File != "" {
		chain = append(chain, routing.FileSource{Path: a.cfg.Routing.File})
	}
	if len(chain) == 0 {
		return nil
	}

	var src routing.Source = chain
	if len(chain) == 1 {
		src = chain[0]
	}
	return routing.NewCache(src,
		routing.WithTTL(a.cfg.Routing.TTL),
		routing.WithFetchTimeout(a.cfg.Routing.FetchTimeout),
		routing.WithMetrics(a.metrics),
		routing.WithCompileOptions(vocabularyOptions(a.cfg)...),
	)
}

// buildPipeline creates the structurers for cfg over the shared cache.
func (a *App) buildPipeline(cfg config.Config) (*pipeline, error) {
	sch := schema.LoadFile(cfg.Schema.File)

	engineOpts := []engine.Option{
		engine.WithSchema(sch),
		engine.WithMetrics(a.metrics),
		engine.WithVocabulary(cfg.Engine.Vocabulary),
		engine.WithForceStructured(cfg.Engine.ForceStructured),
	}
	if cfg.Engine.SimilarityThreshold > 0 {
		engineOpts = append(engineOpts, engine.WithThreshold(cfg.Engine.SimilarityThreshold))
	}
	if a.cache != nil {
		engineOpts = append(engineOpts, engine.WithCache(a.cache))
	}
	p := &pipeline{rules: engine.New(engineOpts...), mode: cfg.Engine.Mode}

	provider, name, err := a.buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return p, nil
	}

	llmOpts := []llmpath.Option{
		llmpath.WithSchema(sch),
		llmpath.WithMetrics(a.metrics),
		llmpath.WithProviderName(name),
		llmpath.WithForceStructured(cfg.Engine.ForceStructured),
	}
	if cfg.Engine.SimilarityThreshold > 0 {
		llmOpts = append(llmOpts, llmpath.WithThreshold(cfg.Engine.SimilarityThreshold))
	}
	if t, ok := optFloat(cfg.Providers.LLM.Options, "temperature"); ok {
		llmOpts = append(llmOpts, llmpath.WithTemperature(t))
	}
	if n := optInt(cfg.Providers.LLM.Options, "max_tokens"); n > 0 {
		llmOpts = append(llmOpts, llmpath.WithMaxTokens(n))
	}

	fbCfg := resilience.FallbackConfig{CircuitBreaker: a.breaker}
	p.llm = engine.NewFallback(name, llmpath.New(provider, llmOpts...), fbCfg).
		Then(rulesEntry, p.rules)
	return p, nil
}

// buildLLM creates the primary LLM, wrapped with its configured fallbacks.
// It returns a nil provider when no LLM is configured.
func (a *App) buildLLM(cfg config.Config) (llm.Provider, string, error) {
	name := cfg.Providers.LLM.Name
	primary := a.llmInject
	if primary == nil {
		if name == "" {
			return nil, "", nil
		}
		p, err := a.registry.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, "", fmt.Errorf("app: create llm provider %q: %w", name, err)
		}
		primary = p
	}
	if name == "" {
		name = "llm"
	}
	if len(cfg.Providers.LLMFallbacks) == 0 {
		return primary, name, nil
	}

	group := resilience.NewLLMFallback(primary, name, resilience.FallbackConfig{CircuitBreaker: a.breaker})
	for _, entry := range cfg.Providers.LLMFallbacks {
		p, err := a.registry.CreateLLM(entry)
		if err != nil {
			return nil, "", fmt.Errorf("app: create llm fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, name, nil
}

// llmStates reports the breaker states of the current LLM chain.
func (a *App) llmStates() map[string]resilience.State {
	p := a.pipe.Load()
	if p == nil || p.llm == nil {
		return nil
	}
	return p.llm.States()
}

// Rules implements [server.Backend].
func (a *App) Rules() *engine.Engine { return a.pipe.Load().rules }

// LLM implements [server.Backend]. It returns a nil interface when no LLM is
// configured.
func (a *App) LLM() engine.Structurer {
	if p := a.pipe.Load(); p.llm != nil {
		return p.llm
	}
	return nil
}

// Mode implements [server.Backend].
func (a *App) Mode() config.Mode { return a.pipe.Load().mode }

// Routing implements [server.Backend].
func (a *App) Routing() *routing.Cache { return a.cache }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run serves the HTTP API until ctx is cancelled. The routing file watch and
// the config reload loop share its lifetime; the first to fail stops the
// others.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(gctx, a.cfg.Server) })

	if a.cfg.Routing.Watch && a.cache != nil {
		g.Go(func() error { return routing.Watch(gctx, a.cfg.Routing.File, a.cache) })
	}

	if a.configPath != "" {
		wopts := []config.WatcherOption{config.WithWatcherLogger(slog.Default().With("component", "config_watcher"))}
		if a.pollEvery > 0 {
			wopts = append(wopts, config.WithInterval(a.pollEvery))
		}
		w, err := config.NewWatcher(a.configPath, a.onConfigChange, wopts...)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	err := g.Wait()
	if a.cache != nil {
		a.cache.Wait()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// onConfigChange applies a reloaded config. The log level changes in
// place; schema, engine and provider changes rebuild the structurers.
func (a *App) onConfigChange(_, next *config.Config, diff config.ConfigDiff) {
	cfg := next.WithDefaults()
	if diff.LogLevelChanged {
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
		slog.Info("app: log level changed", "level", cfg.Server.LogLevel)
	}
	if diff.RestartRequired {
		slog.Warn("app: some config changes take effect only after a restart", "changes", diff.Fields())
	}
	if !diff.Rebuild() {
		return
	}
	p, err := a.buildPipeline(cfg)
	if err != nil {
		slog.Error("app: rebuild after config change failed, keeping previous pipeline", "err", err)
		return
	}
	a.pipe.Store(p)
	slog.Info("app: structurers rebuilt", "mode", p.mode, "llm", p.llm != nil)
}
