// Package engine turns a raw dictated survey transcript into structured
// per-section notes.
//
// [Engine] is the rule-based path: it normalises the transcript, segments it
// into statements, routes each statement to a canonical section, re-routes
// clauses out of the broadest topic, and reconciles the result against notes
// captured earlier. It never returns an error and never panics for any input.
//
// Other implementations of [Structurer] (such as the LLM path in
// engine/llmpath) can be composed with the rule engine through [Fallback].
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/surveyscribe/internal/dedup"
	"github.com/MrWong99/surveyscribe/internal/intent"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/reconcile"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/internal/transcript"
	"github.com/MrWong99/surveyscribe/internal/transcript/phonetic"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// Structurer produces a structured [notes.Result] from a transcript.
//
// Implementations must be safe for concurrent use.
type Structurer interface {
	Structure(ctx context.Context, transcript string, opts Options) (*notes.Result, error)
}

// Options are the per-call inputs of [Structurer.Structure]. The zero value
// structures against the engine's schema and routing rules.
type Options struct {
	// ExpectedSections overrides the schema for this call. Combined with
	// SectionHints it is resolved through [schema.FromNames].
	ExpectedSections []string `json:"expectedSections,omitempty"`

	// SectionHints maps section names to descriptions.
	SectionHints map[string]string `json:"sectionHints,omitempty"`

	// AlreadyCaptured are notes from earlier calls for the same visit. New
	// content is merged into them without duplication.
	AlreadyCaptured []notes.SectionNote `json:"alreadyCaptured,omitempty"`

	// ForceStructured emits every canonical section even when nothing
	// routed.
	ForceStructured bool `json:"forceStructured,omitempty"`

	// RoutingConfig overrides the cached routing config for this call.
	RoutingConfig *routing.Config `json:"routingConfig,omitempty"`

	// Checklist and CheckedItems describe the survey checklist. Checked
	// items seed notes into their sections and contribute materials.
	Checklist    []notes.ChecklistItem `json:"checklist,omitempty"`
	CheckedItems []string              `json:"checkedItems,omitempty"`
}

// Schema resolves the schema for o, falling back to def when o names no
// sections or hints.
func (o Options) Schema(def *schema.Schema) *schema.Schema {
	if entries := schema.FromNames(o.ExpectedSections, o.SectionHints); entries != nil {
		return schema.Resolve(entries)
	}
	if def == nil {
		return schema.Default()
	}
	return def
}

// Option is a functional option for [Engine].
type Option func(*Engine)

// WithCache sets the routing config cache consulted when a call carries no
// RoutingConfig of its own.
func WithCache(c *routing.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithSchema sets the default canonical schema.
func WithSchema(s *schema.Schema) Option {
	return func(e *Engine) { e.schema = s }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithThreshold sets the near-duplicate similarity threshold.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithVocabulary enables phonetic snapping of misheard names onto vocab for
// rules compiled by the engine itself.
func WithVocabulary(vocab []string) Option {
	return func(e *Engine) {
		if len(vocab) > 0 {
			e.compileOpts = append(e.compileOpts, transcript.WithVocabulary(phonetic.New(), vocab))
		}
	}
}

// WithForceStructured makes every call behave as if it set
// [Options.ForceStructured].
func WithForceStructured(force bool) Option {
	return func(e *Engine) { e.force = force }
}

// WithCompileOptions adds normaliser options to rules compiled by the engine
// itself. A cache passed with [WithCache] compiles its own rules and needs
// the same options through [routing.WithCompileOptions].
func WithCompileOptions(opts ...transcript.NormaliserOption) Option {
	return func(e *Engine) { e.compileOpts = append(e.compileOpts, opts...) }
}

// Engine is the rule-based [Structurer].
type Engine struct {
	cache       *routing.Cache
	schema      *schema.Schema
	metrics     *observe.Metrics
	threshold   float64
	force       bool
	compileOpts []transcript.NormaliserOption

	defaults *routing.Rules
}

var _ Structurer = (*Engine)(nil)

// New creates a rule engine.
func New(opts ...Option) *Engine {
	e := &Engine{threshold: dedup.DefaultThreshold}
	for _, o := range opts {
		o(e)
	}
	if e.schema == nil {
		e.schema = schema.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	e.defaults = routing.Compile(nil, e.compileOpts...)
	return e
}

// Schema returns the engine's default schema.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Rules returns the routing rules a call with opts would use: the per-call
// config, else the cache, else the built-in defaults.
func (e *Engine) Rules(ctx context.Context, opts Options) *routing.Rules {
	switch {
	case opts.RoutingConfig != nil:
		return routing.Compile(opts.RoutingConfig, e.compileOpts...)
	case e.cache != nil:
		return e.cache.Get(ctx)
	default:
		return e.defaults
	}
}

// Structure implements [Structurer]. The returned error is always nil.
func (e *Engine) Structure(ctx context.Context, text string, opts Options) (res *notes.Result, _ error) {
	ctx, span := observe.StartSpan(ctx, "engine.Structure", trace.WithAttributes(
		observe.AttrMode.String("rules"),
		observe.AttrTranscriptLen.Int(len(text)),
	))
	defer span.End()

	start := time.Now()
	e.metrics.ActiveRequests.Add(ctx, 1)
	defer func() {
		e.metrics.ActiveRequests.Add(ctx, -1)
		e.metrics.StructureDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", "rules")))
	}()

	sch := opts.Schema(e.schema)
	opts.ForceStructured = opts.ForceStructured || e.force

	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("engine: recovered panic while structuring", "panic", fmt.Sprint(r))
			e.metrics.StagePanics.Add(ctx, 1)
			res = Skeleton(sch, opts.ForceStructured)
		}
	}()

	rules := e.Rules(ctx, opts)
	router := intent.NewRouter(rules, sch)

	normalised := rules.Normaliser().Normalise(text)
	statements := transcript.Segment(normalised)

	acc := router.Route(statements)
	rerouted := router.Reroute(acc)
	for section, labels := range reconcile.ChecklistNotes(sch, opts.Checklist, opts.CheckedItems) {
		for _, l := range labels {
			acc.Add(section, l)
		}
	}
	e.metrics.RecordRouting(ctx, acc.Counts(), acc.Dropped, rerouted)

	routeSection, _ := router.SectionFor(routing.TopicPipework)
	sections := reconcile.Build(sch, acc.Snapshot(), opts.AlreadyCaptured, reconcile.Options{
		Threshold:       e.threshold,
		ForceStructured: opts.ForceStructured,
		RouteSection:    routeSection,
	})

	span.SetAttributes(
		observe.AttrStatements.Int(len(statements)),
		observe.AttrDropped.Int(acc.Dropped),
		observe.AttrSections.Int(len(sections)),
	)
	observe.Logger(ctx).Debug("engine: structured transcript",
		"statements", len(statements),
		"dropped", acc.Dropped,
		"sections", len(acc.Sections()),
	)

	return &notes.Result{
		Sections:        sections,
		CustomerSummary: reconcile.CustomerSummary(statements),
		MissingInfo:     reconcile.MissingInfo(strings.TrimSpace(normalised)),
		Materials:       reconcile.Materials(opts.Checklist, opts.CheckedItems),
	}, nil
}

// Skeleton returns a result with every section of sch marked empty when
// force is set, and no sections otherwise.
func Skeleton(sch *schema.Schema, force bool) *notes.Result {
	res := &notes.Result{Sections: []notes.SectionNote{}}
	if !force || sch == nil {
		return res
	}
	for _, s := range sch.Sections() {
		res.Sections = append(res.Sections, notes.SectionNote{
			Section:         s.Name,
			NaturalLanguage: notes.NoNotesSentence,
		})
	}
	return res
}
