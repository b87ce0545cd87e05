// Package llmpath implements [engine.Structurer] on top of a language model.
//
// The [Structurer] sends the transcript, the canonical schema, the checked
// checklist items and any notes captured earlier to an [llm.Provider] with a
// JSON-only system prompt. The model's sections are then folded through the
// same reconcile rules as the rule engine, so output from both paths has the
// same shape and never duplicates captured content.
//
// A reply that cannot be parsed is an error ([ErrUnparseable]). Compose the
// structurer with the rule engine through [engine.Fallback] to get a result
// regardless.
package llmpath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/surveyscribe/internal/dedup"
	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/reconcile"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/internal/transcript"
	"github.com/MrWong99/surveyscribe/pkg/notes"
	"github.com/MrWong99/surveyscribe/pkg/provider/llm"
)

const defaultTemperature = 0.1

var (
	// ErrUnparseable is returned when the model reply is not the expected
	// JSON document.
	ErrUnparseable = errors.New("llmpath: unparseable model reply")

	// ErrContextTooLarge is returned when the prompt would not fit the
	// model's context window.
	ErrContextTooLarge = errors.New("llmpath: prompt exceeds model context window")
)

const systemPromptTemplate = `You turn a heating engineer's dictated site survey into structured notes.

Sort every piece of information in the transcript into exactly one of these sections, using the section names verbatim:
%s
Rules:
- Each section's "plainText" is one bullet per line. Every line starts with "• " and ends with ";".
- "naturalLanguage" is the same content as short sentences.
- Do not repeat information already captured (listed in the user message) unless the transcript changes it.
- Leave out sections that have nothing new. Never invent facts.
- "customerSummary" is one plain sentence describing the job for the customer.
- "missingInfo" lists questions for information the survey still needs. "target" is "customer" or "expert".
%s
Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "sections": [{"section": "<name>", "plainText": "• ...;", "naturalLanguage": "..."}],
  "customerSummary": "...",
  "missingInfo": [{"target": "customer", "question": "..."}]
}`

type reply struct {
	Sections        []notes.SectionNote         `json:"sections"`
	CustomerSummary string                      `json:"customerSummary"`
	MissingInfo     []notes.MissingInfoQuestion `json:"missingInfo"`
}

// Option is a functional option for [Structurer].
type Option func(*Structurer)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(s *Structurer) { s.temperature = temp }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(s *Structurer) { s.maxTokens = n }
}

// WithSchema sets the schema used when a call names no sections.
func WithSchema(sch *schema.Schema) Option {
	return func(s *Structurer) { s.schema = sch }
}

// WithThreshold sets the near-duplicate threshold used when merging.
func WithThreshold(t float64) Option {
	return func(s *Structurer) { s.threshold = t }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Structurer) { s.metrics = m }
}

// WithProviderName sets the provider label recorded on metrics.
func WithProviderName(name string) Option {
	return func(s *Structurer) { s.name = name }
}

// WithForceStructured makes every call behave as if it set
// ForceStructured in its options.
func WithForceStructured(force bool) Option {
	return func(s *Structurer) { s.force = force }
}

// Structurer is the LLM-backed [engine.Structurer]. It is safe for
// concurrent use.
type Structurer struct {
	provider    llm.Provider
	schema      *schema.Schema
	metrics     *observe.Metrics
	name        string
	temperature float64
	maxTokens   int
	threshold   float64
	force       bool
}

var _ engine.Structurer = (*Structurer)(nil)

// New returns a Structurer backed by provider.
func New(provider llm.Provider, opts ...Option) *Structurer {
	s := &Structurer{
		provider:    provider,
		name:        "llm",
		temperature: defaultTemperature,
		threshold:   dedup.DefaultThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	if s.schema == nil {
		s.schema = schema.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Structure implements [engine.Structurer].
func (s *Structurer) Structure(ctx context.Context, text string, opts engine.Options) (_ *notes.Result, err error) {
	ctx, span := observe.StartSpan(ctx, "llmpath.Structure", trace.WithAttributes(
		observe.AttrMode.String("llm"),
		observe.AttrProvider.String(s.name),
		observe.AttrTranscriptLen.Int(len(text)),
	))
	defer func() { observe.EndSpan(span, err) }()

	sch := opts.Schema(s.schema)
	opts.ForceStructured = opts.ForceStructured || s.force
	checklist := reconcile.ChecklistNotes(sch, opts.Checklist, opts.CheckedItems)

	if strings.TrimSpace(text) == "" {
		return s.assemble(sch, checklist, opts, reply{}, text), nil
	}

	req, err := s.buildRequest(sch, checklist, text, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, cerr := s.provider.Complete(ctx, req)
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", s.name)))
	if cerr != nil {
		s.metrics.RecordProviderRequest(ctx, s.name, "llm", "error")
		s.metrics.RecordProviderError(ctx, s.name, "llm")
		return nil, fmt.Errorf("llmpath: complete: %w", cerr)
	}
	s.metrics.RecordProviderRequest(ctx, s.name, "llm", "ok")
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUnparseable)
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	r, err := parseReply(resp.Content)
	if err != nil {
		observe.Logger(ctx).Warn("llmpath: model reply did not parse", "err", err, "finish_reason", resp.FinishReason)
		return nil, err
	}
	return s.assemble(sch, checklist, opts, r, text), nil
}

func (s *Structurer) buildRequest(sch *schema.Schema, checklist map[string][]string, text string, opts engine.Options) (llm.CompletionRequest, error) {
	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(sch, checklist),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: buildUserMessage(text, opts.AlreadyCaptured)}},
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
		JSONMode:     true,
	}

	caps := s.provider.Capabilities()
	if caps.ContextWindow <= 0 {
		return req, nil
	}
	all := append([]llm.Message{{Role: llm.RoleSystem, Content: req.SystemPrompt}}, req.Messages...)
	n, err := s.provider.CountTokens(all)
	if err != nil {
		return req, nil
	}
	if budget := caps.ContextWindow - req.MaxTokens; n > budget {
		return req, fmt.Errorf("%w: %d tokens, budget %d", ErrContextTooLarge, n, budget)
	}
	return req, nil
}

// assemble merges the model's sections with captured notes and checklist
// notes and fills the derived fields the model left out.
func (s *Structurer) assemble(sch *schema.Schema, checklist map[string][]string, opts engine.Options, r reply, text string) *notes.Result {
	captured := make([]notes.SectionNote, 0, len(opts.AlreadyCaptured)+len(r.Sections))
	captured = append(captured, opts.AlreadyCaptured...)
	captured = append(captured, r.Sections...)

	res := &notes.Result{
		Sections: reconcile.Build(sch, checklist, captured, reconcile.Options{
			Threshold:       s.threshold,
			ForceStructured: opts.ForceStructured,
		}),
		CustomerSummary: strings.TrimSpace(r.CustomerSummary),
		Materials:       reconcile.Materials(opts.Checklist, opts.CheckedItems),
	}
	if res.CustomerSummary == "" {
		res.CustomerSummary = reconcile.CustomerSummary(transcript.Segment(text))
	}
	if r.MissingInfo == nil {
		res.MissingInfo = reconcile.MissingInfo(text)
	} else {
		res.MissingInfo = validQuestions(r.MissingInfo)
	}
	return res
}

func validQuestions(qs []notes.MissingInfoQuestion) []notes.MissingInfoQuestion {
	out := make([]notes.MissingInfoQuestion, 0, len(qs))
	for _, q := range qs {
		q.Target = strings.ToLower(strings.TrimSpace(q.Target))
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" || (q.Target != notes.TargetCustomer && q.Target != notes.TargetExpert) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func buildSystemPrompt(sch *schema.Schema, checklist map[string][]string) string {
	var sections strings.Builder
	for _, sec := range sch.Sections() {
		sections.WriteString("- ")
		sections.WriteString(sec.Name)
		if sec.Description != "" {
			sections.WriteString(": ")
			sections.WriteString(sec.Description)
		}
		sections.WriteByte('\n')
	}

	var done strings.Builder
	for _, name := range sch.Names() {
		for _, label := range checklist[name] {
			if done.Len() == 0 {
				done.WriteString("- Checklist items already confirmed (do not ask about them):\n")
			}
			fmt.Fprintf(&done, "  - %s (%s)\n", label, name)
		}
	}
	return fmt.Sprintf(systemPromptTemplate, sections.String(), done.String())
}

func buildUserMessage(text string, captured []notes.SectionNote) string {
	var sb strings.Builder
	sb.WriteString("Transcript:\n")
	sb.WriteString(strings.TrimSpace(text))
	if len(captured) > 0 {
		if b, err := json.Marshal(captured); err == nil {
			sb.WriteString("\n\nAlready captured notes:\n")
			sb.Write(b)
		}
	}
	return sb.String()
}

func parseReply(content string) (reply, error) {
	var r reply
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return r, fmt.Errorf("%w: empty reply", ErrUnparseable)
	}
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return r, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
