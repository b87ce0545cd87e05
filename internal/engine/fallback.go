package engine

import (
	"context"

	"github.com/MrWong99/surveyscribe/internal/resilience"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// Fallback tries a chain of structurers in order. Each one sits behind its
// own circuit breaker, so a primary that keeps failing is skipped until its
// breaker half-opens again.
//
// The usual chain is the LLM path first and the rule [Engine] last. Because
// the rule engine never fails, such a chain always yields a result.
type Fallback struct {
	group *resilience.FallbackGroup[Structurer]
}

var _ Structurer = (*Fallback)(nil)

// NewFallback creates a chain with primary as its first entry.
func NewFallback(name string, primary Structurer, cfg resilience.FallbackConfig) *Fallback {
	return &Fallback{group: resilience.NewFallbackGroup(primary, name, cfg)}
}

// Then appends a structurer to the chain and returns f.
func (f *Fallback) Then(name string, s Structurer) *Fallback {
	f.group.AddFallback(name, s)
	return f
}

// Structure implements [Structurer]. It returns the first successful result;
// the error wraps [resilience.ErrAllFailed] when every entry failed.
func (f *Fallback) Structure(ctx context.Context, transcript string, opts Options) (*notes.Result, error) {
	return resilience.ExecuteWithResult(f.group, func(s Structurer) (*notes.Result, error) {
		return s.Structure(ctx, transcript, opts)
	})
}

// States reports each entry's circuit breaker state keyed by entry name.
func (f *Fallback) States() map[string]resilience.State { return f.group.States() }
