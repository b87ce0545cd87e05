// Package mock provides an in-memory mock implementation of
// [engine.Structurer] for use in unit tests.
//
// The mock records every call and returns the configured result. It is safe
// for concurrent use.
//
// Example:
//
//	s := &mock.Structurer{Result: &notes.Result{CustomerSummary: "Boiler swap."}}
//	res, err := s.Structure(ctx, "boiler in the loft", engine.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

var _ engine.Structurer = (*Structurer)(nil)

// StructureCall records the arguments of a single [Structurer.Structure] call.
type StructureCall struct {
	Transcript string
	Options    engine.Options
}

// Structurer is a mock implementation of [engine.Structurer].
type Structurer struct {
	mu sync.Mutex

	// Result is returned by Structure (may be nil).
	Result *notes.Result

	// Err, if non-nil, is returned by Structure.
	Err error

	// StructureFunc, if set, overrides Result and Err.
	StructureFunc func(ctx context.Context, transcript string, opts engine.Options) (*notes.Result, error)

	calls []StructureCall
}

// Structure records the call and returns the configured result.
func (s *Structurer) Structure(ctx context.Context, transcript string, opts engine.Options) (*notes.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, StructureCall{Transcript: transcript, Options: opts})
	fn, res, err := s.StructureFunc, s.Result, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, transcript, opts)
	}
	return res, err
}

// Calls returns a copy of all recorded calls.
func (s *Structurer) Calls() []StructureCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StructureCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Reset clears the recorded calls.
func (s *Structurer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
