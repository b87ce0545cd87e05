package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

// ModeHeader reports which structuring mode served a request.
const ModeHeader = "X-Structure-Mode"

// StructureRequest is the body of POST /v1/structure. The engine options are
// inlined next to the transcript.
type StructureRequest struct {
	Transcript string      `json:"transcript"`
	Mode       config.Mode `json:"mode,omitempty"`
	engine.Options
}

// SchemaResponse is the body returned by POST /v1/schema/resolve.
type SchemaResponse struct {
	Sections []notes.CanonicalSection `json:"sections"`
}

// RoutingConfigResponse is the body returned by GET /v1/routing-config.
type RoutingConfigResponse struct {
	Config     *routing.Config `json:"config"`
	FetchedAt  *time.Time      `json:"fetchedAt,omitempty"`
	AgeSeconds float64         `json:"ageSeconds"`
	FromSource bool            `json:"fromSource"`
	Stale      bool            `json:"stale"`
	LastError  string          `json:"lastError,omitempty"`
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	var req StructureRequest
	if err := decodeBody(w, r, s.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	st, mode, err := Select(s.backend, req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := st.Structure(r.Context(), req.Transcript, req.Options)
	if err != nil {
		observe.Logger(r.Context()).Error("server: structure failed", "mode", mode, "err", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("server: structure: %w", err))
		return
	}
	w.Header().Set(ModeHeader, string(mode))
	writeJSON(w, http.StatusOK, res)
}

// handleSchemaResolve accepts the same shapes as [schema.ParseDefinitions].
// An empty body resolves to the default schema.
func (s *Server) handleSchemaResolve(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server: read body: %w", err))
		return
	}

	var sch *schema.Schema
	entries, err := schema.ParseDefinitions(data)
	switch {
	case errors.Is(err, schema.ErrEmptyDefinitions):
		sch = schema.Default()
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	default:
		sch = schema.Resolve(entries)
	}
	writeJSON(w, http.StatusOK, SchemaResponse{Sections: sch.Sections()})
}

func (s *Server) handleRoutingConfig(w http.ResponseWriter, r *http.Request) {
	cache := s.backend.Routing()
	if cache == nil {
		rules := s.backend.Rules().Rules(r.Context(), engine.Options{})
		writeJSON(w, http.StatusOK, RoutingConfigResponse{Config: rules.Config()})
		return
	}

	cache.Get(r.Context())
	snap := cache.Snapshot()
	resp := RoutingConfigResponse{
		Config:     snap.Rules.Config(),
		FromSource: snap.FromSource,
		Stale:      snap.Stale,
	}
	if !snap.FetchedAt.IsZero() {
		at := snap.FetchedAt
		resp.FetchedAt = &at
		resp.AgeSeconds = time.Since(at).Seconds()
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoutingInvalidate(w http.ResponseWriter, r *http.Request) {
	cache := s.backend.Routing()
	if cache == nil {
		writeError(w, http.StatusNotFound, errors.New("server: no routing source configured"))
		return
	}
	cache.Invalidate()
	observe.Logger(r.Context()).Info("server: routing config invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON body of at most limit bytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("server: invalid request body: %w", err)
	}
	return nil
}
