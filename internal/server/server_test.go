package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/engine"
	enginemock "github.com/MrWong99/surveyscribe/internal/engine/mock"
	"github.com/MrWong99/surveyscribe/internal/health"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/server"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

const transcript = "Worcester bosh 35 kw combi boiler to be installed. Flu goes out the back wall."

type fakeBackend struct {
	rules *engine.Engine
	llm   engine.Structurer
	mode  config.Mode
	cache *routing.Cache
}

func (b *fakeBackend) Rules() *engine.Engine   { return b.rules }
func (b *fakeBackend) LLM() engine.Structurer  { return b.llm }
func (b *fakeBackend) Mode() config.Mode       { return b.mode }
func (b *fakeBackend) Routing() *routing.Cache { return b.cache }

func newMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newServer(t *testing.T, b *fakeBackend, opts ...server.Option) *httptest.Server {
	t.Helper()
	m := newMetrics(t)
	if b.rules == nil {
		b.rules = engine.New(engine.WithMetrics(m))
	}
	opts = append([]server.Option{
		server.WithMetrics(m),
		server.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		})),
	}, opts...)
	ts := httptest.NewServer(server.New(b, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestStructure_Rules(t *testing.T) {
	t.Parallel()
	ts := newServer(t, &fakeBackend{mode: config.ModeRules})

	resp := post(t, ts.URL+"/v1/structure", server.StructureRequest{
		Transcript: transcript,
		Options:    engine.Options{ExpectedSections: []string{"Boiler", "Flue"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(server.ModeHeader); got != "rules" {
		t.Errorf("%s = %q, want rules", server.ModeHeader, got)
	}
	res := decode[notes.Result](t, resp)
	want := []string{"Boiler", "Flue", notes.FuturePlans}
	if len(res.Sections) != len(want) {
		t.Fatalf("sections = %+v, want %v", res.Sections, want)
	}
	for i, s := range res.Sections {
		if s.Section != want[i] {
			t.Errorf("sections[%d] = %q, want %q", i, s.Section, want[i])
		}
	}
	if s, _ := res.Section("Flue"); s.PlainText != "• Flue goes out the back wall;" {
		t.Errorf("Flue PlainText = %q", s.PlainText)
	}
}

func TestStructure_InlinedOptionsReachEngine(t *testing.T) {
	t.Parallel()
	llm := &enginemock.Structurer{Result: &notes.Result{CustomerSummary: "from llm"}}
	ts := newServer(t, &fakeBackend{mode: config.ModeLLM, llm: llm})

	body := `{"transcript":"boiler swap","forceStructured":true,"checkedItems":["filter"],` +
		`"alreadyCaptured":[{"section":"Boiler","plainText":"• Old boiler removed;","naturalLanguage":"Old boiler removed."}]}`
	resp := post(t, ts.URL+"/v1/structure", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(server.ModeHeader); got != "llm" {
		t.Errorf("default mode header = %q, want llm", got)
	}
	if res := decode[notes.Result](t, resp); res.CustomerSummary != "from llm" {
		t.Errorf("CustomerSummary = %q", res.CustomerSummary)
	}

	calls := llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(calls))
	}
	c := calls[0]
	if c.Transcript != "boiler swap" || !c.Options.ForceStructured {
		t.Errorf("call = %+v", c)
	}
	if len(c.Options.CheckedItems) != 1 || len(c.Options.AlreadyCaptured) != 1 {
		t.Errorf("options not decoded: %+v", c.Options)
	}
}

func TestStructure_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backend  *fakeBackend
		body     string
		wantCode int
	}{
		{
			name:     "malformed json",
			backend:  &fakeBackend{mode: config.ModeRules},
			body:     `{"transcript":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "llm not configured",
			backend:  &fakeBackend{mode: config.ModeRules},
			body:     `{"transcript":"x","mode":"llm"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown mode",
			backend:  &fakeBackend{mode: config.ModeRules},
			body:     `{"transcript":"x","mode":"magic"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "structurer failure",
			backend: &fakeBackend{
				mode: config.ModeLLM,
				llm:  &enginemock.Structurer{Err: errors.New("all providers down")},
			},
			body:     `{"transcript":"x"}`,
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newServer(t, tt.backend)
			resp := post(t, ts.URL+"/v1/structure", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if body := decode[map[string]string](t, resp); body["error"] == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestStructure_BodyLimit(t *testing.T) {
	t.Parallel()
	ts := newServer(t, &fakeBackend{mode: config.ModeRules}, server.WithMaxBodyBytes(64))

	resp := post(t, ts.URL+"/v1/structure", server.StructureRequest{Transcript: strings.Repeat("boiler ", 100)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSchemaResolve(t *testing.T) {
	t.Parallel()
	ts := newServer(t, &fakeBackend{mode: config.ModeRules})

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantFirst string
		wantLen   int
	}{
		{
			name:      "names with variants",
			body:      `["Pipe Works", "Future plans", "Pipe work", "Boiler"]`,
			wantCode:  http.StatusOK,
			wantFirst: "Pipe Works",
			wantLen:   3,
		},
		{
			name:      "wrapped objects",
			body:      `{"sections":[{"name":"Flue","description":"Flue route"}]}`,
			wantCode:  http.StatusOK,
			wantFirst: "Flue",
			wantLen:   2,
		},
		{
			name:     "malformed",
			body:     `[{"name":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := post(t, ts.URL+"/v1/schema/resolve", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[server.SchemaResponse](t, resp)
			if len(got.Sections) != tt.wantLen {
				t.Fatalf("sections = %+v, want %d", got.Sections, tt.wantLen)
			}
			if got.Sections[0].Name != tt.wantFirst {
				t.Errorf("first = %q, want %q", got.Sections[0].Name, tt.wantFirst)
			}
			last := got.Sections[len(got.Sections)-1]
			if last.Name != notes.FuturePlans || last.Order != len(got.Sections) {
				t.Errorf("last = %+v, want Future plans at order %d", last, len(got.Sections))
			}
		})
	}
}

func TestSchemaResolve_EmptyBodyIsDefault(t *testing.T) {
	t.Parallel()
	ts := newServer(t, &fakeBackend{mode: config.ModeRules})

	resp := post(t, ts.URL+"/v1/schema/resolve", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[server.SchemaResponse](t, resp); len(got.Sections) < 2 {
		t.Errorf("default schema = %+v", got.Sections)
	}
}

func TestRoutingConfig(t *testing.T) {
	t.Parallel()

	cfg := &routing.Config{PhraseOverrides: map[string]string{"loft hatch": "Office notes"}}
	cache := routing.NewCache(routing.StaticSource{Config: cfg})
	t.Cleanup(cache.Wait)
	ts := newServer(t, &fakeBackend{mode: config.ModeRules, cache: cache})

	resp, err := http.Get(ts.URL + "/v1/routing-config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got := decode[server.RoutingConfigResponse](t, resp)
	if !got.FromSource || got.FetchedAt == nil {
		t.Errorf("response = %+v, want fetched from source", got)
	}
	if got.Config == nil || got.Config.PhraseOverrides["loft hatch"] != "Office notes" {
		t.Errorf("config = %+v", got.Config)
	}
	if len(got.Config.Intents) == 0 {
		t.Error("effective config should carry the default intents")
	}

	inv := post(t, ts.URL+"/v1/routing-config/invalidate", "")
	if inv.StatusCode != http.StatusNoContent {
		t.Errorf("invalidate status = %d, want 204", inv.StatusCode)
	}
	if !cache.Snapshot().Stale {
		t.Error("cache should be stale after invalidate")
	}
}

func TestRoutingConfig_NoCache(t *testing.T) {
	t.Parallel()
	ts := newServer(t, &fakeBackend{mode: config.ModeRules})

	resp, err := http.Get(ts.URL + "/v1/routing-config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got := decode[server.RoutingConfigResponse](t, resp)
	if got.FromSource || got.Config == nil || len(got.Config.Intents) == 0 {
		t.Errorf("response = %+v, want built-in defaults", got)
	}

	inv := post(t, ts.URL+"/v1/routing-config/invalidate", "")
	if inv.StatusCode != http.StatusNotFound {
		t.Errorf("invalidate status = %d, want 404", inv.StatusCode)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()
	h := health.New(health.Checker{Name: "routing", Check: func(context.Context) error { return nil }})
	ts := newServer(t, &fakeBackend{mode: config.ModeRules}, server.WithHealth(h))

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/nope":    http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	m := newMetrics(t)
	srv := server.New(&fakeBackend{mode: config.ModeRules, rules: engine.New(engine.WithMetrics(m))},
		server.WithMetrics(m), server.WithMetricsHandler(http.NotFoundHandler()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, nil) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for range 50 {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
