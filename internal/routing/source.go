package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/MrWong99/surveyscribe/internal/resilience"
)

// ErrNoSource is returned by a [Chain] with no sources.
var ErrNoSource = errors.New("routing: no config source")

// maxConfigBytes bounds how much of a remote or file config is read.
const maxConfigBytes = 1 << 20

// Source fetches a routing configuration. Implementations must be safe for
// concurrent use.
type Source interface {
	Fetch(ctx context.Context) (*Config, error)
}

// SourceFunc adapts a plain function to [Source].
type SourceFunc func(ctx context.Context) (*Config, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (*Config, error) { return f(ctx) }

// StaticSource always returns the same config.
type StaticSource struct {
	Config *Config
}

// Fetch returns s.Config, or [Default] when it is nil.
func (s StaticSource) Fetch(context.Context) (*Config, error) {
	if s.Config == nil {
		return Default(), nil
	}
	return s.Config, nil
}

// FileSource reads a JSON or YAML routing config from a local file.
type FileSource struct {
	Path string
}

// Fetch reads and parses the file.
func (s FileSource) Fetch(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("routing: open %q: %w", s.Path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxConfigBytes))
	if err != nil {
		return nil, fmt.Errorf("routing: read %q: %w", s.Path, err)
	}
	return ParseConfig(data)
}

// HTTPSourceOption configures an [HTTPSource].
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithBreaker overrides the circuit breaker guarding the remote endpoint.
func WithBreaker(cb *resilience.CircuitBreaker) HTTPSourceOption {
	return func(s *HTTPSource) { s.breaker = cb }
}

// WithRequestTimeout bounds a single fetch. Default: 5s.
func WithRequestTimeout(d time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// HTTPSource fetches the routing config as JSON from a remote URL. Repeated
// failures trip a circuit breaker so an unreachable endpoint is not hammered
// on every refresh.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewHTTPSource creates a source for url.
func NewHTTPSource(url string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		url:     url,
		client:  http.DefaultClient,
		timeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "routing-config",
			MaxFailures:  3,
			ResetTimeout: time.Minute,
			HalfOpenMax:  1,
		})
	}
	return s
}

// State reports the breaker guarding the endpoint.
func (s *HTTPSource) State() resilience.State { return s.breaker.State() }

// Fetch performs a GET against the configured URL.
func (s *HTTPSource) Fetch(ctx context.Context) (*Config, error) {
	var cfg *Config
	err := s.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return fmt.Errorf("routing: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("routing: fetch %s: %w", s.url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("routing: fetch %s: unexpected status %d", s.url, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBytes))
		if err != nil {
			return fmt.Errorf("routing: read body: %w", err)
		}
		cfg, err = ParseConfig(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Chain tries each source in order and returns the first success. It is used
// to put a local cache file behind a remote endpoint.
type Chain []Source

// Fetch returns the first config any source yields, or all errors joined.
func (c Chain) Fetch(ctx context.Context) (*Config, error) {
	if len(c) == 0 {
		return nil, ErrNoSource
	}
	var errs []error
	for _, s := range c {
		cfg, err := s.Fetch(ctx)
		if err == nil {
			return cfg, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
