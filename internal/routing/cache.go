package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/transcript"
)

const (
	defaultTTL          = 5 * time.Minute
	defaultRetry        = 30 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithTTL sets how long a fetched config is served before a refresh is
// triggered. Default: 5m.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithRetryInterval sets the delay before retrying after a failed refresh.
// Default: 30s.
func WithRetryInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithFetchTimeout bounds a single refresh. Default: 5s.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records refresh outcomes on m.
func WithMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCompileOptions passes normaliser options (such as a vocabulary) to
// every compile of a fetched config.
func WithCompileOptions(opts ...transcript.NormaliserOption) CacheOption {
	return func(c *Cache) { c.compileOpts = opts }
}

// Snapshot describes the cache cell at a point in time.
type Snapshot struct {
	Rules      *Rules
	FetchedAt  time.Time
	FromSource bool
	Stale      bool
	LastError  error
}

// Cache serves compiled routing rules with a stale-while-revalidate policy.
//
// A cached value is served unconditionally. Once its TTL has elapsed the
// next [Cache.Get] starts a background refresh and keeps returning the old
// value. A failed refresh keeps the last good value, or the built-in default
// when nothing was ever fetched. Concurrent refreshes are collapsed into one.
type Cache struct {
	src          Source
	ttl          time.Duration
	retry        time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *observe.Metrics
	compileOpts  []transcript.NormaliserOption

	group singleflight.Group
	wg    sync.WaitGroup

	mu          sync.RWMutex
	rules       *Rules
	fetchedAt   time.Time
	fromSource  bool
	nextRefresh time.Time
	lastErr     error
}

// NewCache creates a cache over src. A nil src serves [Default] forever.
func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		src:          src,
		ttl:          defaultTTL,
		retry:        defaultRetry,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.src == nil {
		c.src = StaticSource{}
	}
	return c
}

// Get returns the current rules. The first call blocks on one fetch bounded
// by the fetch timeout; later calls never block. Get never fails.
func (c *Cache) Get(ctx context.Context) *Rules {
	c.mu.RLock()
	rules, next := c.rules, c.nextRefresh
	c.mu.RUnlock()

	if rules == nil {
		_ = c.Refresh(ctx)
		c.mu.RLock()
		rules = c.rules
		c.mu.RUnlock()
		return rules
	}
	if !c.now().Before(next) {
		c.refreshAsync(ctx)
	}
	return rules
}

// Invalidate marks the cached value as expired so the next [Cache.Get]
// triggers a refresh. The old value keeps being served until then.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.nextRefresh = time.Time{}
	c.mu.Unlock()
}

// Refresh fetches synchronously and returns the fetch error, if any. On
// error the cache keeps its previous value.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() { c.wg.Wait() }

// Snapshot returns the current cache cell.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules := c.rules
	if rules == nil {
		rules = Compile(nil, c.compileOpts...)
	}
	return Snapshot{
		Rules:      rules,
		FetchedAt:  c.fetchedAt,
		FromSource: c.fromSource,
		Stale:      !c.now().Before(c.nextRefresh),
		LastError:  c.lastErr,
	}
}

func (c *Cache) refreshAsync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.Refresh(ctx)
	}()
}

func (c *Cache) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	cfg, err := c.src.Fetch(ctx)
	var rules *Rules
	if err == nil {
		rules = Compile(cfg, c.compileOpts...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if err != nil {
		c.lastErr = err
		c.nextRefresh = now.Add(c.retry)
		if c.rules == nil {
			c.rules = Compile(nil, c.compileOpts...)
		}
		slog.Warn("routing: config refresh failed, serving previous rules",
			"err", err, "from_source", c.fromSource)
		c.record(ctx, "error")
		return err
	}
	c.rules = rules
	c.fetchedAt = now
	c.fromSource = true
	c.nextRefresh = now.Add(c.ttl)
	c.lastErr = nil
	c.record(ctx, "ok")
	return nil
}

func (c *Cache) record(ctx context.Context, status string) {
	if c.metrics != nil {
		c.metrics.RecordRoutingRefresh(ctx, status)
	}
}
