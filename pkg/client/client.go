// Package client provides the request service: cached, deduplicated and
// parser-routed requests on top of a pluggable transport.
//
// A Client owns its cache, parser registry and task queue. Create one per
// application and share it by reference.
package client

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/Sternrassler/reqflow/pkg/cache"
	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/Sternrassler/reqflow/pkg/parser"
	"github.com/Sternrassler/reqflow/pkg/queue"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqflow_client_requests_total",
		Help: "Total client requests by method and path taken (hit, miss, bypass)",
	}, []string{"method", "path"})

	clientCacheStoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_client_cache_stores_total",
		Help: "Total responses stored in the cache after a miss",
	})
)

// Config holds the client configuration.
type Config struct {
	// Transport performs the network call. Required.
	Transport transport.Transport

	// DefaultTTL applies to cached responses without an explicit TTL
	// (0 selects cache.DefaultTTL).
	DefaultTTL time.Duration

	// Debug makes ambiguous parser matches fail instead of picking the first.
	Debug bool

	// Scheduler starts tasks and settles cache hits (default: queue.GoScheduler).
	Scheduler queue.Scheduler

	// Clock is the cache's time source (default: time.Now).
	Clock func() time.Time
}

// DefaultConfig returns a configuration using t and the default TTL.
func DefaultConfig(t transport.Transport) Config {
	return Config{
		Transport:  t,
		DefaultTTL: cache.DefaultTTL,
		Scheduler:  queue.GoScheduler,
	}
}

// Client is the request service.
type Client struct {
	cache      *cache.Cache
	parsers    *parser.Registry
	dispatcher *Dispatcher
	scheduler  queue.Scheduler
	logger     zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, ErrNilTransport
	}
	if cfg.DefaultTTL < 0 {
		return nil, fmt.Errorf("%w (got %s)", ErrInvalidTTL, cfg.DefaultTTL)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = queue.GoScheduler
	}

	var cacheOpts []cache.Option
	if cfg.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(cfg.Clock))
	}

	parsers := parser.NewRegistry().Debugging(cfg.Debug)

	return &Client{
		cache:      cache.New(cfg.DefaultTTL, cacheOpts...),
		parsers:    parsers,
		dispatcher: NewDispatcher(cfg.Transport, parsers, queue.WithScheduler(cfg.Scheduler)),
		scheduler:  cfg.Scheduler,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Get issues a GET request. Responses are cached unless WithTTL gives a
// non-positive TTL.
func (c *Client) Get(ctx context.Context, url string, params transport.Params, opts ...RequestOption) *queue.Future[*Response] {
	return c.Do(ctx, http.MethodGet, url, params, opts...)
}

// Post issues a POST request. Responses are not cached unless WithCache is given.
func (c *Client) Post(ctx context.Context, url string, params transport.Params, opts ...RequestOption) *queue.Future[*Response] {
	return c.Do(ctx, http.MethodPost, url, params, opts...)
}

// Do issues a request with any method. GET and HEAD are cached by default.
//
// A cache hit settles the returned future on a scheduled call, never before
// Do returns. A miss dispatches the request and stores a successful response
// before the returned future settles. Parse failures are not cached.
func (c *Client) Do(ctx context.Context, method, url string, params transport.Params, opts ...RequestOption) *queue.Future[*Response] {
	method = normalizeMethod(method)

	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.cacheEnabled(method) {
		clientRequestsTotal.WithLabelValues(method, "bypass").Inc()
		return c.dispatcher.Dispatch(ctx, method, url, params, o.dataType)
	}

	key := Key(url, params)
	if v, ok := c.cache.Get(key); ok {
		clientRequestsTotal.WithLabelValues(method, "hit").Inc()
		c.logger.Debug().Str("key", key).Msg("Cache hit")
		resp := asResponse(v)
		return queue.Defer(c.scheduler, func() (*Response, error) {
			return resp, nil
		})
	}

	clientRequestsTotal.WithLabelValues(method, "miss").Inc()
	c.logger.Debug().Str("key", key).Msg("Cache miss")

	var ttl time.Duration
	if o.ttlSet {
		ttl = o.ttl
	}

	return c.dispatcher.Dispatch(ctx, method, url, params, o.dataType).
		Then(func(resp *Response, err error) (*Response, error) {
			if err == nil && resp != nil && !resp.IsParseError() {
				c.cache.Put(key, resp, ttl)
				clientCacheStoresTotal.Inc()
				c.logger.Debug().
					Str("key", key).
					Dur("ttl", c.effectiveTTL(ttl)).
					Msg("Cached response")
			}
			return resp, err
		})
}

func (c *Client) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.cache.DefaultTTL()
	}
	return ttl
}

// RegisterParser appends a parser rule. Rules are matched in registration order.
func (c *Client) RegisterParser(pattern *regexp.Regexp, method string, fn parser.Transform) *Client {
	c.parsers.Register(pattern, method, fn)
	return c
}

// Debugging toggles strict parser resolution.
func (c *Client) Debugging(enabled bool) *Client {
	c.parsers.Debugging(enabled)
	return c
}

// Parsers returns the client's parser registry.
func (c *Client) Parsers() *parser.Registry {
	return c.parsers
}

// CacheGet returns the cached value for key if present and not expired.
func (c *Client) CacheGet(key string) (any, bool) {
	return c.cache.Get(key)
}

// CachePut stores value under key. A TTL <= 0 uses the default TTL.
func (c *Client) CachePut(key string, value any, ttl time.Duration) {
	c.cache.Put(key, value, ttl)
}

// CacheDelete removes key from the cache.
func (c *Client) CacheDelete(key string) {
	c.cache.Delete(key)
}

// CacheClear empties the cache.
func (c *Client) CacheClear() {
	c.cache.Clear()
}

// Key returns the request key for url and params.
func (c *Client) Key(url string, params transport.Params) string {
	return Key(url, params)
}
