package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tekrabyte/pos-sub000/internal/logger"
	"github.com/tekrabyte/pos-sub000/internal/metrics"
	"github.com/tekrabyte/pos-sub000/internal/tracing"
)

// DefaultCacheDuration is the freshness window when a query sets none.
const DefaultCacheDuration = 5 * time.Minute

// ErrClosed is returned by fetches started after Close.
var ErrClosed = errors.New("fetch: query closed")

// ErrSuperseded is returned by a fetch whose response arrived after a newer
// fetch on the same query was issued. The response still reached the cache.
var ErrSuperseded = errors.New("fetch: response superseded")

// Getter is the read side of the REST client.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// QueryState is a snapshot of a query.
type QueryState struct {
	Data    json.RawMessage
	Loading bool
	Err     error
}

// QueryOptions configures a Query.
type QueryOptions struct {
	InitialData json.RawMessage
	// Disabled turns every fetch into a no-op.
	Disabled bool
	// CacheKey defaults to the request path.
	CacheKey      string
	CacheDuration time.Duration
	Params        url.Values

	OnSuccess func(data json.RawMessage)
	OnError   func(err error)
	// OnChange observes every state transition.
	OnChange func(QueryState)

	// CancelOnClose cancels in-flight requests when the query is closed.
	// Cancelled requests do not populate the cache.
	CancelOnClose bool

	Logger *zap.Logger
}

// Query is a cached read of one backend path. It is safe for concurrent use.
type Query struct {
	getter Getter
	cache  *Cache
	path   string
	key    string
	ttl    time.Duration
	opts   QueryOptions
	logger *zap.Logger

	lifetime context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	state  QueryState
	deps   []any
	seq    uint64
	closed bool
}

// NewQuery creates a query for path backed by cache.
func NewQuery(getter Getter, cache *Cache, path string, opts QueryOptions) *Query {
	key := opts.CacheKey
	if key == "" {
		key = path
	}
	ttl := opts.CacheDuration
	if ttl <= 0 {
		ttl = DefaultCacheDuration
	}
	lifetime, cancel := context.WithCancel(context.Background())

	return &Query{
		getter:   getter,
		cache:    cache,
		path:     path,
		key:      key,
		ttl:      ttl,
		opts:     opts,
		logger:   logger.OrNop(opts.Logger).Named("fetch").With(zap.String("key", key)),
		lifetime: lifetime,
		cancel:   cancel,
		state:    QueryState{Data: opts.InitialData},
	}
}

// Key returns the cache key of the query.
func (q *Query) Key() string { return q.key }

// Start records the dependency list and performs the initial fetch.
func (q *Query) Start(ctx context.Context, deps ...any) error {
	q.mu.Lock()
	q.deps = deps
	q.mu.Unlock()

	_, err := q.Fetch(ctx)
	return err
}

// SetDeps fetches once if deps differ from the previous list.
func (q *Query) SetDeps(ctx context.Context, deps ...any) (bool, error) {
	q.mu.Lock()
	if reflect.DeepEqual(q.deps, deps) {
		q.mu.Unlock()
		return false, nil
	}
	q.deps = deps
	q.mu.Unlock()

	_, err := q.Fetch(ctx)
	return true, err
}

// Fetch returns fresh cached data or loads it from the backend.
func (q *Query) Fetch(ctx context.Context) (json.RawMessage, error) {
	return q.run(ctx, false)
}

// Refetch always loads from the backend.
func (q *Query) Refetch(ctx context.Context) (json.RawMessage, error) {
	return q.run(ctx, true)
}

// ClearCache drops this query's cache entry.
func (q *Query) ClearCache() {
	q.cache.Delete(q.key)
}

// State returns a snapshot of the query state.
func (q *Query) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Close stops the query from recording results. Requests already in flight
// still populate the cache unless CancelOnClose is set.
func (q *Query) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
}

func (q *Query) run(ctx context.Context, force bool) (json.RawMessage, error) {
	if q.opts.Disabled || q.path == "" {
		return nil, nil
	}

	if !force {
		if data, ok := q.cache.Lookup(q.key, q.ttl); ok {
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return data, nil
			}
			q.state.Data = data
			st := q.state
			q.mu.Unlock()

			q.changed(st)
			return data, nil
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.seq++
	seq := q.seq
	q.state.Loading = true
	q.state.Err = nil
	st := q.state
	q.mu.Unlock()
	q.changed(st)

	start := time.Now()
	data, err := q.load(ctx, force)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	q.mu.Lock()
	closed := q.closed
	current := !closed && seq == q.seq
	if current {
		if err != nil {
			q.state.Err = err
		} else {
			q.state.Data = data
		}
		q.state.Loading = false
		st = q.state
	}
	q.mu.Unlock()

	if !current {
		metrics.FetchRequestsTotal.WithLabelValues("stale").Inc()
		if closed {
			return data, err
		}
		q.logger.Debug("discarding superseded response", zap.Error(err))
		return nil, ErrSuperseded
	}

	q.changed(st)
	if err != nil {
		metrics.FetchRequestsTotal.WithLabelValues("error").Inc()
		q.logger.Debug("fetch failed", zap.String("path", q.path), zap.Error(err))
		if q.opts.OnError != nil {
			q.opts.OnError(err)
		}
		return nil, err
	}

	metrics.FetchRequestsTotal.WithLabelValues("success").Inc()
	if q.opts.OnSuccess != nil {
		q.opts.OnSuccess(data)
	}
	return data, nil
}

// load performs the GET, normalizes the body and stores it in the cache.
func (q *Query) load(ctx context.Context, force bool) (json.RawMessage, error) {
	if q.opts.CancelOnClose {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(q.lifetime, cancel)
		defer stop()
	}

	get := func(ctx context.Context) (json.RawMessage, error) {
		ctx, span := tracing.StartSpan(ctx, "fetch "+q.key,
			attribute.String("cache.key", q.key),
			attribute.String("http.path", q.path),
			attribute.Bool("fetch.forced", force))
		defer span.End()

		raw, err := q.getter.Get(ctx, q.path, q.opts.Params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		data := Normalize(raw)
		q.cache.Store(q.key, data)
		return data, nil
	}

	// Forced and cancellable fetches run on their own.
	if force || q.opts.CancelOnClose {
		return get(ctx)
	}

	v, err, shared := q.cache.group.Do(q.key, func() (interface{}, error) {
		return get(context.WithoutCancel(ctx))
	})
	if shared {
		q.logger.Debug("joined in-flight fetch")
	}
	if err != nil {
		return nil, err
	}
	data, _ := v.(json.RawMessage)
	return data, nil
}

func (q *Query) changed(st QueryState) {
	if q.opts.OnChange != nil {
		q.opts.OnChange(st)
	}
}
