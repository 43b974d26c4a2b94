package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/shared"
	"golang.org/x/sync/singleflight"
)

const maxRetryDelay = 30 * time.Second

// ErrDiscarded is returned when the cache was cleared while a fetch was in flight.
var ErrDiscarded = errors.New("query result discarded")

// Key identifies a cached resource.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Status is the state of a cached entry.
type Status int

const (
	StatusPending Status = iota
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one cached resource.
type Entry struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
	Fetching  bool
	Stale     bool
}

// Options control caching and retries.
type Options struct {
	// StaleTime is how long a successful result is served without refetching.
	StaleTime time.Duration
	// Retry is the number of extra attempts after a failure.
	Retry int
	// RetryDelay is the first backoff delay, doubled on each attempt.
	RetryDelay time.Duration
	// ShouldRetry filters which errors are retried. Nil retries everything but context errors.
	ShouldRetry func(error) bool
}

// Option overrides [Options] for a single fetch.
type Option func(*Options)

// WithRetry sets the retry count. Zero disables retries.
func WithRetry(n int) Option {
	return func(o *Options) { o.Retry = n }
}

// WithStaleTime sets how long a result is considered fresh.
func WithStaleTime(d time.Duration) Option {
	return func(o *Options) { o.StaleTime = d }
}

type entry struct {
	status      Status
	data        any
	err         error
	updatedAt   time.Time
	invalidated bool
	version     uint64
	fetching    int
}

// Client owns every cached entry.
type Client struct {
	mu       sync.Mutex
	entries  map[string]*entry
	keys     map[string]Key
	group    singleflight.Group
	gen      uint64
	defaults Options
	logger   *log.Logger
	now      func() time.Time
}

// NewClient creates a cache using defaults for every fetch. A nil logger discards output.
func NewClient(defaults Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Client{
		entries:  make(map[string]*entry),
		keys:     make(map[string]Key),
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// Fetch returns the cached value for key when it is fresh, otherwise it calls fn.
//
// Concurrent calls for the same key share a single call to fn. If ctx is canceled the
// caller stops waiting while the shared fetch completes and populates the cache.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	o := c.defaults
	for _, opt := range opts {
		opt(&o)
	}

	id := key.String()

	c.mu.Lock()
	e := c.entry(key)
	if e.status == StatusSuccess && !e.invalidated && c.now().Sub(e.updatedAt) < o.StaleTime {
		if v, ok := e.data.(T); ok {
			c.mu.Unlock()
			return v, nil
		}
	}
	gen, version := c.gen, e.version
	flight := fmt.Sprintf("%d:%d:%s", gen, version, id)
	c.mu.Unlock()

	ch := c.group.DoChan(flight, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		c.begin(key, gen)
		v, err := c.attempt(fctx, key, o, func(ctx context.Context) (any, error) { return fn(ctx) })
		return v, c.settle(key, gen, version, v, err)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query %s: cached %T is not %T", id, res.Val, zero)
		}
		return v, nil
	}
}

// Get returns the last successful value for key without fetching.
func Get[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key.String()]
	if !ok || e.data == nil {
		return zero, false
	}
	v, ok := e.data.(T)
	return v, ok
}

// entry must be called with c.mu held.
func (c *Client) entry(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{status: StatusPending}
		c.entries[id] = e
		c.keys[id] = append(Key(nil), key...)
	}
	return e
}

func (c *Client) begin(key Key, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.entry(key).fetching++
	}
}

// settle stores a fetch result unless the cache was cleared since the fetch started.
func (c *Client) settle(key Key, gen, version uint64, v any, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		c.logger.Debug("discarding query result from previous generation", "key", key.String())
		return ErrDiscarded
	}

	e := c.entry(key)
	if e.fetching > 0 {
		e.fetching--
	}
	e.updatedAt = c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
		return err
	}

	e.status = StatusSuccess
	e.data = v
	e.err = nil
	e.invalidated = e.version != version
	return nil
}

// attempt calls fn, retrying per o with exponential backoff.
func (c *Client) attempt(ctx context.Context, key Key, o Options, fn func(context.Context) (any, error)) (any, error) {
	delay := o.RetryDelay
	for i := 0; ; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if i >= o.Retry || !shouldRetry(o, err) {
			return nil, err
		}

		c.logger.Debug("retrying query", "key", key.String(), "attempt", i+1, "delay", delay, "err", err)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func shouldRetry(o Options, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if o.ShouldRetry == nil {
		return true
	}
	return o.ShouldRetry(err)
}

// Snapshot returns the state of key. Unknown keys are pending.
func (c *Client) Snapshot(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{Key: key, Status: StatusPending}
	}
	return Entry{
		Key:       key,
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Fetching:  e.fetching > 0,
		Stale:     e.invalidated,
	}
}

// Invalidate marks every entry under prefix stale. The next [Fetch] goes to the server
// and does not join a fetch that started before the invalidation.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if c.keys[id].HasPrefix(prefix) {
			e.invalidated = true
			e.version++
			n++
		}
	}
	c.logger.Debug("invalidated queries", "prefix", prefix.String(), "count", n)
	return n
}

// Remove drops every entry under prefix.
func (c *Client) Remove(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.entries {
		if c.keys[id].HasPrefix(prefix) {
			delete(c.entries, id)
			delete(c.keys, id)
		}
	}
}

// Clear drops all entries. Fetches in flight return [ErrDiscarded] and are not cached.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.keys = make(map[string]Key)
	c.gen++
	c.logger.Debug("cleared query cache", "generation", c.gen)
}

// Keys returns the keys currently cached.
func (c *Client) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.keys))
	for _, k := range c.keys {
		keys = append(keys, k)
	}
	return keys
}
