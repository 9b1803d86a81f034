package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// fresh reports whether the entry is still valid at now. An entry whose
// expiry equals now is already stale; a zero expiry never goes stale.
func (e entry[V]) fresh(now time.Time) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(now)
}

// Memory is an in-process key/value cache where every entry carries an
// absolute expiry. Stale entries are treated as absent and removed lazily on
// Get or proactively by Sweep. It is safe for concurrent use by multiple
// goroutines; each operation runs to completion under a single lock.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]

	name    string
	clock   clock.Clock
	metrics Metrics
	log     *zap.Logger
}

// Option configures a Memory cache.
type Option func(*options)

type options struct {
	name    string
	clock   clock.Clock
	metrics Metrics
	log     *zap.Logger
}

// WithName labels the cache in logs.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithClock sets the time source. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithMetrics sets the event sink for hits, misses and expirations.
func WithMetrics(m Metrics) Option { return func(o *options) { o.metrics = m } }

// WithLogger sets the logger used by the cache and its sweeper.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// NewMemory creates an empty cache.
func NewMemory[V any](opts ...Option) *Memory[V] {
	o := options{name: "memory"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.metrics == nil {
		o.metrics = NoopMetrics{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		name:    o.name,
		clock:   o.clock,
		metrics: o.metrics,
		log:     o.log.With(zap.String("cache", o.name)),
	}
}

// Name returns the label given with WithName.
func (m *Memory[V]) Name() string { return m.name }

// Set stores value under key until now+ttl, replacing any previous entry.
// A ttl <= 0 expires the key immediately: the old entry is dropped and
// nothing is stored.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.entries, key)
		return
	}
	m.entries[key] = entry[V]{value: value, expiresAt: m.clock.Now().Add(ttl)}
}

// Get returns the value for key if it has not expired. A stale entry is
// removed as a side effect.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.fresh(m.clock.Now()) {
		delete(m.entries, key)
		m.mu.Unlock()
		m.metrics.Expire(1)
		m.metrics.Miss()
		var zero V
		return zero, false
	}
	m.mu.Unlock()

	if !ok {
		m.metrics.Miss()
		var zero V
		return zero, false
	}
	m.metrics.Hit()
	return e.value, true
}

// peek is Get without eviction or metrics.
func (m *Memory[V]) peek(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.fresh(m.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// setPersistent stores value under key with no expiry.
func (m *Memory[V]) setPersistent(key string, value V) {
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value}
	m.mu.Unlock()
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Clear removes every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
}

// Sweep removes every entry that is stale at the time of the scan and
// returns how many were removed.
func (m *Memory[V]) Sweep() int {
	m.mu.Lock()
	now := m.clock.Now()
	removed := 0
	for k, e := range m.entries {
		if !e.fresh(now) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.metrics.Expire(removed)
	}
	return removed
}

// Len returns the number of stored entries, including stale ones that have
// not been evicted yet.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper runs Sweep every interval on the cache's clock. The returned
// function stops the sweeper and waits for it to exit; calling it more than
// once is safe.
func (m *Memory[V]) StartSweeper(interval time.Duration) (stop func()) {
	return startSweeper(m.clock, interval, m.log, func() (int, error) {
		return m.Sweep(), nil
	})
}
