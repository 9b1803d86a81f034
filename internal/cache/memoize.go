package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MemoizeOption configures Memoize.
type MemoizeOption func(*memoizeConfig)

type memoizeConfig struct {
	coalesce bool
}

// WithCoalescing makes concurrent misses for the same key share a single
// producer call. Without it, every caller that misses before the first
// producer call completes invokes the producer itself and the last Set wins.
//
// The shared call runs on a context that keeps the first caller's values
// but not its cancellation, so one caller giving up does not fail the
// others. A caller whose own context is done returns ctx.Err() at once.
func WithCoalescing() MemoizeOption {
	return func(c *memoizeConfig) { c.coalesce = true }
}

// Memoize wraps produce so that calls whose arguments derive the same key
// within ttl reuse the previously produced value. A producer error is
// returned unchanged and nothing is cached for that key.
//
// By default concurrent misses are not deduplicated; see WithCoalescing.
func Memoize[A, V any](
	m *Memory[V],
	produce func(context.Context, A) (V, error),
	key func(A) string,
	ttl time.Duration,
	opts ...MemoizeOption,
) func(context.Context, A) (V, error) {
	var cfg memoizeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	load := func(ctx context.Context, k string, arg A) (V, error) {
		v, err := produce(ctx, arg)
		if err != nil {
			m.metrics.Fail()
			m.log.Debug("producer failed", zap.String("key", k), zap.Error(err))
			return v, err
		}
		m.Set(k, v, ttl)
		return v, nil
	}

	if !cfg.coalesce {
		return func(ctx context.Context, arg A) (V, error) {
			k := key(arg)
			if v, ok := m.Get(k); ok {
				return v, nil
			}
			return load(ctx, k, arg)
		}
	}

	var group singleflight.Group
	return func(ctx context.Context, arg A) (V, error) {
		k := key(arg)
		if v, ok := m.Get(k); ok {
			return v, nil
		}
		// The shared call outlives any single caller's cancellation; each
		// caller still stops waiting when its own ctx is done.
		shared := context.WithoutCancel(ctx)
		ch := group.DoChan(k, func() (any, error) {
			if v, ok := m.peek(k); ok {
				return v, nil
			}
			return load(shared, k, arg)
		})
		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				var zero V
				return zero, res.Err
			}
			v, _ := res.Val.(V)
			return v, nil
		}
	}
}
