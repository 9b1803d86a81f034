// Package metrics exports cache events to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardcser/web-memo/internal/cache"
)

// CacheMetrics holds counters for every named cache, labelled by cache name.
type CacheMetrics struct {
	Hits    *prometheus.CounterVec
	Misses  *prometheus.CounterVec
	Expired *prometheus.CounterVec
	Failed  *prometheus.CounterVec
}

// NewCacheMetrics creates the counters under namespace and registers them
// with reg.
func NewCacheMetrics(reg prometheus.Registerer, namespace string) (*CacheMetrics, error) {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, []string{"cache"})
	}
	m := &CacheMetrics{
		Hits:    counter("hits_total", "Cache reads that returned a fresh value"),
		Misses:  counter("misses_total", "Cache reads that found nothing usable"),
		Expired: counter("expired_total", "Stale entries removed lazily or by sweep"),
		Failed:  counter("producer_failures_total", "Memoized producer calls that returned an error"),
	}
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Expired, m.Failed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// For returns a cache.Metrics that reports under the given cache name.
func (m *CacheMetrics) For(name string) cache.Metrics {
	return &namedCache{
		hits:    m.Hits.WithLabelValues(name),
		misses:  m.Misses.WithLabelValues(name),
		expired: m.Expired.WithLabelValues(name),
		failed:  m.Failed.WithLabelValues(name),
	}
}

type namedCache struct {
	hits, misses, expired, failed prometheus.Counter
}

func (n *namedCache) Hit()         { n.hits.Inc() }
func (n *namedCache) Miss()        { n.misses.Inc() }
func (n *namedCache) Expire(c int) { n.expired.Add(float64(c)) }
func (n *namedCache) Fail()        { n.failed.Inc() }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
