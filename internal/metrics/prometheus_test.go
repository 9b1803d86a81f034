package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/web-memo/internal/cache"
)

func TestCacheMetricsCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewCacheMetrics(reg, "webmemo")
	require.NoError(t, err)

	mem := cache.NewMemory[string](cache.WithName("pages"), cache.WithMetrics(m.For("pages")))
	mem.Set("a", "x", time.Minute)
	mem.Get("a")
	mem.Get("missing")

	fail := cache.Memoize(mem, func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	}, func(s string) string { return s }, time.Minute)
	_, _ = fail(context.Background(), "b")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues("pages")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Misses.WithLabelValues("pages")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues("pages")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Expired.WithLabelValues("pages")))
}

func TestNewCacheMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCacheMetrics(reg, "webmemo")
	require.NoError(t, err)

	_, err = NewCacheMetrics(reg, "webmemo")
	assert.Error(t, err)
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewCacheMetrics(reg, "webmemo")
	require.NoError(t, err)
	m.For("search").Hit()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `webmemo_cache_hits_total{cache="search"} 1`))
}
