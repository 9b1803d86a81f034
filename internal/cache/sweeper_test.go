package cache_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/web-memo/internal/cache"
)

func TestSweeperEvictsWithoutReads(t *testing.T) {
	m, clk := newMockCache[int](t)
	stop := m.StartSweeper(time.Minute)
	defer stop()

	for i := range 5 {
		m.Set(fmt.Sprintf("k%d", i), i, time.Second)
	}
	require.Equal(t, 5, m.Len())

	clk.Add(time.Minute)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	m, clk := newMockCache[int](t)
	stop := m.StartSweeper(time.Second)

	stop()
	stop()

	m.Set("k", 1, time.Millisecond)
	clk.Add(time.Minute)
	assert.Equal(t, 1, m.Len(), "stopped sweeper must not run")
}

func TestSweeperDefaultInterval(t *testing.T) {
	m, clk := newMockCache[int](t)
	stop := m.StartSweeper(0)
	defer stop()

	m.Set("k", 1, time.Millisecond)
	clk.Add(cache.DefaultSweepInterval)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBoltSweeper(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	s, err := cache.OpenBolt(filepath.Join(t.TempDir(), "c.bbolt"), cache.BoltOptions{Clock: clk})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("short", []byte("v"), time.Second))
	stop := s.StartSweeper(time.Minute)
	defer stop()

	clk.Add(time.Minute)

	require.Eventually(t, func() bool {
		_, err := s.Get("short")
		return err == cache.ErrNotFound
	}, time.Second, 5*time.Millisecond)
}
