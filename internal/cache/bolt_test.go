package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/web-memo/internal/cache"
)

func openBolt(t *testing.T, defaultTTL time.Duration) (*cache.BoltStore, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	s, err := cache.OpenBolt(filepath.Join(t.TempDir(), "cache.bbolt"), cache.BoltOptions{
		Bucket:     "test",
		DefaultTTL: defaultTTL,
		Clock:      clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func TestBoltPutGetDelete(t *testing.T) {
	s, _ := openBolt(t, 0)

	require.NoError(t, s.Put("k", []byte("v"), time.Minute))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestBoltExpiry(t *testing.T) {
	s, clk := openBolt(t, 0)
	require.NoError(t, s.Put("k", []byte("v"), 1500*time.Millisecond))

	clk.Add(time.Second)
	_, err := s.Get("k")
	require.NoError(t, err)

	clk.Add(time.Second)
	_, err = s.Get("k")
	assert.ErrorIs(t, err, cache.ErrExpired)
}

func TestBoltDefaultTTL(t *testing.T) {
	s, clk := openBolt(t, time.Minute)
	require.NoError(t, s.Put("k", []byte("v"), 0))

	clk.Add(2 * time.Minute)
	_, err := s.Get("k")
	assert.ErrorIs(t, err, cache.ErrExpired)
}

func TestBoltNoTTLNeverExpires(t *testing.T) {
	s, clk := openBolt(t, 0)
	require.NoError(t, s.Put("k", []byte("v"), 0))

	clk.Add(24 * time.Hour)
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestBoltSweep(t *testing.T) {
	s, clk := openBolt(t, 0)
	require.NoError(t, s.Put("a", []byte("1"), time.Second))
	require.NoError(t, s.Put("b", []byte("2"), time.Second))
	require.NoError(t, s.Put("c", []byte("3"), time.Hour))
	require.NoError(t, s.Put("d", []byte("4"), 0))

	clk.Add(time.Minute)
	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, k := range []string{"a", "b"} {
		_, err := s.Get(k)
		assert.ErrorIs(t, err, cache.ErrNotFound, k)
	}
	for _, k := range []string{"c", "d"} {
		_, err := s.Get(k)
		assert.NoError(t, err, k)
	}
}
