package cache_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/web-memo/internal/cache"
)

// startDaemon serves kv on a temporary socket for the duration of the test.
func startDaemon(t *testing.T, kv cache.KV) *cache.Client {
	t.Helper()
	dir, err := os.MkdirTemp("", "wm")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	sock := filepath.Join(dir, "c.sock")

	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cache.Serve(ctx, l, kv, nil) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return cache.NewClient(sock)
}

func TestClientServerRoundTrip(t *testing.T) {
	mem, _ := newMockCache[[]byte](t)
	client := startDaemon(t, cache.NewMemoryKV(mem, time.Minute))

	require.NoError(t, client.Ping())

	_, err := client.Get("k")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, client.Put("k", []byte("hello"), time.Second))
	v, err := client.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	require.NoError(t, client.Delete("k"))
	_, err = client.Get("k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestClientServerTTLCarriesMilliseconds(t *testing.T) {
	mem, clk := newMockCache[[]byte](t)
	client := startDaemon(t, cache.NewMemoryKV(mem, time.Hour))

	require.NoError(t, client.Put("k", []byte("v"), 250*time.Millisecond))
	clk.Add(300 * time.Millisecond)

	_, err := client.Get("k")
	assert.ErrorIs(t, err, cache.ErrNotFound, "sub-second TTL must not fall back to the default")
}

func TestClientServerExpiredFromBolt(t *testing.T) {
	s, clk := openBolt(t, 0)
	client := startDaemon(t, s)

	require.NoError(t, client.Put("k", []byte("v"), time.Second))
	clk.Add(2 * time.Second)

	_, err := client.Get("k")
	assert.ErrorIs(t, err, cache.ErrExpired)
}

func TestClientUnavailableDaemon(t *testing.T) {
	client := cache.NewClient(filepath.Join(t.TempDir(), "nobody.sock"))
	assert.Error(t, client.Ping())
}

func TestMemoryKVDefaultTTL(t *testing.T) {
	mem, clk := newMockCache[[]byte](t)
	kv := cache.NewMemoryKV(mem, time.Minute)

	require.NoError(t, kv.Put("k", []byte("v"), 0))
	_, err := kv.Get("k")
	require.NoError(t, err)

	clk.Add(time.Minute)
	_, err = kv.Get("k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemoryKVZeroDefaultNeverExpires(t *testing.T) {
	mem, clk := newMockCache[[]byte](t)
	kv := cache.NewMemoryKV(mem, 0)

	require.NoError(t, kv.Put("k", []byte("v"), 0))
	clk.Add(365 * 24 * time.Hour)
	assert.Zero(t, mem.Sweep())

	v, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
