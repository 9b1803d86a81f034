package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray .env is loaded.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestNewDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("HOME", "/home/tester")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, c.Cache.Backend)
	assert.Equal(t, 15*time.Minute, c.Cache.FetchTTL)
	assert.Equal(t, 5*time.Minute, c.Cache.SearchTTL)
	assert.Equal(t, time.Minute, c.Cache.SweepInterval)
	assert.Equal(t, "/home/tester/.cache/web-mcp/cache.sock", c.Cache.Socket)
	assert.False(t, c.Cache.Coalesce)
	assert.Empty(t, c.Metrics.Address)
}

func TestNewFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("WEB_MCP_CACHE_BACKEND", "bolt")
	t.Setenv("WEB_MCP_FETCH_TTL", "90s")
	t.Setenv("WEB_MCP_SWEEP_INTERVAL", "10s")
	t.Setenv("WEB_MCP_COALESCE", "true")
	t.Setenv("WEB_MCP_DEBUG", "1")
	t.Setenv("WEB_MCP_METRICS_ADDR", ":9090")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, BackendBolt, c.Cache.Backend)
	assert.Equal(t, 90*time.Second, c.Cache.FetchTTL)
	assert.Equal(t, 10*time.Second, c.Cache.SweepInterval)
	assert.True(t, c.Cache.Coalesce)
	assert.True(t, c.Log.Debug)
	assert.Equal(t, ":9090", c.Metrics.Address)
}

func TestNewLoadsDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEB_MCP_SEARCH_TTL=2m\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("WEB_MCP_SEARCH_TTL") })

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, c.Cache.SearchTTL)
}

func TestNewRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value, wantErr string
	}{
		{"bad duration", "WEB_MCP_FETCH_TTL", "soon", "WEB_MCP_FETCH_TTL"},
		{"bad bool", "WEB_MCP_COALESCE", "maybe", "WEB_MCP_COALESCE"},
		{"unknown backend", "WEB_MCP_CACHE_BACKEND", "memcached", "unknown backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(tt.key, tt.value)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
