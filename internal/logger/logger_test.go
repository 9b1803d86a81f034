package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWritesToFile(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })
	path := filepath.Join(t.TempDir(), "logs", "web.log")

	require.NoError(t, Init(path, true))
	Infof("fetched %s", "https://example.com")
	Debugf("debug line %d", 1)
	_ = Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "fetched https://example.com")
	assert.Contains(t, string(b), "debug line 1")
}

func TestInitInfoLevelDropsDebug(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })
	path := filepath.Join(t.TempDir(), "web.log")

	require.NoError(t, Init(path, false))
	Debugf("hidden")
	Warnf("shown")
	_ = Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hidden")
	assert.Contains(t, string(b), "shown")
}
