package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.Mutex
	base  = zap.NewNop()
	sugar = base.Sugar()
)

// DefaultPath returns web-mcp.log next to the executable, or in the working
// directory when the executable path cannot be determined.
func DefaultPath() string {
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "web-mcp.log")
	}
	return "./web-mcp.log"
}

// Init builds a JSON logger appending to path (DefaultPath when empty) and
// installs it as the package logger. stdout is never used because the MCP
// server speaks its protocol there.
func Init(path string, debug bool) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set installs l as the package logger.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

// L returns the package logger for injection into components.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Sync flushes buffered entries.
func Sync() error { return L().Sync() }

func Debugf(format string, args ...any) { s().Debugf(format, args...) }

func Infof(format string, args ...any) { s().Infof(format, args...) }

func Warnf(format string, args ...any) { s().Warnf(format, args...) }

func Errorf(format string, args ...any) { s().Errorf(format, args...) }

func s() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
