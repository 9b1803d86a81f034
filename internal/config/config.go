package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "WEB_MCP_"

// Cache backends understood by the daemon.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

type (
	Container struct {
		Log     *Log
		Cache   *Cache
		Redis   *Redis
		Metrics *Metrics
	}

	Log struct {
		Path  string
		Debug bool
	}

	Cache struct {
		Socket        string
		DBPath        string
		Backend       string
		FetchTTL      time.Duration
		SearchTTL     time.Duration
		DaemonTTL     time.Duration
		SweepInterval time.Duration
		Coalesce      bool
	}

	Redis struct {
		Address  string
		Password string
	}

	Metrics struct {
		// Address for the /metrics listener; empty disables it.
		Address string
	}
)

// New loads .env (if present) and reads configuration from the environment.
func New() (*Container, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cacheDir := defaultCacheDir()
	c := &Container{
		Log: &Log{
			Path: getenv("LOG", ""),
		},
		Cache: &Cache{
			Socket:  getenv("CACHE_SOCK", filepath.Join(cacheDir, "cache.sock")),
			DBPath:  getenv("CACHE_DB", filepath.Join(cacheDir, "cache.bbolt")),
			Backend: getenv("CACHE_BACKEND", BackendMemory),
		},
		Redis: &Redis{
			Address:  getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
		},
		Metrics: &Metrics{
			Address: getenv("METRICS_ADDR", ""),
		},
	}

	var err error
	if c.Log.Debug, err = boolEnv("DEBUG", false); err != nil {
		return nil, err
	}
	if c.Cache.Coalesce, err = boolEnv("COALESCE", false); err != nil {
		return nil, err
	}
	durations := []struct {
		name string
		dst  *time.Duration
		def  time.Duration
	}{
		{"FETCH_TTL", &c.Cache.FetchTTL, 15 * time.Minute},
		{"SEARCH_TTL", &c.Cache.SearchTTL, 5 * time.Minute},
		{"CACHE_TTL", &c.Cache.DaemonTTL, 15 * time.Minute},
		{"SWEEP_INTERVAL", &c.Cache.SweepInterval, time.Minute},
	}
	for _, d := range durations {
		if *d.dst, err = durationEnv(d.name, d.def); err != nil {
			return nil, err
		}
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendBolt, BackendRedis:
	default:
		return nil, fmt.Errorf("%sCACHE_BACKEND: unknown backend %q", envPrefix, c.Cache.Backend)
	}
	return c, nil
}

func defaultCacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "web-mcp")
}

func getenv(name, def string) string {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v
	}
	return def
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, name, err)
	}
	return d, nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", envPrefix, name, err)
	}
	return b, nil
}
