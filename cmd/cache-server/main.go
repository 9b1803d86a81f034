package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leonardcser/web-memo/internal/cache"
	"github.com/leonardcser/web-memo/internal/config"
	"github.com/leonardcser/web-memo/internal/logger"
	"github.com/leonardcser/web-memo/internal/metrics"
)

var flags struct {
	socket  string
	db      string
	backend string
	debug   bool
}

var rootCmd = &cobra.Command{
	Use:          "web-mcp-cache",
	Short:        "Shared cache daemon for web-mcp",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("socket") {
			cfg.Cache.Socket = flags.socket
		}
		if cmd.Flags().Changed("db") {
			cfg.Cache.DBPath = flags.db
		}
		if cmd.Flags().Changed("backend") {
			cfg.Cache.Backend = flags.backend
		}
		if flags.debug {
			cfg.Log.Debug = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flags.socket, "socket", "", "unix socket to listen on")
	rootCmd.Flags().StringVar(&flags.db, "db", "", "bbolt file for the bolt backend")
	rootCmd.Flags().StringVar(&flags.backend, "backend", config.BackendMemory, "storage backend: memory, bolt or redis")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Container) error {
	if err := logger.Init(cfg.Log.Path, cfg.Log.Debug); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.L().With(zap.String("backend", cfg.Cache.Backend))

	reg := prometheus.NewRegistry()
	cm, err := metrics.NewCacheMetrics(reg, "webmcp_daemon")
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	kv, closeKV, err := openBackend(ctx, cfg, log, cm)
	if err != nil {
		return err
	}
	defer closeKV()

	// Ensure socket dir exists and remove stale socket
	sock := cfg.Cache.Socket
	if err := os.MkdirAll(filepath.Dir(sock), 0o755); err != nil {
		return err
	}
	_ = os.Remove(sock)
	l, err := net.Listen("unix", sock)
	if err != nil {
		return fmt.Errorf("listen %s: %w", sock, err)
	}
	_ = os.Chmod(sock, 0o600)

	if cfg.Metrics.Address != "" {
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	log.Info("cache daemon listening", zap.String("socket", sock))
	err = cache.Serve(ctx, l, kv, log)
	log.Info("cache daemon stopped")
	return err
}

// openBackend builds the configured KV and returns a function that releases
// it, including any sweeper.
func openBackend(ctx context.Context, cfg *config.Container, log *zap.Logger, cm *metrics.CacheMetrics) (cache.KV, func(), error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		mem := cache.NewMemory[[]byte](
			cache.WithName("daemon"), cache.WithLogger(log), cache.WithMetrics(cm.For("daemon")))
		stop := mem.StartSweeper(cfg.Cache.SweepInterval)
		return cache.NewMemoryKV(mem, cfg.Cache.DaemonTTL), stop, nil

	case config.BackendBolt:
		store, err := cache.OpenBolt(cfg.Cache.DBPath, cache.BoltOptions{
			Bucket:     "web",
			DefaultTTL: cfg.Cache.DaemonTTL,
			Logger:     log,
		})
		if err != nil {
			return nil, nil, err
		}
		stop := store.StartSweeper(cfg.Cache.SweepInterval)
		return store, func() {
			stop()
			_ = store.Close()
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
		})
		store := cache.NewRedisStore(client, "web-mcp:", cfg.Cache.DaemonTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
		}
		return store, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Cache.Backend)
	}
}
