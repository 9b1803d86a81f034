package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leonardcser/web-memo/internal/cache"
	"github.com/leonardcser/web-memo/internal/config"
	"github.com/leonardcser/web-memo/internal/logger"
	"github.com/leonardcser/web-memo/internal/metrics"
	tools "github.com/leonardcser/web-memo/internal/tools"
	web "github.com/leonardcser/web-memo/internal/web"
)

var (
	socketPath string
	debug      bool
	noDaemon   bool
)

var rootCmd = &cobra.Command{
	Use:   "web-mcp",
	Short: "MCP server exposing cached web fetch and web search tools",
	Long: `web-mcp serves the web-fetch, web-search and cache-stats tools over stdio.

Fetched pages and search results are memoized in memory and, when the cache
daemon (web-mcp-cache) is reachable, shared through it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("socket") {
			cfg.Cache.Socket = socketPath
		}
		if debug {
			cfg.Log.Debug = true
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "cache daemon socket path (overrides WEB_MCP_CACHE_SOCK)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "use only the in-process cache")
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
	log := logger.L()

	logger.Infof("Starting Web MCP server")

	reg := prometheus.NewRegistry()
	cm, err := metrics.NewCacheMetrics(reg, "webmcp")
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.Metrics.Address != "" {
		go serveMetrics(cfg.Metrics.Address, reg)
	}

	pages := cache.NewMemory[*web.PageSummary](
		cache.WithName("pages"), cache.WithLogger(log), cache.WithMetrics(cm.For("pages")))
	searches := cache.NewMemory[[]web.SearchResult](
		cache.WithName("searches"), cache.WithLogger(log), cache.WithMetrics(cm.For("searches")))
	stopPages := pages.StartSweeper(cfg.Cache.SweepInterval)
	defer stopPages()
	stopSearches := searches.StartSweeper(cfg.Cache.SweepInterval)
	defer stopSearches()

	var kv cache.KV
	if !noDaemon {
		if client, err := connectCache(cfg.Cache.Socket); err != nil {
			logger.Warnf("Cache daemon unavailable, using in-process cache only: %v", err)
		} else {
			kv = client
			logger.Infof("Connected to cache daemon at %s", cfg.Cache.Socket)
		}
	}

	var memoOpts []cache.MemoizeOption
	if cfg.Cache.Coalesce {
		memoOpts = append(memoOpts, cache.WithCoalescing())
	}
	fetcher := web.NewFetcher(pages, kv, cfg.Cache.FetchTTL, log, memoOpts...)
	searcher := web.NewSearcher(searches, kv, cfg.Cache.SearchTTL, log, memoOpts...)

	s := server.NewMCPServer(
		"Web MCP",
		"0.2.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("web-fetch",
		mcp.WithDescription(multiline(
			"Fetches content from a specified URL and returns the parsed content",
			"\nFunctionality:",
			"- Takes a URL as input",
			"- Fetches the URL content and parses it",
			"- Returns the structured content including title, description, text, and links",
			"\nUsage notes:",
			"- If an MCP-provided web fetch tool is available, prefer using that tool instead",
			"- The URL must be a fully-formed valid URL",
			"- This tool is read-only and does not modify any files",
			fmt.Sprintf("- Results are cached for %s; repeated fetches of the same URL are served from cache", cfg.Cache.FetchTTL),
		)),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch content from")),
	), tools.WebFetchHandler(fetcher))

	s.AddTool(mcp.NewTool("web-search",
		mcp.WithDescription(multiline(
			"Allows you to search the web and use the results to inform responses",
			"\nFunctionality:",
			"- Provides up-to-date information for current events and recent data",
			"- Returns search result information formatted as search result blocks",
			"- Use this tool for accessing information beyond your knowledge cutoff",
			"\nUsage notes:",
			"- Account for Today's date in environment when forming queries",
		)),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query to use")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (1-20, default 10)")),
	), tools.WebSearchHandler(searcher))

	s.AddTool(mcp.NewTool("cache-stats",
		mcp.WithDescription("Reports how many entries each in-process cache holds"),
	), tools.CacheStatsHandler(pages, searches))

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func serveMetrics(addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("metrics listener: %v", err)
	}
}

// connectCache returns a client for the daemon, starting the daemon first
// when nothing answers on sock.
func connectCache(sock string) (*cache.Client, error) {
	client := cache.NewClient(sock)
	if err := client.Ping(); err == nil {
		return client, nil
	}

	logger.Infof("Cache daemon not running at %s, attempting to start it", sock)
	if err := startCacheDaemon(); err != nil {
		return nil, fmt.Errorf("start cache daemon: %w", err)
	}

	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err = client.Ping(); err == nil {
			return client, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("cache daemon did not come up: %w", err)
}

func startCacheDaemon() error {
	var candidates []string
	// Next to this executable, then PATH, then the working directory.
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), "web-mcp-cache"))
	}
	if path, err := exec.LookPath("web-mcp-cache"); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./web-mcp-cache")

	for _, bin := range candidates {
		if _, err := os.Stat(bin); err != nil {
			continue
		}
		cmd := exec.Command(bin)
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return exec.ErrNotFound
}
