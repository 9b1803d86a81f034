package web

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/leonardcser/web-memo/internal/cache"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 1 * 1024 * 1024 // 1MB
)

var ErrUnsupportedContent = errors.New("unsupported content type: binary files like images or PDFs are not supported")

type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
}

// Fetcher loads and summarises web pages. Results are memoized in-process
// and, when a KV is configured, shared through it with other processes.
type Fetcher struct {
	collector *colly.Collector
	kv        cache.KV
	ttl       time.Duration
	log       *zap.Logger
	agents    *UserAgents
	fetch     func(context.Context, string) (*PageSummary, error)
}

// NewFetcher returns a Fetcher that memoizes summaries in memo for ttl.
// kv may be nil, in which case only the in-process tier is used. A summary
// read from kv is memoized for a further ttl, so a page stored by another
// process can be served for up to 2*ttl after it was fetched.
func NewFetcher(memo *cache.Memory[*PageSummary], kv cache.KV, ttl time.Duration, log *zap.Logger, opts ...cache.MemoizeOption) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       1 * time.Second,
	})
	c.SetRequestTimeout(RequestTimeout)

	f := &Fetcher{
		collector: c,
		kv:        kv,
		ttl:       ttl,
		log:       log.With(zap.String("component", "fetcher")),
		agents:    DefaultUserAgents,
	}
	f.fetch = cache.Memoize(memo, f.load, cacheKey, ttl, opts...)
	return f
}

func cacheKey(rawURL string) string { return "web_fetch|" + rawURL }

// Fetch returns the summary of rawURL, reusing a cached result when one is
// still fresh. Only http and https URLs are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*PageSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, errors.New("url must start with http:// or https://")
	}
	return f.fetch(ctx, rawURL)
}

// load is the memoized producer: shared tier first, then the network.
func (f *Fetcher) load(ctx context.Context, rawURL string) (*PageSummary, error) {
	key := cacheKey(rawURL)
	if f.kv != nil {
		if v, err := f.kv.Get(key); err == nil {
			var ps PageSummary
			if json.Unmarshal(v, &ps) == nil {
				f.log.Debug("shared cache hit", zap.String("url", rawURL))
				return &ps, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			f.log.Warn("shared cache get failed", zap.String("url", rawURL), zap.Error(err))
		}
	}

	ps, err := f.scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if f.kv != nil {
		if b, err := json.Marshal(ps); err == nil {
			if err := f.kv.Put(key, b, f.ttl); err != nil {
				f.log.Warn("shared cache put failed", zap.String("url", rawURL), zap.Error(err))
			}
		}
	}
	return ps, nil
}

func (f *Fetcher) scrape(ctx context.Context, rawURL string) (*PageSummary, error) {
	// A clone carries the configuration and limits but no callbacks, so
	// concurrent fetches do not see each other's handlers.
	c := f.collector.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.agents.Next())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		body        []byte
		finalURL    string
		contentType string
	)
	c.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		finalURL = r.Request.URL.String()
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})

	start := time.Now()
	if err := c.Visit(rawURL); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.log.Info("fetched page",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))

	return summarize(body, contentType, finalURL)
}
