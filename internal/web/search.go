package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/leonardcser/web-memo/internal/cache"
)

const (
	DefaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	maxSearchResults      = 20
)

// extractDDGURL extracts the actual URL from DuckDuckGo's redirect URL format
// Input: //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=...
// Output: https://example.com
func extractDDGURL(ddgURL string) string {
	if strings.HasPrefix(ddgURL, "//duckduckgo.com/l/") {
		ddgURL = "https:" + ddgURL
	}
	u, err := url.Parse(ddgURL)
	if err != nil {
		return ddgURL
	}
	// url.Values already unescapes the parameter.
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	return ddgURL
}

type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Searcher queries the DuckDuckGo HTML endpoint. Result lists are memoized
// per query, so every limit is served from the same cached list.
type Searcher struct {
	client   *http.Client
	endpoint string
	kv       cache.KV
	ttl      time.Duration
	log      *zap.Logger
	agents   *UserAgents
	search   func(context.Context, string) ([]SearchResult, error)
}

// NewSearcher returns a Searcher that memoizes result lists in memo for ttl.
// kv may be nil. A list read from kv is memoized for a further ttl, so a
// result stored by another process can be served for up to 2*ttl after its
// query ran.
func NewSearcher(memo *cache.Memory[[]SearchResult], kv cache.KV, ttl time.Duration, log *zap.Logger, opts ...cache.MemoizeOption) *Searcher {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Searcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: DefaultSearchEndpoint,
		kv:       kv,
		ttl:      ttl,
		log:      log.With(zap.String("component", "searcher")),
		agents:   DefaultUserAgents,
	}
	s.search = cache.Memoize(memo, s.load, searchKey, ttl, opts...)
	return s
}

// WithEndpoint points the searcher at a different results page.
func (s *Searcher) WithEndpoint(endpoint string) *Searcher {
	s.endpoint = endpoint
	return s
}

func searchKey(q string) string { return "web_search|" + q }

// Search returns at most limit results for query. A limit outside 1..20
// falls back to 10.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errors.New("empty query")
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = 10
	}
	results, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Searcher) load(ctx context.Context, q string) ([]SearchResult, error) {
	key := searchKey(q)
	if s.kv != nil {
		if v, err := s.kv.Get(key); err == nil {
			var cached []SearchResult
			if json.Unmarshal(v, &cached) == nil {
				s.log.Debug("shared cache hit", zap.String("query", q))
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			s.log.Warn("shared cache get failed", zap.String("query", q), zap.Error(err))
		}
	}

	results, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.kv != nil {
		if b, err := json.Marshal(results); err == nil {
			if err := s.kv.Put(key, b, s.ttl); err != nil {
				s.log.Warn("shared cache put failed", zap.String("query", q), zap.Error(err))
			}
		}
	}
	return results, nil
}

func (s *Searcher) query(ctx context.Context, q string) ([]SearchResult, error) {
	values := url.Values{"q": {q}, "kl": {"us-en"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("duckduckgo status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	results := parseResults(doc, maxSearchResults)
	s.log.Info("searched", zap.String("query", q), zap.Int("results", len(results)))
	return results, nil
}

// parseResults reads result blocks from the DuckDuckGo HTML page, falling
// back to a plain scan of result anchors when the block markup is absent.
func parseResults(doc *goquery.Document, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	doc.Find("div.result.results_links.results_links_deep.web-result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		a := s.Find("a.result__a").First()
		link := strings.TrimSpace(a.AttrOr("href", ""))
		title := singleLine(a.Text())
		if title != "" && link != "" {
			results = append(results, SearchResult{
				Title:       title,
				Description: singleLine(s.Find("a.result__snippet").First().Text()),
				Link:        extractDDGURL(link),
			})
		}
		return len(results) < limit
	})
	if len(results) > 0 {
		return results
	}

	doc.Find("a.result__a").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		results = append(results, SearchResult{
			Title:       singleLine(n.Text()),
			Description: singleLine(n.Parents().Find("a.result__snippet").First().Text()),
			Link:        extractDDGURL(strings.TrimSpace(n.AttrOr("href", ""))),
		})
		return len(results) < limit
	})
	return results
}
