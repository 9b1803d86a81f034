package web

import (
	"bytes"
	"errors"
	"net/url"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const maxLinks = 50

// invisible lists elements dropped before text extraction.
const invisible = "script, style, noscript, iframe, object, embed, img, video, picture, svg, canvas, audio, source, track, map, area, form, label, input, button, select, textarea, progress, ins, applet"

// summarize turns a response body into a PageSummary. HTML is converted to
// Markdown; other text types are returned as-is.
func summarize(body []byte, contentType, finalURL string) (*PageSummary, error) {
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	if len(body) > MaxResponseSize {
		body = append(body[:MaxResponseSize:MaxResponseSize], []byte("... [response trimmed due to size]")...)
	}

	ct := strings.ToLower(contentType)
	if !strings.HasPrefix(ct, "text/") {
		return nil, ErrUnsupportedContent
	}
	if !strings.Contains(ct, "text/html") {
		return &PageSummary{URL: finalURL, Text: string(body)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find(invisible).Remove()

	ps := &PageSummary{
		URL:         finalURL,
		Title:       strings.TrimSpace(doc.Find("head > title").First().Text()),
		Description: strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", "")),
		Links:       extractLinks(doc, finalURL),
	}

	plain := singleLine(doc.Find("body").Text())

	// Links are reported separately; drop anchors and page chrome from the text.
	doc.Find("a").Remove()
	doc.Find("header, footer, aside").Remove()

	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	if md, err := htmltomarkdown.ConvertString(html); err == nil {
		ps.Text = md
	} else {
		ps.Text = plain
	}
	return ps, nil
}

// extractLinks returns up to maxLinks absolute, fragment-free http(s) links in
// sorted order.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() && base != nil {
			u = base.ResolveReference(u)
		}
		switch u.Scheme {
		case "", "javascript", "mailto", "tel":
			return
		}
		u.Fragment = ""
		seen[u.String()] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
