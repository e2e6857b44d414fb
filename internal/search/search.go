// Package search issues a single web search through DuckDuckGo's HTML
// endpoint, the only search surface that does not require an API key.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// searchURL is a var rather than a const so package-internal tests can
// point a Client at a local fixture server.
var searchURL = "https://html.duckduckgo.com/html/"

// Result is one search hit: a snippet and its source URL.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Config tunes the client.
type Config struct {
	Timeout     time.Duration // default 3.5s, per spec.md §4.H.2
	Country     string        // optional, passed through as DuckDuckGo's "kl" region parameter
	MaxResults  int           // default 5
}

// Client performs bounded-timeout DuckDuckGo HTML searches.
type Client struct {
	httpClient *http.Client
	country    string
	maxResults int
}

// New constructs a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3500 * time.Millisecond
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("search: too many redirects")
				}
				return nil
			},
		},
		country:    cfg.Country,
		maxResults: maxResults,
	}
}

// Search issues query and returns up to MaxResults snippets + URLs.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)
	if c.country != "" {
		form.Set("kl", c.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("search: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; btwd/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: endpoint returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search: parsing response: %w", err)
	}

	var results []Result
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if len(results) >= c.maxResults {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.Contains(href, "duckduckgo.com") || strings.HasPrefix(href, "/") {
			return
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     href,
			Snippet: strings.TrimSpace(s.Find("a.result__snippet").First().Text()),
		})
	})

	return results, nil
}
