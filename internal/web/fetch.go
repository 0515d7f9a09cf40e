package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// SearchProvider is the minimal external collaborator a WebSearchClient
// wraps: something that turns a query into ranked URLs/snippets (a
// vendor search API). Kept separate from Fetcher so a caller can swap
// search providers without touching fetch/extract logic.
type SearchProvider interface {
	Search(ctx context.Context, query string, k int) ([]types.WebResult, error)
}

// Client implements interfaces.WebSearchClient: a SearchProvider for
// discovery, then a fetch-and-extract pass that upgrades each result's
// Snippet with the page's actual extracted text when the snippet is
// too thin to score well.
type Client struct {
	search     SearchProvider
	httpClient *http.Client
	authority  AuthorityTable
}

// NewClient builds a web Client.
func NewClient(search SearchProvider, authority AuthorityTable) *Client {
	return &Client{
		search:     search,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		authority:  authority,
	}
}

// WebSearch implements interfaces.WebSearchClient.
func (c *Client) WebSearch(ctx context.Context, query string, k int) ([]types.WebResult, error) {
	results, err := c.search.Search(ctx, query, k)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, err)
	}
	for i := range results {
		if len(results[i].Snippet) < 80 {
			if text, err := c.extract(ctx, results[i].URL); err == nil && text != "" {
				results[i].Snippet = truncate(text, 500)
			}
		}
		results[i].Scores.Authority = c.authority.Score(results[i].URL)
	}
	return results, nil
}

// extract fetches a page and pulls its main text, using a headless
// browser when the page needs JS rendering (detected by an empty
// plain-HTTP body) and a plain GET otherwise.
func (c *Client) extract(ctx context.Context, pageURL string) (string, error) {
	text, err := c.extractStatic(ctx, pageURL)
	if err == nil && text != "" {
		return text, nil
	}
	return c.extractRendered(ctx, pageURL)
}

func (c *Client) extractStatic(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	return extractText(doc), nil
}

func (c *Client) extractRendered(ctx context.Context, pageURL string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, 15*time.Second)
	defer timeoutCancel()

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", errs.New(errs.UpstreamTransient, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return extractText(doc), nil
}

// extractText pulls a readable main-content string from doc, dropping
// script/style/nav chrome the way an ingestion-time HTML-to-text pass
// would.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()
	text := doc.Find("body").Text()
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// AuthorityTable classifies a URL's domain as trusted, unknown, or
// spam, returning its authority score.
type AuthorityTable struct {
	Trusted map[string]struct{}
	Spam    map[string]struct{}
}

// NewAuthorityTable builds a table from explicit trusted/spam domain
// lists.
func NewAuthorityTable(trusted, spam []string) AuthorityTable {
	t := AuthorityTable{Trusted: map[string]struct{}{}, Spam: map[string]struct{}{}}
	for _, d := range trusted {
		t.Trusted[d] = struct{}{}
	}
	for _, d := range spam {
		t.Spam[d] = struct{}{}
	}
	return t
}

// Score returns the authority score for rawURL's domain.
func (t AuthorityTable) Score(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0.5
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if _, ok := t.Trusted[host]; ok {
		return 1.0
	}
	if _, ok := t.Spam[host]; ok {
		return 0.0
	}
	return 0.5
}

var _ interfaces.WebSearchClient = (*Client)(nil)
