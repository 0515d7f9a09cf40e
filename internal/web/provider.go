package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
)

// BingProvider implements SearchProvider against the Bing Web Search
// API. No search-vendor SDK appears anywhere in the retrieved example
// pack, so this thin request/response adapter is built directly on
// net/http rather than adopting an unrelated library just to wrap one
// GET request.
type BingProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewBingProvider builds a BingProvider. endpoint defaults to the
// public Bing Web Search v7 endpoint when empty.
func NewBingProvider(apiKey, endpoint string) *BingProvider {
	if endpoint == "" {
		endpoint = "https://api.bing.microsoft.com/v7.0/search"
	}
	return &BingProvider{apiKey: apiKey, endpoint: endpoint, httpClient: &http.Client{Timeout: 8 * time.Second}}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search implements SearchProvider.
func (p *BingProvider) Search(ctx context.Context, query string, k int) ([]types.WebResult, error) {
	u := fmt.Sprintf("%s?q=%s&count=%d", p.endpoint, url.QueryEscape(query), k)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.New(errs.InternalInvariant, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, errs.New(errs.UpstreamTransient, fmt.Errorf("bing search: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.UpstreamInvalidReq, fmt.Errorf("bing search: status %d", resp.StatusCode))
	}

	var parsed bingResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		return nil, errs.New(errs.UpstreamTransient, decodeErr)
	}

	results := make([]types.WebResult, 0, len(parsed.WebPages.Value))
	for _, v := range parsed.WebPages.Value {
		results = append(results, types.WebResult{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
	}
	return results, nil
}
