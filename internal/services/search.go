// Package services holds HTTP clients for the external services tools
// depend on: web search and image generation. Both are treated as
// fallible remote calls whose failures are narrated, never fatal.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/pulsestage/internal/logging"
)

const maxSearchResults = 5

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age,omitempty"`
}

// searchResponse mirrors the Brave-style search API envelope.
type searchResponse struct {
	Web struct {
		Results []SearchResult `json:"results"`
	} `json:"web"`
}

// SearchClient queries a Brave-style web search API.
type SearchClient struct {
	endpoint string
	apiKey   string
	http     *retryablehttp.Client
	log      *logging.Logger
}

// NewSearchClient creates a search client for the given endpoint.
func NewSearchClient(endpoint, apiKey string, log *logging.Logger) *SearchClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return &SearchClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     rc,
		log:      log.Sub("search"),
	}
}

// Search runs a web search and returns up to maxSearchResults hits.
func (c *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}

	u := fmt.Sprintf("%s?q=%s&count=%d", c.endpoint, url.QueryEscape(query), maxSearchResults)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Subscription-Token", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, errorDetail(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := sr.Web.Results
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	c.log.Debug().Str("query", query).Int("results", len(results)).Msg("search complete")
	return results, nil
}

// Condense renders search results as a short text block for the agent.
func Condense(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s: %s", i+1, r.Title, r.Description)
		if r.Age != "" {
			fmt.Fprintf(&b, " (%s)", r.Age)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// errorDetail pulls the embedded error message out of an API error body,
// falling back to the raw body.
func errorDetail(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
