package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/pulsestage/internal/logging"
)

// ImageClient calls a remote image-generation endpoint.
type ImageClient struct {
	endpoint string
	apiKey   string
	http     *retryablehttp.Client
	log      *logging.Logger
}

// NewImageClient creates an image-generation client.
func NewImageClient(endpoint, apiKey string, log *logging.Logger) *ImageClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.Logger = nil
	return &ImageClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     rc,
		log:      log.Sub("imagegen"),
	}
}

// Generate submits a prompt and blocks until the service returns the
// finished image's URL. Generation can take tens of seconds; callers run
// this from a background task, never from the event loop.
func (c *ImageClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("image endpoint not configured")
	}

	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("encoding prompt: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return "", fmt.Errorf("building image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("image API returned %d: %s", resp.StatusCode, errorDetail(body))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing image response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("image API returned no url")
	}

	c.log.Debug().Str("url", out.URL).Msg("image generated")
	return out.URL, nil
}
