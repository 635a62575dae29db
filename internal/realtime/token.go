package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Token is an ephemeral session credential issued by the token service.
type Token struct {
	Credential string `json:"credential"`
	SessionID  string `json:"sessionId"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
}

// TokenSource mints session credentials.
type TokenSource interface {
	Acquire(ctx context.Context, sessionContext string) (Token, error)
}

// TokenClient acquires ephemeral credentials from the configured token
// endpoint. The optional free-text context seeds the agent's knowledge of
// the event it is hosting.
type TokenClient struct {
	endpoint string
	http     *retryablehttp.Client
}

func NewTokenClient(endpoint string) *TokenClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &TokenClient{endpoint: endpoint, http: client}
}

func (c *TokenClient) Acquire(ctx context.Context, sessionContext string) (Token, error) {
	body, err := json.Marshal(map[string]string{"context": sessionContext})
	if err != nil {
		return Token{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, fmt.Errorf("token service returned %d: %s", resp.StatusCode, errorDetail(data))
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.Credential == "" {
		return Token{}, fmt.Errorf("token service returned no credential")
	}
	return tok, nil
}

// errorDetail pulls a human-readable message out of an error response
// body, falling back to the raw body.
func errorDetail(body []byte) string {
	var shape struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &shape); err == nil {
		if shape.Error != "" {
			return shape.Error
		}
		if shape.Message != "" {
			return shape.Message
		}
	}
	if len(body) == 0 {
		return "no detail"
	}
	return string(body)
}
