package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultTimeout bounds a judging call when no timeout is configured.
const defaultTimeout = 30 * time.Second

// HTTPGateway calls a judging endpoint over HTTP with a bounded timeout.
type HTTPGateway struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// HTTPGatewayOpts holds parameters for creating an HTTPGateway.
type HTTPGatewayOpts struct {
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client // optional, for tests
}

// NewHTTPGateway creates an HTTPGateway.
func NewHTTPGateway(opts HTTPGatewayOpts) (*HTTPGateway, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("judge: endpoint is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{endpoint: opts.Endpoint, timeout: timeout, client: client}, nil
}

// Judge posts the transcript and decodes the verdict. The call is bounded
// by the configured timeout regardless of the caller's context.
func (g *HTTPGateway) Judge(ctx context.Context, transcript Transcript) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(transcript)
	if err != nil {
		return nil, fmt.Errorf("judge: marshal transcript: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge: call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("judge: gateway returned %d: %s", resp.StatusCode, snippet)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("judge: decode verdict: %w", err)
	}
	if verdict.Winner != "A" && verdict.Winner != "B" && verdict.Winner != "TIE" {
		return nil, fmt.Errorf("judge: gateway returned invalid winner %q", verdict.Winner)
	}
	return &verdict, nil
}
