package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// DefaultHost is the loopback address the discovery endpoint is served on.
const DefaultHost = "127.0.0.1"

// DefaultRequestTimeout bounds a single discovery request.
const DefaultRequestTimeout = 10 * time.Second

// DiscoveryResult is the subset of a /json/<command> response this package uses.
type DiscoveryResult struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// TargetFetcher performs one discovery request.
type TargetFetcher interface {
	FetchTarget(ctx context.Context, command string) (*DiscoveryResult, error)
}

// DiscoveryClient issues single-shot requests to the local JSON endpoint.
type DiscoveryClient struct {
	// Port is the remote debugging port.
	Port int
	// Timeout bounds each request. Zero means DefaultRequestTimeout.
	Timeout time.Duration
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     logr.Logger
}

var _ TargetFetcher = (*DiscoveryClient)(nil)

// URL returns the endpoint address for command.
func (c *DiscoveryClient) URL(command string) string {
	return fmt.Sprintf("http://%s:%d/json/%s", DefaultHost, c.Port, command)
}

// FetchTarget sends GET /json/<command> and parses the response.
// Failures are returned as *DiscoveryError. No retry happens here.
func (c *DiscoveryClient) FetchTarget(ctx context.Context, command string) (*DiscoveryResult, error) {
	url := c.URL(command)
	log := c.logger().WithValues("url", url)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DiscoveryError{Kind: KindNetwork, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	log.V(1).Info("Running JSON command, waiting for response")
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(url, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.V(1).Info("Unable to fetch webSocketDebuggerUrl", "status", resp.StatusCode)
		return nil, &DiscoveryError{Kind: KindBadStatus, URL: url, StatusCode: resp.StatusCode}
	}

	var result DiscoveryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DiscoveryError{Kind: KindMalformedBody, URL: url, Err: fmt.Errorf("parse response: %w", err)}
	}
	if result.WebSocketURL == "" {
		return nil, &DiscoveryError{Kind: KindMalformedBody, URL: url, Err: errors.New("response has no webSocketDebuggerUrl")}
	}

	log.V(1).Info("JSON command succeeded", "targetID", result.ID, "targetType", result.Type)
	return &result, nil
}

func (c *DiscoveryClient) logger() logr.Logger {
	if c.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return c.Logger
}

// classifyTransportError maps a request or body read failure to a timeout or
// network DiscoveryError.
func classifyTransportError(url string, err error) *DiscoveryError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &DiscoveryError{Kind: KindTimeout, URL: url, Err: err}
	}
	return &DiscoveryError{Kind: KindNetwork, URL: url, Err: err}
}
