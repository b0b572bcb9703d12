package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/me/eosched/pkg/model"
)

// HTTPCaller posts JSON bodies to {baseURL}{method}.
type HTTPCaller struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCaller creates a caller for baseURL, e.g. "http://127.0.0.1:8082/orchestrator/".
// A blank base URL is a ConfigError. timeout bounds every call; 0 disables it.
func NewHTTPCaller(baseURL string, timeout time.Duration) (*HTTPCaller, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, model.NewConfigError("base_url", "required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPCaller{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// BaseURL returns the URL methods are resolved against.
func (c *HTTPCaller) BaseURL() string {
	return c.baseURL
}

// Call implements Caller.
func (c *HTTPCaller) Call(ctx context.Context, method string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(body))
	if err != nil {
		return nil, &model.TransportError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransportError{Method: method, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.TransportError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
