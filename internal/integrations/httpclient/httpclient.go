// Package httpclient holds the JSON request plumbing shared by the outbound
// gateways.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 20 * time.Second

	maxErrorBody   = 4096
	maxSuccessBody = 1 << 20
)

// StatusError captures non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Message extracts a human readable reason from a JSON error body
// ({"error": ...} or {"message": ...}), falling back to the raw body.
func (e *StatusError) Message() string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil {
		switch v := payload.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return http.StatusText(e.StatusCode)
}

// Default returns an HTTP client with the gateway timeout.
func Default() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// NewJSONRequest builds a request with an optional JSON body.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req and returns the response body. Non-2xx responses become a
// *StatusError carrying a bounded slice of the body.
func Do(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = Default()
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxSuccessBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// DoJSON sends req and decodes a successful body into out.
func DoJSON(client *http.Client, req *http.Request, out any) error {
	raw, err := Do(client, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
