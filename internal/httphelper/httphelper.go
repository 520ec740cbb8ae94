// Package httphelper provides helpers for building and reading API requests.
package httphelper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// NewJSONRequest creates a new HTTP request with the given method, url,
// and body encoded as JSON. Content-Type is set to application/json.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ReadAllBody reads the response body in full,
// sizing the buffer from Content-Length when known.
func ReadAllBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(max(0, int(resp.ContentLength)))
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return buf.Bytes(), nil
}
