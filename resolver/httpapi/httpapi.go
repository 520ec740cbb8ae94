// Package httpapi implements address sources backed by
// "what is my IP" style HTTP APIs that return a plain text body.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/dyndnsd/dyndnsd/internal/httphelper"
)

// Source obtains the public IP address from a text-based IP address API.
//
// Source implements [resolver.Source].
type Source struct {
	name   string
	client *http.Client
	url    string
}

// New creates a new [*Source].
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If url is empty, it defaults to "https://api.ipify.org/".
func New(name string, client *http.Client, url string) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		url = "https://api.ipify.org/"
	}
	return &Source{name: name, client: client, url: url}
}

// Name implements [resolver.Source.Name].
func (s *Source) Name() string {
	return s.name
}

// Observe retrieves the public IP address from the API.
//
// Observe implements [resolver.Source.Observe].
func (s *Source) Observe(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := httphelper.ReadAllBody(resp)
	if err != nil {
		return netip.Addr{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("unexpected status code %d: %q", resp.StatusCode, body)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to parse IP address: %w", err)
	}
	return addr.Unmap(), nil
}
