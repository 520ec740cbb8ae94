// Package cloudflare implements a publisher for Cloudflare DNS.
package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dyndnsd/dyndnsd/internal/httphelper"
	"github.com/dyndnsd/dyndnsd/provider"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client is a Cloudflare API client for managing DNS records.
type Client struct {
	client              *http.Client
	baseURL             string
	authorizationHeader string
}

// NewClient creates a new [Client] with the given HTTP client and API token.
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If baseURL is empty, the public API endpoint is used.
func NewClient(client *http.Client, baseURL, token string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:              client,
		baseURL:             baseURL,
		authorizationHeader: "Bearer " + token,
	}
}

// ListDNSRecords lists DNS records in a zone matching name and recordType.
func (c *Client) ListDNSRecords(ctx context.Context, zoneID, name, recordType string) ([]DNSRecord, error) {
	return clientDo[[]DNSRecord](c, func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", name)
		values.Set("type", recordType)
		url := fmt.Sprintf("%s/zones/%s/dns_records?%s", c.baseURL, zoneID, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// CreateDNSRecord creates a DNS record in a zone.
func (c *Client) CreateDNSRecord(ctx context.Context, zoneID string, record *DNSRecord) (DNSRecord, error) {
	return clientDo[DNSRecord](c, func() (*http.Request, error) {
		url := fmt.Sprintf("%s/zones/%s/dns_records", c.baseURL, zoneID)
		return httphelper.NewJSONRequest(ctx, http.MethodPost, url, record)
	})
}

// UpdateDNSRecord updates a DNS record in a zone.
func (c *Client) UpdateDNSRecord(ctx context.Context, zoneID, recordID string, req *UpdateDNSRecordRequest) (DNSRecord, error) {
	return clientDo[DNSRecord](c, func() (*http.Request, error) {
		url := fmt.Sprintf("%s/zones/%s/dns_records/%s", c.baseURL, zoneID, recordID)
		return httphelper.NewJSONRequest(ctx, http.MethodPatch, url, req)
	})
}

// UpdateDNSRecordRequest is the request body for updating a DNS record.
type UpdateDNSRecordRequest struct {
	Content string `json:"content,omitempty"`
	Proxied *bool  `json:"proxied,omitempty"`
	TTL     int    `json:"ttl,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// DNSRecord represents a DNS record in a zone.
type DNSRecord struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl,omitempty"`
	Comment string `json:"comment,omitempty"`
}

func clientDo[R any](c *Client, newRequest func() (*http.Request, error)) (result R, err error) {
	req, err := newRequest()
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header["Authorization"] = []string{c.authorizationHeader}

	resp, err := c.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := httphelper.ReadAllBody(resp)
	if err != nil {
		return result, err
	}

	if resp.StatusCode != http.StatusOK {
		return result, provider.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("%w: unexpected status code %d: %q", provider.ErrAPIResponseFailure, resp.StatusCode, bodyBytes))
	}

	var response Response[R]
	if err = json.Unmarshal(bodyBytes, &response); err != nil {
		return result, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !response.Success {
		return result, provider.Rejected(fmt.Errorf("%w: %v", provider.ErrAPIResponseFailure, response.Errors))
	}

	return response.Result, nil
}

// Response is a generic response from the Cloudflare API.
type Response[R any] struct {
	Success  bool           `json:"success"`
	Errors   []ResponseInfo `json:"errors"`
	Messages []ResponseInfo `json:"messages"`
	Result   R              `json:"result"`
}

// ResponseInfo contains a code and message returned by the API as errors or
// informational messages inside the response.
type ResponseInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
