// Package dyndns2 implements a publisher speaking the DynDNS2 update
// protocol, accepted by dyn.com-compatible services (No-IP, DuckDNS
// bridges, many router-facing endpoints).
package dyndns2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/dyndnsd/dyndnsd/internal/httphelper"
	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/record"
)

// Config contains configuration options for the DynDNS2 publisher.
type Config struct {
	// URL is the update endpoint, e.g. "https://members.dyndns.org/nic/update".
	URL string `json:"url"`

	// Username and Password authenticate via HTTP basic auth.
	Username string `json:"username,omitzero"`
	Password string `json:"password,omitzero"`
}

// Publisher updates records through DynDNS2 GET requests.
//
// Publisher implements [provider.Publisher].
type Publisher struct {
	client   *http.Client
	url      *url.URL
	username string
	password string
}

// NewPublisher creates a new [*Publisher].
// If client is nil, [http.DefaultClient] is used.
func NewPublisher(client *http.Client, cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("update URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse update URL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Publisher{
		client:   client,
		url:      u,
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

var _ provider.Publisher = (*Publisher)(nil)

// Publish implements [provider.Publisher.Publish].
func (p *Publisher) Publish(ctx context.Context, rec record.Record, addr netip.Addr) error {
	u := *p.url
	q := u.Query()
	q.Set("hostname", rec.Name)
	q.Set("myip", addr.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if p.username != "" || p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send update request: %w", err)
	}
	defer resp.Body.Close()

	body, err := httphelper.ReadAllBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return provider.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("%w: unexpected status code %d: %q", provider.ErrAPIResponseFailure, resp.StatusCode, body))
	}

	return classifyResponse(strings.TrimSpace(string(body)), addr)
}

// classifyResponse maps a DynDNS2 response line onto the error taxonomy.
// good and nochg confirm the record; everything else is a failure whose
// retryability follows the protocol's return code semantics.
func classifyResponse(line string, addr netip.Addr) error {
	code, rest, _ := strings.Cut(line, " ")
	switch code {
	case "good", "nochg":
		if rest != "" && rest != addr.String() {
			return provider.Rejected(fmt.Errorf("%w: provider recorded %q, want %q",
				provider.ErrAPIResponseFailure, rest, addr))
		}
		return nil
	case "badauth":
		return provider.Auth(fmt.Errorf("%w: %q", provider.ErrAPIResponseFailure, line))
	case "notfqdn", "nohost", "numhost", "abuse", "badagent", "!donator":
		return provider.Rejected(fmt.Errorf("%w: %q", provider.ErrAPIResponseFailure, line))
	case "911", "dnserr":
		return provider.Transient(fmt.Errorf("%w: %q", provider.ErrAPIResponseFailure, line))
	default:
		return provider.Transient(fmt.Errorf("%w: unrecognized response %q", provider.ErrAPIResponseFailure, line))
	}
}
