package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/record"
)

// Config contains configuration options for the Cloudflare publisher.
type Config struct {
	// Token is the API token. It needs DNS edit permission on the zone.
	Token string `json:"token"`

	// BaseURL overrides the API endpoint. Empty uses the public endpoint.
	BaseURL string `json:"base_url,omitzero"`

	// Proxied controls whether managed records are proxied through Cloudflare.
	Proxied bool `json:"proxied,omitzero"`

	// TTL is the TTL of managed records in seconds. 1 means 'automatic'.
	TTL int `json:"ttl,omitzero"`

	// Comment is attached to records this publisher creates.
	Comment string `json:"comment,omitzero"`
}

// Publisher keeps single A/AAAA records current through the Cloudflare API.
//
// Publisher implements [provider.Publisher].
type Publisher struct {
	client  *Client
	proxied bool
	ttl     int
	comment string
}

// NewPublisher creates a new [*Publisher].
// If client is nil, [http.DefaultClient] is used for API requests.
func NewPublisher(client *http.Client, cfg Config) *Publisher {
	return &Publisher{
		client:  NewClient(client, cfg.BaseURL, cfg.Token),
		proxied: cfg.Proxied,
		ttl:     cfg.TTL,
		comment: cfg.Comment,
	}
}

var _ provider.Publisher = (*Publisher)(nil)

// Publish sets rec to addr, creating the record if the zone does not have
// one yet. Success requires the API response to carry the target address.
//
// Publish implements [provider.Publisher.Publish].
func (p *Publisher) Publish(ctx context.Context, rec record.Record, addr netip.Addr) error {
	records, err := p.client.ListDNSRecords(ctx, rec.Zone, rec.Name, rec.Family.Type())
	if err != nil {
		return fmt.Errorf("failed to list DNS records: %w", err)
	}

	content := addr.String()
	switch len(records) {
	case 0:
		created, err := p.client.CreateDNSRecord(ctx, rec.Zone, &DNSRecord{
			Name:    rec.Name,
			Type:    rec.Family.Type(),
			Content: content,
			Proxied: p.proxied,
			TTL:     p.ttl,
			Comment: p.comment,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s record: %w", rec.Family.Type(), err)
		}
		return confirmContent(created, content)

	case 1:
		existing := records[0]
		if existing.Content == content {
			return nil
		}
		updated, err := p.client.UpdateDNSRecord(ctx, rec.Zone, existing.ID, &UpdateDNSRecordRequest{
			Content: content,
			Proxied: &p.proxied,
			TTL:     p.ttl,
			Comment: p.comment,
		})
		if err != nil {
			return fmt.Errorf("failed to update %s record: %w", rec.Family.Type(), err)
		}
		return confirmContent(updated, content)

	default:
		return provider.Rejected(fmt.Errorf("found %d %s records for %q, want at most one",
			len(records), rec.Family.Type(), rec.Name))
	}
}

func confirmContent(rec DNSRecord, content string) error {
	if rec.Content != content {
		return provider.Rejected(fmt.Errorf("%w: record holds %q, want %q",
			provider.ErrAPIResponseFailure, rec.Content, content))
	}
	return nil
}
