// Package route53 implements a publisher for Amazon Route 53.
package route53

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"
	"github.com/dyndnsd/dyndnsd/internal/jsoncfg"
	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/record"
)

// Config contains configuration options for the Route 53 publisher.
// Credentials come from the ambient AWS credential chain
// (environment, shared config, instance metadata).
type Config struct {
	// TTL is the TTL of managed records in seconds. Defaults to 300.
	TTL int64 `json:"ttl,omitzero"`

	// WaitForSync makes Publish block until the change status is INSYNC,
	// instead of trusting the accepted-change response.
	WaitForSync bool `json:"wait_for_sync,omitzero"`

	// WaitTimeout bounds the INSYNC wait. Defaults to 2 minutes.
	WaitTimeout jsoncfg.Duration `json:"wait_timeout,omitzero"`
}

// API is the subset of the Route 53 client used by the publisher.
type API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	route53.GetChangeAPIClient
}

// Publisher keeps single A/AAAA record sets current through UPSERT change
// batches, the way the Route 53 API is meant to be driven for this job.
//
// Publisher implements [provider.Publisher].
type Publisher struct {
	client      API
	ttl         int64
	waitForSync bool
	waitTimeout time.Duration
}

// New creates a [*Publisher] using the ambient AWS credential chain.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewWithClient(route53.NewFromConfig(awsCfg), cfg), nil
}

// NewWithClient creates a [*Publisher] with the given API client.
func NewWithClient(client API, cfg Config) *Publisher {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 300
	}
	waitTimeout := cfg.WaitTimeout.Value()
	if waitTimeout <= 0 {
		waitTimeout = 2 * time.Minute
	}
	return &Publisher{
		client:      client,
		ttl:         ttl,
		waitForSync: cfg.WaitForSync,
		waitTimeout: waitTimeout,
	}
}

var _ provider.Publisher = (*Publisher)(nil)

// Publish implements [provider.Publisher.Publish].
// rec.Zone is the hosted zone ID.
func (p *Publisher) Publish(ctx context.Context, rec record.Record, addr netip.Addr) error {
	out, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(rec.Zone),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name: aws.String(rec.Name),
					Type: types.RRType(rec.Family.Type()),
					TTL:  aws.Int64(p.ttl),
					ResourceRecords: []types.ResourceRecord{
						{Value: aws.String(addr.String())},
					},
				},
			}},
		},
	})
	if err != nil {
		return classify(err)
	}
	if out.ChangeInfo == nil || out.ChangeInfo.Id == nil {
		return provider.Transient(fmt.Errorf("%w: change response carries no change info", provider.ErrAPIResponseFailure))
	}
	if !p.waitForSync || out.ChangeInfo.Status == types.ChangeStatusInsync {
		return nil
	}
	return p.waitInSync(ctx, *out.ChangeInfo.Id)
}

func (p *Publisher) waitInSync(ctx context.Context, changeID string) error {
	waiter := route53.NewResourceRecordSetsChangedWaiter(p.client)
	err := waiter.Wait(ctx, &route53.GetChangeInput{Id: aws.String(changeID)}, p.waitTimeout)
	if err != nil {
		return provider.Transient(fmt.Errorf("failed to wait for change %q: %w", changeID, err))
	}
	return nil
}

// classify maps AWS API error codes onto the provider error taxonomy.
func classify(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchHostedZone", "InvalidInput", "InvalidChangeBatch":
			return provider.Rejected(err)
		case "AccessDenied", "AccessDeniedException", "InvalidClientTokenId",
			"UnrecognizedClientException", "SignatureDoesNotMatch", "ExpiredToken",
			"ExpiredTokenException", "MissingAuthenticationToken":
			return provider.Auth(err)
		case "Throttling", "ThrottlingException", "PriorRequestNotComplete", "ServiceUnavailable":
			return provider.Transient(err)
		}
	}
	return provider.Transient(err)
}
