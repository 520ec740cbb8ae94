package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher pushes the metric registry to a Prometheus pushgateway, for
// deployments scraped through a gateway rather than a listen endpoint.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher creates a [*Pusher] targeting the gateway at url under job.
// Pushes are bounded by a client timeout in addition to the caller's context.
func NewPusher(url, job string) *Pusher {
	return &Pusher{
		pusher: push.New(url, job).
			Gatherer(prometheus.DefaultGatherer).
			Client(&http.Client{Timeout: 15 * time.Second}),
	}
}

// Push pushes all registered metrics to the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
