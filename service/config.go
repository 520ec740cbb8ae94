package service

import (
	"context"
	"fmt"

	"github.com/dyndnsd/dyndnsd/internal/dnsprobe"
	"github.com/dyndnsd/dyndnsd/internal/jsoncfg"
	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/provider/cloudflare"
	"github.com/dyndnsd/dyndnsd/provider/dyndns2"
	"github.com/dyndnsd/dyndnsd/provider/route53"
	"github.com/dyndnsd/dyndnsd/reconciler"
	"github.com/dyndnsd/dyndnsd/record"
	"github.com/dyndnsd/dyndnsd/resolver"
	"github.com/dyndnsd/dyndnsd/resolver/httpapi"
	"github.com/dyndnsd/dyndnsd/resolver/iface"
	"github.com/dyndnsd/dyndnsd/state"
)

// Config is the top-level configuration document.
type Config struct {
	// Sources are the named public address sources records draw from.
	Sources []SourceConfig `json:"sources"`

	// Providers are the named DNS providers records publish through.
	Providers []ProviderConfig `json:"providers"`

	// Records are the managed DNS records.
	Records []RecordConfig `json:"records"`

	// State configures published-state persistence.
	State StateConfig `json:"state,omitzero"`

	// Metrics configures the metrics endpoint and pushgateway.
	Metrics MetricsConfig `json:"metrics,omitzero"`
}

// SourceConfig configures one public address source.
type SourceConfig struct {
	// Name is the source's name, referenced by record configurations.
	Name string `json:"name"`

	// Type selects the source implementation:
	//
	//   - "text": HTTP(S) API returning the address as a text body.
	//   - "interface": first global unicast address of a local network interface.
	Type string `json:"type"`

	// URL is the API endpoint of a "text" source.
	// If empty, the source default is used.
	URL string `json:"url,omitzero"`

	// Interface is the name of the network interface of an "interface" source.
	Interface string `json:"interface,omitzero"`
}

// ProviderConfig configures one DNS provider.
type ProviderConfig struct {
	// Name is the provider's name, referenced by record configurations.
	Name string `json:"name"`

	// Type selects the provider implementation:
	//
	//   - "cloudflare": Cloudflare.
	//   - "route53": Amazon Route 53.
	//   - "dyndns2": any DynDNS2-compatible update endpoint.
	Type string `json:"type"`

	// Cloudflare configures a "cloudflare" provider.
	Cloudflare cloudflare.Config `json:"cloudflare,omitzero"`

	// Route53 configures a "route53" provider.
	Route53 route53.Config `json:"route53,omitzero"`

	// DynDNS2 configures a "dyndns2" provider.
	DynDNS2 dyndns2.Config `json:"dyndns2,omitzero"`
}

// RecordConfig configures one managed record.
type RecordConfig struct {
	record.Record

	// Sources are the names of the address sources to query.
	Sources []string `json:"sources"`

	// Quorum is the number of sources that must agree on the address.
	// Zero or one disables agreement and takes the first valid answer.
	Quorum int `json:"quorum,omitzero"`

	// Interval is the polling cadence. If not positive, it defaults to 5 minutes.
	Interval jsoncfg.Duration `json:"interval,omitzero"`

	// SourceTimeout bounds each source query. Defaults to 10 seconds.
	SourceTimeout jsoncfg.Duration `json:"source_timeout,omitzero"`

	// ForceRefreshInterval re-publishes an unchanged address on this
	// interval, for providers that expire stale records. Zero disables it.
	ForceRefreshInterval jsoncfg.Duration `json:"force_refresh_interval,omitzero"`

	// SeedFromDNS looks up the record in the DNS when no published state is
	// stored, so a restart does not re-publish an address the provider
	// already has.
	SeedFromDNS bool `json:"seed_from_dns,omitzero"`

	// BackoffBase is the first retry delay after a transient failure.
	// Defaults to 30 seconds.
	BackoffBase jsoncfg.Duration `json:"backoff_base,omitzero"`

	// BackoffMax caps the retry delay. Defaults to 30 minutes.
	BackoffMax jsoncfg.Duration `json:"backoff_max,omitzero"`
}

// StateConfig configures published-state persistence.
type StateConfig struct {
	// Path is the bbolt database path.
	// If empty, state is kept in memory and lost on restart.
	Path string `json:"path,omitzero"`
}

// MetricsConfig configures the metrics endpoint and pushgateway.
type MetricsConfig struct {
	// ListenAddress enables the /metrics, /healthz, and /-/force endpoints
	// on the given address. Empty disables the server.
	ListenAddress string `json:"listen_address,omitzero"`

	// PushURL enables pushing metrics to a Prometheus pushgateway after
	// each successful reconciliation. Empty disables pushing.
	PushURL string `json:"push_url,omitzero"`

	// PushJob is the pushgateway job name. Defaults to "dyndnsd".
	PushJob string `json:"push_job,omitzero"`
}

func (cfg *Config) validate() error {
	if len(cfg.Records) == 0 {
		return fmt.Errorf("no records configured")
	}

	sourceNames := make(map[string]struct{}, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if sc.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if _, ok := sourceNames[sc.Name]; ok {
			return fmt.Errorf("duplicate source %q", sc.Name)
		}
		sourceNames[sc.Name] = struct{}{}
	}

	providerNames := make(map[string]struct{}, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if pc.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if _, ok := providerNames[pc.Name]; ok {
			return fmt.Errorf("duplicate provider %q", pc.Name)
		}
		providerNames[pc.Name] = struct{}{}
	}

	recordKeys := make(map[string]struct{}, len(cfg.Records))
	for _, rc := range cfg.Records {
		if rc.Name == "" {
			return fmt.Errorf("record with empty name")
		}
		key := rc.Key()
		if _, ok := recordKeys[key]; ok {
			return fmt.Errorf("duplicate record %q", key)
		}
		recordKeys[key] = struct{}{}

		if _, ok := providerNames[rc.Provider]; !ok {
			return fmt.Errorf("record %q references unknown provider %q", key, rc.Provider)
		}
		if len(rc.Sources) == 0 {
			return fmt.Errorf("record %q has no sources", key)
		}
		for _, name := range rc.Sources {
			if _, ok := sourceNames[name]; !ok {
				return fmt.Errorf("record %q references unknown source %q", key, name)
			}
		}
		if rc.Quorum > len(rc.Sources) {
			return fmt.Errorf("record %q requires a quorum of %d from %d sources", key, rc.Quorum, len(rc.Sources))
		}
	}
	return nil
}

// newSource constructs the source for one record. Interface sources are
// bound to the record's address family, so each record gets its own instance.
func (sc SourceConfig) newSource(family record.Family) (resolver.Source, error) {
	switch sc.Type {
	case "text":
		return httpapi.New(sc.Name, nil, sc.URL), nil
	case "interface":
		if sc.Interface == "" {
			return nil, fmt.Errorf("source %q: interface name is required", sc.Name)
		}
		return iface.New(sc.Name, sc.Interface, family), nil
	default:
		return nil, fmt.Errorf("source %q: unknown type %q", sc.Name, sc.Type)
	}
}

func (cfg *Config) buildPublishers(ctx context.Context) (map[string]provider.Publisher, error) {
	publishers := make(map[string]provider.Publisher, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		switch pc.Type {
		case "cloudflare":
			publishers[pc.Name] = cloudflare.NewPublisher(nil, pc.Cloudflare)
		case "route53":
			pub, err := route53.New(ctx, pc.Route53)
			if err != nil {
				return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
			}
			publishers[pc.Name] = pub
		case "dyndns2":
			pub, err := dyndns2.NewPublisher(nil, pc.DynDNS2)
			if err != nil {
				return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
			}
			publishers[pc.Name] = pub
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", pc.Name, pc.Type)
		}
	}
	return publishers, nil
}

func (cfg *Config) openStore() (state.Store, error) {
	if cfg.State.Path == "" {
		return state.NewMemoryStore(), nil
	}
	return state.NewBoltStore(cfg.State.Path)
}

// recordSources resolves a record's source references to constructed sources.
func (cfg *Config) recordSources(rc RecordConfig) ([]resolver.Source, error) {
	byName := make(map[string]SourceConfig, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		byName[sc.Name] = sc
	}

	out := make([]resolver.Source, 0, len(rc.Sources))
	for _, name := range rc.Sources {
		sc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("record %q references unknown source %q", rc.Key(), name)
		}
		src, err := sc.newSource(rc.Family)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (rc RecordConfig) reconcilerConfig() reconciler.Config {
	rcfg := reconciler.Config{
		ForceRefreshInterval: rc.ForceRefreshInterval.Value(),
	}
	if rc.SeedFromDNS {
		rcfg.Prober = dnsprobe.New()
	}
	return rcfg
}
