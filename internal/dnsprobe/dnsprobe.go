// Package dnsprobe looks up the currently published address of a DNS record.
package dnsprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/dyndnsd/dyndnsd/record"
)

// Prober queries the DNS for the address a record currently resolves to.
// It is used to seed an empty state store after a restart,
// so an address that is already published is not re-published.
type Prober struct {
	resolver *net.Resolver
}

// New creates a [*Prober] backed by the system resolver.
func New() *Prober {
	return &Prober{resolver: net.DefaultResolver}
}

// Lookup returns the first published address of the given family for host.
// A name that does not resolve is reported as ok == false, not an error.
func (p *Prober) Lookup(ctx context.Context, host string, family record.Family) (addr netip.Addr, ok bool, err error) {
	network := "ip4"
	if family == record.FamilyIPv6 {
		network = "ip6"
	}

	addrs, err := p.resolver.LookupNetIP(ctx, network, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return netip.Addr{}, false, nil
		}
		return netip.Addr{}, false, fmt.Errorf("failed to look up %q: %w", host, err)
	}

	for _, a := range addrs {
		a = a.Unmap()
		if family.Matches(a) {
			return a, true, nil
		}
	}
	return netip.Addr{}, false, nil
}
