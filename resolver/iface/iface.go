// Package iface implements an address source backed by a local network
// interface, for hosts whose interface carries a global unicast address.
package iface

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/dyndnsd/dyndnsd/record"
)

// Source obtains the first global unicast address of the requested family
// from a network interface, using Go's net package.
//
// Source implements [resolver.Source].
type Source struct {
	name   string
	ifname string
	family record.Family
}

// New creates a new [*Source] for the named network interface.
func New(name, ifname string, family record.Family) *Source {
	return &Source{name: name, ifname: ifname, family: family}
}

// Name implements [resolver.Source.Name].
func (s *Source) Name() string {
	return s.name
}

// Observe returns the interface's first matching address.
//
// Observe implements [resolver.Source.Observe].
func (s *Source) Observe(_ context.Context) (netip.Addr, error) {
	iface, err := net.InterfaceByName(s.ifname)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to get interface by name %q: %w", s.ifname, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to get addresses of interface %q: %w", s.ifname, err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.IsLinkLocalUnicast() || ip.IsLoopback() {
			continue
		}
		if s.family.Matches(ip) {
			return ip, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("interface %q has no %s address", s.ifname, s.family)
}
