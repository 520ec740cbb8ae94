// Package record defines the identity of a managed DNS record.
package record

import (
	"fmt"
	"net/netip"
)

// Family is the address family of a managed record.
// It determines the DNS record type (A or AAAA) and which
// resolved addresses are acceptable for the record.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Type returns the DNS record type for the family.
func (f Family) Type() string {
	switch f {
	case FamilyIPv4:
		return "A"
	case FamilyIPv6:
		return "AAAA"
	default:
		return "unknown"
	}
}

// String implements [fmt.Stringer].
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// Matches reports whether addr belongs to the family.
// IPv4-mapped IPv6 addresses must be unmapped before the check.
func (f Family) Matches(addr netip.Addr) bool {
	switch f {
	case FamilyIPv4:
		return addr.Is4()
	case FamilyIPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return false
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.Type()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
// An empty value defaults to the A record family.
func (f *Family) UnmarshalText(text []byte) error {
	switch string(text) {
	case "A", "":
		*f = FamilyIPv4
	case "AAAA":
		*f = FamilyIPv6
	default:
		return fmt.Errorf("unknown record type %q", text)
	}
	return nil
}

// Record identifies a DNS record kept in sync with the host's public address.
// It is immutable once loaded from configuration.
type Record struct {
	// Zone is the provider-side zone identifier the record lives in.
	// For Cloudflare this is the zone ID, for Route 53 the hosted zone ID.
	// Providers that address records by name alone may leave it empty.
	Zone string `json:"zone,omitzero"`

	// Name is the fully qualified name of the record.
	Name string `json:"name"`

	// Family selects between an A and an AAAA record.
	Family Family `json:"type,omitzero"`

	// Provider is the name of the configured provider that owns the record.
	Provider string `json:"provider"`
}

// Key returns the record's stable identity,
// used as the state store key and the metrics label value.
func (r Record) Key() string {
	return r.Name + "/" + r.Family.Type()
}
