package record_test

import (
	"net/netip"
	"testing"

	"github.com/dyndnsd/dyndnsd/record"
)

func TestFamilyType(t *testing.T) {
	if got := record.FamilyIPv4.Type(); got != "A" {
		t.Errorf("FamilyIPv4.Type() = %q, want A", got)
	}
	if got := record.FamilyIPv6.Type(); got != "AAAA" {
		t.Errorf("FamilyIPv6.Type() = %q, want AAAA", got)
	}
}

func TestFamilyMatches(t *testing.T) {
	v4 := netip.MustParseAddr("203.0.113.5")
	v6 := netip.MustParseAddr("2001:db8::1")
	mapped := netip.MustParseAddr("::ffff:203.0.113.5")

	if !record.FamilyIPv4.Matches(v4) {
		t.Error("FamilyIPv4 should match an IPv4 address")
	}
	if record.FamilyIPv4.Matches(v6) {
		t.Error("FamilyIPv4 should not match an IPv6 address")
	}
	if !record.FamilyIPv6.Matches(v6) {
		t.Error("FamilyIPv6 should match an IPv6 address")
	}
	if record.FamilyIPv6.Matches(mapped) {
		t.Error("FamilyIPv6 should not match an IPv4-mapped address")
	}
	if record.FamilyIPv4.Matches(mapped) {
		t.Error("Matches expects unmapped addresses")
	}
}

func TestFamilyUnmarshalText(t *testing.T) {
	var f record.Family
	if err := f.UnmarshalText([]byte("AAAA")); err != nil {
		t.Fatalf("UnmarshalText failed: %s", err)
	}
	if f != record.FamilyIPv6 {
		t.Errorf("got %v, want FamilyIPv6", f)
	}
	if err := f.UnmarshalText([]byte("")); err != nil {
		t.Fatalf("UnmarshalText failed: %s", err)
	}
	if f != record.FamilyIPv4 {
		t.Errorf("empty value should default to FamilyIPv4, got %v", f)
	}
	if err := f.UnmarshalText([]byte("CNAME")); err == nil {
		t.Error("expected error for unsupported record type")
	}
}

func TestRecordKey(t *testing.T) {
	rec := record.Record{Name: "home.example.com", Family: record.FamilyIPv4}
	if got, want := rec.Key(), "home.example.com/A"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}
