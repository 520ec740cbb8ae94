// Package state persists the last confirmed-published address per managed record.
package state

import (
	"net/netip"
	"time"

	"github.com/dyndnsd/dyndnsd/record"
)

// PublishedState is the durable record of the last address confirmed
// accepted by the provider for a managed record. The zero value means
// the record has never been published.
type PublishedState struct {
	// Addr is the last address the provider confirmed.
	Addr netip.Addr `json:"addr"`

	// UpdatedAt is when the provider confirmed it.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsZero reports whether no address has ever been confirmed published.
func (s PublishedState) IsZero() bool {
	return !s.Addr.IsValid()
}

// Store holds the published state of managed records across restarts.
//
// Commit is the only mutator and must be atomic with respect to process
// crash. Commits for the same record are serialized by the reconciler's
// single-flight rule; commits for different records may be concurrent.
type Store interface {
	// Load returns the published state for rec.
	// A record with no prior state yields the zero state, not an error.
	Load(rec record.Record) (PublishedState, error)

	// Commit durably records addr as the confirmed-published address of rec.
	Commit(rec record.Record, addr netip.Addr, at time.Time) error

	// Close releases the store's resources.
	Close() error
}
