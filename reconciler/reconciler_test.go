package reconciler

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/record"
	"github.com/dyndnsd/dyndnsd/resolver"
	"github.com/dyndnsd/dyndnsd/state"
	"github.com/dyndnsd/dyndnsd/tslog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRecord = record.Record{
	Zone:     "example.com",
	Name:     "home.example.com",
	Family:   record.FamilyIPv4,
	Provider: "test",
}

var (
	addrOld = netip.MustParseAddr("198.51.100.1")
	addrNew = netip.MustParseAddr("203.0.113.9")
)

// stubResolver returns a fixed address, or an error when addr is invalid.
type stubResolver struct {
	addr netip.Addr
	err  error
}

func (r *stubResolver) Resolve(context.Context) (resolver.Observation, error) {
	if r.err != nil {
		return resolver.Observation{}, r.err
	}
	return resolver.Observation{Addr: r.addr, Source: "stub", At: time.Now()}, nil
}

// stubPublisher records calls and replies from a scripted error sequence.
// A nil entry means success; after the script runs out it keeps succeeding.
type stubPublisher struct {
	calls  []netip.Addr
	script []error
}

func (p *stubPublisher) Publish(_ context.Context, _ record.Record, addr netip.Addr) error {
	p.calls = append(p.calls, addr)
	if len(p.script) == 0 {
		return nil
	}
	err := p.script[0]
	p.script = p.script[1:]
	return err
}

// stubProber answers DNS lookups from a fixed table.
type stubProber struct {
	addr netip.Addr
	ok   bool
	err  error
}

func (p *stubProber) Lookup(context.Context, string, record.Family) (netip.Addr, bool, error) {
	return p.addr, p.ok, p.err
}

// failingStore wraps a store and fails the next n commits.
type failingStore struct {
	state.Store
	failCommits int
}

func (s *failingStore) Commit(rec record.Record, addr netip.Addr, at time.Time) error {
	if s.failCommits > 0 {
		s.failCommits--
		return errors.New("disk full")
	}
	return s.Store.Commit(rec, addr, at)
}

func newTestReconciler(res AddressResolver, store state.Store, pub provider.Publisher, cfg Config) *Reconciler {
	return New(testRecord, res, store, pub, cfg, tslog.Noop())
}

func TestTickFirstPublish(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	require.Len(t, pub.calls, 1)
	assert.Equal(t, addrNew, pub.calls[0])

	ps, err := store.Load(testRecord)
	require.NoError(t, err)
	assert.Equal(t, addrNew, ps.Addr)
	assert.Zero(t, r.Attempts())
}

func TestTickUnchangedSkipsProvider(t *testing.T) {
	store := state.NewMemoryStore()
	require.NoError(t, store.Commit(testRecord, addrNew, time.Now()))
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	assert.Equal(t, OutcomeUnchanged, r.Tick(context.Background()))
	assert.Empty(t, pub.calls)
}

func TestTickAddressChange(t *testing.T) {
	store := state.NewMemoryStore()
	require.NoError(t, store.Commit(testRecord, addrOld, time.Now()))
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	require.Len(t, pub.calls, 1)

	ps, err := store.Load(testRecord)
	require.NoError(t, err)
	assert.Equal(t, addrNew, ps.Addr)
}

func TestTickTransientThenSuccess(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{script: []error{
		provider.Transient(errors.New("rate limited")),
		provider.Transient(errors.New("rate limited")),
		nil,
	}}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	assert.Equal(t, OutcomeTransient, r.Tick(context.Background()))
	assert.Equal(t, uint32(1), r.Attempts())
	assert.Equal(t, OutcomeTransient, r.Tick(context.Background()))
	assert.Equal(t, uint32(2), r.Attempts())
	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Zero(t, r.Attempts())

	// Three provider attempts in total, and the final state holds the address.
	assert.Len(t, pub.calls, 3)
	ps, err := store.Load(testRecord)
	require.NoError(t, err)
	assert.Equal(t, addrNew, ps.Addr)
}

func TestTickResolveFailure(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{err: errors.New("all sources failed")}, store, pub, Config{})

	assert.Equal(t, OutcomeTransient, r.Tick(context.Background()))
	assert.Equal(t, uint32(1), r.Attempts())
	assert.Empty(t, pub.calls)
}

func TestTickStandingError(t *testing.T) {
	store := state.NewMemoryStore()
	require.NoError(t, store.Commit(testRecord, addrOld, time.Now()))
	pub := &stubPublisher{script: []error{
		provider.Auth(errors.New("bad token")),
	}}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	assert.Equal(t, OutcomeStanding, r.Tick(context.Background()))

	// Published state is untouched and further ticks do not retry.
	ps, err := store.Load(testRecord)
	require.NoError(t, err)
	assert.Equal(t, addrOld, ps.Addr)

	assert.Equal(t, OutcomeStanding, r.Tick(context.Background()))
	assert.Equal(t, OutcomeStanding, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)

	// A forced check clears the standing error and retries.
	r.ClearStanding()
	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 2)
}

func TestTickStandingErrorRetriesOnNewAddress(t *testing.T) {
	store := state.NewMemoryStore()
	res := &stubResolver{addr: addrNew}
	pub := &stubPublisher{script: []error{
		provider.Rejected(errors.New("no such host")),
	}}
	r := newTestReconciler(res, store, pub, Config{})

	assert.Equal(t, OutcomeStanding, r.Tick(context.Background()))
	assert.Equal(t, OutcomeStanding, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)

	// The world changed out from under the standing error.
	res.addr = netip.MustParseAddr("203.0.113.10")
	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 2)
}

func TestTickCommitFailure(t *testing.T) {
	store := &failingStore{Store: state.NewMemoryStore(), failCommits: 1}
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{})

	// The provider accepted but the store did not. No backoff: the counter
	// stays at zero so the retry happens on the normal cadence.
	assert.Equal(t, OutcomeTransient, r.Tick(context.Background()))
	assert.Zero(t, r.Attempts())

	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 2)
}

func TestTickForcedRefresh(t *testing.T) {
	store := state.NewMemoryStore()
	require.NoError(t, store.Commit(testRecord, addrNew, time.Now().Add(-2*time.Hour)))
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{
		ForceRefreshInterval: time.Hour,
	})

	// The address is unchanged but the last confirmation is too old.
	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)

	// The commit refreshed the timestamp, so the next tick is a no-op.
	assert.Equal(t, OutcomeUnchanged, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)
}

func TestTickSeedFromDNS(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{
		Prober: &stubProber{addr: addrNew, ok: true},
	})

	// The DNS already holds the resolved address: adopt it, no provider call.
	assert.Equal(t, OutcomeUnchanged, r.Tick(context.Background()))
	assert.Empty(t, pub.calls)

	ps, err := store.Load(testRecord)
	require.NoError(t, err)
	assert.Equal(t, addrNew, ps.Addr)
}

func TestTickSeedFromDNSMismatch(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{
		Prober: &stubProber{addr: addrOld, ok: true},
	})

	// The DNS holds a stale address: publish normally.
	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)
}

func TestTickSeedFromDNSNotFound(t *testing.T) {
	store := state.NewMemoryStore()
	pub := &stubPublisher{}
	r := newTestReconciler(&stubResolver{addr: addrNew}, store, pub, Config{
		Prober: &stubProber{},
	})

	assert.Equal(t, OutcomeUpdated, r.Tick(context.Background()))
	assert.Len(t, pub.calls, 1)
}
