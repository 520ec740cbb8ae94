// Package resolver determines the host's current public address by querying
// one or more independent sources, optionally requiring several of them to
// agree before trusting the answer.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dyndnsd/dyndnsd/record"
)

// Source produces an observation of the host's current public address.
type Source interface {
	// Name identifies the source in observations, errors, and logs.
	Name() string

	// Observe returns the source's view of the host's public address.
	Observe(ctx context.Context) (netip.Addr, error)
}

// Observation is a resolved address together with the source that produced it.
type Observation struct {
	Addr   netip.Addr
	Source string
	At     time.Time
}

// ResolutionError reports that no source produced an agreed-upon address.
type ResolutionError struct {
	// Disagreement is set when sources responded but did not agree.
	Disagreement bool

	// Err holds the per-source failures, joined.
	Err error
}

func (e *ResolutionError) Error() string {
	if e.Disagreement {
		return "sources did not agree on a public address"
	}
	return "no source produced a valid public address"
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver queries a fixed list of sources for addresses of one family.
//
// With a quorum of one or less, sources are tried in order and the first
// valid answer wins. With a larger quorum, all sources are queried
// concurrently and resolution succeeds only once that many sources have
// returned the same address. Disagreement is an error, never a guess.
type Resolver struct {
	family  record.Family
	sources []Source
	quorum  int
	timeout time.Duration
}

// New creates a [*Resolver]. The per-source timeout applies to each query
// independently; a non-positive timeout defaults to 10 seconds.
func New(family record.Family, sources []Source, quorum int, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		family:  family,
		sources: sources,
		quorum:  quorum,
		timeout: timeout,
	}
}

// Resolve returns the host's current public address.
// On failure it returns a [*ResolutionError] carrying the per-source reasons.
func (r *Resolver) Resolve(ctx context.Context) (Observation, error) {
	if len(r.sources) == 0 {
		return Observation{}, &ResolutionError{Err: errors.New("no sources configured")}
	}
	if r.quorum > 1 {
		return r.resolveQuorum(ctx)
	}
	return r.resolveSequential(ctx)
}

func (r *Resolver) resolveSequential(ctx context.Context) (Observation, error) {
	var errs []error
	for _, src := range r.sources {
		addr, err := r.observe(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		return Observation{Addr: addr, Source: src.Name(), At: time.Now()}, nil
	}
	return Observation{}, &ResolutionError{Err: errors.Join(errs...)}
}

func (r *Resolver) resolveQuorum(ctx context.Context) (Observation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		source string
		addr   netip.Addr
		err    error
	}

	results := make(chan result, len(r.sources))
	for _, src := range r.sources {
		go func() {
			addr, err := r.observe(ctx, src)
			results <- result{source: src.Name(), addr: addr, err: err}
		}()
	}

	counts := make(map[netip.Addr]int, len(r.sources))
	var errs []error
	for range r.sources {
		res := <-results
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.source, res.err))
			continue
		}
		counts[res.addr]++
		if counts[res.addr] >= r.quorum {
			return Observation{Addr: res.addr, Source: res.source, At: time.Now()}, nil
		}
	}
	return Observation{}, &ResolutionError{
		Disagreement: len(counts) > 1,
		Err:          errors.Join(errs...),
	}
}

func (r *Resolver) observe(ctx context.Context, src Source) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addr, err := src.Observe(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	addr = addr.Unmap()
	if !r.family.Matches(addr) {
		return netip.Addr{}, fmt.Errorf("not an %s address: %s", r.family, addr)
	}
	return addr, nil
}
