// Package reconciler drives resolve-compare-publish cycles for managed
// records. Each reconciler owns one record's state machine; the scheduler
// guarantees its Tick method never runs concurrently with itself.
package reconciler

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/dyndnsd/dyndnsd/metrics"
	"github.com/dyndnsd/dyndnsd/provider"
	"github.com/dyndnsd/dyndnsd/record"
	"github.com/dyndnsd/dyndnsd/resolver"
	"github.com/dyndnsd/dyndnsd/state"
	"github.com/dyndnsd/dyndnsd/tslog"
)

// Outcome is the result of one reconciliation attempt.
type Outcome uint8

const (
	// OutcomeUnchanged: the resolved address is already published.
	// No provider call was made.
	OutcomeUnchanged Outcome = iota

	// OutcomeUpdated: the provider confirmed the new address
	// and it was committed to the state store.
	OutcomeUpdated

	// OutcomeTransient: resolution, publishing, or persistence failed in a
	// way that backing off and retrying can fix.
	OutcomeTransient

	// OutcomeStanding: the provider rejected the update or the credential.
	// Retrying cannot fix it; operator action is required.
	OutcomeStanding
)

// String implements [fmt.Stringer].
func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	case OutcomeTransient:
		return "transient_failure"
	case OutcomeStanding:
		return "standing_error"
	default:
		return "unknown"
	}
}

// AddressResolver is the resolving capability the reconciler depends on.
type AddressResolver interface {
	Resolve(ctx context.Context) (resolver.Observation, error)
}

// Prober looks up the address a record currently resolves to in the DNS.
type Prober interface {
	Lookup(ctx context.Context, host string, family record.Family) (netip.Addr, bool, error)
}

// Config contains per-record reconciliation policy.
type Config struct {
	// ForceRefreshInterval re-publishes an unchanged address once this much
	// time has passed since the last confirmed success, for providers that
	// expire stale records. Zero disables forced refresh.
	ForceRefreshInterval time.Duration

	// Prober, if non-nil, seeds an empty state store from a DNS lookup of
	// the record, so a restart without state does not re-publish an address
	// the provider already has.
	Prober Prober
}

// Reconciler is the per-record state machine: on each tick it resolves the
// current public address, compares it to the last published state, and
// publishes through the provider when they differ.
type Reconciler struct {
	rec      record.Record
	resolver AddressResolver
	store    state.Store
	pub      provider.Publisher
	cfg      Config
	logger   *tslog.Logger

	attempts     uint32
	standingErr  error
	standingAddr netip.Addr
}

// New creates a [*Reconciler] for rec.
func New(rec record.Record, res AddressResolver, store state.Store, pub provider.Publisher, cfg Config, logger *tslog.Logger) *Reconciler {
	return &Reconciler{
		rec:      rec,
		resolver: res,
		store:    store,
		pub:      pub,
		cfg:      cfg,
		logger:   logger.WithAttrs(slog.String("record", rec.Key())),
	}
}

// Record returns the managed record this reconciler owns.
func (r *Reconciler) Record() record.Record {
	return r.rec
}

// Attempts returns the number of consecutive failed attempts since the last
// success. The scheduler seeds its backoff delay from it.
func (r *Reconciler) Attempts() uint32 {
	return r.attempts
}

// ClearStanding discards a standing provider error so the next tick retries.
// The scheduler calls it on operator-forced checks.
func (r *Reconciler) ClearStanding() {
	if r.standingErr != nil {
		r.logger.Info("Cleared standing provider error on forced check")
		r.standingErr = nil
		r.standingAddr = netip.Addr{}
	}
}

// Tick runs one reconciliation attempt and returns its outcome.
// It must not be called concurrently with itself.
func (r *Reconciler) Tick(ctx context.Context) Outcome {
	outcome := r.tick(ctx)
	metrics.ReconcileTotal.WithLabelValues(r.rec.Key(), outcome.String()).Inc()
	metrics.RetryAttempts.WithLabelValues(r.rec.Key()).Set(float64(r.attempts))
	return outcome
}

func (r *Reconciler) tick(ctx context.Context) Outcome {
	obs, err := r.resolver.Resolve(ctx)
	if err != nil {
		r.attempts++
		metrics.ResolveFailuresTotal.WithLabelValues(r.rec.Key()).Inc()
		r.logger.Warn("Failed to resolve public address", tslog.Err(err))
		return OutcomeTransient
	}

	ps, err := r.store.Load(r.rec)
	if err != nil {
		r.attempts++
		r.logger.Warn("Failed to load published state", tslog.Err(err))
		return OutcomeTransient
	}

	if ps.IsZero() && r.cfg.Prober != nil {
		ps = r.seedFromDNS(ctx, obs.Addr, ps)
	}

	if obs.Addr == ps.Addr && r.attempts == 0 && !r.refreshDue(ps) {
		return OutcomeUnchanged
	}

	// A standing error is not retried until the operator forces a check or
	// the world changes out from under it.
	if r.standingErr != nil && obs.Addr == r.standingAddr {
		return OutcomeStanding
	}

	if err := r.pub.Publish(ctx, r.rec, obs.Addr); err != nil {
		kind := provider.KindOf(err)
		metrics.ProviderErrorsTotal.WithLabelValues(r.rec.Key(), kind.String()).Inc()
		if kind == provider.KindTransient {
			r.attempts++
			r.logger.Warn("Failed to publish address",
				tslog.Addr("addr", obs.Addr),
				tslog.Uint("attempts", r.attempts),
				tslog.Err(err),
			)
			return OutcomeTransient
		}
		r.logger.Error("Provider rejected update, operator action required",
			slog.String("kind", kind.String()),
			tslog.Addr("addr", obs.Addr),
			tslog.Err(err),
		)
		r.standingErr = err
		r.standingAddr = obs.Addr
		return OutcomeStanding
	}
	r.standingErr = nil
	r.standingAddr = netip.Addr{}

	now := time.Now()
	if err := r.store.Commit(r.rec, obs.Addr, now); err != nil {
		// The provider accepted the address but the store did not record it.
		// The attempt is treated as unconfirmed and retried on the normal
		// cadence: the counter stays put so the scheduler does not back off.
		r.logger.Error("Failed to commit published state", tslog.Err(err))
		return OutcomeTransient
	}
	r.attempts = 0
	metrics.LastSuccessTimestamp.WithLabelValues(r.rec.Key()).Set(float64(now.Unix()))
	r.logger.Info("Published address",
		tslog.Addr("addr", obs.Addr),
		slog.String("source", obs.Source),
	)
	return OutcomeUpdated
}

// seedFromDNS adopts an already-published address found in the DNS when the
// state store is empty, committing it without a provider call.
func (r *Reconciler) seedFromDNS(ctx context.Context, resolved netip.Addr, ps state.PublishedState) state.PublishedState {
	addr, ok, err := r.cfg.Prober.Lookup(ctx, r.rec.Name, r.rec.Family)
	if err != nil {
		r.logger.Debug("Failed to probe published address", tslog.Err(err))
		return ps
	}
	if !ok || addr != resolved {
		return ps
	}
	now := time.Now()
	if err := r.store.Commit(r.rec, addr, now); err != nil {
		r.logger.Warn("Failed to commit probed state", tslog.Err(err))
		return ps
	}
	metrics.LastSuccessTimestamp.WithLabelValues(r.rec.Key()).Set(float64(now.Unix()))
	r.logger.Info("Adopted already-published address from DNS", tslog.Addr("addr", addr))
	return state.PublishedState{Addr: addr, UpdatedAt: now}
}

func (r *Reconciler) refreshDue(ps state.PublishedState) bool {
	if r.cfg.ForceRefreshInterval <= 0 || ps.IsZero() {
		return false
	}
	return time.Since(ps.UpdatedAt) >= r.cfg.ForceRefreshInterval
}
