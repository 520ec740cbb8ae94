// Package service binds configuration to running reconciliation tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyndnsd/dyndnsd/metrics"
	"github.com/dyndnsd/dyndnsd/reconciler"
	"github.com/dyndnsd/dyndnsd/resolver"
	"github.com/dyndnsd/dyndnsd/scheduler"
	"github.com/dyndnsd/dyndnsd/state"
	"github.com/dyndnsd/dyndnsd/tslog"
)

// Service is a fully wired agent: one reconciliation task per managed
// record, the shared state store, and the optional metrics surfaces.
type Service struct {
	reconcilers []*reconciler.Reconciler
	sched       *scheduler.Scheduler
	store       state.Store
	msrv        *metrics.Server
	pusher      *metrics.Pusher
	logger      *tslog.Logger
}

// NewService validates cfg and builds a [*Service] from it.
// Configuration errors detected here are the only process-fatal errors.
func (cfg *Config) NewService(ctx context.Context, logger *tslog.Logger) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	publishers, err := cfg.buildPublishers(ctx)
	if err != nil {
		return nil, err
	}

	store, err := cfg.openStore()
	if err != nil {
		return nil, err
	}

	svc := &Service{
		store:  store,
		logger: logger,
	}

	if cfg.Metrics.PushURL != "" {
		job := cfg.Metrics.PushJob
		if job == "" {
			job = "dyndnsd"
		}
		svc.pusher = metrics.NewPusher(cfg.Metrics.PushURL, job)
	}

	tasks := make([]*scheduler.Task, 0, len(cfg.Records))
	for _, rc := range cfg.Records {
		sources, err := cfg.recordSources(rc)
		if err != nil {
			store.Close()
			return nil, err
		}

		res := resolver.New(rc.Family, sources, rc.Quorum, rc.SourceTimeout.Value())
		rec := reconciler.New(rc.Record, res, store, publishers[rc.Provider], rc.reconcilerConfig(), logger)
		svc.reconcilers = append(svc.reconcilers, rec)

		backoff := reconciler.NewBackoff(rc.BackoffBase.Value(), rc.BackoffMax.Value())
		task := scheduler.NewTask(rc.Key(), rec, rc.Interval.Value(), backoff, logger)
		task.OnOutcome = svc.observeOutcome
		tasks = append(tasks, task)
	}
	svc.sched = scheduler.NewScheduler(tasks)

	if cfg.Metrics.ListenAddress != "" {
		svc.msrv = metrics.NewServer(cfg.Metrics.ListenAddress, svc.Force, svc.ForceAll, logger)
	}

	return svc, nil
}

// Run runs the service until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	if s.msrv != nil {
		go s.msrv.Run(ctx)
	}
	s.sched.Run(ctx)
	if err := s.store.Close(); err != nil {
		s.logger.Warn("Failed to close state store", tslog.Err(err))
	}
}

// RunOnce runs a single reconciliation per record and returns an error if
// any record failed. It backs one-shot deployments (cron, init containers).
func (s *Service) RunOnce(ctx context.Context) error {
	var errs []error
	for _, rec := range s.reconcilers {
		switch outcome := rec.Tick(ctx); outcome {
		case reconciler.OutcomeUnchanged, reconciler.OutcomeUpdated:
		default:
			errs = append(errs, fmt.Errorf("record %q: %s", rec.Record().Key(), outcome))
		}
	}
	s.push(ctx)
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ForceAll requests an immediate check of every record.
func (s *Service) ForceAll() {
	s.logger.Info("Forcing reconciliation of all records")
	s.sched.ForceAll()
}

// Force requests an immediate check of the named record.
func (s *Service) Force(name string) bool {
	return s.sched.Force(name)
}

func (s *Service) observeOutcome(ctx context.Context, outcome reconciler.Outcome) {
	switch outcome {
	case reconciler.OutcomeUnchanged, reconciler.OutcomeUpdated:
		s.push(ctx)
	}
}

// pushTimeout bounds a pushgateway push so a hung gateway cannot stall a
// record's reconciliation loop or hold up shutdown.
const pushTimeout = 10 * time.Second

func (s *Service) push(ctx context.Context) {
	if s.pusher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	if err := s.pusher.Push(ctx); err != nil {
		s.logger.Warn("Failed to push metrics", tslog.Err(err))
	}
}
