// Package worker runs the periodic settlement jobs: the webhook sweep, payout
// reconciliation and hold expiry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	storageredis "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultInterval = time.Minute

// Locker guards a cycle so only one instance runs the jobs at a time.
// *redis.Lock satisfies it.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Job is one named unit of periodic work. It returns how many items it moved.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

type ServiceParams struct {
	Logger   zerolog.Logger
	Ingress  ports.IngressService
	Payouts  ports.PayoutService
	Locker   Locker
	Metrics  *metrics.WorkerJobMetrics
	Interval time.Duration
}

type Service struct {
	log      zerolog.Logger
	locker   Locker
	metrics  *metrics.WorkerJobMetrics
	jobs     []Job
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ingress == nil {
		return nil, errors.New("ingress service is required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout service is required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NoopLocker{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Service{
		log:     params.Logger.With().Str("component", "worker").Logger(),
		locker:  locker,
		metrics: params.Metrics,
		jobs: []Job{
			{Name: "webhook_sweep", Run: params.Ingress.Sweep},
			{Name: "payout_reconcile", Run: params.Payouts.Reconcile},
			{Name: "hold_expiry", Run: params.Payouts.ExpireStaleRequests},
		},
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("worker started")
	s.RunCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("worker stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle runs every job once under the lock. A failing job does not stop
// the ones after it.
func (s *Service) RunCycle(ctx context.Context) {
	if err := s.locker.Acquire(ctx); err != nil {
		if errors.Is(err, storageredis.ErrLockHeld) {
			s.log.Debug().Msg("worker lock held elsewhere, skipping cycle")
			return
		}
		s.log.Warn().Err(err).Msg("worker lock acquire failed, skipping cycle")
		return
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Msg("worker lock release failed")
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	start := time.Now()
	n, err := safeRun(ctx, job)
	s.metrics.ObserveDuration(job.Name, time.Since(start))

	if err != nil {
		s.metrics.IncFailure(job.Name)
		s.log.Error().Err(err).Str("job", job.Name).Int("processed", n).Msg("worker job failed")
		return
	}
	s.metrics.IncSuccess(job.Name)
	if n > 0 {
		s.log.Info().Str("job", job.Name).Int("processed", n).Msg("worker job completed")
	}
}

func safeRun(ctx context.Context, job Job) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

// NoopLocker always succeeds. Used with the in-memory store, where only one
// process can exist.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) error { return nil }
func (NoopLocker) Release(context.Context) error { return nil }
