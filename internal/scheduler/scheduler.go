package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/planix/internal/authorization"
	"github.com/smallbiznis/planix/internal/clock"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	obsmetrics "github.com/smallbiznis/planix/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const (
	JobRecoverySweep       = "recovery_sweep"
	JobUsageReset          = "usage_reset"
	JobExpireSubscriptions = "expire_subscriptions"
)

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	AuthzSvc        authorization.Service
	FloorPlanSvc    floorplandomain.Service
	QuotaSvc        quotadomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Redis           *redis.Client `optional:"true"`
	Config          Config        `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	authzSvc        authorization.Service
	floorPlanSvc    floorplandomain.Service
	quotaSvc        quotadomain.Service
	subscriptionSvc subscriptiondomain.Service
	locker          *ratelimit.Locker
	metrics         *obsmetrics.SchedulerMetrics
}

type job struct {
	name     string
	resource string
	object   string
	action   string
	batch    func(ctx context.Context, now time.Time, limit int) (int, error)
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.AuthzSvc == nil || p.FloorPlanSvc == nil || p.QuotaSvc == nil || p.SubscriptionSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		authzSvc:        p.AuthzSvc,
		floorPlanSvc:    p.FloorPlanSvc,
		quotaSvc:        p.QuotaSvc,
		subscriptionSvc: p.SubscriptionSvc,
		locker:          ratelimit.NewLocker(p.Redis),
		metrics:         obsmetrics.Scheduler(),
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{
			name:     JobRecoverySweep,
			resource: "floor_plans",
			object:   authorization.ObjectFloorPlan,
			action:   authorization.ActionFloorPlanRecover,
			batch: func(ctx context.Context, now time.Time, limit int) (int, error) {
				return s.floorPlanSvc.FailStale(ctx, now, s.cfg.RecoveryThreshold, limit)
			},
		},
		{
			name:     JobUsageReset,
			resource: "users",
			object:   authorization.ObjectUsage,
			action:   authorization.ActionUsageResetDue,
			batch: func(ctx context.Context, now time.Time, limit int) (int, error) {
				return s.quotaSvc.ResetDue(ctx, now, s.cfg.ResetInterval, limit)
			},
		},
		{
			name:     JobExpireSubscriptions,
			resource: "subscriptions",
			object:   authorization.ObjectSubscription,
			action:   authorization.ActionSubscriptionExpire,
			batch: func(ctx context.Context, now time.Time, limit int) (int, error) {
				return s.subscriptionSvc.ExpireDue(ctx, now, limit)
			},
		},
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(zap.String("run_id", run.runID))
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the remainder
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time. Errors from individual jobs
// are joined so one failing job does not starve the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		j := j
		err = errors.Join(err, s.runJob(parent, j.name, s.cfg.BatchSize, s.cfg.JobTimeout, func(ctx context.Context) error {
			return s.drain(ctx, j)
		}))
	}
	return err
}

// RunJob runs a single named job regardless of EnabledJobs.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, j := range s.jobs() {
		if strings.EqualFold(j.name, name) {
			return s.runJob(ctx, j.name, s.cfg.BatchSize, s.cfg.JobTimeout, func(ctx context.Context) error {
				return s.drain(ctx, j)
			})
		}
	}
	return fmt.Errorf("%w: unknown job %q", ErrInvalidConfig, name)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// an empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// drain processes batches until one comes back short.
func (s *Scheduler) drain(ctx context.Context, j job) error {
	run := jobRunFromContext(ctx)
	if err := s.authorizeSystem(ctx, j.object, j.action); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize.failed", err)
		return err
	}

	release, ok := s.acquireLease(ctx, j.name)
	if !ok {
		s.metrics.IncBatchDeferred(j.name, obsmetrics.SchedulerBatchDeferredReasonLeaseHeld)
		s.logger(ctx).Debug("scheduler.job.deferred", zap.String("reason", "lease_held"))
		return nil
	}
	defer release()

	now := s.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := j.batch(ctx, now, s.cfg.BatchSize)
		run.AddProcessed(processed)
		s.metrics.AddBatchProcessed(j.name, j.resource, processed)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.batch.failed", err, zap.String("resource", j.resource))
			return err
		}
		if processed < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object, action string) error {
	return s.authzSvc.Authorize(ctx, authorization.ActorSystem, object, action)
}
