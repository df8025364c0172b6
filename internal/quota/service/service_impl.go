package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/observability/metrics"
	"github.com/smallbiznis/planix/internal/plancatalog"
	"github.com/smallbiznis/planix/internal/quota/domain"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	Config           config.Config
	Catalog          plancatalog.Provider
	Repo             domain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	Metrics          *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	catalog plancatalog.Provider
	metrics *metrics.Metrics

	repo             domain.Repository
	subscriptionRepo subscriptiondomain.Repository
	resetInterval    time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quota.service"),
		clock:   p.Clock,
		catalog: p.Catalog,
		metrics: p.Metrics,

		repo:             p.Repo,
		subscriptionRepo: p.SubscriptionRepo,
		resetInterval:    p.Config.Quota.ResetInterval,
	}
}

func (s *Service) CheckAdmission(ctx context.Context, userID snowflake.ID, action domain.Action, opts ...domain.AdmissionOption) (domain.Decision, error) {
	if !action.Valid() {
		return domain.Decision{}, domain.ErrInvalidAction
	}
	var options domain.AdmissionOptions
	for _, opt := range opts {
		opt(&options)
	}

	counters, err := s.counters(ctx, userID)
	if err != nil {
		return domain.Decision{}, err
	}
	limits, err := s.limits(ctx, userID)
	if err != nil {
		return domain.Decision{}, err
	}

	limit := limits.For(action)
	used := counters.Used(action)
	decision := domain.Decision{
		Action:   action,
		Used:     used,
		Reserved: options.Reserved,
		Limit:    limit,
		Allowed:  limit.Admits(used + options.Reserved),
	}
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf("%s limit of %s reached for the %s plan", action, limit, limits.Tier)
		s.metrics.RecordQuotaDenied(ctx, string(action), string(limits.Tier))
		s.log.Info("quota admission denied",
			zap.String("user_id", userID.String()),
			zap.String("action", string(action)),
			zap.Int64("used", used),
			zap.Int64("reserved", options.Reserved),
			zap.Stringer("limit", limit),
		)
	}
	return decision, nil
}

func (s *Service) RecordConsumption(ctx context.Context, userID snowflake.ID, action domain.Action) error {
	return s.RecordConsumptionTx(ctx, s.db, userID, action)
}

// RecordConsumptionTx reads limits and counters through tx, so it is safe to
// call while tx holds the only connection.
func (s *Service) RecordConsumptionTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, action domain.Action) error {
	if !action.Valid() {
		return domain.ErrInvalidAction
	}
	limits, err := s.limitsWith(ctx, tx, userID)
	if err != nil {
		return err
	}

	affected, err := s.repo.Increment(ctx, tx, userID, action, limits.For(action).Sentinel(), s.clock.Now())
	if err != nil {
		return fmt.Errorf("record %s consumption: %w", action, err)
	}
	if affected > 0 {
		return nil
	}

	counters, err := s.repo.GetCounters(ctx, tx, userID)
	if err != nil {
		return err
	}
	if counters == nil {
		return domain.ErrUserNotFound
	}
	return domain.ErrQuotaExceeded
}

func (s *Service) Usage(ctx context.Context, userID snowflake.ID) (*domain.Usage, error) {
	counters, err := s.counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits, err := s.limits(ctx, userID)
	if err != nil {
		return nil, err
	}

	windowStart := counters.CreatedAt
	if counters.LastUsageResetAt != nil {
		windowStart = *counters.LastUsageResetAt
	}

	usage := &domain.Usage{
		UserID:           userID,
		PlanTier:         limits.Tier,
		PlansUsed:        counters.PlansUsed,
		ExportsUsed:      counters.ExportsUsed,
		PlansLimit:       limits.Plans,
		ExportsLimit:     limits.Exports,
		PlansRemaining:   limits.Plans.Remaining(counters.PlansUsed),
		ExportsRemaining: limits.Exports.Remaining(counters.ExportsUsed),
		CanCreate:        limits.Plans.Admits(counters.PlansUsed),
		CanExport:        limits.Exports.Admits(counters.ExportsUsed),
		WindowStart:      windowStart,
	}
	if s.resetInterval > 0 {
		next := windowStart.Add(s.resetInterval)
		usage.NextResetAt = &next
	}
	return usage, nil
}

func (s *Service) Reset(ctx context.Context, userID snowflake.ID) error {
	affected, err := s.repo.Reset(ctx, s.db, userID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	s.log.Info("usage counters reset", zap.String("user_id", userID.String()))
	return nil
}

func (s *Service) ResetDue(ctx context.Context, now time.Time, interval time.Duration, limit int) (int, error) {
	if interval <= 0 || limit <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-interval)

	ids, err := s.repo.ListResetDue(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list reset due: %w", err)
	}

	reset := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reset, err
		}
		ok, err := s.repo.ResetIfDue(ctx, s.db, id, cutoff, now)
		if err != nil {
			return reset, fmt.Errorf("reset user %s: %w", id, err)
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}

func (s *Service) counters(ctx context.Context, userID snowflake.ID) (*domain.Counters, error) {
	counters, err := s.repo.GetCounters(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if counters == nil {
		return nil, domain.ErrUserNotFound
	}
	return counters, nil
}

// limits resolves the effective allowances. A missing or non-active
// subscription falls back to the free tier.
func (s *Service) limits(ctx context.Context, userID snowflake.ID) (domain.Limits, error) {
	return s.limitsWith(ctx, s.db, userID)
}

func (s *Service) limitsWith(ctx context.Context, db *gorm.DB, userID snowflake.ID) (domain.Limits, error) {
	sub, err := s.subscriptionRepo.FindByUserID(ctx, db, userID)
	if err != nil {
		return domain.Limits{}, err
	}
	if sub.IsActive() {
		return domain.Limits{
			Tier:    sub.PlanTier,
			Active:  true,
			Plans:   sub.MonthlyPlansLimit,
			Exports: sub.MonthlyExportsLimit,
		}, nil
	}
	free := s.catalog.Lookup(plancatalog.TierFree)
	return domain.Limits{
		Tier:    plancatalog.TierFree,
		Plans:   free.MonthlyPlans,
		Exports: free.MonthlyExports,
	}, nil
}
