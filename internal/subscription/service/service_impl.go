package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/plancatalog"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/internal/subscription/domain"
	"github.com/smallbiznis/planix/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	catalog plancatalog.Provider
	repo    domain.Repository

	quotasvc quotadomain.Service
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog plancatalog.Provider
	Repo    domain.Repository

	QuotaSvc quotadomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,

		quotasvc: p.QuotaSvc,
	}
}

func (s *Service) Plans(ctx context.Context) []plancatalog.TierConfig {
	return s.catalog.List()
}

func (s *Service) AssignDefault(ctx context.Context, userID snowflake.ID) (*domain.Subscription, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Status:    domain.StatusActive,
		StartsAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sub.ApplyTier(s.catalog.Lookup(plancatalog.TierFree))

	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByUserID(ctx, s.db, userID)
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

func (s *Service) Get(ctx context.Context, userID snowflake.ID) (*domain.Subscription, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) ChangePlan(ctx context.Context, userID snowflake.ID, tier string) (*domain.Subscription, error) {
	parsed, ok := plancatalog.ParseTier(tier)
	if !ok {
		return nil, domain.ErrInvalidTier
	}
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub.ApplyTier(s.catalog.Lookup(parsed))
	sub.Status = domain.StatusActive
	sub.StartsAt = now
	sub.CancelledAt = nil
	sub.ExpiresAt = nil
	if parsed.Paid() {
		expires := now.AddDate(0, 1, 0)
		sub.ExpiresAt = &expires
	}
	sub.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if err := s.quotasvc.Reset(ctx, userID); err != nil && !errors.Is(err, quotadomain.ErrUserNotFound) {
		return nil, fmt.Errorf("reset usage after plan change: %w", err)
	}

	s.log.Info("subscription plan changed",
		zap.String("user_id", userID.String()),
		zap.String("plan_tier", string(parsed)),
	)
	return sub, nil
}

func (s *Service) Cancel(ctx context.Context, userID snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub.ApplyTier(s.catalog.Lookup(plancatalog.TierFree))
	sub.Status = domain.StatusCancelled
	sub.ExpiresAt = nil
	sub.CancelledAt = &now
	sub.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	s.log.Info("subscription cancelled", zap.String("user_id", userID.String()))
	return sub, nil
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	due, err := s.repo.ListExpired(ctx, s.db, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired subscriptions: %w", err)
	}

	free := s.catalog.Lookup(plancatalog.TierFree)
	expired := 0
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		tier := sub.PlanTier
		sub.ApplyTier(free)
		sub.PlanTier = tier
		ok, err := s.repo.MarkExpired(ctx, s.db, sub, now)
		if err != nil {
			return expired, fmt.Errorf("expire subscription %s: %w", sub.ID, err)
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}
