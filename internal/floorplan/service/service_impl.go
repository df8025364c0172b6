package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/pkg/db/option"
	"github.com/smallbiznis/planix/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	QuotaSvc quotadomain.Service
	Renderer domain.Renderer
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	quotasvc quotadomain.Service
	renderer domain.Renderer
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("floorplan.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		quotasvc: p.QuotaSvc,
		renderer: p.Renderer,
		metrics:  p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.FloorPlan, error) {
	planID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	userID, err := parseID(req.UserID, domain.ErrInvalidUser)
	if err != nil {
		return nil, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{}),
		option.ApplyPagination(page),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusGenerating, domain.StatusCompleted, domain.StatusFailed:
		default:
			return nil, domain.ErrInvalidStatus
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.EQ,
			Value:    status,
		}))
	}

	plans, err := s.repo.List(ctx, s.db, userID, opts...)
	if err != nil {
		return nil, err
	}
	plans, pageInfo := pagination.BuildCursorPageInfo(plans, page.Limit(), func(p *domain.FloorPlan) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if plans == nil {
		plans = []*domain.FloorPlan{}
	}
	return &domain.ListResponse{FloorPlans: plans, PageInfo: pageInfo}, nil
}

func (s *Service) Delete(ctx context.Context, planID, userID string) error {
	plan, err := s.Get(ctx, planID)
	if err != nil {
		return err
	}
	ownerID, err := parseID(userID, domain.ErrInvalidUser)
	if err != nil {
		return err
	}
	if plan.UserID != ownerID {
		return domain.ErrNotOwner
	}
	affected, err := s.repo.Delete(ctx, s.db, plan.ID, ownerID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	s.log.Info("floor plan deleted",
		zap.String("plan_id", plan.ID.String()),
		zap.String("user_id", ownerID.String()),
	)
	return nil
}

func (s *Service) Export(ctx context.Context, req domain.ExportRequest) (*domain.ExportResult, error) {
	format := domain.ExportFormat(strings.ToLower(strings.TrimSpace(req.Format)))
	if format == "" {
		format = domain.ExportPDF
	}
	if format != domain.ExportPDF && format != domain.ExportText {
		return nil, domain.ErrInvalidFormat
	}

	plan, err := s.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) != "" {
		ownerID, err := parseID(req.UserID, domain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		if plan.UserID != ownerID {
			return nil, domain.ErrNotOwner
		}
	}
	if plan.Status != domain.StatusCompleted {
		return nil, domain.ErrNotCompleted
	}

	decision, err := s.quotasvc.CheckAdmission(ctx, plan.UserID, quotadomain.ActionExport)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	result := &domain.ExportResult{
		Filename: fmt.Sprintf("%s.%s", exportBaseName(plan), format),
	}
	switch format {
	case domain.ExportPDF:
		body, err := s.renderer.RenderPDF(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("render export: %w", err)
		}
		result.Body = body
		result.ContentType = "application/pdf"
	case domain.ExportText:
		result.Body = RenderText(plan)
		result.ContentType = "text/plain; charset=utf-8"
	}

	// The conditional increment is the serialization point for concurrent
	// exports; a loser rolls back and its rendered body is discarded.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.IncrementExportCount(ctx, tx, plan.ID, s.clock.Now()); err != nil {
			return fmt.Errorf("increment export count: %w", err)
		}
		return s.quotasvc.RecordConsumptionTx(ctx, tx, plan.UserID, quotadomain.ActionExport)
	})
	if err != nil {
		if errors.Is(err, quotadomain.ErrQuotaExceeded) {
			s.log.Info("export refused at the export limit",
				zap.String("plan_id", plan.ID.String()),
				zap.String("user_id", plan.UserID.String()),
			)
		}
		return nil, err
	}

	s.metrics.RecordExport(ctx, string(format))
	return result, nil
}

func (s *Service) FailStale(ctx context.Context, now time.Time, threshold time.Duration, limit int) (int, error) {
	if threshold <= 0 || limit <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-threshold)

	failed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.repo.ListStale(ctx, tx, cutoff, limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			ok, err := s.repo.Fail(ctx, tx, id, domain.StaleFailureReason, now)
			if err != nil {
				return fmt.Errorf("fail stale plan %s: %w", id, err)
			}
			if ok {
				failed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if failed > 0 {
		s.log.Warn("failed stale generations", zap.Int("count", failed))
	}
	return failed, nil
}

func exportBaseName(plan *domain.FloorPlan) string {
	if plan.Slug != "" {
		return plan.Slug
	}
	return "floor-plan-" + plan.ID.String()
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
