package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/internal/ratelimit"
	"github.com/smallbiznis/planix/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultGenerationTimeout = 30 * time.Second
	defaultComplianceTimeout = 30 * time.Second
	maxTags                  = 10
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Provider domain.Provider
	Plans    floorplandomain.Repository
	QuotaSvc quotadomain.Service
	Limiter  *ratelimit.GenerationLimiter `optional:"true"`
	Metrics  *metrics.Metrics             `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	provider domain.Provider
	plans    floorplandomain.Repository
	quotasvc quotadomain.Service
	limiter  *ratelimit.GenerationLimiter
	metrics  *metrics.Metrics

	timeout           time.Duration
	complianceTimeout time.Duration

	locks *keyedMutex
	wg    sync.WaitGroup
}

func New(p Params) domain.Service {
	timeout := p.Config.Generation.Timeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	complianceTimeout := p.Config.Generation.ComplianceTimeout
	if complianceTimeout <= 0 {
		complianceTimeout = defaultComplianceTimeout
	}
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("generation.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		provider:          p.Provider,
		plans:             p.Plans,
		quotasvc:          p.QuotaSvc,
		limiter:           p.Limiter,
		metrics:           p.Metrics,
		timeout:           timeout,
		complianceTimeout: complianceTimeout,
		locks:             newKeyedMutex(),
	}
}

func (s *Service) ProviderConfigured() bool {
	return s.provider != nil && s.provider.Configured()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*floorplandomain.FloorPlan, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	spec := req.Spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	plan, err := s.admit(ctx, userID, spec, normalizeTags(req.Tags), correlationID)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	runCtx := correlation.Detach(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.run(runCtx, plan)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return plan, nil
	}

	current, err := s.plans.FindByID(ctx, s.db, plan.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, floorplandomain.ErrNotFound
	}
	return current, nil
}

// admit serializes admission and artifact creation per user. Artifacts still
// generating count as reserved so concurrent requests cannot overrun the limit.
func (s *Service) admit(ctx context.Context, userID snowflake.ID, spec floorplandomain.PlanSpec, tags []string, correlationID string) (*floorplandomain.FloorPlan, error) {
	key := userID.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	token, ok, err := s.limiter.LockUser(ctx, key)
	if err != nil {
		s.log.Warn("distributed generation lock unavailable; using in-process lock only",
			zap.String("user_id", key),
			zap.Error(err),
		)
	} else if !ok {
		return nil, domain.ErrGenerationInProgress
	}
	defer func() {
		if releaseErr := s.limiter.ReleaseUser(context.WithoutCancel(ctx), key, token); releaseErr != nil {
			s.log.Warn("release generation lock", zap.String("user_id", key), zap.Error(releaseErr))
		}
	}()

	reserved, err := s.plans.CountByStatus(ctx, s.db, userID, floorplandomain.StatusGenerating)
	if err != nil {
		return nil, fmt.Errorf("count in-flight generations: %w", err)
	}
	decision, err := s.quotasvc.CheckAdmission(ctx, userID, quotadomain.ActionPlanGeneration, quotadomain.WithReserved(reserved))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		s.log.Info("generation rejected",
			zap.String("user_id", key),
			zap.Int64("used", decision.Used),
			zap.Int64("reserved", decision.Reserved),
			zap.String("reason", decision.Reason),
		)
		return nil, err
	}

	now := s.clock.Now()
	title := spec.Title()
	plan := &floorplandomain.FloorPlan{
		ID:            s.genID.Generate(),
		UserID:        userID,
		Title:         title,
		Slug:          slug.Make(title),
		Description:   spec.Description,
		Area:          spec.Area,
		Rooms:         spec.Rooms,
		Bathrooms:     spec.Bathrooms,
		Budget:        spec.Budget,
		Features:      pq.StringArray(spec.Features),
		Tags:          pq.StringArray(tags),
		Status:        floorplandomain.StatusGenerating,
		CorrelationID: correlationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if spec.Location != "" {
		location := spec.Location
		plan.Location = &location
	}
	if err := s.plans.Insert(ctx, s.db, plan); err != nil {
		return nil, fmt.Errorf("insert floor plan: %w", err)
	}
	return plan, nil
}

// run drives one artifact to a terminal state. ctx is detached from the
// request; the provider call gets its own timeout.
func (s *Service) run(ctx context.Context, plan *floorplandomain.FloorPlan) {
	started := time.Now()
	log := s.log.With(
		zap.String("plan_id", plan.ID.String()),
		zap.String("user_id", plan.UserID.String()),
		zap.String("correlation_id", plan.CorrelationID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("generation panicked", zap.Any("panic", r))
			s.fail(ctx, log, plan, "internal error during generation; please retry", started)
		}
	}()

	spec := plan.Spec()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.provider.GeneratePlan(callCtx, spec)
	cancel()
	if err != nil {
		s.fail(ctx, log, plan, s.failureReason(err), started)
		return
	}

	area, rooms, bathrooms := spec.Effective()
	completion := floorplandomain.Completion{
		ID:            plan.ID,
		GeneratedPlan: result.Text,
		Estimate:      floorplandomain.EstimateMaterials(area, rooms, bathrooms),
		Compliance:    s.assess(ctx, log, result, spec),
		Degraded:      result.Degraded,
		CompletedAt:   s.clock.Now(),
	}

	completed, overLimit, err := s.complete(ctx, plan, completion, result.Degraded)
	if err != nil {
		log.Error("persist completed plan", zap.Error(err))
		s.fail(ctx, log, plan, "failed to save the generated plan; please retry", started)
		return
	}
	if !completed {
		log.Warn("plan left generating before completion was saved")
		return
	}
	s.metrics.RecordGeneration(ctx, string(floorplandomain.StatusCompleted), result.Degraded, time.Since(started))

	switch {
	case result.Degraded:
		log.Info("degraded plan completed without consuming quota")
	case overLimit:
		log.Warn("plan completed after the generation limit was lowered")
	default:
		log.Info("plan generated", zap.Duration("elapsed", time.Since(started)))
	}
}

// complete flips the artifact to completed and consumes quota in one
// transaction. The reservation held by the generating row becomes plans_used
// with no window where neither counts against the limit.
func (s *Service) complete(ctx context.Context, plan *floorplandomain.FloorPlan, completion floorplandomain.Completion, degraded bool) (completed, overLimit bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.plans.Complete(ctx, tx, completion)
		if err != nil {
			return err
		}
		completed = ok
		if !ok || degraded {
			return nil
		}
		err = s.quotasvc.RecordConsumptionTx(ctx, tx, plan.UserID, quotadomain.ActionPlanGeneration)
		if errors.Is(err, quotadomain.ErrQuotaExceeded) {
			overLimit = true
			return nil
		}
		return err
	})
	if err != nil {
		return false, false, err
	}
	return completed, overLimit, nil
}

// assess asks the provider for a compliance report. Provider failures fall
// back to the rule-based checks so completion never depends on them.
func (s *Service) assess(ctx context.Context, log *zap.Logger, result domain.Result, spec floorplandomain.PlanSpec) floorplandomain.Compliance {
	if result.Degraded {
		return floorplandomain.RuleBased(spec)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.complianceTimeout)
	defer cancel()
	report, err := s.provider.AssessCompliance(callCtx, result.Text, spec)
	if err != nil {
		log.Warn("compliance assessment failed; using rule-based checks", zap.Error(err))
		return floorplandomain.RuleBased(spec)
	}
	return report.WithStaticChecks(floorplandomain.StaticChecks(spec))
}

func (s *Service) fail(ctx context.Context, log *zap.Logger, plan *floorplandomain.FloorPlan, reason string, started time.Time) {
	failed, err := s.plans.Fail(ctx, s.db, plan.ID, reason, s.clock.Now())
	if err != nil {
		log.Error("mark plan failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	if failed {
		log.Warn("plan generation failed", zap.String("reason", reason))
		s.metrics.RecordGeneration(ctx, string(floorplandomain.StatusFailed), false, time.Since(started))
	}
}

func (s *Service) failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrProviderTimeout):
		return fmt.Sprintf("generation timed out after %s; please retry", s.timeout)
	case errors.Is(err, context.Canceled):
		return "generation was cancelled; please retry"
	default:
		return fmt.Sprintf("generation provider error: %v; please retry", err)
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = slug.Make(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
