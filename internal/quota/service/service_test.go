package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/plancatalog"
	"github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/internal/quota/repository"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/planix/internal/subscription/repository"
	"github.com/smallbiznis/planix/pkg/db/dbtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc     domain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
	subRepo subscriptiondomain.Repository
	catalog *plancatalog.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	fc := clock.NewFakeClock(baseTime)
	catalog := plancatalog.Default()
	subRepo := subscriptionrepo.Provide()

	svc := New(Params{
		DB:               conn,
		Log:              zap.NewNop(),
		Clock:            fc,
		Config:           config.Config{Quota: config.QuotaConfig{ResetInterval: 720 * time.Hour}},
		Catalog:          catalog,
		Repo:             repository.Provide(),
		SubscriptionRepo: subRepo,
	})
	return &fixture{svc: svc, db: conn, clock: fc, subRepo: subRepo, catalog: catalog}
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, plansUsed int64, tier plancatalog.Tier, status subscriptiondomain.Status) {
	t.Helper()
	err := f.db.Exec(
		`INSERT INTO users (id, name, email, plans_used, exports_used, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, "Test User", id.String()+"@example.com", plansUsed, baseTime, baseTime,
	).Error
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	sub := &subscriptiondomain.Subscription{
		ID:        id + 1000,
		UserID:    id,
		Status:    status,
		StartsAt:  baseTime,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	sub.ApplyTier(f.catalog.Lookup(tier))
	if err := f.subRepo.Insert(context.Background(), f.db, sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func (f *fixture) plansUsed(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var used int64
	if err := f.db.Raw(`SELECT plans_used FROM users WHERE id = ?`, id).Scan(&used).Error; err != nil {
		t.Fatalf("read plans_used: %v", err)
	}
	return used
}

func TestFreeTierAdmissionBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, 1, 2, plancatalog.TierFree, subscriptiondomain.StatusActive)

	decision, err := f.svc.CheckAdmission(ctx, 1, domain.ActionPlanGeneration)
	if err != nil {
		t.Fatalf("check admission: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected admission at limit-1, got %+v", decision)
	}

	if err := f.svc.RecordConsumption(ctx, 1, domain.ActionPlanGeneration); err != nil {
		t.Fatalf("record consumption: %v", err)
	}
	if used := f.plansUsed(t, 1); used != 3 {
		t.Fatalf("expected plans_used 3, got %d", used)
	}

	decision, err = f.svc.CheckAdmission(ctx, 1, domain.ActionPlanGeneration)
	if err != nil {
		t.Fatalf("check admission: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial at limit, got %+v", decision)
	}
	if !errors.Is(decision.Err(), domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", decision.Err())
	}
	if decision.Reason == "" {
		t.Fatalf("expected a denial reason")
	}
}

func TestUnlimitedTiersAlwaysAdmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, 1, 10_000, plancatalog.TierPro, subscriptiondomain.StatusActive)
	f.seedUser(t, 2, 1_000_000, plancatalog.TierEnterprise, subscriptiondomain.StatusActive)

	for _, id := range []snowflake.ID{1, 2} {
		decision, err := f.svc.CheckAdmission(ctx, id, domain.ActionPlanGeneration, domain.WithReserved(50))
		if err != nil {
			t.Fatalf("check admission: %v", err)
		}
		if !decision.Allowed || !decision.Limit.IsUnlimited() {
			t.Fatalf("expected unlimited admission for %d, got %+v", id, decision)
		}
		if err := f.svc.RecordConsumption(ctx, id, domain.ActionPlanGeneration); err != nil {
			t.Fatalf("record consumption: %v", err)
		}
	}
	if used := f.plansUsed(t, 1); used != 10_001 {
		t.Fatalf("expected plans_used 10001, got %d", used)
	}
}

func TestReservedInFlightCountsAgainstLimit(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1, 2, plancatalog.TierFree, subscriptiondomain.StatusActive)

	decision, err := f.svc.CheckAdmission(context.Background(), 1, domain.ActionPlanGeneration, domain.WithReserved(1))
	if err != nil {
		t.Fatalf("check admission: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected in-flight reservation to deny, got %+v", decision)
	}
}

func TestRecordConsumptionIsConditional(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1, 3, plancatalog.TierFree, subscriptiondomain.StatusActive)

	err := f.svc.RecordConsumption(context.Background(), 1, domain.ActionPlanGeneration)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if used := f.plansUsed(t, 1); used != 3 {
		t.Fatalf("counter must not pass the limit, got %d", used)
	}
}

func TestRecordConsumptionTxFollowsTransaction(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1, 1, plancatalog.TierFree, subscriptiondomain.StatusActive)
	ctx := context.Background()
	rollback := errors.New("rollback")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.RecordConsumptionTx(ctx, tx, 1, domain.ActionPlanGeneration); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback, got %v", err)
	}
	if used := f.plansUsed(t, 1); used != 1 {
		t.Fatalf("rolled back increment must not persist, got %d", used)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.RecordConsumptionTx(ctx, tx, 1, domain.ActionPlanGeneration)
	})
	if err != nil {
		t.Fatalf("record in transaction: %v", err)
	}
	if used := f.plansUsed(t, 1); used != 2 {
		t.Fatalf("expected committed increment, got %d", used)
	}
}

func TestInactiveSubscriptionUsesFreeLimits(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1, 3, plancatalog.TierPro, subscriptiondomain.StatusCancelled)

	decision, err := f.svc.CheckAdmission(context.Background(), 1, domain.ActionPlanGeneration)
	if err != nil {
		t.Fatalf("check admission: %v", err)
	}
	if decision.Allowed || decision.Limit.IsUnlimited() || decision.Limit.Max() != 3 {
		t.Fatalf("expected free limits for a cancelled subscription, got %+v", decision)
	}
}

func TestUsageRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, 1, 1, plancatalog.TierFree, subscriptiondomain.StatusActive)
	f.seedUser(t, 2, 7, plancatalog.TierPro, subscriptiondomain.StatusActive)

	usage, err := f.svc.Usage(ctx, 1)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.PlansRemaining != 2 || usage.ExportsRemaining != 5 || !usage.CanCreate {
		t.Fatalf("unexpected free usage: %+v", usage)
	}
	if usage.NextResetAt == nil || !usage.NextResetAt.Equal(baseTime.Add(720*time.Hour)) {
		t.Fatalf("unexpected next reset: %v", usage.NextResetAt)
	}

	usage, err = f.svc.Usage(ctx, 2)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.PlansRemaining != plancatalog.UnlimitedSentinel || usage.ExportsRemaining != plancatalog.UnlimitedSentinel {
		t.Fatalf("expected unlimited remaining, got %+v", usage)
	}
}

func TestUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CheckAdmission(context.Background(), 99, domain.ActionExport)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.CheckAdmission(context.Background(), 99, domain.Action("bogus")); !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestResetDueHonoursWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, 1, 3, plancatalog.TierFree, subscriptiondomain.StatusActive)
	f.seedUser(t, 2, 2, plancatalog.TierFree, subscriptiondomain.StatusActive)

	recent := baseTime.Add(20 * 24 * time.Hour)
	if err := f.db.Exec(`UPDATE users SET last_usage_reset_at = ? WHERE id = ?`, recent, 2).Error; err != nil {
		t.Fatalf("set reset anchor: %v", err)
	}

	now := baseTime.Add(31 * 24 * time.Hour)
	reset, err := f.svc.ResetDue(ctx, now, 720*time.Hour, 10)
	if err != nil {
		t.Fatalf("reset due: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected one reset, got %d", reset)
	}
	if used := f.plansUsed(t, 1); used != 0 {
		t.Fatalf("expected user 1 reset, got %d", used)
	}
	if used := f.plansUsed(t, 2); used != 2 {
		t.Fatalf("expected user 2 untouched, got %d", used)
	}

	reset, err = f.svc.ResetDue(ctx, now, 0, 10)
	if err != nil || reset != 0 {
		t.Fatalf("expected disabled reset, got %d %v", reset, err)
	}
}
