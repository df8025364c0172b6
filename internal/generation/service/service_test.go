package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	floorplanrepo "github.com/smallbiznis/planix/internal/floorplan/repository"
	"github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/internal/plancatalog"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	quotarepo "github.com/smallbiznis/planix/internal/quota/repository"
	quotaservice "github.com/smallbiznis/planix/internal/quota/service"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/planix/internal/subscription/repository"
	"github.com/smallbiznis/planix/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	fail      map[int]error
	block     chan struct{}
	degraded  bool
	panicOn   int
	assessErr error
}

func (f *fakeProvider) Configured() bool { return !f.degraded }

func (f *fakeProvider) GeneratePlan(ctx context.Context, spec floorplandomain.PlanSpec) (domain.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	err := f.fail[call]
	block := f.block
	f.mu.Unlock()

	if f.panicOn == call {
		panic("provider exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Text: "Plan for " + spec.Description, Model: "fake", Degraded: f.degraded}, nil
}

func (f *fakeProvider) AssessCompliance(ctx context.Context, planText string, spec floorplandomain.PlanSpec) (floorplandomain.Compliance, error) {
	if f.assessErr != nil {
		return floorplandomain.Compliance{}, f.assessErr
	}
	return floorplandomain.ParseCompliance("all good"), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	provider *fakeProvider
	plans    floorplandomain.Repository
}

func newFixture(t *testing.T, provider *fakeProvider, timeout time.Duration) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fc := clock.NewFakeClock(baseTime)
	cfg := config.Config{
		Generation: config.GenerationConfig{Timeout: timeout, ComplianceTimeout: time.Second},
		Quota:      config.QuotaConfig{ResetInterval: 720 * time.Hour},
	}
	subRepo := subscriptionrepo.Provide()
	quotaSvc := quotaservice.New(quotaservice.Params{
		DB:               conn,
		Log:              zap.NewNop(),
		Clock:            fc,
		Config:           cfg,
		Catalog:          plancatalog.Default(),
		Repo:             quotarepo.Provide(),
		SubscriptionRepo: subRepo,
	})
	plans := floorplanrepo.Provide()

	svc := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Config:   cfg,
		Provider: provider,
		Plans:    plans,
		QuotaSvc: quotaSvc,
	}).(*Service)
	t.Cleanup(svc.Wait)

	return &fixture{svc: svc, db: conn, provider: provider, plans: plans}
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, plansUsed int64, tier plancatalog.Tier) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		`INSERT INTO users (id, name, email, plans_used, exports_used, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, "Meera", id.String()+"@example.com", plansUsed, baseTime, baseTime,
	).Error)

	sub := &subscriptiondomain.Subscription{
		ID:        id + 500,
		UserID:    id,
		Status:    subscriptiondomain.StatusActive,
		StartsAt:  baseTime,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	sub.ApplyTier(plancatalog.Default().Lookup(tier))
	require.NoError(t, subscriptionrepo.Provide().Insert(context.Background(), f.db, sub))
}

func (f *fixture) plansUsed(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var used int64
	require.NoError(t, f.db.Raw(`SELECT plans_used FROM users WHERE id = ?`, id).Scan(&used).Error)
	return used
}

func request(userID snowflake.ID) domain.GenerateRequest {
	return domain.GenerateRequest{
		UserID: userID.String(),
		Spec:   floorplandomain.PlanSpec{Description: "Two bedroom apartment with balcony"},
		Tags:   []string{"Apartment", "apartment", " Balcony "},
	}
}

func TestGenerateQuotaLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider, time.Second)
	ctx := context.Background()
	f.seedUser(t, 100, 0, plancatalog.TierFree)

	for i := 1; i <= 3; i++ {
		plan, err := f.svc.Generate(ctx, request(100))
		require.NoError(t, err, "generation %d", i)
		assert.Equal(t, floorplandomain.StatusCompleted, plan.Status)
		assert.Equal(t, int64(i), f.plansUsed(t, 100))
	}

	_, err := f.svc.Generate(ctx, request(100))
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)
	assert.Equal(t, 3, provider.callCount(), "denied request must not reach the provider")
	assert.Equal(t, int64(3), f.plansUsed(t, 100))
}

func TestGenerateProviderFailureConsumesNothing(t *testing.T) {
	provider := &fakeProvider{fail: map[int]error{3: domain.ErrProviderError}}
	f := newFixture(t, provider, time.Second)
	ctx := context.Background()
	f.seedUser(t, 101, 0, plancatalog.TierFree)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Generate(ctx, request(101))
		require.NoError(t, err)
	}
	plan, err := f.svc.Generate(ctx, request(101))
	require.NoError(t, err)

	assert.Equal(t, floorplandomain.StatusFailed, plan.Status)
	require.NotNil(t, plan.FailureReason)
	assert.NotEmpty(t, *plan.FailureReason)
	assert.Equal(t, int64(2), f.plansUsed(t, 101))

	plan, err = f.svc.Generate(ctx, request(101))
	require.NoError(t, err, "resubmission after a failure is admitted")
	assert.Equal(t, floorplandomain.StatusCompleted, plan.Status)
	assert.Equal(t, int64(3), f.plansUsed(t, 101))
}

func TestGenerateCompletedArtifact(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider, time.Second)
	f.seedUser(t, 102, 0, plancatalog.TierPro)

	plan, err := f.svc.Generate(context.Background(), request(102))
	require.NoError(t, err)

	assert.Equal(t, "Floor Plan - Two bedroom apartment with balcony", plan.Title)
	assert.Equal(t, "floor-plan-two-bedroom-apartment-with-balcony", plan.Slug)
	assert.Equal(t, []string{"apartment", "balcony"}, []string(plan.Tags))
	assert.Equal(t, "Plan for Two bedroom apartment with balcony", plan.GeneratedPlan)
	assert.NotEmpty(t, plan.CorrelationID)
	require.NotNil(t, plan.CompletedAt)

	estimate := plan.MaterialEstimate.Data()
	require.NotNil(t, estimate)
	assert.Equal(t, 8000.0, estimate.Bricks.Quantity)
	assert.Equal(t, 400.0, estimate.Cement.Quantity)

	compliance := plan.Compliance.Data()
	require.NotNil(t, compliance)
	assert.Equal(t, floorplandomain.ComplianceUnparsed, compliance.Kind)
	assert.Contains(t, compliance.Checks, floorplandomain.GeneralComplianceCheck)
}

func TestGenerateTimeoutFailsArtifact(t *testing.T) {
	provider := &fakeProvider{block: make(chan struct{})}
	f := newFixture(t, provider, 50*time.Millisecond)
	f.seedUser(t, 103, 0, plancatalog.TierFree)

	plan, err := f.svc.Generate(context.Background(), request(103))
	require.NoError(t, err)

	assert.Equal(t, floorplandomain.StatusFailed, plan.Status)
	require.NotNil(t, plan.FailureReason)
	assert.Contains(t, *plan.FailureReason, "timed out")
	assert.Equal(t, int64(0), f.plansUsed(t, 103))
}

func TestInFlightGenerationsAreReserved(t *testing.T) {
	provider := &fakeProvider{block: make(chan struct{})}
	f := newFixture(t, provider, 5*time.Second)
	f.seedUser(t, 104, 2, plancatalog.TierFree)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	plan, err := f.svc.Generate(ctx, request(104))
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.StatusGenerating, plan.Status)

	_, err = f.svc.Generate(context.Background(), request(104))
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)

	close(provider.block)
	f.svc.Wait()

	stored, err := f.plans.FindByID(context.Background(), f.db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.StatusCompleted, stored.Status, "run continues after the caller stops waiting")
	assert.Equal(t, int64(3), f.plansUsed(t, 104))
	assert.Equal(t, 1, provider.callCount())
}

func TestDegradedResultIsNotCharged(t *testing.T) {
	provider := &fakeProvider{degraded: true}
	f := newFixture(t, provider, time.Second)
	f.seedUser(t, 105, 0, plancatalog.TierFree)

	assert.False(t, f.svc.ProviderConfigured())
	plan, err := f.svc.Generate(context.Background(), request(105))
	require.NoError(t, err)

	assert.Equal(t, floorplandomain.StatusCompleted, plan.Status)
	assert.True(t, plan.Degraded)
	assert.Equal(t, int64(0), f.plansUsed(t, 105))
	compliance := plan.Compliance.Data()
	require.NotNil(t, compliance)
	assert.Equal(t, floorplandomain.ComplianceStructured, compliance.Kind)
}

func TestComplianceFailureFallsBackToRules(t *testing.T) {
	provider := &fakeProvider{assessErr: errors.New("upstream down")}
	f := newFixture(t, provider, time.Second)
	f.seedUser(t, 106, 0, plancatalog.TierFree)

	plan, err := f.svc.Generate(context.Background(), request(106))
	require.NoError(t, err)

	assert.Equal(t, floorplandomain.StatusCompleted, plan.Status)
	compliance := plan.Compliance.Data()
	require.NotNil(t, compliance)
	assert.Contains(t, compliance.Checks, "minimum_room_size")
	assert.Equal(t, int64(1), f.plansUsed(t, 106))
}

func TestPanicLeavesArtifactFailed(t *testing.T) {
	provider := &fakeProvider{panicOn: 1}
	f := newFixture(t, provider, time.Second)
	f.seedUser(t, 107, 0, plancatalog.TierFree)

	plan, err := f.svc.Generate(context.Background(), request(107))
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.StatusFailed, plan.Status)
	assert.Equal(t, int64(0), f.plansUsed(t, 107))
}

// hookedPlans calls afterComplete once a Complete succeeds, while the
// completing transaction is still open.
type hookedPlans struct {
	floorplandomain.Repository
	afterComplete func()
}

func (h *hookedPlans) Complete(ctx context.Context, db *gorm.DB, c floorplandomain.Completion) (bool, error) {
	ok, err := h.Repository.Complete(ctx, db, c)
	if err == nil && ok && h.afterComplete != nil {
		h.afterComplete()
	}
	return ok, err
}

func TestCompletionAtLimitBoundaryDeniesConcurrentRequest(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider, time.Second)
	f.seedUser(t, 109, 2, plancatalog.TierFree)

	type outcome struct {
		plan *floorplandomain.FloorPlan
		err  error
	}
	results := make(chan outcome, 1)
	var (
		once     sync.Once
		early    bool
		admitted outcome
	)
	f.svc.plans = &hookedPlans{
		Repository: f.plans,
		afterComplete: func() {
			once.Do(func() {
				go func() {
					plan, err := f.svc.Generate(context.Background(), request(109))
					results <- outcome{plan: plan, err: err}
				}()
				// A request decided before this completion commits is a race.
				select {
				case admitted = <-results:
					early = true
				case <-time.After(200 * time.Millisecond):
				}
			})
		},
	}

	first, err := f.svc.Generate(context.Background(), request(109))
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.StatusCompleted, first.Status)

	second := admitted
	if !early {
		select {
		case second = <-results:
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent generation did not return")
		}
	}
	f.svc.Wait()

	assert.ErrorIs(t, second.err, quotadomain.ErrQuotaExceeded)
	assert.Nil(t, second.plan)
	assert.Equal(t, int64(3), f.plansUsed(t, 109))
	assert.Equal(t, 1, provider.callCount())
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, &fakeProvider{}, time.Second)

	_, err := f.svc.Generate(context.Background(), domain.GenerateRequest{UserID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = f.svc.Generate(context.Background(), domain.GenerateRequest{
		UserID: "108",
		Spec:   floorplandomain.PlanSpec{Description: "short"},
	})
	assert.ErrorIs(t, err, floorplandomain.ErrInvalidDescription)
	assert.Equal(t, 0, f.provider.callCount())
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user")
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
	assert.Empty(t, km.locks)
}
