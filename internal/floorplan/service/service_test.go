package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/floorplan/repository"
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

var baseTime = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

type fakeQuota struct {
	quotadomain.Service
	denied    bool
	recordErr error
	recorded  []quotadomain.Action
}

func (f *fakeQuota) CheckAdmission(ctx context.Context, userID snowflake.ID, action quotadomain.Action, opts ...quotadomain.AdmissionOption) (quotadomain.Decision, error) {
	return quotadomain.Decision{Allowed: !f.denied, Action: action}, nil
}

func (f *fakeQuota) RecordConsumptionTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, action quotadomain.Action) error {
	f.recorded = append(f.recorded, action)
	return f.recordErr
}

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) RenderPDF(ctx context.Context, plan *domain.FloorPlan) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 " + plan.Title), nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	repo  domain.Repository
	quota *fakeQuota
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := repository.Provide()
	quota := &fakeQuota{}

	svc := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(baseTime),
		Repo:     repo,
		QuotaSvc: quota,
		Renderer: fakeRenderer{},
	}).(*Service)

	return &fixture{svc: svc, db: conn, repo: repo, quota: quota}
}

func (f *fixture) seedPlan(t *testing.T, id, userID snowflake.ID, status domain.Status, createdAt time.Time) *domain.FloorPlan {
	t.Helper()
	ctx := context.Background()
	spec := domain.PlanSpec{Description: "Duplex with rooftop terrace"}
	plan := &domain.FloorPlan{
		ID:          id,
		UserID:      userID,
		Title:       spec.Title(),
		Slug:        fmt.Sprintf("duplex-%d", id),
		Description: spec.Description,
		Status:      domain.StatusGenerating,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, f.repo.Insert(ctx, f.db, plan))

	switch status {
	case domain.StatusCompleted:
		ok, err := f.repo.Complete(ctx, f.db, domain.Completion{
			ID:            id,
			GeneratedPlan: "Ground floor: living room and kitchen.",
			Estimate:      domain.EstimateMaterials(0, 0, 0),
			Compliance:    domain.RuleBased(spec),
			CompletedAt:   createdAt.Add(time.Minute),
		})
		require.NoError(t, err)
		require.True(t, ok)
	case domain.StatusFailed:
		ok, err := f.repo.Fail(ctx, f.db, id, "provider error", createdAt.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
	}

	stored, err := f.repo.FindByID(ctx, f.db, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, 11, 1, domain.StatusCompleted, baseTime)

	plan, err := f.svc.Get(context.Background(), "11")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, plan.Status)
	assert.Equal(t, "Floor Plan - Duplex with rooftop terrace", plan.Title)

	_, err = f.svc.Get(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "plan-11")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 21, 2, domain.StatusFailed, baseTime)
	f.seedPlan(t, 22, 2, domain.StatusGenerating, baseTime.Add(time.Minute))
	f.seedPlan(t, 23, 2, domain.StatusCompleted, baseTime.Add(2*time.Minute))
	f.seedPlan(t, 24, 3, domain.StatusCompleted, baseTime.Add(3*time.Minute))

	first, err := f.svc.List(ctx, domain.ListRequest{UserID: "2", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.FloorPlans, 2)
	assert.Equal(t, snowflake.ID(23), first.FloorPlans[0].ID)
	assert.Equal(t, snowflake.ID(22), first.FloorPlans[1].ID)
	assert.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := f.svc.List(ctx, domain.ListRequest{UserID: "2", PageSize: 2, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.FloorPlans, 1)
	assert.Equal(t, snowflake.ID(21), second.FloorPlans[0].ID)
	assert.False(t, second.PageInfo.HasMore)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 31, 4, domain.StatusFailed, baseTime)
	f.seedPlan(t, 32, 4, domain.StatusCompleted, baseTime.Add(time.Minute))

	completed, err := f.svc.List(ctx, domain.ListRequest{UserID: "4", Status: "completed"})
	require.NoError(t, err)
	require.Len(t, completed.FloorPlans, 1)
	assert.Equal(t, snowflake.ID(32), completed.FloorPlans[0].ID)

	none, err := f.svc.List(ctx, domain.ListRequest{UserID: "5"})
	require.NoError(t, err)
	assert.NotNil(t, none.FloorPlans)
	assert.Empty(t, none.FloorPlans)

	_, err = f.svc.List(ctx, domain.ListRequest{UserID: "4", Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.List(ctx, domain.ListRequest{UserID: "four"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestDeleteRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 41, 6, domain.StatusCompleted, baseTime)

	assert.ErrorIs(t, f.svc.Delete(ctx, "41", "7"), domain.ErrNotOwner)
	assert.ErrorIs(t, f.svc.Delete(ctx, "41", ""), domain.ErrInvalidUser)
	assert.ErrorIs(t, f.svc.Delete(ctx, "404", "6"), domain.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, "41", "6"))
	_, err := f.svc.Get(ctx, "41")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 51, 8, domain.StatusCompleted, baseTime)

	result, err := f.svc.Export(ctx, domain.ExportRequest{PlanID: "51", UserID: "8"})
	require.NoError(t, err)

	assert.Equal(t, "duplex-51.pdf", result.Filename)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Contains(t, string(result.Body), "%PDF")
	assert.Equal(t, []quotadomain.Action{quotadomain.ActionExport}, f.quota.recorded)

	stored, err := f.repo.FindByID(ctx, f.db, 51)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExportCount)
}

func TestExportText(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, 52, 8, domain.StatusCompleted, baseTime)

	result, err := f.svc.Export(context.Background(), domain.ExportRequest{PlanID: "52", Format: "TXT"})
	require.NoError(t, err)

	body := string(result.Body)
	assert.Equal(t, "duplex-52.txt", result.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", result.ContentType)
	assert.Contains(t, body, "Floor Plan - Duplex with rooftop terrace")
	assert.Contains(t, body, "Ground floor: living room and kitchen.")
	assert.Contains(t, body, "MATERIAL ESTIMATE")
	assert.Contains(t, body, "Bricks: 8000 pieces")
	assert.Contains(t, body, "COMPLIANCE (score 100, compliant: true)")
}

func TestExportRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 61, 9, domain.StatusGenerating, baseTime)
	f.seedPlan(t, 62, 9, domain.StatusCompleted, baseTime)

	_, err := f.svc.Export(ctx, domain.ExportRequest{PlanID: "61"})
	assert.ErrorIs(t, err, domain.ErrNotCompleted)

	_, err = f.svc.Export(ctx, domain.ExportRequest{PlanID: "62", Format: "docx"})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	_, err = f.svc.Export(ctx, domain.ExportRequest{PlanID: "62", UserID: "10"})
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	f.quota.denied = true
	_, err = f.svc.Export(ctx, domain.ExportRequest{PlanID: "62"})
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)

	stored, err := f.repo.FindByID(ctx, f.db, 62)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.ExportCount)
	assert.Empty(t, f.quota.recorded)
}

func TestExportRendererFailureConsumesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.renderer = fakeRenderer{err: errors.New("font missing")}
	f.seedPlan(t, 71, 11, domain.StatusCompleted, baseTime)

	_, err := f.svc.Export(context.Background(), domain.ExportRequest{PlanID: "71"})
	require.Error(t, err)
	assert.Empty(t, f.quota.recorded)
}

func TestExportRefusedWhenIncrementLoses(t *testing.T) {
	f := newFixture(t)
	f.quota.recordErr = quotadomain.ErrQuotaExceeded
	f.seedPlan(t, 72, 11, domain.StatusCompleted, baseTime)

	result, err := f.svc.Export(context.Background(), domain.ExportRequest{PlanID: "72"})
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)
	assert.Nil(t, result)

	stored, err := f.repo.FindByID(context.Background(), f.db, 72)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.ExportCount, "export count rolls back with the refused consumption")
}

// reentrantRenderer runs during on its first call, before returning the body.
type reentrantRenderer struct {
	fired  bool
	during func()
}

func (r *reentrantRenderer) RenderPDF(ctx context.Context, plan *domain.FloorPlan) ([]byte, error) {
	if !r.fired {
		r.fired = true
		if r.during != nil {
			r.during()
		}
	}
	return []byte("%PDF-1.4"), nil
}

func newFixtureWithQuota(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.quota = nil
	f.svc.quotasvc = quotaservice.New(quotaservice.Params{
		DB:               f.db,
		Log:              zap.NewNop(),
		Clock:            clock.NewFakeClock(baseTime),
		Config:           config.Config{Quota: config.QuotaConfig{ResetInterval: 720 * time.Hour}},
		Catalog:          plancatalog.Default(),
		Repo:             quotarepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
	})
	return f
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, exportsUsed int64) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		`INSERT INTO users (id, name, email, plans_used, exports_used, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?)`,
		id, "Arjun", id.String()+"@example.com", exportsUsed, baseTime, baseTime,
	).Error)

	sub := &subscriptiondomain.Subscription{
		ID:        id + 900,
		UserID:    id,
		Status:    subscriptiondomain.StatusActive,
		StartsAt:  baseTime,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	sub.ApplyTier(plancatalog.Default().Lookup(plancatalog.TierFree))
	require.NoError(t, subscriptionrepo.Provide().Insert(context.Background(), f.db, sub))
}

func TestConcurrentExportsAtLimitConsumeOnce(t *testing.T) {
	f := newFixtureWithQuota(t)
	ctx := context.Background()
	f.seedUser(t, 13, 4)
	f.seedPlan(t, 91, 13, domain.StatusCompleted, baseTime)

	var innerErr error
	f.svc.renderer = &reentrantRenderer{during: func() {
		_, innerErr = f.svc.Export(ctx, domain.ExportRequest{PlanID: "91"})
	}}

	_, err := f.svc.Export(ctx, domain.ExportRequest{PlanID: "91"})
	require.NoError(t, innerErr, "the export that commits first is delivered")
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)

	var exportsUsed int64
	require.NoError(t, f.db.Raw(`SELECT exports_used FROM users WHERE id = ?`, 13).Scan(&exportsUsed).Error)
	assert.Equal(t, int64(5), exportsUsed)

	stored, err := f.repo.FindByID(ctx, f.db, 91)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExportCount)
}

func TestFailStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, 81, 12, domain.StatusGenerating, baseTime.Add(-30*time.Minute))
	f.seedPlan(t, 82, 12, domain.StatusGenerating, baseTime.Add(-5*time.Minute))
	f.seedPlan(t, 83, 12, domain.StatusCompleted, baseTime.Add(-time.Hour))

	failed, err := f.svc.FailStale(ctx, baseTime, 15*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	stale, err := f.repo.FindByID(ctx, f.db, 81)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stale.Status)
	require.NotNil(t, stale.FailureReason)
	assert.Equal(t, domain.StaleFailureReason, *stale.FailureReason)

	fresh, err := f.repo.FindByID(ctx, f.db, 82)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGenerating, fresh.Status)

	done, err := f.repo.FindByID(ctx, f.db, 83)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	failed, err = f.svc.FailStale(ctx, baseTime, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, failed)
}
