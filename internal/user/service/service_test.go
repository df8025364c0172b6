package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/plancatalog"
	quotarepo "github.com/smallbiznis/planix/internal/quota/repository"
	quotaservice "github.com/smallbiznis/planix/internal/quota/service"
	referralrepo "github.com/smallbiznis/planix/internal/referral/repository"
	referralservice "github.com/smallbiznis/planix/internal/referral/service"
	subscriptionrepo "github.com/smallbiznis/planix/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/planix/internal/subscription/service"
	"github.com/smallbiznis/planix/internal/user/domain"
	"github.com/smallbiznis/planix/internal/user/password"
	"github.com/smallbiznis/planix/internal/user/repository"
	"github.com/smallbiznis/planix/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	cfg := config.Config{Referral: config.ReferralConfig{AwardCredits: 50}}
	catalog := plancatalog.Default()
	subRepo := subscriptionrepo.Provide()

	quotasvc := quotaservice.New(quotaservice.Params{
		DB: conn, Log: zap.NewNop(), Clock: fc, Config: cfg, Catalog: catalog,
		Repo: quotarepo.Provide(), SubscriptionRepo: subRepo,
	})
	subsvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fc, Catalog: catalog,
		Repo: subRepo, QuotaSvc: quotasvc,
	})
	refsvc := referralservice.New(referralservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fc, Config: cfg,
		Repo: referralrepo.Provide(),
	})

	svc := New(Params{
		DB:              conn,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           fc,
		Repo:            repository.Provide(),
		SubscriptionSvc: subsvc,
		ReferralSvc:     refsvc,
	})
	return svc, conn
}

func TestCreateProvisionsSubscriptionAndCode(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:     "  Meera Iyer ",
		Email:    "Meera@Example.COM",
		Phone:    "+91 98765-43210",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	user := result.User
	assert.Equal(t, "Meera Iyer", user.Name)
	assert.Equal(t, "meera@example.com", user.Email)
	require.NotNil(t, user.ReferralCode)
	assert.True(t, strings.HasPrefix(*user.ReferralCode, "PLANIX"))
	require.NotNil(t, user.PasswordHash)
	assert.True(t, password.Verify("s3cret!", *user.PasswordHash))
	assert.False(t, result.ReferralApplied)

	var tier string
	require.NoError(t, conn.Raw(`SELECT plan_tier FROM subscriptions WHERE user_id = ?`, user.ID).Scan(&tier).Error)
	assert.Equal(t, "free", tier)

	_, err = svc.Create(ctx, domain.CreateUserRequest{Name: "Other", Email: "meera@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestCreateAppliesReferralCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.Create(ctx, domain.CreateUserRequest{Name: "Referrer", Email: "ref@example.com"})
	require.NoError(t, err)

	referred, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:         "Friend",
		Email:        "friend@example.com",
		ReferralCode: strings.ToLower(*referrer.User.ReferralCode),
	})
	require.NoError(t, err)
	assert.True(t, referred.ReferralApplied)
	require.NotNil(t, referred.User.ReferredBy)
	assert.Equal(t, referrer.User.ID, *referred.User.ReferredBy)

	reloaded, err := svc.Get(ctx, referrer.User.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalReferrals)
	assert.Equal(t, int64(50), reloaded.ReferralCredits)

	_, err = svc.Create(ctx, domain.CreateUserRequest{
		Name: "Late", Email: "late@example.com", ReferralCode: "PLANIXUNKNOWN1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReferralCode)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		req  domain.CreateUserRequest
		want error
	}{
		{"short name", domain.CreateUserRequest{Name: "A", Email: "a@example.com"}, domain.ErrInvalidName},
		{"long name", domain.CreateUserRequest{Name: strings.Repeat("x", 101), Email: "a@example.com"}, domain.ErrInvalidName},
		{"bad email", domain.CreateUserRequest{Name: "Anil", Email: "not-an-email"}, domain.ErrInvalidEmail},
		{"bad phone", domain.CreateUserRequest{Name: "Anil", Email: "a@example.com", Phone: "call me"}, domain.ErrInvalidPhone},
		{"short password", domain.CreateUserRequest{Name: "Anil", Email: "a@example.com", Password: "12345"}, domain.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, domain.CreateUserRequest{Name: "Kiran", Email: "kiran@example.com"})
	require.NoError(t, err)

	name := "Kiran Rao"
	phone := "(080) 1234-5678"
	updated, err := svc.Update(ctx, created.User.ID.String(), domain.UpdateUserRequest{Name: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)

	_, err = svc.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
