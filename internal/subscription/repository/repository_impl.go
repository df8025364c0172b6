package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/plancatalog"
	"github.com/smallbiznis/planix/internal/subscription/domain"
	"gorm.io/gorm"
)

const subscriptionColumns = `id, user_id, plan_tier, status, monthly_plans_limit, monthly_exports_limit,
	advanced_features, priority_support, api_access, starts_at, expires_at, cancelled_at,
	created_at, updated_at`

// subscriptionRow is the storage shape; limits use the -1 sentinel here only.
type subscriptionRow struct {
	ID                  snowflake.ID `gorm:"column:id"`
	UserID              snowflake.ID `gorm:"column:user_id"`
	PlanTier            string       `gorm:"column:plan_tier"`
	Status              string       `gorm:"column:status"`
	MonthlyPlansLimit   int64        `gorm:"column:monthly_plans_limit"`
	MonthlyExportsLimit int64        `gorm:"column:monthly_exports_limit"`
	AdvancedFeatures    bool         `gorm:"column:advanced_features"`
	PrioritySupport     bool         `gorm:"column:priority_support"`
	APIAccess           bool         `gorm:"column:api_access"`
	StartsAt            time.Time    `gorm:"column:starts_at"`
	ExpiresAt           *time.Time   `gorm:"column:expires_at"`
	CancelledAt         *time.Time   `gorm:"column:cancelled_at"`
	CreatedAt           time.Time    `gorm:"column:created_at"`
	UpdatedAt           time.Time    `gorm:"column:updated_at"`
}

func (r subscriptionRow) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:                  r.ID,
		UserID:              r.UserID,
		PlanTier:            plancatalog.Tier(r.PlanTier),
		Status:              domain.Status(r.Status),
		MonthlyPlansLimit:   plancatalog.LimitFromSentinel(r.MonthlyPlansLimit),
		MonthlyExportsLimit: plancatalog.LimitFromSentinel(r.MonthlyExportsLimit),
		AdvancedFeatures:    r.AdvancedFeatures,
		PrioritySupport:     r.PrioritySupport,
		APIAccess:           r.APIAccess,
		StartsAt:            r.StartsAt,
		ExpiresAt:           r.ExpiresAt,
		CancelledAt:         r.CancelledAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		string(sub.PlanTier),
		string(sub.Status),
		sub.MonthlyPlansLimit.Sentinel(),
		sub.MonthlyExportsLimit.Sentinel(),
		sub.AdvancedFeatures,
		sub.PrioritySupport,
		sub.APIAccess,
		sub.StartsAt,
		sub.ExpiresAt,
		sub.CancelledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Subscription, error) {
	var row subscriptionRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row.toDomain(), nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET plan_tier = ?, status = ?, monthly_plans_limit = ?, monthly_exports_limit = ?,
			advanced_features = ?, priority_support = ?, api_access = ?,
			starts_at = ?, expires_at = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(sub.PlanTier),
		string(sub.Status),
		sub.MonthlyPlansLimit.Sentinel(),
		sub.MonthlyExportsLimit.Sentinel(),
		sub.AdvancedFeatures,
		sub.PrioritySupport,
		sub.APIAccess,
		sub.StartsAt,
		sub.ExpiresAt,
		sub.CancelledAt,
		sub.UpdatedAt,
		sub.ID,
	).Error
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Subscription, error) {
	var rows []subscriptionRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC
		 LIMIT ?`,
		string(domain.StatusActive),
		now,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Subscription, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, sub *domain.Subscription, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, monthly_plans_limit = ?, monthly_exports_limit = ?,
			advanced_features = ?, priority_support = ?, api_access = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(domain.StatusExpired),
		sub.MonthlyPlansLimit.Sentinel(),
		sub.MonthlyExportsLimit.Sentinel(),
		sub.AdvancedFeatures,
		sub.PrioritySupport,
		sub.APIAccess,
		now,
		sub.ID,
		string(domain.StatusActive),
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
