package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/quota/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func counterColumn(action domain.Action) (string, error) {
	switch action {
	case domain.ActionPlanGeneration:
		return "plans_used", nil
	case domain.ActionExport:
		return "exports_used", nil
	default:
		return "", domain.ErrInvalidAction
	}
}

func (r *repo) GetCounters(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Counters, error) {
	var counters domain.Counters
	err := db.WithContext(ctx).Raw(
		`SELECT id AS user_id, plans_used, exports_used, last_usage_reset_at, created_at
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&counters).Error
	if err != nil {
		return nil, err
	}
	if counters.UserID == 0 {
		return nil, nil
	}
	return &counters, nil
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, userID snowflake.ID, action domain.Action, limit int64, now time.Time) (int64, error) {
	column, err := counterColumn(action)
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(
			`UPDATE users SET %[1]s = %[1]s + 1, updated_at = ?
			 WHERE id = ? AND (? < 0 OR %[1]s < ?)`,
			column,
		),
		now,
		userID,
		limit,
		limit,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Reset(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET plans_used = 0, exports_used = 0, last_usage_reset_at = ?, updated_at = ?
		 WHERE id = ?`,
		now,
		now,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListResetDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM users
		 WHERE COALESCE(last_usage_reset_at, created_at) <= ?
		 ORDER BY id ASC
		 LIMIT ?`,
		cutoff,
		limit,
	).Scan(&ids).Error
	return ids, err
}

func (r *repo) ResetIfDue(ctx context.Context, db *gorm.DB, userID snowflake.ID, cutoff, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET plans_used = 0, exports_used = 0, last_usage_reset_at = ?, updated_at = ?
		 WHERE id = ? AND COALESCE(last_usage_reset_at, created_at) <= ?`,
		now,
		now,
		userID,
		cutoff,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
