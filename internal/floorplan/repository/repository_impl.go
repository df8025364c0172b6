package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/smallbiznis/planix/internal/floorplan/domain"
	pkgdb "github.com/smallbiznis/planix/pkg/db"
	"github.com/smallbiznis/planix/pkg/db/option"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const floorPlanColumns = `id, user_id, title, slug, description, area, rooms, bathrooms, budget,
	location, features, tags, generated_plan, material_estimate, compliance, status,
	failure_reason, degraded, export_count, correlation_id, created_at, updated_at, completed_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.FloorPlan) error {
	if plan.Features == nil {
		plan.Features = pq.StringArray{}
	}
	if plan.Tags == nil {
		plan.Tags = pq.StringArray{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO floor_plans (id, user_id, title, slug, description, area, rooms, bathrooms,
			budget, location, features, tags, status, correlation_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.UserID,
		plan.Title,
		plan.Slug,
		plan.Description,
		plan.Area,
		plan.Rooms,
		plan.Bathrooms,
		plan.Budget,
		plan.Location,
		plan.Features,
		plan.Tags,
		string(plan.Status),
		plan.CorrelationID,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FloorPlan, error) {
	var plan domain.FloorPlan
	err := db.WithContext(ctx).Raw(
		`SELECT `+floorPlanColumns+` FROM floor_plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.QueryOption) ([]*domain.FloorPlan, error) {
	var plans []*domain.FloorPlan
	stmt := db.WithContext(ctx).
		Model(&domain.FloorPlan{}).
		Where("user_id = ?", userID)
	if err := option.Apply(stmt, opts...).Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status domain.Status) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM floor_plans WHERE user_id = ? AND status = ?`,
		userID,
		string(status),
	).Scan(&count).Error
	return count, err
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, c domain.Completion) (bool, error) {
	estimate := c.Estimate
	compliance := c.Compliance
	res := db.WithContext(ctx).Exec(
		`UPDATE floor_plans
		 SET status = ?, generated_plan = ?, material_estimate = ?, compliance = ?, degraded = ?,
			failure_reason = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.StatusCompleted),
		c.GeneratedPlan,
		datatypes.NewJSONType(&estimate),
		datatypes.NewJSONType(&compliance),
		c.Degraded,
		c.CompletedAt,
		c.CompletedAt,
		c.ID,
		string(domain.StatusGenerating),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Fail(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE floor_plans SET status = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.StatusFailed),
		reason,
		now,
		id,
		string(domain.StatusGenerating),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM floor_plans
		 WHERE status = ? AND created_at <= ?
		 ORDER BY created_at ASC
		 LIMIT ? `+pkgdb.SkipLockedClause(db),
		string(domain.StatusGenerating),
		cutoff,
		limit,
	).Scan(&ids).Error
	return ids, err
}

func (r *repo) IncrementExportCount(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE floor_plans SET export_count = export_count + 1, updated_at = ?
		 WHERE id = ? AND status = ?`,
		now,
		id,
		string(domain.StatusCompleted),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id, userID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM floor_plans WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	return res.RowsAffected, res.Error
}
