package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/pkg/db/option"
	"gorm.io/gorm"
)

// Completion is the payload written with the completed transition.
type Completion struct {
	ID            snowflake.ID
	GeneratedPlan string
	Estimate      MaterialEstimate
	Compliance    Compliance
	Degraded      bool
	CompletedAt   time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *FloorPlan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FloorPlan, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.QueryOption) ([]*FloorPlan, error)
	CountByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status Status) (int64, error)
	// Complete and Fail only move artifacts out of generating and report
	// whether the row changed.
	Complete(ctx context.Context, db *gorm.DB, c Completion) (bool, error)
	Fail(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (bool, error)
	ListStale(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error)
	IncrementExportCount(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id, userID snowflake.ID) (int64, error)
}
