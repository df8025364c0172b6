package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	GetCounters(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Counters, error)
	// Increment adds one to the action's counter when limit admits it. A
	// negative limit is unlimited. It returns the affected row count.
	Increment(ctx context.Context, db *gorm.DB, userID snowflake.ID, action Action, limit int64, now time.Time) (int64, error)
	Reset(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (int64, error)
	ListResetDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error)
	// ResetIfDue resets counters only while the window anchor is at or before cutoff.
	ResetIfDue(ctx context.Context, db *gorm.DB, userID snowflake.ID, cutoff, now time.Time) (bool, error)
}
