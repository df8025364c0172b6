package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	// Update writes tier, status, limits and lifecycle timestamps of sub.
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Subscription, error)
	// MarkExpired writes sub's limits and the expired status, guarded on the
	// row still being active and past its expiry. It reports whether the row changed.
	MarkExpired(ctx context.Context, db *gorm.DB, sub *Subscription, now time.Time) (bool, error)
}
