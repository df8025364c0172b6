package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/plancatalog"
)

var (
	ErrInvalidUser = errors.New("invalid_user_id")
	ErrInvalidTier = errors.New("invalid_plan_tier")
	ErrNotFound    = errors.New("subscription_not_found")
)

type Service interface {
	Plans(ctx context.Context) []plancatalog.TierConfig
	// AssignDefault creates the free subscription for a new user. It is a
	// no-op returning the existing row when one is already present.
	AssignDefault(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	Get(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	// ChangePlan activates tier for the user and resets the usage window.
	ChangePlan(ctx context.Context, userID snowflake.ID, tier string) (*Subscription, error)
	Cancel(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}
