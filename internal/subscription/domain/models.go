// Package domain contains the subscription model. Each user has exactly one
// subscription row which is status-transitioned, never deleted.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/plancatalog"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Subscription carries a copy of the tier's limits at assignment time.
type Subscription struct {
	ID                  snowflake.ID      `json:"id"`
	UserID              snowflake.ID      `json:"user_id"`
	PlanTier            plancatalog.Tier  `json:"plan_tier"`
	Status              Status            `json:"status"`
	MonthlyPlansLimit   plancatalog.Limit `json:"monthly_plans_limit"`
	MonthlyExportsLimit plancatalog.Limit `json:"monthly_exports_limit"`
	AdvancedFeatures    bool              `json:"advanced_features"`
	PrioritySupport     bool              `json:"priority_support"`
	APIAccess           bool              `json:"api_access"`
	StartsAt            time.Time         `json:"starts_at"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	CancelledAt         *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsActive reports whether the subscription's own limits apply.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// ApplyTier copies the tier's limits and feature flags onto the subscription.
func (s *Subscription) ApplyTier(cfg plancatalog.TierConfig) {
	s.PlanTier = cfg.Tier
	s.MonthlyPlansLimit = cfg.MonthlyPlans
	s.MonthlyExportsLimit = cfg.MonthlyExports
	s.AdvancedFeatures = cfg.AdvancedFeatures
	s.PrioritySupport = cfg.PrioritySupport
	s.APIAccess = cfg.APIAccess
}
