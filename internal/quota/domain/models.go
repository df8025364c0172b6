// Package domain defines the quota ledger: per-user consumption counters
// checked against the limits of the user's subscription.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/plancatalog"
)

type Action string

const (
	ActionPlanGeneration Action = "plan_generation"
	ActionExport         Action = "export"
)

func (a Action) Valid() bool {
	return a == ActionPlanGeneration || a == ActionExport
}

// Counters is the metered slice of a user row.
type Counters struct {
	UserID           snowflake.ID
	PlansUsed        int64
	ExportsUsed      int64
	LastUsageResetAt *time.Time
	CreatedAt        time.Time
}

// Used returns the counter matching action.
func (c Counters) Used(action Action) int64 {
	if action == ActionExport {
		return c.ExportsUsed
	}
	return c.PlansUsed
}

// Limits are the effective allowances for a user at a point in time.
type Limits struct {
	Tier    plancatalog.Tier
	Active  bool
	Plans   plancatalog.Limit
	Exports plancatalog.Limit
}

func (l Limits) For(action Action) plancatalog.Limit {
	if action == ActionExport {
		return l.Exports
	}
	return l.Plans
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed  bool              `json:"allowed"`
	Action   Action            `json:"action"`
	Used     int64             `json:"used"`
	Reserved int64             `json:"reserved"`
	Limit    plancatalog.Limit `json:"limit"`
	Reason   string            `json:"reason,omitempty"`
}

// Err returns ErrQuotaExceeded for denied decisions.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrQuotaExceeded
}

type Usage struct {
	UserID           snowflake.ID      `json:"user_id"`
	PlanTier         plancatalog.Tier  `json:"plan_tier"`
	PlansUsed        int64             `json:"plans_used"`
	ExportsUsed      int64             `json:"exports_used"`
	PlansLimit       plancatalog.Limit `json:"plans_limit"`
	ExportsLimit     plancatalog.Limit `json:"exports_limit"`
	PlansRemaining   int64             `json:"plans_remaining"`
	ExportsRemaining int64             `json:"exports_remaining"`
	CanCreate        bool              `json:"can_create"`
	CanExport        bool              `json:"can_export"`
	WindowStart      time.Time         `json:"window_start"`
	NextResetAt      *time.Time        `json:"next_reset_at,omitempty"`
}
