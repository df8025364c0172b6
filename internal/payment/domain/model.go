package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/plancatalog"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the outcome is final. Terminal payments are never
// updated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payment records an externally decided payment outcome for a plan upgrade.
type Payment struct {
	ID                snowflake.ID     `json:"id" gorm:"primaryKey"`
	UserID            snowflake.ID     `json:"user_id" gorm:"not null;index"`
	Provider          string           `json:"provider" gorm:"type:text;not null"`
	ProviderOrderID   string           `json:"provider_order_id" gorm:"type:text;not null"`
	ProviderPaymentID string           `json:"provider_payment_id" gorm:"type:text;not null"`
	PlanTier          plancatalog.Tier `json:"plan_tier" gorm:"type:text;not null"`
	Amount            int64            `json:"amount" gorm:"not null"`
	Currency          string           `json:"currency" gorm:"type:text;not null"`
	Status            Status           `json:"status" gorm:"type:text;not null"`
	FailureReason     *string          `json:"failure_reason,omitempty"`
	Payload           datatypes.JSON   `json:"-" gorm:"type:jsonb;not null"`
	CreatedAt         time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// PaymentEvent is the canonical payment outcome parsed by adapters.
type PaymentEvent struct {
	Provider          string
	EventType         string
	ProviderOrderID   string
	ProviderPaymentID string
	UserID            snowflake.ID
	PlanTier          string
	Amount            int64
	Currency          string
	Status            Status
	FailureReason     string
	OccurredAt        time.Time
	RawPayload        []byte
}
