package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert stores the payment unless one with the same provider payment id
	// exists, reporting whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByProviderPaymentID(ctx context.Context, db *gorm.DB, provider, providerPaymentID string) (*Payment, error)
	// UpdateOutcome moves a non-terminal payment to status.
	UpdateOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, failureReason *string, payload []byte, now time.Time) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]*Payment, error)
}
