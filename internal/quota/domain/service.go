package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrQuotaExceeded = errors.New("quota_exceeded")
	ErrInvalidAction = errors.New("invalid_action")
	ErrUserNotFound  = errors.New("user_not_found")
)

type AdmissionOptions struct {
	Reserved int64
}

type AdmissionOption func(*AdmissionOptions)

// WithReserved counts n in-flight actions against the limit.
func WithReserved(n int64) AdmissionOption {
	return func(o *AdmissionOptions) {
		if n > 0 {
			o.Reserved = n
		}
	}
}

type Service interface {
	CheckAdmission(ctx context.Context, userID snowflake.ID, action Action, opts ...AdmissionOption) (Decision, error)
	// RecordConsumption increments the action's counter by one. Call it only
	// after the metered action durably succeeded.
	RecordConsumption(ctx context.Context, userID snowflake.ID, action Action) error
	// RecordConsumptionTx is RecordConsumption inside the caller's
	// transaction, so the increment commits with the metered change.
	RecordConsumptionTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, action Action) error
	Usage(ctx context.Context, userID snowflake.ID) (*Usage, error)
	Reset(ctx context.Context, userID snowflake.ID) error
	// ResetDue resets users whose window started at least interval ago. A
	// non-positive interval disables resets.
	ResetDue(ctx context.Context, now time.Time, interval time.Duration, limit int) (int, error)
}
