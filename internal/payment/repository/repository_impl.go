package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const paymentColumns = `id, user_id, provider, provider_order_id, provider_payment_id, plan_tier,
	amount, currency, status, failure_reason, payload, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	payload := payment.Payload
	if len(payload) == 0 {
		payload = datatypes.JSON(`{}`)
	}
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_payment_id) DO NOTHING`,
		payment.ID,
		payment.UserID,
		payment.Provider,
		payment.ProviderOrderID,
		payment.ProviderPaymentID,
		string(payment.PlanTier),
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		payment.FailureReason,
		payload,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByProviderPaymentID(ctx context.Context, db *gorm.DB, provider, providerPaymentID string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE provider = ? AND provider_payment_id = ?
		 LIMIT 1`,
		provider,
		providerPaymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, failureReason *string, payload []byte, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, failure_reason = ?, payload = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(status),
		failureReason,
		datatypes.JSON(payload),
		now,
		id,
		string(domain.StatusCompleted),
		string(domain.StatusFailed),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]*domain.Payment, error) {
	var items []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	return items, err
}
