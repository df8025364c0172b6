// Package razorpay verifies and decodes Razorpay payment webhooks.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/planix/internal/payment/domain"
)

const (
	ProviderName    = "razorpay"
	SignatureHeader = "X-Razorpay-Signature"
)

type Adapter struct {
	webhookSecret string
}

func New(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Provider() string {
	return ProviderName
}

// Verify checks the hex HMAC-SHA256 of the raw body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrNotConfigured
	}
	signature := strings.TrimSpace(headers.Get(SignatureHeader))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(a.webhookSecret, payload))) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Razorpay sends for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookEvent struct {
	Event     string         `json:"event"`
	CreatedAt int64          `json:"created_at"`
	Payload   webhookPayload `json:"payload"`
}

type webhookPayload struct {
	Payment struct {
		Entity paymentEntity `json:"entity"`
	} `json:"payment"`
}

type paymentEntity struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	ErrorDescription string            `json:"error_description"`
	CreatedAt        int64             `json:"created_at"`
	Notes            map[string]string `json:"notes"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var status paymentdomain.Status
	switch strings.TrimSpace(event.Event) {
	case "payment.authorized":
		status = paymentdomain.StatusProcessing
	case "payment.captured", "order.paid":
		status = paymentdomain.StatusCompleted
	case "payment.failed":
		status = paymentdomain.StatusFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	entity := event.Payload.Payment.Entity
	if strings.TrimSpace(entity.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	userID, err := parseUserID(entity.Notes["user_id"])
	if err != nil {
		return nil, err
	}

	parsed := &paymentdomain.PaymentEvent{
		Provider:          ProviderName,
		EventType:         event.Event,
		ProviderOrderID:   strings.TrimSpace(entity.OrderID),
		ProviderPaymentID: strings.TrimSpace(entity.ID),
		UserID:            userID,
		PlanTier:          strings.ToLower(strings.TrimSpace(entity.Notes["plan_tier"])),
		Amount:            entity.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(entity.Currency)),
		Status:            status,
		OccurredAt:        timestamp(entity.CreatedAt, event.CreatedAt),
		RawPayload:        payload,
	}
	if status == paymentdomain.StatusFailed {
		parsed.FailureReason = strings.TrimSpace(entity.ErrorDescription)
		if parsed.FailureReason == "" {
			parsed.FailureReason = "payment failed"
		}
	}
	return parsed, nil
}

func parseUserID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, paymentdomain.ErrInvalidUser
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, paymentdomain.ErrInvalidUser
	}
	return snowflake.ID(id), nil
}

func timestamp(values ...int64) time.Time {
	for _, v := range values {
		if v > 0 {
			return time.Unix(v, 0).UTC()
		}
	}
	return time.Now().UTC()
}
