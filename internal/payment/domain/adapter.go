package domain

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrNotConfigured    = errors.New("payment_provider_not_configured")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidTier      = errors.New("invalid_plan_tier")
	ErrInvalidUser      = errors.New("invalid_user_id")
	ErrUserNotFound     = errors.New("user_not_found")
)

// Adapter verifies and decodes one provider's webhook deliveries.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}
