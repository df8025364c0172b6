package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type WebhookResult struct {
	Payment   *Payment `json:"payment"`
	Duplicate bool     `json:"duplicate"`
	Ignored   bool     `json:"ignored"`
}

type Service interface {
	// HandleWebhook verifies a provider delivery and records its outcome once.
	// A completed payment activates the paid tier for the user.
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*WebhookResult, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]*Payment, error)
}
