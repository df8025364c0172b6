package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/observability/metrics"
	"github.com/smallbiznis/planix/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/planix/internal/payment/domain"
	"github.com/smallbiznis/planix/internal/plancatalog"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const listLimit = 50

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Registry        *adapters.Registry
	Repo            paymentdomain.Repository
	SubscriptionSvc subscriptiondomain.Service
	ObsMetrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	registry        *adapters.Registry
	repo            paymentdomain.Repository
	subscriptionsvc subscriptiondomain.Service
	obsMetrics      *metrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		registry:        p.Registry,
		repo:            p.Repo,
		subscriptionsvc: p.SubscriptionSvc,
		obsMetrics:      p.ObsMetrics,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.WebhookResult, error) {
	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, paymentdomain.ErrInvalidPayload
	}

	event, err := adapter.Parse(ctx, payload)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		s.log.Debug("payment webhook ignored", zap.String("provider", adapter.Provider()))
		return &paymentdomain.WebhookResult{Ignored: true}, nil
	}
	if err != nil {
		return nil, err
	}
	tier, err := validateEvent(event)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByProviderPaymentID(ctx, s.db, event.Provider, event.ProviderPaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status.Terminal() {
		return &paymentdomain.WebhookResult{Payment: existing, Duplicate: true}, nil
	}

	// The tier is applied before the outcome is recorded so a failed plan
	// change leaves the payment open for the provider's redelivery.
	if event.Status == paymentdomain.StatusCompleted {
		if _, err := s.subscriptionsvc.ChangePlan(ctx, event.UserID, string(tier)); err != nil {
			if errors.Is(err, subscriptiondomain.ErrNotFound) {
				return nil, paymentdomain.ErrUserNotFound
			}
			return nil, fmt.Errorf("activate %s tier: %w", tier, err)
		}
	}

	payment, err := s.record(ctx, existing, event, tier)
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.EventType)
	s.log.Info("payment outcome recorded",
		zap.String("provider", event.Provider),
		zap.String("provider_payment_id", event.ProviderPaymentID),
		zap.String("user_id", event.UserID.String()),
		zap.String("status", string(payment.Status)),
	)
	return &paymentdomain.WebhookResult{Payment: payment}, nil
}

func (s *Service) record(ctx context.Context, existing *paymentdomain.Payment, event *paymentdomain.PaymentEvent, tier plancatalog.Tier) (*paymentdomain.Payment, error) {
	now := s.clock.Now()
	var failureReason *string
	if event.FailureReason != "" {
		reason := event.FailureReason
		failureReason = &reason
	}

	if existing == nil {
		payment := &paymentdomain.Payment{
			ID:                s.genID.Generate(),
			UserID:            event.UserID,
			Provider:          event.Provider,
			ProviderOrderID:   event.ProviderOrderID,
			ProviderPaymentID: event.ProviderPaymentID,
			PlanTier:          tier,
			Amount:            event.Amount,
			Currency:          event.Currency,
			Status:            event.Status,
			FailureReason:     failureReason,
			Payload:           datatypes.JSON(event.RawPayload),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := s.repo.Insert(ctx, s.db, payment)
		if err != nil {
			return nil, err
		}
		if inserted {
			return payment, nil
		}
		existing, err = s.repo.FindByProviderPaymentID(ctx, s.db, event.Provider, event.ProviderPaymentID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
	}

	if _, err := s.repo.UpdateOutcome(ctx, s.db, existing.ID, event.Status, failureReason, event.RawPayload, now); err != nil {
		return nil, err
	}
	return s.repo.FindByProviderPaymentID(ctx, s.db, event.Provider, event.ProviderPaymentID)
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]*paymentdomain.Payment, error) {
	if userID <= 0 {
		return nil, paymentdomain.ErrInvalidUser
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID, listLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*paymentdomain.Payment{}
	}
	return items, nil
}

func validateEvent(event *paymentdomain.PaymentEvent) (plancatalog.Tier, error) {
	if event == nil || strings.TrimSpace(event.ProviderPaymentID) == "" {
		return "", paymentdomain.ErrInvalidEvent
	}
	if event.UserID <= 0 {
		return "", paymentdomain.ErrInvalidUser
	}
	tier, ok := plancatalog.ParseTier(event.PlanTier)
	if !ok || !tier.Paid() {
		return "", paymentdomain.ErrInvalidTier
	}
	if event.Amount <= 0 {
		return "", paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(event.Currency) == "" {
		return "", paymentdomain.ErrInvalidCurrency
	}
	return tier, nil
}
