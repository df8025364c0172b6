package domain

import (
	"context"
	"errors"

	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
)

var (
	ErrProviderTimeout      = errors.New("provider_timeout")
	ErrProviderError        = errors.New("provider_error")
	ErrConfigurationMissing = errors.New("provider_configuration_missing")
)

// Result is the generated plan text. Degraded results come from an
// unconfigured provider and carry marker text instead of a real plan.
type Result struct {
	Text     string
	Model    string
	Degraded bool
}

// Provider is the external plan generator. Both calls must honour ctx.
type Provider interface {
	// Configured reports whether credentials are present.
	Configured() bool
	GeneratePlan(ctx context.Context, spec floorplandomain.PlanSpec) (Result, error)
	AssessCompliance(ctx context.Context, planText string, spec floorplandomain.PlanSpec) (floorplandomain.Compliance, error)
}
