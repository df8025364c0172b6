package domain

import (
	"context"
	"errors"

	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
)

var (
	ErrInvalidUser          = errors.New("invalid_user_id")
	ErrGenerationInProgress = errors.New("generation_in_progress")
)

type GenerateRequest struct {
	UserID string
	Spec   floorplandomain.PlanSpec
	Tags   []string
}

type Service interface {
	// Generate admits, persists and runs one generation. It returns the
	// artifact once it is terminal or once ctx ends, whichever is first; the
	// run itself continues in the background until it reaches a terminal state.
	Generate(ctx context.Context, req GenerateRequest) (*floorplandomain.FloorPlan, error)
	ProviderConfigured() bool
	// Wait blocks until all background runs have finished.
	Wait()
}
