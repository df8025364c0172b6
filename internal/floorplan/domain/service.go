package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/planix/pkg/db/pagination"
)

var (
	ErrInvalidID     = errors.New("invalid_plan_id")
	ErrInvalidUser   = errors.New("invalid_user_id")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidFormat = errors.New("invalid_format")
	ErrNotFound      = errors.New("floor_plan_not_found")
	ErrNotOwner      = errors.New("forbidden")
	ErrNotCompleted  = errors.New("plan_not_completed")
)

// StaleFailureReason is recorded on artifacts abandoned in generating.
const StaleFailureReason = "generation did not complete"

type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportText ExportFormat = "txt"
)

type ListRequest struct {
	UserID    string
	Status    string
	PageToken string
	PageSize  int
}

type ListResponse struct {
	FloorPlans []*FloorPlan         `json:"floor_plans"`
	PageInfo   *pagination.PageInfo `json:"page_info"`
}

type ExportRequest struct {
	PlanID string
	UserID string
	Format string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Renderer produces the PDF export of a completed plan.
type Renderer interface {
	RenderPDF(ctx context.Context, plan *FloorPlan) ([]byte, error)
}

type Service interface {
	Get(ctx context.Context, id string) (*FloorPlan, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Delete(ctx context.Context, planID, userID string) error
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	// FailStale fails artifacts left generating longer than threshold.
	FailStale(ctx context.Context, now time.Time, threshold time.Duration, limit int) (int, error)
}
