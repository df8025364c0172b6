// Package domain defines the floor-plan artifact and the pure rules derived
// from it: material estimates, compliance reports and request validation.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FloorPlan is one generation artifact. MaterialEstimate and Compliance are
// written once, together with the completed transition.
type FloorPlan struct {
	ID               snowflake.ID                          `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID                          `gorm:"not null;index" json:"user_id"`
	Title            string                                `gorm:"not null" json:"title"`
	Slug             string                                `gorm:"not null" json:"slug"`
	Description      string                                `gorm:"not null" json:"description"`
	Area             *float64                              `json:"area,omitempty"`
	Rooms            *int                                  `json:"rooms,omitempty"`
	Bathrooms        *int                                  `json:"bathrooms,omitempty"`
	Budget           *float64                              `json:"budget,omitempty"`
	Location         *string                               `json:"location,omitempty"`
	Features         pq.StringArray                        `gorm:"type:text[]" json:"features"`
	Tags             pq.StringArray                        `gorm:"type:text[]" json:"tags"`
	GeneratedPlan    string                                `json:"generated_plan"`
	MaterialEstimate datatypes.JSONType[*MaterialEstimate] `gorm:"type:jsonb" json:"material_estimate"`
	Compliance       datatypes.JSONType[*Compliance]       `gorm:"type:jsonb" json:"compliance"`
	Status           Status                                `gorm:"type:text;not null" json:"status"`
	FailureReason    *string                               `json:"failure_reason,omitempty"`
	Degraded         bool                                  `gorm:"not null;default:false" json:"degraded"`
	ExportCount      int64                                 `gorm:"not null;default:0" json:"export_count"`
	CorrelationID    string                                `json:"correlation_id,omitempty"`
	CreatedAt        time.Time                             `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                             `gorm:"not null" json:"updated_at"`
	CompletedAt      *time.Time                            `json:"completed_at,omitempty"`
}

func (FloorPlan) TableName() string { return "floor_plans" }

// Spec rebuilds the request parameters stored on the artifact.
func (f *FloorPlan) Spec() PlanSpec {
	spec := PlanSpec{
		Description: f.Description,
		Area:        f.Area,
		Rooms:       f.Rooms,
		Bathrooms:   f.Bathrooms,
		Budget:      f.Budget,
		Features:    []string(f.Features),
	}
	if f.Location != nil {
		spec.Location = *f.Location
	}
	return spec
}
