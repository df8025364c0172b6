package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidArea        = errors.New("invalid_area")
	ErrInvalidRooms       = errors.New("invalid_rooms")
	ErrInvalidBathrooms   = errors.New("invalid_bathrooms")
	ErrInvalidBudget      = errors.New("invalid_budget")
	ErrInvalidFeatures    = errors.New("invalid_features")
	ErrInvalidLocation    = errors.New("invalid_location")
)

const (
	minDescriptionLength = 10
	maxDescriptionLength = 1000
	minArea              = 100
	maxArea              = 10000
	maxRooms             = 20
	maxBathrooms         = 10
	maxFeatureLength     = 50
	maxLocationLength    = 200
	titleDescriptionLen  = 50
)

// PlanSpec is the user's natural-language request plus optional dimensions.
type PlanSpec struct {
	Description string   `json:"description"`
	Area        *float64 `json:"area,omitempty"`
	Rooms       *int     `json:"rooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	Location    string   `json:"location,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// Normalize trims text fields and drops blank features.
func (s PlanSpec) Normalize() PlanSpec {
	s.Description = strings.TrimSpace(s.Description)
	s.Location = strings.TrimSpace(s.Location)
	features := make([]string, 0, len(s.Features))
	for _, f := range s.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	s.Features = features
	return s
}

// Validate checks a normalized spec.
func (s PlanSpec) Validate() error {
	if n := utf8.RuneCountInString(s.Description); n < minDescriptionLength || n > maxDescriptionLength {
		return ErrInvalidDescription
	}
	if s.Area != nil && (*s.Area < minArea || *s.Area > maxArea) {
		return ErrInvalidArea
	}
	if s.Rooms != nil && (*s.Rooms < 1 || *s.Rooms > maxRooms) {
		return ErrInvalidRooms
	}
	if s.Bathrooms != nil && (*s.Bathrooms < 1 || *s.Bathrooms > maxBathrooms) {
		return ErrInvalidBathrooms
	}
	if s.Budget != nil && *s.Budget < 0 {
		return ErrInvalidBudget
	}
	if utf8.RuneCountInString(s.Location) > maxLocationLength {
		return ErrInvalidLocation
	}
	for _, f := range s.Features {
		if utf8.RuneCountInString(f) > maxFeatureLength {
			return ErrInvalidFeatures
		}
	}
	return nil
}

// Effective returns area, rooms and bathrooms with defaults applied.
func (s PlanSpec) Effective() (float64, int, int) {
	area, rooms, bathrooms := DefaultArea, DefaultRooms, DefaultBathrooms
	if s.Area != nil && *s.Area > 0 {
		area = *s.Area
	}
	if s.Rooms != nil && *s.Rooms > 0 {
		rooms = *s.Rooms
	}
	if s.Bathrooms != nil && *s.Bathrooms > 0 {
		bathrooms = *s.Bathrooms
	}
	return area, rooms, bathrooms
}

// Title is "Floor Plan - " followed by the first 50 characters of the description.
func (s PlanSpec) Title() string {
	desc := []rune(s.Description)
	if len(desc) > titleDescriptionLen {
		desc = desc[:titleDescriptionLen]
	}
	return "Floor Plan - " + strings.TrimSpace(string(desc))
}
