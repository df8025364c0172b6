package domain

import "math"

const (
	DefaultArea      = 1000.0
	DefaultRooms     = 2
	DefaultBathrooms = 1
)

type Quantity struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type MaterialEstimate struct {
	Area      float64  `json:"area"`
	Rooms     int      `json:"rooms"`
	Bathrooms int      `json:"bathrooms"`
	Bricks    Quantity `json:"bricks"`
	Cement    Quantity `json:"cement"`
	Steel     Quantity `json:"steel"`
	Sand      Quantity `json:"sand"`
	Aggregate Quantity `json:"aggregate"`
}

// EstimateMaterials scales material quantities linearly with area (sq ft).
// Non-positive inputs take the defaults. Rooms and bathrooms are recorded but
// do not change the quantities.
func EstimateMaterials(area float64, rooms, bathrooms int) MaterialEstimate {
	if area <= 0 {
		area = DefaultArea
	}
	if rooms <= 0 {
		rooms = DefaultRooms
	}
	if bathrooms <= 0 {
		bathrooms = DefaultBathrooms
	}
	return MaterialEstimate{
		Area:      area,
		Rooms:     rooms,
		Bathrooms: bathrooms,
		Bricks:    Quantity{Quantity: math.Floor(area * 8), Unit: "pieces"},
		Cement:    Quantity{Quantity: round2(area * 0.4), Unit: "bags"},
		Steel:     Quantity{Quantity: round2(area * 4), Unit: "kg"},
		Sand:      Quantity{Quantity: round2(area * 0.5), Unit: "cubic feet"},
		Aggregate: Quantity{Quantity: round2(area * 0.3), Unit: "cubic feet"},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
