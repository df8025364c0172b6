package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestEstimateMaterials(t *testing.T) {
	est := EstimateMaterials(1000, 2, 1)

	assert.Equal(t, 8000.0, est.Bricks.Quantity)
	assert.Equal(t, "pieces", est.Bricks.Unit)
	assert.Equal(t, 400.0, est.Cement.Quantity)
	assert.Equal(t, "bags", est.Cement.Unit)
	assert.Equal(t, 4000.0, est.Steel.Quantity)
	assert.Equal(t, 500.0, est.Sand.Quantity)
	assert.Equal(t, 300.0, est.Aggregate.Quantity)
}

func TestEstimateMaterialsDefaultsAndRounding(t *testing.T) {
	est := EstimateMaterials(0, -1, 0)
	assert.Equal(t, DefaultArea, est.Area)
	assert.Equal(t, DefaultRooms, est.Rooms)
	assert.Equal(t, DefaultBathrooms, est.Bathrooms)

	est = EstimateMaterials(123.45, 3, 2)
	assert.Equal(t, 987.0, est.Bricks.Quantity)
	assert.Equal(t, 49.38, est.Cement.Quantity)
	assert.Equal(t, 493.8, est.Steel.Quantity)
	assert.Equal(t, 3, est.Rooms, "rooms are recorded verbatim")
}

func TestPlanSpecValidate(t *testing.T) {
	valid := PlanSpec{Description: "Three bedroom villa with garden"}

	cases := []struct {
		name string
		edit func(*PlanSpec)
		want error
	}{
		{name: "minimal", edit: func(*PlanSpec) {}},
		{name: "short description", edit: func(s *PlanSpec) { s.Description = "tiny" }, want: ErrInvalidDescription},
		{name: "long description", edit: func(s *PlanSpec) { s.Description = strings.Repeat("a", 1001) }, want: ErrInvalidDescription},
		{name: "area too small", edit: func(s *PlanSpec) { s.Area = ptr(99.0) }, want: ErrInvalidArea},
		{name: "area at bounds", edit: func(s *PlanSpec) { s.Area = ptr(10000.0) }},
		{name: "zero rooms", edit: func(s *PlanSpec) { s.Rooms = ptr(0) }, want: ErrInvalidRooms},
		{name: "too many bathrooms", edit: func(s *PlanSpec) { s.Bathrooms = ptr(11) }, want: ErrInvalidBathrooms},
		{name: "negative budget", edit: func(s *PlanSpec) { s.Budget = ptr(-1.0) }, want: ErrInvalidBudget},
		{name: "long location", edit: func(s *PlanSpec) { s.Location = strings.Repeat("x", 201) }, want: ErrInvalidLocation},
		{name: "long feature", edit: func(s *PlanSpec) { s.Features = []string{strings.Repeat("f", 51)} }, want: ErrInvalidFeatures},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := valid
			tc.edit(&spec)
			err := spec.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlanSpecNormalizeAndTitle(t *testing.T) {
	spec := PlanSpec{
		Description: "  Compact studio apartment near the metro with a large open kitchen  ",
		Location:    " Pune ",
		Features:    []string{" balcony ", "", "  "},
	}.Normalize()

	assert.Equal(t, "Pune", spec.Location)
	assert.Equal(t, []string{"balcony"}, spec.Features)
	assert.Equal(t, "Floor Plan - Compact studio apartment near the metro with a lar", spec.Title())

	short := PlanSpec{Description: "Small cottage"}
	assert.Equal(t, "Floor Plan - Small cottage", short.Title())
}

func TestPlanSpecEffective(t *testing.T) {
	area, rooms, bathrooms := PlanSpec{}.Effective()
	assert.Equal(t, 1000.0, area)
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 1, bathrooms)

	area, rooms, bathrooms = PlanSpec{Area: ptr(1500.0), Rooms: ptr(4), Bathrooms: ptr(3)}.Effective()
	assert.Equal(t, 1500.0, area)
	assert.Equal(t, 4, rooms)
	assert.Equal(t, 3, bathrooms)
}

func TestParseComplianceStructured(t *testing.T) {
	raw := "Here is the report:\n```json\n" +
		`{"overallCompliance": true, "checks": {"setback": {"status": "passed", "message": "Setbacks respected"}},` +
		` "recommendations": ["Add ramp"], "complianceScore": 92}` +
		"\n```"

	c := ParseCompliance(raw)

	assert.Equal(t, ComplianceStructured, c.Kind)
	assert.True(t, c.OverallCompliance)
	assert.Equal(t, 92, c.Score)
	assert.Equal(t, []string{"Add ramp"}, c.Recommendations)
	assert.Equal(t, []string{}, c.CriticalIssues)
	assert.Empty(t, c.RawText)
	require.Contains(t, c.Checks, "setback")
	assert.Equal(t, CheckPassed, c.Checks["setback"].Status)
}

func TestParseComplianceFailedCheckOverridesClaim(t *testing.T) {
	raw := `{"overallCompliance": true, "checks": {"fire_exit": {"status": "failed", "message": "No second exit"}}, "complianceScore": 150}`

	c := ParseCompliance(raw)

	assert.Equal(t, ComplianceStructured, c.Kind)
	assert.False(t, c.OverallCompliance)
	assert.Equal(t, 100, c.Score)
}

func TestParseComplianceUnparsed(t *testing.T) {
	c := ParseCompliance("  The layout satisfies ventilation norms.  ")

	assert.Equal(t, ComplianceUnparsed, c.Kind)
	assert.True(t, c.OverallCompliance)
	assert.Equal(t, 85, c.Score)
	assert.Equal(t, "The layout satisfies ventilation norms.", c.RawText)
	require.Contains(t, c.Checks, GeneralComplianceCheck)
	assert.Equal(t, c.RawText, c.Checks[GeneralComplianceCheck].Details)

	failing := ParseCompliance("Staircase width FAILS the code")
	assert.False(t, failing.OverallCompliance)

	empty := ParseCompliance(`{"checks": {}}`)
	assert.Equal(t, ComplianceUnparsed, empty.Kind)
}

func TestRuleBasedCompliance(t *testing.T) {
	c := RuleBased(PlanSpec{})
	assert.Equal(t, ComplianceStructured, c.Kind)
	assert.True(t, c.OverallCompliance)
	assert.Equal(t, 100, c.Score)
	assert.Len(t, c.Checks, 2)

	cramped := RuleBased(PlanSpec{Area: ptr(100.0), Rooms: ptr(3), Bathrooms: ptr(1)})
	assert.False(t, cramped.OverallCompliance)
	assert.Equal(t, 70, cramped.Score)
	assert.Equal(t, CheckFailed, cramped.Checks["minimum_room_size"].Status)
	assert.Equal(t, []string{"Average room area is below 70 sq ft"}, cramped.CriticalIssues)

	fewBaths := RuleBased(PlanSpec{Area: ptr(2000.0), Rooms: ptr(6), Bathrooms: ptr(1)})
	assert.True(t, fewBaths.OverallCompliance)
	assert.Equal(t, 90, fewBaths.Score)
	assert.Equal(t, CheckWarning, fewBaths.Checks["bathroom_ratio"].Status)
}

func TestWithStaticChecksKeepsProviderChecks(t *testing.T) {
	provider := Structured(map[string]ComplianceCheck{
		"minimum_room_size": {Status: CheckPassed, Message: "Provider says fine"},
	}, nil, nil, 80)

	merged := provider.WithStaticChecks(StaticChecks(PlanSpec{Area: ptr(100.0), Rooms: ptr(3), Bathrooms: ptr(1)}))

	assert.Equal(t, "Provider says fine", merged.Checks["minimum_room_size"].Message)
	assert.Contains(t, merged.Checks, "bathroom_ratio")
	assert.True(t, merged.OverallCompliance)
	assert.Equal(t, 80, merged.Score)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusGenerating.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
