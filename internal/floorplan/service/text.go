package service

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/smallbiznis/planix/internal/floorplan/domain"
)

// RenderText is the plain-text export of a plan.
func RenderText(plan *domain.FloorPlan) []byte {
	var b bytes.Buffer
	area, rooms, bathrooms := plan.Spec().Effective()

	fmt.Fprintf(&b, "%s\n", plan.Title)
	fmt.Fprintf(&b, "Area: %.0f sq ft | Rooms: %d | Bathrooms: %d\n\n", area, rooms, bathrooms)
	b.WriteString(plan.GeneratedPlan)
	b.WriteString("\n")

	if est := plan.MaterialEstimate.Data(); est != nil {
		b.WriteString("\nMATERIAL ESTIMATE\n")
		fmt.Fprintf(&b, "Bricks: %.0f %s\n", est.Bricks.Quantity, est.Bricks.Unit)
		fmt.Fprintf(&b, "Cement: %.2f %s\n", est.Cement.Quantity, est.Cement.Unit)
		fmt.Fprintf(&b, "Steel: %.2f %s\n", est.Steel.Quantity, est.Steel.Unit)
		fmt.Fprintf(&b, "Sand: %.2f %s\n", est.Sand.Quantity, est.Sand.Unit)
		fmt.Fprintf(&b, "Aggregate: %.2f %s\n", est.Aggregate.Quantity, est.Aggregate.Unit)
	}

	if c := plan.Compliance.Data(); c != nil {
		fmt.Fprintf(&b, "\nCOMPLIANCE (score %d, compliant: %t)\n", c.Score, c.OverallCompliance)
		names := make([]string, 0, len(c.Checks))
		for name := range c.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s. %s\n", name, c.Checks[name].Status, c.Checks[name].Message)
		}
		for _, rec := range c.Recommendations {
			fmt.Fprintf(&b, "* %s\n", rec)
		}
	}
	return b.Bytes()
}
