package pdf

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
)

const (
	lineHeight   = 5
	maxLineRunes = 95
)

func (p *PDFProvider) RenderPDF(ctx context.Context, plan *floorplandomain.FloorPlan) ([]byte, error) {
	if plan == nil {
		return nil, fmt.Errorf("render pdf: nil floor plan")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, plan.Title, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	area, rooms, bathrooms := plan.Spec().Effective()
	m.AddRow(16,
		col.New(6).Add(
			text.New(fmt.Sprintf("Area: %.0f sq ft", area), props.Text{Top: 0}),
			text.New(fmt.Sprintf("Rooms: %d  Bathrooms: %d", rooms, bathrooms), props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Generated: "+plan.CreatedAt.Format("02 Jan 2006"), props.Text{Top: 0, Align: align.Right}),
			text.New("Plan ID: "+plan.ID.String(), props.Text{Top: 5, Align: align.Right}),
		),
	)

	section(m, "Layout")
	for _, line := range wrap(plan.GeneratedPlan) {
		m.AddRow(lineHeight, text.NewCol(12, line, props.Text{Size: 9}))
	}

	if estimate := plan.MaterialEstimate.Data(); estimate != nil {
		section(m, "Material estimate")
		for _, item := range []struct {
			name string
			qty  floorplandomain.Quantity
		}{
			{"Bricks", estimate.Bricks},
			{"Cement", estimate.Cement},
			{"Steel", estimate.Steel},
			{"Sand", estimate.Sand},
			{"Aggregate", estimate.Aggregate},
		} {
			m.AddRow(6,
				text.NewCol(8, item.name, props.Text{Size: 9}),
				text.NewCol(4, fmt.Sprintf("%.2f %s", item.qty.Quantity, item.qty.Unit), props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	if compliance := plan.Compliance.Data(); compliance != nil {
		section(m, fmt.Sprintf("Compliance (score %d)", compliance.Score))
		names := make([]string, 0, len(compliance.Checks))
		for name := range compliance.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			check := compliance.Checks[name]
			m.AddRow(6,
				text.NewCol(4, name, props.Text{Size: 9}),
				text.NewCol(2, string(check.Status), props.Text{Size: 9, Style: fontstyle.Bold}),
				text.NewCol(6, truncate(check.Message, 60), props.Text{Size: 8}),
			)
		}
		for _, rec := range compliance.Recommendations {
			m.AddRow(lineHeight, text.NewCol(12, "- "+truncate(rec, maxLineRunes), props.Text{Size: 8}))
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func section(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   3,
		}),
	)
}

// wrap splits text into lines short enough for a single fixed-height row.
func wrap(body string) []string {
	var lines []string
	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		raw = strings.TrimRight(raw, " \t")
		if raw == "" {
			lines = append(lines, " ")
			continue
		}
		words := strings.Fields(raw)
		current := ""
		for _, w := range words {
			if current != "" && utf8.RuneCountInString(current)+1+utf8.RuneCountInString(w) > maxLineRunes {
				lines = append(lines, current)
				current = ""
			}
			if current == "" {
				current = w
			} else {
				current += " " + w
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
