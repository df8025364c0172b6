package deepseek

import (
	"fmt"
	"strings"

	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
)

const planSystemPrompt = "You are an expert architect specializing in Indian building standards and floor plan design. " +
	"Provide detailed, technically accurate architectural descriptions."

const complianceSystemPrompt = "You are an expert building code compliance officer specializing in Indian standards. " +
	"Respond only in valid JSON format."

// DegradedMarker prefixes plan text produced without provider credentials.
const DegradedMarker = "[DEMO MODE] DeepSeek API key not configured."

func planPrompt(spec floorplandomain.PlanSpec) string {
	var b strings.Builder
	b.WriteString("As an expert architect and floor plan designer, create a detailed floor plan description based on the following requirements:\n\n")
	b.WriteString(spec.Description)
	b.WriteString("\n\n")
	writeSpecification(&b, spec)
	b.WriteString(`
Please provide:
1. Overall layout description with room arrangements
2. Specific room dimensions and relationships
3. Door and window placements
4. Circulation patterns and flow
5. Compliance with Indian Standard (IS) codes: IS 875, IS 1893, IS 456 and the National Building Code
6. Structural considerations
7. Ventilation and natural light provisions
8. Fire safety measures
9. Accessibility features
10. Material specifications

Format the response as a comprehensive architectural description suitable for construction.`)
	return b.String()
}

func compliancePrompt(planText string, spec floorplandomain.PlanSpec) string {
	var b strings.Builder
	b.WriteString("As an expert in Indian building codes and standards, analyze the following floor plan and specifications for compliance.\n\n")
	b.WriteString("Floor Plan Description: ")
	b.WriteString(planText)
	b.WriteString("\n\n")
	writeSpecification(&b, spec)
	b.WriteString(`
Check compliance with IS 875, IS 1893, IS 456, NBC 2016, IS 3370 and IS 800.

Respond with a JSON object of the form:
{"overallCompliance": true|false,
 "checks": {"<code>": {"status": "passed|failed|warning", "message": "...", "details": "..."}},
 "recommendations": ["..."],
 "criticalIssues": ["..."],
 "complianceScore": 0-100}`)
	return b.String()
}

func writeSpecification(b *strings.Builder, spec floorplandomain.PlanSpec) {
	area, rooms, bathrooms := spec.Effective()
	b.WriteString("Specifications:\n")
	fmt.Fprintf(b, "- Area: %.0f sq ft\n", area)
	fmt.Fprintf(b, "- Rooms: %d\n", rooms)
	fmt.Fprintf(b, "- Bathrooms: %d\n", bathrooms)
	if spec.Location != "" {
		fmt.Fprintf(b, "- Location: %s\n", spec.Location)
	}
	if spec.Budget != nil {
		fmt.Fprintf(b, "- Budget: INR %.0f\n", *spec.Budget)
	}
	if len(spec.Features) > 0 {
		fmt.Fprintf(b, "- Features: %s\n", strings.Join(spec.Features, ", "))
	}
}

func degradedPlan(spec floorplandomain.PlanSpec) string {
	area, rooms, bathrooms := spec.Effective()
	var b strings.Builder
	b.WriteString(DegradedMarker)
	b.WriteString(" Set DEEPSEEK_API_KEY to generate real floor plans.\n\n")
	fmt.Fprintf(&b, "Requested: %s\n\n", spec.Description)
	fmt.Fprintf(&b, "Sample layout for %.0f sq ft with %d rooms and %d bathrooms:\n", area, rooms, bathrooms)
	b.WriteString("- Living room at the entrance with cross ventilation\n")
	b.WriteString("- Kitchen adjacent to the dining area\n")
	for i := 1; i <= rooms; i++ {
		fmt.Fprintf(&b, "- Bedroom %d\n", i)
	}
	for i := 1; i <= bathrooms; i++ {
		fmt.Fprintf(&b, "- Bathroom %d\n", i)
	}
	return b.String()
}
