package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
)

type ComplianceCheck struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
}

// ComplianceKind tags which variant a Compliance report holds.
type ComplianceKind string

const (
	ComplianceStructured ComplianceKind = "structured"
	ComplianceUnparsed   ComplianceKind = "unparsed"
)

// GeneralComplianceCheck names the single check of an unparsed report.
const GeneralComplianceCheck = "general_compliance"

const (
	unparsedScore = 85
	minRoomArea   = 70.0
)

// Compliance is either a structured checklist or the provider's raw text
// wrapped in a single general check. RawText is set only for the unparsed
// variant.
type Compliance struct {
	Kind              ComplianceKind             `json:"kind"`
	OverallCompliance bool                       `json:"overall_compliance"`
	Checks            map[string]ComplianceCheck `json:"checks"`
	Recommendations   []string                   `json:"recommendations"`
	CriticalIssues    []string                   `json:"critical_issues"`
	Score             int                        `json:"compliance_score"`
	RawText           string                     `json:"raw_text,omitempty"`
}

func Structured(checks map[string]ComplianceCheck, recommendations, criticalIssues []string, score int) Compliance {
	c := Compliance{
		Kind:            ComplianceStructured,
		Checks:          make(map[string]ComplianceCheck, len(checks)),
		Recommendations: nonNil(recommendations),
		CriticalIssues:  nonNil(criticalIssues),
		Score:           clampScore(score),
	}
	for name, check := range checks {
		c.Checks[name] = check
	}
	c.OverallCompliance = c.allPassing()
	return c
}

func Unparsed(raw string) Compliance {
	raw = strings.TrimSpace(raw)
	return Compliance{
		Kind:              ComplianceUnparsed,
		OverallCompliance: !strings.Contains(strings.ToLower(raw), "fail"),
		Checks: map[string]ComplianceCheck{
			GeneralComplianceCheck: {
				Status:  CheckPassed,
				Message: "Analysis completed based on provided specifications",
				Details: raw,
			},
		},
		Recommendations: []string{},
		CriticalIssues:  []string{},
		Score:           unparsedScore,
		RawText:         raw,
	}
}

// providerReport is the JSON shape requested from the generation provider.
type providerReport struct {
	OverallCompliance *bool                      `json:"overallCompliance"`
	Checks            map[string]ComplianceCheck `json:"checks"`
	Recommendations   []string                   `json:"recommendations"`
	CriticalIssues    []string                   `json:"criticalIssues"`
	ComplianceScore   *int                       `json:"complianceScore"`
}

// ParseCompliance decodes provider text into a structured report. Text that
// is not a JSON checklist degrades to Unparsed, keeping the original output.
func ParseCompliance(raw string) Compliance {
	body := extractJSONObject(raw)
	if body == "" {
		return Unparsed(raw)
	}
	var report providerReport
	if err := json.Unmarshal([]byte(body), &report); err != nil || len(report.Checks) == 0 {
		return Unparsed(raw)
	}

	score := unparsedScore
	if report.ComplianceScore != nil {
		score = *report.ComplianceScore
	}
	c := Structured(report.Checks, report.Recommendations, report.CriticalIssues, score)
	if report.OverallCompliance != nil {
		c.OverallCompliance = *report.OverallCompliance && c.OverallCompliance
	}
	return c
}

// StaticChecks evaluates rules that need only the request parameters.
func StaticChecks(spec PlanSpec) map[string]ComplianceCheck {
	area, rooms, bathrooms := spec.Effective()
	checks := make(map[string]ComplianceCheck, 2)

	perRoom := area / float64(rooms+bathrooms)
	roomCheck := ComplianceCheck{
		Status:  CheckPassed,
		Message: "Average room area meets the NBC 2016 minimum for habitable rooms",
		Details: fmt.Sprintf("%.0f sq ft per room", perRoom),
	}
	if perRoom < minRoomArea {
		roomCheck.Status = CheckFailed
		roomCheck.Message = fmt.Sprintf("Average room area is below %.0f sq ft", minRoomArea)
	}
	checks["minimum_room_size"] = roomCheck

	wantBaths := (rooms + 2) / 3
	bathCheck := ComplianceCheck{
		Status:  CheckPassed,
		Message: "Bathroom count is adequate for the number of rooms",
		Details: fmt.Sprintf("%d bathrooms for %d rooms", bathrooms, rooms),
	}
	if bathrooms < wantBaths {
		bathCheck.Status = CheckWarning
		bathCheck.Message = fmt.Sprintf("Consider at least %d bathrooms for %d rooms", wantBaths, rooms)
	}
	checks["bathroom_ratio"] = bathCheck
	return checks
}

// WithStaticChecks merges rule-based checks into the report. Provider checks
// of the same name are kept. A failed static check clears overall compliance.
func (c Compliance) WithStaticChecks(static map[string]ComplianceCheck) Compliance {
	merged := make(map[string]ComplianceCheck, len(c.Checks)+len(static))
	issues := append([]string{}, c.CriticalIssues...)
	for name, check := range c.Checks {
		merged[name] = check
	}
	for name, check := range static {
		if _, exists := merged[name]; exists {
			continue
		}
		merged[name] = check
		if check.Status == CheckFailed {
			c.OverallCompliance = false
			issues = append(issues, check.Message)
		}
	}
	c.Checks = merged
	c.CriticalIssues = issues
	return c
}

func (c Compliance) allPassing() bool {
	for _, check := range c.Checks {
		if check.Status == CheckFailed {
			return false
		}
	}
	return true
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// RuleBased is the report used when no provider assessment is available.
func RuleBased(spec PlanSpec) Compliance {
	static := StaticChecks(spec)
	score := 100
	for _, check := range static {
		switch check.Status {
		case CheckFailed:
			score -= 30
		case CheckWarning:
			score -= 10
		}
	}
	return Structured(nil, nil, nil, score).WithStaticChecks(static)
}
