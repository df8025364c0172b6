package plancatalog

import "strings"

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier normalizes s and reports whether it names a known tier.
func ParseTier(s string) (Tier, bool) {
	tier := Tier(strings.ToLower(strings.TrimSpace(s)))
	switch tier {
	case TierFree, TierPro, TierEnterprise:
		return tier, true
	default:
		return tier, false
	}
}

func (t Tier) Paid() bool {
	return t == TierPro || t == TierEnterprise
}

type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// MinorUnits returns the amount in the currency's smallest unit.
func (p Price) MinorUnits() int64 {
	return p.Amount * 100
}

// TierConfig is what a tier includes.
type TierConfig struct {
	Tier             Tier     `json:"tier"`
	Name             string   `json:"name"`
	MonthlyPlans     Limit    `json:"monthly_plans_limit"`
	MonthlyExports   Limit    `json:"monthly_exports_limit"`
	AdvancedFeatures bool     `json:"advanced_features"`
	PrioritySupport  bool     `json:"priority_support"`
	APIAccess        bool     `json:"api_access"`
	Price            Price    `json:"price"`
	Features         []string `json:"features"`
}
