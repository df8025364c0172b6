package plancatalog

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFreeTier = errors.New("plan catalog must define the free tier")
	ErrUnknownTier     = errors.New("unknown_tier")
)

// Provider answers tier lookups. Implementations must be safe for concurrent use.
type Provider interface {
	Lookup(tier Tier) TierConfig
	List() []TierConfig
}

// Catalog is an immutable tier table.
type Catalog struct {
	tiers map[Tier]TierConfig
	order []Tier
}

// New validates configs and builds a catalog. The free tier is mandatory
// because it is the fallback for unknown tiers.
func New(configs []TierConfig) (*Catalog, error) {
	c := &Catalog{tiers: make(map[Tier]TierConfig, len(configs))}
	for _, cfg := range configs {
		tier, ok := ParseTier(string(cfg.Tier))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, cfg.Tier)
		}
		if _, dup := c.tiers[tier]; dup {
			return nil, fmt.Errorf("duplicate tier %q", tier)
		}
		cfg.Tier = tier
		cfg.Features = append([]string(nil), cfg.Features...)
		c.tiers[tier] = cfg
		c.order = append(c.order, tier)
	}
	if _, ok := c.tiers[TierFree]; !ok {
		return nil, ErrMissingFreeTier
	}
	return c, nil
}

// Lookup returns the tier's configuration, falling back to free for unknown tiers.
func (c *Catalog) Lookup(tier Tier) TierConfig {
	if cfg, ok := c.tiers[tier]; ok {
		return cfg
	}
	return c.tiers[TierFree]
}

func (c *Catalog) List() []TierConfig {
	out := make([]TierConfig, 0, len(c.order))
	for _, tier := range c.order {
		out = append(out, c.tiers[tier])
	}
	return out
}

// Default returns the built-in catalog used when no plans.yml is present.
func Default() *Catalog {
	c, err := New(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultTiers() []TierConfig {
	return []TierConfig{
		{
			Tier:           TierFree,
			Name:           "Free",
			MonthlyPlans:   Finite(3),
			MonthlyExports: Finite(5),
			Price:          Price{Amount: 0, Currency: "INR", Interval: "month"},
			Features: []string{
				"3 floor plans per month",
				"5 exports per month",
				"Basic room types",
				"DXF & SVG export",
				"Community support",
			},
		},
		{
			Tier:             TierPro,
			Name:             "Pro",
			MonthlyPlans:     Unlimited(),
			MonthlyExports:   Unlimited(),
			AdvancedFeatures: true,
			PrioritySupport:  true,
			Price:            Price{Amount: 999, Currency: "INR", Interval: "month"},
			Features: []string{
				"Unlimited floor plans",
				"Unlimited exports",
				"Advanced room types",
				"All export formats (DXF, SVG, PDF, PNG)",
				"Custom dimensions",
				"Priority support",
				"No watermarks",
				"Collaboration tools",
			},
		},
		{
			Tier:             TierEnterprise,
			Name:             "Enterprise",
			MonthlyPlans:     Unlimited(),
			MonthlyExports:   Unlimited(),
			AdvancedFeatures: true,
			PrioritySupport:  true,
			APIAccess:        true,
			Price:            Price{Amount: 99, Currency: "USD", Interval: "month"},
			Features: []string{
				"Everything in Pro",
				"Team collaboration",
				"API access",
				"Custom branding",
				"Advanced analytics",
				"Dedicated support",
				"SSO integration",
				"Custom integrations",
			},
		},
	}
}
