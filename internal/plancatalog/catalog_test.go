package plancatalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitSemantics(t *testing.T) {
	free := Finite(3)
	assert.True(t, free.Admits(2))
	assert.False(t, free.Admits(3))
	assert.Equal(t, int64(1), free.Remaining(2))
	assert.Equal(t, int64(0), free.Remaining(7))

	unlimited := Unlimited()
	assert.True(t, unlimited.Admits(1_000_000))
	assert.Equal(t, int64(-1), unlimited.Remaining(10))
	assert.Equal(t, int64(-1), unlimited.Sentinel())

	assert.True(t, LimitFromSentinel(-1).IsUnlimited())
	assert.Equal(t, int64(0), Finite(-4).Sentinel())
}

func TestLimitJSONUsesSentinel(t *testing.T) {
	raw, err := json.Marshal(struct {
		A Limit `json:"a"`
		B Limit `json:"b"`
	}{Finite(5), Unlimited()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":5,"b":-1}`, string(raw))

	var decoded Limit
	require.NoError(t, json.Unmarshal([]byte(`-1`), &decoded))
	assert.True(t, decoded.IsUnlimited())
}

func TestLookupFallsBackToFree(t *testing.T) {
	c := Default()

	got := c.Lookup(Tier("platinum"))
	assert.Equal(t, TierFree, got.Tier)
	assert.Equal(t, int64(3), got.MonthlyPlans.Sentinel())
	assert.Equal(t, int64(5), got.MonthlyExports.Sentinel())

	pro := c.Lookup(TierPro)
	assert.True(t, pro.MonthlyPlans.IsUnlimited())
	assert.True(t, pro.AdvancedFeatures)
	assert.False(t, pro.APIAccess)

	enterprise := c.Lookup(TierEnterprise)
	assert.True(t, enterprise.APIAccess)
	assert.Equal(t, "USD", enterprise.Price.Currency)
}

func TestListKeepsDeclarationOrder(t *testing.T) {
	tiers := Default().List()
	require.Len(t, tiers, 3)
	assert.Equal(t, []Tier{TierFree, TierPro, TierEnterprise}, []Tier{tiers[0].Tier, tiers[1].Tier, tiers[2].Tier})
}

func TestNewRequiresFreeTier(t *testing.T) {
	_, err := New([]TierConfig{{Tier: TierPro}})
	assert.True(t, errors.Is(err, ErrMissingFreeTier))

	_, err = New([]TierConfig{{Tier: TierFree}, {Tier: "gold"}})
	assert.True(t, errors.Is(err, ErrUnknownTier))
}

func TestHolderLoadsPlansFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yml")
	content := `plans:
  - tier: free
    name: Free
    monthlyPlans: 10
    monthlyExports: 2
    currency: INR
  - tier: pro
    name: Pro
    monthlyPlans: -1
    monthlyExports: -1
    advancedFeatures: true
    price: 1499
    currency: INR
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	h, err := newHolder(v, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), h.Lookup(TierFree).MonthlyPlans.Sentinel())
	assert.True(t, h.Lookup(TierPro).MonthlyExports.IsUnlimited())
	assert.Equal(t, int64(1499), h.Lookup(TierPro).Price.Amount)
	assert.Equal(t, "month", h.Lookup(TierPro).Price.Interval)
	// enterprise is absent from the file
	assert.Equal(t, TierFree, h.Lookup(TierEnterprise).Tier)
}

func TestHolderIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte("plans:\n  - tier: free\n    monthlyPlans: 4\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	h, err := newHolder(v, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("plans:\n  - tier: pro\n    monthlyPlans: -1\n"), 0o600))
	require.NoError(t, v.ReadInConfig())
	h.reload(v, path)

	assert.Equal(t, int64(4), h.Lookup(TierFree).MonthlyPlans.Sentinel())
}
