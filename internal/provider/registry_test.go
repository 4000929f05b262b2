package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptors() []Descriptor {
	return []Descriptor{
		{Name: "alpha", Category: CategoryContact, CostPerCall: 0.10, Priority: 2},
		{Name: "beta", Category: CategoryContact, CostPerCall: 0.05, Priority: 1},
		{Name: "gamma", Category: CategoryContact, CostPerCall: 0.20, Priority: 2},
		{Name: "delta", Category: CategoryProperty, CostPerCall: 0.25, Priority: 1},
	}
}

func TestPricing(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testDescriptors(), nil)

	d, ok := r.Pricing("alpha")
	require.True(t, ok)
	assert.Equal(t, 0.10, d.CostPerCall)

	_, ok = r.Pricing("unknown")
	assert.False(t, ok, "unknown provider is not integrated, not an error")
}

func TestPricingOverrides(t *testing.T) {
	t.Parallel()
	cost := 0.42
	prio := 9
	monthly := 123
	r := NewRegistry(testDescriptors(), map[string]Override{
		"alpha": {CostPerCall: &cost, Priority: &prio, MonthlyQuota: &monthly},
	})

	d, ok := r.Pricing("alpha")
	require.True(t, ok)
	assert.Equal(t, 0.42, d.CostPerCall)
	assert.Equal(t, 9, d.Priority)
	assert.Equal(t, 123, d.MonthlyQuota)

	// Untouched fields keep base values.
	assert.Equal(t, CategoryContact, d.Category)
}

func TestByCategoryOrdering(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testDescriptors(), nil)

	got := r.ByCategory(CategoryContact)
	require.Len(t, got, 3)
	// beta has priority 1; alpha and gamma tie at 2 and break by
	// registration order (alpha first).
	assert.Equal(t, "beta", got[0].Name)
	assert.Equal(t, "alpha", got[1].Name)
	assert.Equal(t, "gamma", got[2].Name)
}

func TestByCategoryEmpty(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testDescriptors(), nil)
	assert.Empty(t, r.ByCategory(CategoryAI))
}

func TestCallAndUnitCost(t *testing.T) {
	t.Parallel()
	r := NewRegistry([]Descriptor{
		{Name: "ai", Category: CategoryAI, CostPerCall: 0.005, CostPerUnit: 3.00, Priority: 1},
	}, nil)

	assert.InDelta(t, 0.015, r.CallCost("ai", 3), 1e-9)
	assert.InDelta(t, 1.5, r.UnitCost("ai", 500_000), 1e-9)
	assert.Zero(t, r.CallCost("missing", 10))
}

func TestLoadDescriptors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	content := `
providers:
  - name: smarty
    category: address
    cost_per_call: 0.004
    priority: 1
    monthly_quota: 50000
  - name: attom
    category: property
    cost_per_call: 0.25
    priority: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	descs, err := LoadDescriptors(path)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "smarty", descs[0].Name)
	assert.Equal(t, CategoryAddress, descs[0].Category)
	assert.Equal(t, 50000, descs[0].MonthlyQuota)
}

func TestLoadDescriptorsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadDescriptors("/nonexistent/rates.yaml")
	assert.Error(t, err)
}
