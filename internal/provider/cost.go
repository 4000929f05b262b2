package provider

// CallCost returns the flat USD cost of n calls to a provider. Unknown
// providers cost zero (not integrated, never called).
func (r *Registry) CallCost(name string, n int) float64 {
	d, ok := r.byName[name]
	if !ok {
		return 0
	}
	return d.CostPerCall * float64(n)
}

// UnitCost returns the USD cost of metered usage (e.g. AI tokens) for a
// provider, in the provider's unit denomination of one million.
func (r *Registry) UnitCost(name string, units int) float64 {
	d, ok := r.byName[name]
	if !ok {
		return 0
	}
	return (float64(units) / 1e6) * d.CostPerUnit
}
