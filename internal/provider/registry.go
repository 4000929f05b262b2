// Package provider holds the static registry of external data providers:
// pricing, priority ordering, and per-provider spend quotas.
package provider

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category groups providers by the kind of fact they supply.
type Category string

const (
	CategoryIdentity Category = "identity"
	CategoryProperty Category = "property"
	CategoryContact  Category = "contact"
	CategoryAddress  Category = "address"
	CategoryAI       Category = "ai"
)

// Descriptor is the pricing and routing metadata for one provider. It is
// immutable for the process lifetime except via startup overrides.
type Descriptor struct {
	Name         string   `yaml:"name"`
	Category     Category `yaml:"category"`
	CostPerCall  float64  `yaml:"cost_per_call"`
	CostPerUnit  float64  `yaml:"cost_per_unit,omitempty"` // e.g. USD per MTok for AI providers
	Priority     int      `yaml:"priority"`                // lower = preferred
	DailyQuota   int      `yaml:"daily_quota,omitempty"`   // 0 = unlimited
	MonthlyQuota int      `yaml:"monthly_quota,omitempty"` // 0 = unlimited
}

// Override adjusts a base descriptor at startup. Nil fields leave the base
// value untouched.
type Override struct {
	CostPerCall  *float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`
	Priority     *int     `yaml:"priority" mapstructure:"priority"`
	DailyQuota   *int     `yaml:"daily_quota" mapstructure:"daily_quota"`
	MonthlyQuota *int     `yaml:"monthly_quota" mapstructure:"monthly_quota"`
}

// Registry answers pricing and category-ordering queries. Read-only after
// construction.
type Registry struct {
	byName map[string]Descriptor
	// order preserves registration order for deterministic tie-breaks.
	order []string
}

// NewRegistry builds a registry from base descriptors plus startup
// overrides keyed by provider name.
func NewRegistry(base []Descriptor, overrides map[string]Override) *Registry {
	r := &Registry{byName: make(map[string]Descriptor, len(base))}
	for _, d := range base {
		if ov, ok := overrides[d.Name]; ok {
			if ov.CostPerCall != nil {
				d.CostPerCall = *ov.CostPerCall
			}
			if ov.Priority != nil {
				d.Priority = *ov.Priority
			}
			if ov.DailyQuota != nil {
				d.DailyQuota = *ov.DailyQuota
			}
			if ov.MonthlyQuota != nil {
				d.MonthlyQuota = *ov.MonthlyQuota
			}
		}
		if _, dup := r.byName[d.Name]; !dup {
			r.order = append(r.order, d.Name)
		}
		r.byName[d.Name] = d
	}
	return r
}

// Pricing looks up a provider descriptor. A false return means the provider
// is not integrated; callers treat that as "skip", never as an error.
func (r *Registry) Pricing(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// ByCategory returns all providers in a category sorted ascending by
// priority; ties break by registration order.
func (r *Registry) ByCategory(cat Category) []Descriptor {
	var out []Descriptor
	rank := make(map[string]int, len(r.order))
	for i, name := range r.order {
		rank[name] = i
	}
	for _, name := range r.order {
		d := r.byName[name]
		if d.Category == cat {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return rank[out[i].Name] < rank[out[j].Name]
	})
	return out
}

// Names returns all registered provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// LoadDescriptors reads a provider rate table from a YAML file. The file
// has a top-level "providers" key.
func LoadDescriptors(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read rate table %s", path)
	}
	var wrapper struct {
		Providers []Descriptor `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "provider: parse rate table")
	}
	return wrapper.Providers, nil
}

// DefaultDescriptors returns the built-in provider table used when no rate
// file is supplied.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{Name: "smarty", Category: CategoryAddress, CostPerCall: 0.004, Priority: 1, DailyQuota: 5000, MonthlyQuota: 50000},
		{Name: "attom", Category: CategoryProperty, CostPerCall: 0.25, Priority: 1, DailyQuota: 1000, MonthlyQuota: 10000},
		{Name: "opencorp", Category: CategoryIdentity, CostPerCall: 0.05, Priority: 1, DailyQuota: 2000, MonthlyQuota: 20000},
		{Name: "endato", Category: CategoryContact, CostPerCall: 0.10, Priority: 1, DailyQuota: 1000, MonthlyQuota: 10000},
		{Name: "pdl", Category: CategoryContact, CostPerCall: 0.28, Priority: 2, DailyQuota: 500, MonthlyQuota: 5000},
		{Name: "perplexity", Category: CategoryAI, CostPerCall: 0.005, CostPerUnit: 1.00, Priority: 1, DailyQuota: 500, MonthlyQuota: 5000},
		{Name: "anthropic", Category: CategoryAI, CostPerCall: 0, CostPerUnit: 3.00, Priority: 2, MonthlyQuota: 20000},
	}
}
