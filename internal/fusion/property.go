package fusion

import (
	"fmt"
	"sort"

	"github.com/sells-group/dossier-cli/internal/model"
)

// PropertyFact is one provider's answer for a single property/address field
// (owner name, parcel id, assessed value, ...). The match axis here is the
// geocode/address agreement with the subject parcel rather than a
// name/location match.
type PropertyFact struct {
	Field   string
	Value   any
	Source  string
	Signals PropertySignals
}

// PropertySignals are the raw signals behind a property fact.
type PropertySignals struct {
	// GeocodeMatch is the 0-1 address/geocode agreement with the subject.
	GeocodeMatch        float64
	Authoritative       bool // county-recorder or assessor-of-record data
	MonthsSinceVerified int
}

// ResolvedFact is the winning value for one property field after fusion.
type ResolvedFact struct {
	Field      string   `json:"field"`
	Value      any      `json:"value"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// PropertyConfidence applies the same conjunctive pattern as contact
// fusion: min(data-quality, match-quality) with geocode match as the match
// axis.
func (e *Engine) PropertyConfidence(s PropertySignals) float64 {
	contactShape := model.MatchSignals{
		LocationMatch:       s.GeocodeMatch,
		Authoritative:       s.Authoritative,
		MonthsSinceVerified: s.MonthsSinceVerified,
	}
	return Confidence(contactShape, e.thresholds)
}

// FuseProperty resolves each property field to its best-supported value.
// Stale facts (verified > 24 months ago) are dropped outright. For each
// field the highest-confidence value wins; every source that reported the
// winning value is recorded. Ordering of the result is deterministic by
// field name.
func (e *Engine) FuseProperty(facts []PropertyFact) []ResolvedFact {
	// Values are keyed by their printed form: Value is any, and a slice or
	// map value must not panic the map insert.
	type valueKey struct {
		field string
		value string
	}

	byField := make(map[string][]int) // field -> indices into facts
	var fieldOrder []string
	for i, f := range facts {
		if f.Signals.MonthsSinceVerified > MaxVerificationAgeMonths {
			continue
		}
		if _, ok := byField[f.Field]; !ok {
			fieldOrder = append(fieldOrder, f.Field)
		}
		byField[f.Field] = append(byField[f.Field], i)
	}
	sort.Strings(fieldOrder)

	out := make([]ResolvedFact, 0, len(fieldOrder))
	for _, field := range fieldOrder {
		var best ResolvedFact
		bestConf := -1.0
		confBy := make(map[valueKey]float64)
		sourcesBy := make(map[valueKey][]string)

		for _, idx := range byField[field] {
			f := facts[idx]
			conf := e.PropertyConfidence(f.Signals)
			k := valueKey{field, fmt.Sprint(f.Value)}
			if conf > confBy[k] {
				confBy[k] = conf
			}
			sourcesBy[k] = append(sourcesBy[k], f.Source)

			if confBy[k] > bestConf {
				bestConf = confBy[k]
				best = ResolvedFact{Field: field, Value: f.Value}
			}
		}

		k := valueKey{field, fmt.Sprint(best.Value)}
		best.Confidence = confBy[k]
		best.Sources = dedupeStrings(sourcesBy[k])
		out = append(out, best)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
