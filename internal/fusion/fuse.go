package fusion

import (
	"sort"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Engine fuses raw contact candidates from multiple providers.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a fusion engine with the given match thresholds.
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t.withDefaults()}
}

// fusedAccumulator carries per-value state during dedup.
type fusedAccumulator struct {
	value         string // display value from the first-seen candidate
	confidence    float64
	sources       []string
	sourceSet     map[string]bool
	authoritative bool
	firstSeen     int
}

// FuseContacts merges candidates of one fact type into deduplicated,
// confidence-ranked results. Candidates past the staleness bound are
// dropped before anything else. Output ordering is deterministic:
// confidence desc, then source authority, then first-seen order.
func (e *Engine) FuseContacts(factType model.FactType, candidates []model.ContactCandidate) []model.FusedContact {
	acc := make(map[string]*fusedAccumulator)
	var order []string

	for i, c := range candidates {
		if c.Type != factType {
			continue
		}
		if TooStale(c.Signals) {
			continue
		}

		key := c.Normalized
		if key == "" {
			key = Normalize(factType, c.Value)
		}
		if key == "" {
			continue
		}

		conf := c.Confidence
		if conf == 0 {
			conf = Confidence(c.Signals, e.thresholds)
		}

		f, ok := acc[key]
		if !ok {
			f = &fusedAccumulator{
				value:     c.Value,
				sourceSet: make(map[string]bool),
				firstSeen: i,
			}
			acc[key] = f
			order = append(order, key)
		}
		if conf > f.confidence {
			f.confidence = conf
		}
		if c.Signals.Authoritative {
			f.authoritative = true
		}
		if !f.sourceSet[c.Source] {
			f.sourceSet[c.Source] = true
			f.sources = append(f.sources, c.Source)
		}
	}

	// Deterministic ranking: confidence desc, authority, first-seen. Sorting
	// happens on the accumulators themselves; the display value is not a
	// reliable way back to the dedup key when providers supply their own.
	ranked := make([]*fusedAccumulator, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, acc[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		fi, fj := ranked[i], ranked[j]
		if fi.confidence != fj.confidence {
			return fi.confidence > fj.confidence
		}
		if fi.authoritative != fj.authoritative {
			return fi.authoritative
		}
		return fi.firstSeen < fj.firstSeen
	})

	out := make([]model.FusedContact, 0, len(ranked))
	for i, f := range ranked {
		out = append(out, model.FusedContact{
			Type:       factType,
			Value:      f.value,
			Confidence: f.confidence,
			Sources:    f.sources,
			Rank:       i + 1,
		})
	}
	return out
}

// NewCandidate builds a candidate with derived normalization and confidence.
// Providers call this instead of filling the struct by hand so the derived
// fields stay consistent.
func (e *Engine) NewCandidate(factType model.FactType, value, source string, signals model.MatchSignals) model.ContactCandidate {
	return model.ContactCandidate{
		Type:       factType,
		Value:      value,
		Normalized: Normalize(factType, value),
		Source:     source,
		Signals:    signals,
		Confidence: Confidence(signals, e.thresholds),
	}
}
