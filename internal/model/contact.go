package model

// FactType distinguishes the kinds of contact facts the fusion engine handles.
type FactType string

const (
	FactPhone FactType = "phone"
	FactEmail FactType = "email"
)

// MatchSignals are the raw per-candidate signals a provider reports about
// how well a contact fact matches the subject. The fusion engine derives a
// single confidence score from them; it never exposes them to callers.
type MatchSignals struct {
	// NameMatch is the provider's 0-1 score for how well the contact's
	// associated name matches the subject name.
	NameMatch float64 `json:"name_match"`

	// LocationMatch is the provider's 0-1 score for address/location
	// agreement with the subject.
	LocationMatch float64 `json:"location_match"`

	// Authoritative marks the source as independently verified
	// (carrier-verified line, registry-of-record email).
	Authoritative bool `json:"authoritative"`

	// MonthsSinceVerified is the age of the provider's last verification
	// of this fact. Negative means never verified.
	MonthsSinceVerified int `json:"months_since_verified"`

	// AssociationAgeYears is how long the provider has associated this
	// fact with the subject.
	AssociationAgeYears float64 `json:"association_age_years"`
}

// ContactCandidate is one provider's answer for a single contact fact,
// before fusion.
type ContactCandidate struct {
	Type       FactType     `json:"type"`
	Value      string       `json:"value"`
	Normalized string       `json:"normalized"`
	Source     string       `json:"source"`
	Signals    MatchSignals `json:"signals"`
	Confidence float64      `json:"confidence"`
}

// FusedContact is one deduplicated contact fact after fusion across
// providers.
type FusedContact struct {
	Type       FactType `json:"type"`
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Rank       int      `json:"rank"`
}
