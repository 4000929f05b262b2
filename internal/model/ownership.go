package model

// OwnerType distinguishes humans from corporate entities in ownership data.
type OwnerType string

const (
	OwnerIndividual OwnerType = "individual"
	OwnerEntity     OwnerType = "entity"
)

// OwnershipNode is one party in an ownership chain.
type OwnershipNode struct {
	Name         string    `json:"name"`
	Type         OwnerType `json:"type"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Role         string    `json:"role,omitempty"`
	Confidence   float64   `json:"confidence"`
	Depth        int       `json:"depth"`
}

// ConfidenceTier buckets AI-inferred ownership claims.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// InferredOwner is a human owner surfaced by the AI research fallback when
// registries conceal ownership.
type InferredOwner struct {
	Name      string         `json:"name"`
	Tier      ConfidenceTier `json:"tier"`
	Reasoning string         `json:"reasoning,omitempty"`
	Citations []string       `json:"citations,omitempty"`
}

// ParentRef points at the parent filing of a branch / foreign registration.
type ParentRef struct {
	Name         string `json:"name"`
	Jurisdiction string `json:"jurisdiction"`
	RegistryID   string `json:"registry_id,omitempty"`
}

// OwnershipResult is the resolver's best-known answer for a single entity —
// one hop, not a full chain.
type OwnershipResult struct {
	Entity             string          `json:"entity"`
	Jurisdiction       string          `json:"jurisdiction,omitempty"`
	RegistryID         string          `json:"registry_id,omitempty"`
	Officers           []OwnershipNode `json:"officers"`
	IsPrivacyProtected bool            `json:"is_privacy_protected"`
	RegisteredAgent    string          `json:"registered_agent,omitempty"`
	RegisteredAddress  string          `json:"registered_address,omitempty"`
	Parent             *ParentRef      `json:"parent,omitempty"`
	InferredOwners     []InferredOwner `json:"inferred_owners,omitempty"`
	Sources            []string        `json:"sources,omitempty"`
}
