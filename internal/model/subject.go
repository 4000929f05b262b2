// Package model defines the core domain types shared across the enrichment
// pipeline: subjects, contact facts, ownership records, and run state.
package model

import "time"

// SubjectType distinguishes what kind of record a dossier is built around.
type SubjectType string

const (
	SubjectOwner    SubjectType = "owner"
	SubjectEntity   SubjectType = "entity"
	SubjectProperty SubjectType = "property"
)

// Subject identifies the target of one enrichment run.
type Subject struct {
	ID           string      `json:"id"`
	Type         SubjectType `json:"type"`
	Name         string      `json:"name"`
	Street       string      `json:"street,omitempty"`
	City         string      `json:"city,omitempty"`
	State        string      `json:"state,omitempty"`
	Zip          string      `json:"zip,omitempty"`
	Jurisdiction string      `json:"jurisdiction,omitempty"`
	FirmID       string      `json:"firm_id,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
}

// Dossier is the unified profile assembled for a subject. It is created
// fresh per enrichment run and never mutated after the run completes.
type Dossier struct {
	SubjectID   string          `json:"subject_id"`
	Subject     Subject         `json:"subject"`
	Address     *ValidatedAddress `json:"address,omitempty"`
	Property    *PropertyRecord `json:"property,omitempty"`
	Ownership   []OwnershipResult `json:"ownership,omitempty"`
	Principals  []Principal     `json:"principals,omitempty"`
	Phones      []FusedContact  `json:"phones,omitempty"`
	Emails      []FusedContact  `json:"emails,omitempty"`
	Franchise   *FranchiseSignal `json:"franchise,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Score       float64         `json:"score,omitempty"`
	SourcesUsed []string        `json:"sources_used"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ValidatedAddress is the canonical form of the subject's address after
// the address-validation step.
type ValidatedAddress struct {
	Line1      string  `json:"line1"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Zip        string  `json:"zip"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Deliverable bool   `json:"deliverable"`
	MatchScore float64 `json:"match_score"`
	Source     string  `json:"source"`
}

// PropertyRecord holds fused property facts for the subject address.
type PropertyRecord struct {
	ParcelID     string  `json:"parcel_id,omitempty"`
	OwnerName    string  `json:"owner_name,omitempty"`
	OwnerMailing string  `json:"owner_mailing,omitempty"`
	UseCode      string  `json:"use_code,omitempty"`
	YearBuilt    int     `json:"year_built,omitempty"`
	SqFt         int     `json:"sq_ft,omitempty"`
	AssessedUSD  float64 `json:"assessed_usd,omitempty"`
	LastSaleUSD  float64 `json:"last_sale_usd,omitempty"`
	LastSaleDate string  `json:"last_sale_date,omitempty"`
	Confidence   float64 `json:"confidence"`
	Sources      []string `json:"sources"`
}

// Principal is a human decision-maker surfaced by principal discovery.
type Principal struct {
	Name       string  `json:"name"`
	Role       string  `json:"role,omitempty"`
	Entity     string  `json:"entity,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// FranchiseSignal reports whether the subject business appears to be a
// franchise location rather than an independent operation.
type FranchiseSignal struct {
	IsFranchise bool    `json:"is_franchise"`
	Brand       string  `json:"brand,omitempty"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}
