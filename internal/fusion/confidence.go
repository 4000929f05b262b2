// Package fusion merges candidate facts returned by multiple providers for
// the same subject into deduplicated, confidence-ranked results.
package fusion

import "github.com/sells-group/dossier-cli/internal/model"

// Scoring constants. Confidence is the minimum of two independently
// computed axes — never a weighted sum — so neither axis alone can produce
// a misleadingly high score.
const (
	dataQualityAuthoritative = 90
	dataQualityRecent        = 80 // verified within 6 months
	dataQualityAging         = 70 // verified within 12 months
	dataQualityBase          = 50

	matchQualityHigh       = 85
	matchQualityAcceptable = 75
	matchQualityBase       = 60

	recentVerifyMonths = 6
	agingVerifyMonths  = 12

	// MaxVerificationAgeMonths is the hard staleness bound: candidates
	// verified longer ago than this are dropped outright.
	MaxVerificationAgeMonths = 24
)

// Thresholds tunes the match-quality axis cutoffs. Zero values fall back
// to defaults (high 0.8, acceptable 0.5).
type Thresholds struct {
	HighMatch       float64
	AcceptableMatch float64
}

// DefaultThresholds returns the standard match cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{HighMatch: 0.8, AcceptableMatch: 0.5}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.HighMatch <= 0 {
		t.HighMatch = 0.8
	}
	if t.AcceptableMatch <= 0 {
		t.AcceptableMatch = 0.5
	}
	return t
}

// dataQuality scores the source itself: authority and verification age.
func dataQuality(s model.MatchSignals) float64 {
	switch {
	case s.Authoritative:
		return dataQualityAuthoritative
	case s.MonthsSinceVerified >= 0 && s.MonthsSinceVerified <= recentVerifyMonths:
		return dataQualityRecent
	case s.MonthsSinceVerified >= 0 && s.MonthsSinceVerified <= agingVerifyMonths:
		return dataQualityAging
	default:
		return dataQualityBase
	}
}

// matchQuality scores how well the fact matches the subject, from the
// provider's location/address match signal.
func matchQuality(s model.MatchSignals, t Thresholds) float64 {
	switch {
	case s.LocationMatch >= t.HighMatch:
		return matchQualityHigh
	case s.LocationMatch >= t.AcceptableMatch:
		return matchQualityAcceptable
	default:
		return matchQualityBase
	}
}

// Confidence derives a 0-100 confidence for a contact candidate as
// min(data-quality, match-quality).
func Confidence(s model.MatchSignals, t Thresholds) float64 {
	t = t.withDefaults()
	dq := dataQuality(s)
	mq := matchQuality(s, t)
	if dq < mq {
		return dq
	}
	return mq
}

// TooStale reports whether a candidate's verification age exceeds the hard
// staleness bound. Stale candidates never appear in output regardless of
// any other score.
func TooStale(s model.MatchSignals) bool {
	return s.MonthsSinceVerified > MaxVerificationAgeMonths
}
