package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dossier-cli/internal/model"
)

func TestConfidence(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()

	tests := []struct {
		name    string
		signals model.MatchSignals
		want    float64
	}{
		{
			name:    "authoritative with high match capped by match axis",
			signals: model.MatchSignals{Authoritative: true, LocationMatch: 0.9},
			want:    85, // data 90, match 85 → min 85
		},
		{
			name:    "authoritative with weak match capped at base match",
			signals: model.MatchSignals{Authoritative: true, LocationMatch: 0.1},
			want:    60, // data 90, match 60
		},
		{
			name:    "recently verified acceptable match capped by data axis",
			signals: model.MatchSignals{MonthsSinceVerified: 3, LocationMatch: 0.6},
			want:    75, // data 80, match 75
		},
		{
			name:    "verified within a year",
			signals: model.MatchSignals{MonthsSinceVerified: 10, LocationMatch: 0.95},
			want:    70, // data 70, match 85
		},
		{
			name:    "old verification low everything",
			signals: model.MatchSignals{MonthsSinceVerified: 20, LocationMatch: 0.2},
			want:    50, // data 50, match 60
		},
		{
			name:    "never verified",
			signals: model.MatchSignals{MonthsSinceVerified: -1, LocationMatch: 0.9},
			want:    50,
		},
		{
			name:    "exactly at high threshold",
			signals: model.MatchSignals{Authoritative: true, LocationMatch: 0.8},
			want:    85,
		},
		{
			name:    "exactly at acceptable threshold",
			signals: model.MatchSignals{Authoritative: true, LocationMatch: 0.5},
			want:    75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Confidence(tt.signals, th)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestConfidenceNeverExceedsEitherAxis(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()
	// Sweep a grid of signals: min-of-axes means the result can never
	// exceed what either axis alone would grant.
	for months := -1; months <= 30; months += 3 {
		for _, match := range []float64{0, 0.3, 0.5, 0.8, 1.0} {
			for _, auth := range []bool{true, false} {
				s := model.MatchSignals{Authoritative: auth, MonthsSinceVerified: months, LocationMatch: match}
				got := Confidence(s, th)
				assert.LessOrEqual(t, got, dataQuality(s))
				assert.LessOrEqual(t, got, matchQuality(s, th))
			}
		}
	}
}

func TestTooStale(t *testing.T) {
	t.Parallel()
	assert.False(t, TooStale(model.MatchSignals{MonthsSinceVerified: 24}))
	assert.True(t, TooStale(model.MatchSignals{MonthsSinceVerified: 25}))
	assert.False(t, TooStale(model.MatchSignals{MonthsSinceVerified: -1}))
	assert.False(t, TooStale(model.MatchSignals{MonthsSinceVerified: 0}))
}

func TestCustomThresholds(t *testing.T) {
	t.Parallel()
	th := Thresholds{HighMatch: 0.95, AcceptableMatch: 0.7}
	s := model.MatchSignals{Authoritative: true, LocationMatch: 0.9}
	// 0.9 is below the custom high threshold but above acceptable.
	assert.Equal(t, 75.0, Confidence(s, th))
}
