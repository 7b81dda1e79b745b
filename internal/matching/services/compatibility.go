package services

import (
	"github.com/architect/peer-matching/internal/matching/models"
)

// Weights of the compatibility components. The score gap carries half the
// score; tutor expertise and learner need carry the rest.
const (
	gapWeight       = 0.5
	expertiseWeight = 25.0
	needWeight      = 15.0

	// The teaching sweet spot: a gap of 2-5 points leaves the tutor enough
	// to teach without the pair talking past each other.
	minIdealGap = 2.0
	maxIdealGap = 5.0
)

// Compatibility scores a candidate (tutor, learner) pairing on the same
// chapter. Returns a value in [0,100], higher = better pairing. Pure and
// deterministic: identical inputs always produce the identical score.
//
// A gap below minIdealGap means there is little to teach; a gap beyond
// maxIdealGap suggests mismatched communication levels and is penalized
// relative to a moderate gap.
func Compatibility(tutorScore, learnerScore models.Score10) models.Percent {
	gap := float64(tutorScore - learnerScore)

	var gapScore float64
	switch {
	case gap < minIdealGap:
		gapScore = gap * 10 // 0-20
	case gap <= maxIdealGap:
		gapScore = 20 + (gap-minIdealGap)*20 // 20-80, the optimal band
	default:
		gapScore = 80 - (gap-maxIdealGap)*10 // decays past the band
		if gapScore < 0 {
			gapScore = 0
		}
	}

	expertise := float64(tutorScore) / 10.0 * expertiseWeight
	need := (10.0 - float64(learnerScore)) / 10.0 * needWeight

	compatibility := gapScore*gapWeight + expertise + need

	if compatibility < 0 {
		compatibility = 0
	}
	if compatibility > 100 {
		compatibility = 100
	}

	return models.Percent(compatibility)
}

// preferRecord is the deterministic tie-break order for equally compatible
// candidates: more recently assessed first, then lower student ID.
func preferRecord(a, b *models.PerformanceRecord) bool {
	if !a.LastAssessedAt.Equal(b.LastAssessedAt) {
		return a.LastAssessedAt.After(b.LastAssessedAt)
	}
	return a.StudentID < b.StudentID
}

// preferCandidate orders (record, compatibility) candidates: higher
// compatibility first, ties broken by preferRecord.
func preferCandidate(aRecord *models.PerformanceRecord, aCompat models.Percent,
	bRecord *models.PerformanceRecord, bCompat models.Percent) bool {
	if aCompat != bCompat {
		return aCompat > bCompat
	}
	return preferRecord(aRecord, bRecord)
}
