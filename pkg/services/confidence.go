package services

import (
	"math"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

// Confidence bounds.
const (
	MaxConfidence = 0.99
	// MinRetainedConfidence: candidates scoring at or below this are discarded.
	MinRetainedConfidence = 0.3

	completenessBonus     = 0.05
	completenessThreshold = 0.8 // nonNull / totalRows
	volumeBonus           = 0.03
	volumeThreshold       = 100 // totalRows
)

// confidenceRule: integrity% >= minIntegrity and count >= minCount yields confidence.
type confidenceRule struct {
	minIntegrity float64
	minCount     int64
	confidence   float64
}

// Rules are evaluated in order; the first match wins.
var arrayConfidenceRules = []confidenceRule{
	{90, 3, 0.95},
	{80, 5, 0.85},
	{60, 2, 0.75},
	{40, 1, 0.60},
	{20, 0, 0.40},
}

var scalarConfidenceRules = []confidenceRule{
	{90, 3, 0.95},
	{80, 5, 0.85},
	{70, 10, 0.75},
	{60, 5, 0.65},
	{50, 3, 0.55},
	{30, 2, 0.35},
}

// BaseConfidence looks up the table score for the statistics, before bonuses.
// The count is validRefs for arrays and matched distinct values for scalars.
func BaseConfidence(stats models.Statistics) float64 {
	rules := scalarConfidenceRules
	if stats.FieldKind == models.FieldKindArray {
		rules = arrayConfidenceRules
	}
	for _, r := range rules {
		if stats.ReferentialIntegrityPercent >= r.minIntegrity && stats.MatchedOrValidCount >= r.minCount {
			return r.confidence
		}
	}
	return 0
}

// ScoreConfidence applies completeness and volume bonuses to the base score and
// caps the result at MaxConfidence. A zero base stays zero.
func ScoreConfidence(stats models.Statistics) float64 {
	score := BaseConfidence(stats)
	if score == 0 {
		return 0
	}

	if stats.TotalRows > 0 && float64(stats.NonNullCount)/float64(stats.TotalRows) >= completenessThreshold {
		score += completenessBonus
	}
	if stats.TotalRows >= volumeThreshold {
		score += volumeBonus
	}

	score = math.Round(score*100) / 100
	return math.Min(score, MaxConfidence)
}

// ProvisionalType labels a candidate before exact cardinality is known.
func ProvisionalType(stats models.Statistics) models.RelationshipType {
	if stats.FieldKind == models.FieldKindArray {
		return models.RelationshipManyToMany
	}
	if stats.DistinctnessPercent >= 80 {
		return models.RelationshipOneToOne
	}
	return models.RelationshipManyToOne
}

// ConfidenceBucket groups a score for distribution reporting.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// percent returns part/whole*100, or 0 when whole is 0.
func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
