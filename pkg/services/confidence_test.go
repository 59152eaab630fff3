package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

func TestScoreConfidence_ArrayFullIntegrityCapped(t *testing.T) {
	stats := models.Statistics{
		FieldKind:                   models.FieldKindArray,
		ReferentialIntegrityPercent: 100,
		MatchedOrValidCount:         5,
		TotalRows:                   150,
		NonNullCount:                150,
	}

	assert.Equal(t, 0.95, BaseConfidence(stats))
	assert.Equal(t, 0.99, ScoreConfidence(stats))
}

func TestScoreConfidence_ScalarBaseScore(t *testing.T) {
	stats := models.Statistics{
		FieldKind:                   models.FieldKindScalar,
		ReferentialIntegrityPercent: 65,
		MatchedOrValidCount:         6,
		TotalRows:                   10,
		NonNullCount:                5,
	}

	assert.Equal(t, 0.65, BaseConfidence(stats))
	assert.Equal(t, 0.65, ScoreConfidence(stats), "no bonus applies")
}

func TestBaseConfidence_RuleTables(t *testing.T) {
	tests := []struct {
		name      string
		kind      models.FieldKind
		integrity float64
		count     int64
		want      float64
	}{
		{"array 90 with 3", models.FieldKindArray, 90, 3, 0.95},
		{"array 90 with 2 falls through", models.FieldKindArray, 90, 2, 0.75},
		{"array 85 with 5", models.FieldKindArray, 85, 5, 0.85},
		{"array 45 with 1", models.FieldKindArray, 45, 1, 0.60},
		{"array 20 with 0", models.FieldKindArray, 20, 0, 0.40},
		{"array 19", models.FieldKindArray, 19, 100, 0},
		{"scalar 75 with 10", models.FieldKindScalar, 75, 10, 0.75},
		{"scalar 75 with 9", models.FieldKindScalar, 75, 9, 0.65},
		{"scalar 55 with 3", models.FieldKindScalar, 55, 3, 0.55},
		{"scalar 30 with 2", models.FieldKindScalar, 30, 2, 0.35},
		{"scalar 30 with 1", models.FieldKindScalar, 30, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := models.Statistics{
				FieldKind:                   tt.kind,
				ReferentialIntegrityPercent: tt.integrity,
				MatchedOrValidCount:         tt.count,
			}
			assert.Equal(t, tt.want, BaseConfidence(stats))
		})
	}
}

func TestScoreConfidence_Bonuses(t *testing.T) {
	base := models.Statistics{
		FieldKind:                   models.FieldKindScalar,
		ReferentialIntegrityPercent: 55,
		MatchedOrValidCount:         3,
	}

	withCompleteness := base
	withCompleteness.TotalRows, withCompleteness.NonNullCount = 10, 8
	assert.Equal(t, 0.60, ScoreConfidence(withCompleteness))

	withVolume := base
	withVolume.TotalRows, withVolume.NonNullCount = 100, 10
	assert.Equal(t, 0.58, ScoreConfidence(withVolume))

	zero := models.Statistics{FieldKind: models.FieldKindScalar, TotalRows: 1000, NonNullCount: 1000}
	assert.Equal(t, 0.0, ScoreConfidence(zero), "bonuses never rescue a zero base")
}

func TestProvisionalType(t *testing.T) {
	assert.Equal(t, models.RelationshipManyToMany, ProvisionalType(models.Statistics{FieldKind: models.FieldKindArray}))
	assert.Equal(t, models.RelationshipOneToOne, ProvisionalType(models.Statistics{FieldKind: models.FieldKindScalar, DistinctnessPercent: 80}))
	assert.Equal(t, models.RelationshipManyToOne, ProvisionalType(models.Statistics{FieldKind: models.FieldKindScalar, DistinctnessPercent: 79.9}))
}

func TestConfidenceBucket(t *testing.T) {
	assert.Equal(t, "high", ConfidenceBucket(0.99))
	assert.Equal(t, "high", ConfidenceBucket(0.8))
	assert.Equal(t, "medium", ConfidenceBucket(0.65))
	assert.Equal(t, "low", ConfidenceBucket(0.35))
}
