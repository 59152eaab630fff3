package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

func TestDecodeSession(t *testing.T) {
	session := models.NewAnalysisSession()
	session.Relationships = []models.RelationshipCandidate{{
		FromTable:        "orders",
		FromField:        "customer_ids",
		ToTable:          "customers",
		ToField:          "id",
		RelationshipType: models.RelationshipManyToMany,
	}}
	data, err := encodeSession(session)
	require.NoError(t, err)

	got, err := decodeSession(data)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, models.PhasePending, got.Phase)
	require.Len(t, got.Relationships, 1)

	tests := []struct {
		name    string
		mutate  func(s *models.AnalysisSession)
		wantErr string
	}{
		{"unknown phase", func(s *models.AnalysisSession) { s.Phase = "archived" }, `unknown phase "archived"`},
		{"unknown relationship type", func(s *models.AnalysisSession) {
			s.Relationships[0].RelationshipType = "some-to-some"
		}, `unknown type "some-to-some"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad, err := decodeSession(data)
			require.NoError(t, err)
			tt.mutate(bad)
			raw, err := encodeSession(bad)
			require.NoError(t, err)

			_, err = decodeSession(raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err = decodeSession([]byte("{not json"))
	require.Error(t, err)
}
