package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/tablelink/pkg/config"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

func completedSession(t *testing.T) *models.AnalysisSession {
	t.Helper()

	card := models.NewCardinalityResult(2, 2)
	s := models.NewAnalysisSession()
	s.Relationships = []models.RelationshipCandidate{{
		FromTable: "orders", FromField: "customer_ids", ToTable: "customers", ToField: "id",
		Confidence: 0.99, RelationshipType: models.RelationshipManyToMany,
		Statistics:  models.Statistics{FieldKind: models.FieldKindArray},
		Cardinality: &card,
	}}
	require.NoError(t, s.Advance(models.PhaseConfidenceAnalyzed))
	return s
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNewReport_Describes(t *testing.T) {
	report := NewReport(completedSession(t), "1.2.3")

	require.Len(t, report.Descriptions, 1)
	assert.Equal(t, "each order links to many customers via customer_ids; each customer is referenced by many orders",
		report.Descriptions[0])
	assert.Equal(t, "1.2.3", report.Version)
}

func TestEncode_JSON(t *testing.T) {
	report := NewReport(completedSession(t), "")

	data, err := Encode(report, FormatJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	session := decoded["session"].(map[string]any)
	assert.Equal(t, "confidence-analyzed", session["phase"])
	assert.NotContains(t, decoded, "version", "empty version is omitted")
}

func TestEncode_YAMLUsesJSONKeysInBlockStyle(t *testing.T) {
	report := NewReport(completedSession(t), "dev")

	data, err := Encode(report, FormatYAML)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "session_id:")
	assert.Contains(t, text, "relationship_type: many-to-many")
	assert.NotContains(t, text, "{", "collections are written in block style")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "dev", decoded["version"])
}

func TestFileSink_Save(t *testing.T) {
	dir := t.TempDir()
	session := completedSession(t)

	location, err := Save(context.Background(), NewFileSink(dir), NewReport(session, ""), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sessions", session.ID.String()+".yaml"), location)
	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Contains(t, string(data), session.ID.String())
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink(context.Background(), &config.SnapshotConfig{Type: config.SnapshotNone})
	require.NoError(t, err)
	assert.Nil(t, sink)

	sink, err = NewSink(context.Background(), &config.SnapshotConfig{Type: config.SnapshotFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)

	_, err = NewSink(context.Background(), &config.SnapshotConfig{Type: "ftp"})
	assert.Error(t, err)
}
