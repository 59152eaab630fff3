// Package snapshot encodes a finished analysis session and writes it to a sink.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

// Format is an encoding for reports.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json" or "yaml".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
	}
}

// Extension is the file extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Report is the audit document written for a session.
type Report struct {
	Version      string                  `json:"version,omitempty"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Descriptions []string                `json:"descriptions"`
	Session      *models.AnalysisSession `json:"session"`
}

// NewReport builds a report with a readable sentence per relationship.
func NewReport(session *models.AnalysisSession, version string) *Report {
	descriptions := make([]string, 0, len(session.Relationships))
	for _, r := range session.Relationships {
		descriptions = append(descriptions, r.Describe())
	}
	return &Report{
		Version:      version,
		GeneratedAt:  time.Now().UTC(),
		Descriptions: descriptions,
		Session:      session,
	}
}

// ObjectName is the key a report is stored under: sessions/{id}.{ext}.
func ObjectName(session *models.AnalysisSession, format Format) string {
	return fmt.Sprintf("sessions/%s.%s", session.ID, format.Extension())
}

// Encode renders v in the given format. YAML output uses the JSON field
// names so both formats carry identical keys.
func Encode(v any, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if format == FormatJSON {
		return append(data, '\n'), nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert report to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode report as yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode report as yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// blockStyle clears the flow style that parsing JSON leaves on every collection.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style &^= yaml.FlowStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Save encodes the report and writes it to sink, returning the sink's location for it.
func Save(ctx context.Context, sink Sink, report *Report, format Format) (string, error) {
	data, err := Encode(report, format)
	if err != nil {
		return "", err
	}
	return sink.Write(ctx, ObjectName(report.Session, format), data, format.ContentType())
}
