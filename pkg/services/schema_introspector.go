package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/apperrors"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

// SchemaIntrospector enumerates the tables and candidate source columns of the target schema.
type SchemaIntrospector interface {
	// Introspect returns analyzable tables ordered by name. Any failure to list
	// tables or columns wraps apperrors.ErrIntrospection.
	Introspect(ctx context.Context) ([]models.TableDescriptor, error)
}

// IntrospectorConfig controls which tables and columns are considered.
type IntrospectorConfig struct {
	Schema       string
	AnchorColumn string
	Tables       *TableFilter
	IsDerived    ColumnPredicate // applied to source columns only
}

type schemaIntrospector struct {
	discoverer datasource.SchemaDiscoverer
	cfg        IntrospectorConfig
	logger     *zap.Logger
}

// NewSchemaIntrospector creates a SchemaIntrospector over a schema discoverer.
func NewSchemaIntrospector(discoverer datasource.SchemaDiscoverer, cfg IntrospectorConfig, logger *zap.Logger) SchemaIntrospector {
	if cfg.Tables == nil {
		cfg.Tables = NewTableFilter(nil, "")
	}
	if cfg.IsDerived == nil {
		cfg.IsDerived = NewDerivedFieldMatcher(DefaultDerivedFieldPatterns).Predicate()
	}
	return &schemaIntrospector{
		discoverer: discoverer,
		cfg:        cfg,
		logger:     logger.Named("schema-introspector"),
	}
}

var _ SchemaIntrospector = (*schemaIntrospector)(nil)

func (s *schemaIntrospector) Introspect(ctx context.Context) ([]models.TableDescriptor, error) {
	tables, err := s.discoverer.DiscoverTables(ctx, s.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables in %s: %w", apperrors.ErrIntrospection, s.cfg.Schema, err)
	}

	descriptors := make([]models.TableDescriptor, 0, len(tables))
	derivedSkipped := 0

	for _, t := range tables {
		if s.cfg.Tables.IsExcluded(t.TableName) {
			s.logger.Debug("Skipping excluded table", zap.String("table", t.TableName))
			continue
		}

		columns, err := s.discoverer.DiscoverColumns(ctx, s.cfg.Schema, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("%w: list columns of %s: %w", apperrors.ErrIntrospection, t.TableName, err)
		}

		desc := models.TableDescriptor{
			Name:     t.TableName,
			RowCount: t.RowCount,
			Columns:  make([]models.ColumnDescriptor, 0, len(columns)),
		}

		for _, c := range columns {
			if c.ColumnName == s.cfg.AnchorColumn {
				desc.HasAnchor = true
				desc.AnchorType = c.SQLType
				continue
			}
			if s.cfg.IsDerived(c.ColumnName) {
				derivedSkipped++
				continue
			}
			desc.Columns = append(desc.Columns, models.ColumnDescriptor{
				Table:   t.TableName,
				Column:  c.ColumnName,
				SQLType: c.SQLType,
				IsArray: c.IsArray,
			})
		}

		descriptors = append(descriptors, desc)
	}

	s.logger.Info("Introspected schema",
		zap.String("schema", s.cfg.Schema),
		zap.Int("tables", len(descriptors)),
		zap.Int("derived_columns_skipped", derivedSkipped))

	return descriptors, nil
}
