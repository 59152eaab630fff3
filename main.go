package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // .env is optional; real env vars win
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/tablelink/pkg/config"
	"github.com/ekaya-inc/tablelink/pkg/database"
	"github.com/ekaya-inc/tablelink/pkg/models"
	"github.com/ekaya-inc/tablelink/pkg/repositories"
	"github.com/ekaya-inc/tablelink/pkg/retry"
	"github.com/ekaya-inc/tablelink/pkg/services"
	"github.com/ekaya-inc/tablelink/pkg/snapshot"
	"github.com/ekaya-inc/tablelink/pkg/workerpool"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the YAML configuration file")
	format := flag.String("format", "json", "Report format written to stdout (json or yaml)")
	dryRun := flag.Bool("dry-run", false, "Stop after junction detection; no DDL is issued")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	reportFormat, err := snapshot.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -format: %v\n", err)
		os.Exit(2)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("schema", cfg.Analysis.Schema),
		zap.String("session_store", cfg.SessionStore.Type),
		zap.String("snapshot", cfg.Snapshot.Type),
		zap.Bool("dry_run", *dryRun))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := run(ctx, cfg, *dryRun, logger)
	if err != nil {
		logger.Error("Relationship analysis failed", zap.Error(err))
		os.Exit(1)
	}

	report := snapshot.NewReport(session, cfg.Version)
	out, err := snapshot.Encode(report, reportFormat)
	if err != nil {
		logger.Error("Failed to encode report", zap.Error(err))
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		logger.Error("Failed to write report", zap.Error(err))
		os.Exit(1)
	}

	if err := writeSnapshot(ctx, cfg, report, logger); err != nil {
		logger.Error("Failed to write snapshot", zap.Error(err))
		os.Exit(1)
	}
}

// buildLogger returns a development logger for local runs and a JSON production logger otherwise.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}

	logConfig := zap.NewProductionConfig()
	if cfg.Env == "local" || cfg.Env == "dev" {
		logConfig = zap.NewDevelopmentConfig()
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	// stdout carries the report
	logConfig.OutputPaths = []string{"stderr"}

	return logConfig.Build()
}

// run executes the phases in order and returns the final session.
func run(ctx context.Context, cfg *config.Config, dryRun bool, logger *zap.Logger) (*models.AnalysisSession, error) {
	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, retry.ConnectConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to target database: %w", err)
	}
	defer db.Close()

	sessions, closeStore, err := openSessionStore(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	workflow := newWorkflow(cfg, db, sessions, logger)

	analysis, err := workflow.RunConfidenceAnalysis(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.DetectJunctionNeeds(ctx, analysis.SessionID); err != nil {
		return nil, err
	}

	if !dryRun {
		if _, err := workflow.CreateJunctionTables(ctx, analysis.SessionID); err != nil {
			return nil, err
		}
		if _, err := workflow.CreateForeignKeys(ctx, analysis.SessionID); err != nil {
			return nil, err
		}
	}

	return workflow.GetSession(ctx, analysis.SessionID)
}

func newWorkflow(cfg *config.Config, db *database.DB, sessions repositories.SessionRepository, logger *zap.Logger) services.RelationshipWorkflowService {
	a := cfg.Analysis
	exec := postgres.NewAdapterFromPool(db.Pool, a.StatementTimeout, logger)
	discoverer := postgres.NewSchemaDiscoverer(exec, logger)
	pool := workerpool.New(workerpool.Config{MaxConcurrent: a.MaxConcurrency}, logger)

	return services.NewRelationshipWorkflowService(
		sessions,
		services.NewSchemaIntrospector(discoverer, services.IntrospectorConfig{
			Schema:       a.Schema,
			AnchorColumn: a.AnchorColumn,
			Tables:       services.NewTableFilter(a.ExcludedTables, a.JunctionSuffix),
			IsDerived:    services.NewDerivedFieldMatcher(a.DerivedFieldPatterns).Predicate(),
		}, logger),
		services.NewRelationshipAnalyzer(exec, pool, services.AnalyzerConfig{
			Schema:        a.Schema,
			AnchorColumn:  a.AnchorColumn,
			MinConfidence: a.MinConfidence,
		}, logger),
		services.NewCardinalityClassifier(exec, services.CardinalityConfig{
			Schema:        a.Schema,
			AnchorColumn:  a.AnchorColumn,
			MinConfidence: a.MinCardinalityConfidence,
			Batched:       a.BatchCardinality,
		}, logger),
		services.NewJunctionTableSynthesizer(exec, services.JunctionConfig{
			Schema:        a.Schema,
			AnchorColumn:  a.AnchorColumn,
			Suffix:        a.JunctionSuffix,
			MinConfidence: a.JunctionMinConfidence,
		}, logger),
		services.NewForeignKeyApplier(exec, a.Schema, logger),
		logger,
	)
}

// openSessionStore returns the configured repository and a func releasing its resources.
func openSessionStore(ctx context.Context, cfg *config.Config, db *database.DB, logger *zap.Logger) (repositories.SessionRepository, func(), error) {
	noop := func() {}

	switch cfg.SessionStore.Type {
	case config.SessionStoreMemory:
		return repositories.NewMemorySessionRepository(), noop, nil

	case config.SessionStoreRedis:
		client, err := retry.DoWithResultIfRetryable(ctx, retry.ConnectConfig(), func() (*redis.Client, error) {
			return database.NewRedisClient(ctx, &cfg.Redis)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		if client == nil {
			return nil, nil, errors.New("session_store.type is redis but redis.host is empty")
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return repositories.NewRedisSessionRepository(client, cfg.SessionStore.KeyPrefix, cfg.SessionStore.TTL), closeClient, nil

	case config.SessionStorePostgres:
		if err := database.MigrateURL(cfg.Database.URL(), logger); err != nil {
			return nil, nil, err
		}
		return repositories.NewPostgresSessionRepository(db.Pool), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore.Type)
	}
}

func writeSnapshot(ctx context.Context, cfg *config.Config, report *snapshot.Report, logger *zap.Logger) error {
	sink, err := snapshot.NewSink(ctx, &cfg.Snapshot)
	if err != nil {
		return err
	}
	if sink == nil {
		return nil
	}

	format, err := snapshot.ParseFormat(cfg.Snapshot.Format)
	if err != nil {
		return err
	}

	location, err := snapshot.Save(ctx, sink, report, format)
	if err != nil {
		return err
	}
	logger.Info("Snapshot written", zap.String("location", location))
	return nil
}
