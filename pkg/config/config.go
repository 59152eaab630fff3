package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the file Load reads when no explicit path is given.
const DefaultConfigPath = "config.yaml"

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

// Snapshot sinks.
const (
	SnapshotNone  = "none"
	SnapshotFile  = "file"
	SnapshotMinio = "minio"
)

// Config holds all configuration for tablelink.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database is the target PostgreSQL database holding the imported tables.
	Database DatabaseConfig `yaml:"database"`

	Analysis     AnalysisConfig     `yaml:"analysis"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
	Redis        RedisConfig        `yaml:"redis"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`
}

// DatabaseConfig holds PostgreSQL connection settings for the target database.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"tablelink"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"airtable_import"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// AnalysisConfig tunes relationship inference.
type AnalysisConfig struct {
	// Schema is the PostgreSQL schema the imported tables live in.
	Schema string `yaml:"schema" env:"ANALYSIS_SCHEMA" env-default:"public"`

	// AnchorColumn is the stable per-row identifier every imported table carries.
	AnchorColumn string `yaml:"anchor_column" env:"ANALYSIS_ANCHOR_COLUMN" env-default:"id"`

	// ExcludedTables are never analyzed (bookkeeping tables of the importer).
	ExcludedTables []string `yaml:"excluded_tables" env:"ANALYSIS_EXCLUDED_TABLES" env-separator:"," env-default:"schema_migrations"`

	// JunctionSuffix marks synthesized association tables so re-runs skip them.
	JunctionSuffix string `yaml:"junction_suffix" env:"ANALYSIS_JUNCTION_SUFFIX" env-default:"_junction"`

	// DerivedFieldPatterns identify computed source columns (case-insensitive).
	// Bare words match any word token of the column name; patterns containing '*' are globs.
	DerivedFieldPatterns []string `yaml:"derived_field_patterns" env:"ANALYSIS_DERIVED_FIELD_PATTERNS" env-separator:"," env-default:"lookup,*_lookup,lookup_*,rollup,formula,calculated,computed,derived"`

	StatementTimeout time.Duration `yaml:"statement_timeout" env:"ANALYSIS_STATEMENT_TIMEOUT" env-default:"30s"`

	// MaxConcurrency bounds parallel scoring queries. 1 keeps scoring strictly sequential.
	MaxConcurrency int `yaml:"max_concurrency" env:"ANALYSIS_MAX_CONCURRENCY" env-default:"1"`

	MinConfidence            float64 `yaml:"min_confidence" env:"ANALYSIS_MIN_CONFIDENCE" env-default:"0.3"`
	MinCardinalityConfidence float64 `yaml:"min_cardinality_confidence" env:"ANALYSIS_MIN_CARDINALITY_CONFIDENCE" env-default:"0.5"`
	JunctionMinConfidence    float64 `yaml:"junction_min_confidence" env:"ANALYSIS_JUNCTION_MIN_CONFIDENCE" env-default:"0.7"`

	// BatchCardinality classifies all candidates with one statement instead of one per candidate.
	BatchCardinality bool `yaml:"batch_cardinality" env:"ANALYSIS_BATCH_CARDINALITY" env-default:"true"`
}

// SessionStoreConfig selects where analysis sessions live between phase calls.
type SessionStoreConfig struct {
	Type      string        `yaml:"type" env:"SESSION_STORE" env-default:"memory"`
	TTL       time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
	KeyPrefix string        `yaml:"key_prefix" env:"SESSION_KEY_PREFIX" env-default:"tablelink:session:"`
}

// RedisConfig holds Redis connection settings for the redis session store.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// SnapshotConfig controls where the completed session audit trail is written.
type SnapshotConfig struct {
	Type   string `yaml:"type" env:"SNAPSHOT_TYPE" env-default:"none"`
	Format string `yaml:"format" env:"SNAPSHOT_FORMAT" env-default:"json"`
	Path   string `yaml:"path" env:"SNAPSHOT_PATH" env-default:"./snapshots"`

	Endpoint  string `yaml:"endpoint" env:"SNAPSHOT_ENDPOINT" env-default:"localhost:9000"`
	Bucket    string `yaml:"bucket" env:"SNAPSHOT_BUCKET" env-default:"tablelink-sessions"`
	Region    string `yaml:"region" env:"SNAPSHOT_REGION" env-default:""`
	UseSSL    bool   `yaml:"use_ssl" env:"SNAPSHOT_USE_SSL" env-default:"false"`
	AccessKey string `yaml:"-" env:"SNAPSHOT_ACCESS_KEY"` // Secret - not in YAML
	SecretKey string `yaml:"-" env:"SNAPSHOT_SECRET_KEY"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigPath, version)
}

// LoadFile reads configuration from the given YAML file with environment variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// normalize trims list entries that came from comma-separated env values.
func (c *Config) normalize() {
	c.Analysis.ExcludedTables = trimAll(c.Analysis.ExcludedTables)
	c.Analysis.DerivedFieldPatterns = trimAll(c.Analysis.DerivedFieldPatterns)
	c.SessionStore.Type = strings.ToLower(strings.TrimSpace(c.SessionStore.Type))
	c.Snapshot.Type = strings.ToLower(strings.TrimSpace(c.Snapshot.Type))
	c.Snapshot.Format = strings.ToLower(strings.TrimSpace(c.Snapshot.Format))
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.AnchorColumn) == "" {
		return fmt.Errorf("analysis.anchor_column must not be empty")
	}
	if c.Analysis.MaxConcurrency < 1 {
		return fmt.Errorf("analysis.max_concurrency must be at least 1, got %d", c.Analysis.MaxConcurrency)
	}
	if c.Analysis.StatementTimeout <= 0 {
		return fmt.Errorf("analysis.statement_timeout must be positive")
	}
	for name, v := range map[string]float64{
		"min_confidence":             c.Analysis.MinConfidence,
		"min_cardinality_confidence": c.Analysis.MinCardinalityConfidence,
		"junction_min_confidence":    c.Analysis.JunctionMinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("analysis.%s must be within [0,1], got %v", name, v)
		}
	}

	if !slices.Contains([]string{SessionStoreMemory, SessionStoreRedis, SessionStorePostgres}, c.SessionStore.Type) {
		return fmt.Errorf("unknown session_store.type %q", c.SessionStore.Type)
	}
	if c.SessionStore.Type == SessionStoreRedis && c.Redis.Host == "" {
		return fmt.Errorf("session_store.type=redis requires redis.host")
	}

	if !slices.Contains([]string{SnapshotNone, SnapshotFile, SnapshotMinio}, c.Snapshot.Type) {
		return fmt.Errorf("unknown snapshot.type %q", c.Snapshot.Type)
	}
	if c.Snapshot.Format != "json" && c.Snapshot.Format != "yaml" {
		return fmt.Errorf("snapshot.format must be json or yaml, got %q", c.Snapshot.Format)
	}

	return nil
}

// URL returns a PostgreSQL connection URL with every user-provided field escaped.
// When running in Docker, localhost resolves to host.docker.internal.
func (c *DatabaseConfig) URL() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := &url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
