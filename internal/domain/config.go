package domain

import "time"

// Config represents the main application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	RefSNP   RefSNPConfig   `mapstructure:"refsnp"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig represents the Postgres connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RefSNPConfig locates the local dbSNP reference database. An empty path is
// the degraded no-strand-check mode.
type RefSNPConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CacheConfig configures the reference-SNP lookup cache tiers
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"` // empty disables the warm tier
	MemorySize int           `mapstructure:"memory_size"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// Malformed-date policies for ingestion
const (
	OnBadDateSkipRow = "skip_row"
	OnBadDateAbort   = "abort"
)

// IngestConfig configures the catalog ingestion pipeline
type IngestConfig struct {
	CatalogPath          string            `mapstructure:"catalog_path"`
	GeneTablePath        string            `mapstructure:"gene_table_path"`
	TraitTranslationPath string            `mapstructure:"trait_translation_path"`
	CaptureListPaths     map[string]string `mapstructure:"capture_list_paths"` // platform -> rsID list file
	OnBadDate            string            `mapstructure:"on_bad_date"`        // skip_row | abort
}

// ReportConfig configures the risk scoring engine
type ReportConfig struct {
	UpdateSpanDays int                 `mapstructure:"update_span_days"`
	PopulationMap  map[string][]string `mapstructure:"population_map"` // declared population -> catalog terms
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
