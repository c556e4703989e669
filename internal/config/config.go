package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gwas-risk-server/internal/domain"
)

// Manager implements the domain.ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/gwas-risk-server/")

	viper.SetEnvPrefix("GWASRISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover the rest
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "gwas_risk")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Reference SNP store defaults; the empty path disables strand checks
	viper.SetDefault("refsnp.sqlite_path", "")

	// Cache defaults
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.memory_size", 10000)
	viper.SetDefault("cache.default_ttl", "24h")

	// Ingestion defaults
	viper.SetDefault("ingest.catalog_path", "data/gwascatalog.txt")
	viper.SetDefault("ingest.gene_table_path", "data/mim2gene.txt")
	viper.SetDefault("ingest.trait_translation_path", "data/gwascatalog.traits.translated.tsv")
	viper.SetDefault("ingest.on_bad_date", domain.OnBadDateSkipRow)

	// Report defaults
	viper.SetDefault("report.update_span_days", 30)
	viper.SetDefault("report.population_map", map[string][]string{
		"Asian":    {"Asian", "Japanese", "Chinese", "East Asian"},
		"European": {"European", "Caucasian"},
		"African":  {"African", "African American"},
		"unknown":  {""},
	})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// GetConfig returns the loaded configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConnectionString builds the Postgres connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode,
	)
}

// Validate checks the loaded configuration for inconsistencies
func (m *Manager) Validate() error {
	if m.config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if m.config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if m.config.Database.Port <= 0 || m.config.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}

	switch m.config.Ingest.OnBadDate {
	case domain.OnBadDateSkipRow, domain.OnBadDateAbort:
	default:
		return fmt.Errorf("ingest.on_bad_date must be %q or %q, got %q",
			domain.OnBadDateSkipRow, domain.OnBadDateAbort, m.config.Ingest.OnBadDate)
	}

	if m.config.Report.UpdateSpanDays <= 0 {
		return fmt.Errorf("report.update_span_days must be positive")
	}

	return nil
}
