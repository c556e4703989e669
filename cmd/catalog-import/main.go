package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/config"
	"github.com/gwas-risk-server/internal/database"
	"github.com/gwas-risk-server/internal/domain"
	"github.com/gwas-risk-server/internal/genecatalog"
	"github.com/gwas-risk-server/internal/ingest"
	"github.com/gwas-risk-server/internal/resolve"
	"github.com/gwas-risk-server/internal/store"
)

func main() {
	catalogPath := flag.String("catalog", "", "catalog TSV to ingest (overrides ingest.catalog_path)")
	skipMigrate := flag.Bool("skip-migrate", false, "do not run schema migrations before ingesting")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	path := cfg.Ingest.CatalogPath
	if *catalogPath != "" {
		path = *catalogPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, aborting ingestion")
		cancel()
	}()

	if !*skipMigrate {
		url := configManager.GetDatabaseConnectionString()
		if err := database.Migrate(url, cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Running migrations failed")
		}
	}

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Connecting to database failed")
	}
	defer db.Close()

	genes, err := genecatalog.Load(cfg.Ingest.GeneTablePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Loading gene table failed")
	}

	translation := map[string]string{}
	if cfg.Ingest.TraitTranslationPath != "" {
		translation, err = ingest.LoadTraitTranslation(cfg.Ingest.TraitTranslationPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Loading trait translation failed")
		}
	}

	capture, err := ingest.LoadCaptureSets(cfg.Ingest.CaptureListPaths, logger)
	if err != nil {
		logger.WithError(err).Fatal("Loading capture lists failed")
	}

	refStore, closeRef, err := openRefSNPStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Opening reference SNP store failed")
	}
	defer closeRef()

	pipeline := ingest.NewPipeline(
		genes,
		resolve.NewRiskAlleleResolver(refStore, logger),
		store.NewPostgresCatalogStore(db.Pool, logger),
		translation,
		capture,
		cfg.Ingest.OnBadDate,
		logger,
	)

	f, err := os.Open(path)
	if err != nil {
		logger.WithError(err).Fatal("Opening catalog file failed")
	}
	defer f.Close()

	result, err := pipeline.Run(ctx, f, ingest.SnapshotFromPath(path))
	if err != nil {
		logger.WithError(err).Fatal("Catalog ingestion failed")
	}

	logger.WithFields(logrus.Fields{
		"snapshot": result.Snapshot.ID,
		"accepted": result.Accepted,
		"rejected": result.Rejected,
		"traits":   len(result.Traits),
	}).Info("Catalog ingestion finished")
}

// openRefSNPStore builds the cached dbSNP lookup chain, or a nil store when
// no local reference database is configured.
func openRefSNPStore(cfg *domain.Config, logger *logrus.Logger) (domain.ReferenceSNPStore, func(), error) {
	if cfg.RefSNP.SQLitePath == "" {
		logger.Warn("No reference SNP database configured; strand checks disabled")
		return nil, func() {}, nil
	}

	sqlite, err := store.NewSQLiteRefSNPStore(cfg.RefSNP.SQLitePath)
	if err != nil {
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			sqlite.Close()
			return nil, nil, err
		}
		redisClient = redis.NewClient(opts)
	}

	cached, err := resolve.NewCachedRefSNPStore(sqlite, redisClient, cfg.Cache, logger)
	if err != nil {
		sqlite.Close()
		return nil, nil, err
	}

	closer := func() {
		if redisClient != nil {
			redisClient.Close()
		}
		sqlite.Close()
	}
	return cached, closer, nil
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
