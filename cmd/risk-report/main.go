package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/config"
	"github.com/gwas-risk-server/internal/database"
	"github.com/gwas-risk-server/internal/domain"
	"github.com/gwas-risk-server/internal/report"
	"github.com/gwas-risk-server/internal/resolve"
	"github.com/gwas-risk-server/internal/store"
)

func main() {
	userID := flag.String("user", "", "user id owning the genome file")
	fileName := flag.String("file", "", "registered genome file name")
	force := flag.Bool("force", false, "recompute even when the stored report is fresh")
	output := flag.String("o", "", "write the TSV report to this path instead of stdout")
	study := flag.String("study", "", "print the active catalog's records for one study and exit")
	listTraits := flag.Bool("traits", false, "print the active catalog's traits and exit")
	flag.Parse()

	if *study == "" && !*listTraits && (*userID == "" || *fileName == "") {
		flag.Usage()
		os.Exit(2)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx := context.Background()

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Connecting to database failed")
	}
	defer db.Close()

	catalogStore := store.NewPostgresCatalogStore(db.Pool, logger)

	if *study != "" {
		if err := writeStudyDetail(ctx, os.Stdout, catalogStore, *study); err != nil {
			logger.WithError(err).Fatal("Looking up study failed")
		}
		return
	}
	if *listTraits {
		if err := writeTraits(ctx, os.Stdout, catalogStore); err != nil {
			logger.WithError(err).Fatal("Listing traits failed")
		}
		return
	}

	sqlDB, err := database.NewSQLConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Opening report database failed")
	}
	defer sqlDB.Close()

	refStore, closeRef, err := openRefSNPStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Opening reference SNP store failed")
	}
	defer closeRef()

	reportStore := store.NewPostgresReportStore(sqlDB, logger)
	engine := report.NewEngine(
		catalogStore,
		store.NewPostgresGenotypeStore(db.Pool, refStore),
		reportStore,
		cfg.Report,
		logger,
	)

	info, err := reportStore.FileInfo(ctx, *userID, *fileName)
	if err != nil {
		logger.WithError(err).Fatal("Looking up genome file failed")
	}

	reports, stats, err := reportsFor(ctx, engine, reportStore, info, *force, logger)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoMatchingPopulation):
			logger.Fatal("No catalog records match the file's population")
		case errors.Is(err, domain.ErrInsufficientCoverage):
			logger.Fatal("The catalog does not cover this file's platform")
		default:
			logger.WithError(err).Fatal("Computing risk report failed")
		}
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			logger.WithError(err).Fatal("Creating output file failed")
		}
		defer f.Close()
		out = f
	}

	if err := writeTSV(out, reports); err != nil {
		logger.WithError(err).Fatal("Writing report failed")
	}

	logger.WithFields(logrus.Fields{
		"user":       *userID,
		"file":       *fileName,
		"traits":     len(reports),
		"n_studies":  stats.NStudies,
		"cover_rate": stats.CoverRate,
	}).Info("Risk report written")
}

// reportsFor returns the stored reports when they are still fresh, otherwise
// recomputes them against the active catalog snapshot.
func reportsFor(
	ctx context.Context,
	engine *report.Engine,
	reportStore *store.PostgresReportStore,
	info *domain.UserFileInfo,
	force bool,
	logger *logrus.Logger,
) ([]*domain.TraitRiskReport, domain.CoverageStats, error) {
	if !force {
		fresh, err := engine.IsUpToDate(ctx, info)
		if err != nil {
			return nil, domain.CoverageStats{}, err
		}
		if fresh {
			logger.WithField("reported_at", info.ReportedAt).Info("Stored report is up to date")
			reports, err := reportStore.Reports(ctx, info.FileUUID)
			if err != nil {
				return nil, domain.CoverageStats{}, err
			}
			stats := domain.CoverageStats{NStudies: info.NStudies, CoverRate: info.CoverRate}
			return reports, stats, nil
		}
	}

	outcome, err := engine.ComputeReport(ctx, info.UserID, info.Name)
	if err != nil {
		return nil, domain.CoverageStats{}, err
	}
	return outcome.Reports, outcome.Stats, nil
}

func writeTSV(w io.Writer, reports []*domain.TraitRiskReport) error {
	if _, err := fmt.Fprintln(w, "trait\ttrait_translated\thighest_study\trank\trelative_risk\tpubmed_link\tsnps"); err != nil {
		return err
	}
	for _, r := range reports {
		snps := make([]string, 0, len(r.SNPs))
		for _, s := range r.SNPs {
			snps = append(snps, "rs"+strconv.FormatInt(s.SNPID, 10))
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.3f\t%s\t%s\n",
			r.Trait, r.TraitTranslated, r.HighestStudy, r.Rank, r.RelativeRisk,
			r.PubmedLink, strings.Join(snps, ";"))
		if err != nil {
			return err
		}
	}
	return nil
}

// writeStudyDetail prints the per-SNP rows of one study from the active
// catalog snapshot.
func writeStudyDetail(ctx context.Context, w io.Writer, catalog domain.CatalogStore, study string) error {
	records, err := catalog.FindByStudy(ctx, study)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no catalog records for study %q", study)
	}

	if _, err := fmt.Fprintln(w, "snp\trisk_allele\ttrait\teffect\tpubmed_link"); err != nil {
		return err
	}
	for _, rec := range records {
		snp, trait := "", ""
		if rec.SNPID != nil {
			snp = "rs" + strconv.FormatInt(*rec.SNPID, 10)
		}
		if rec.Trait != nil {
			trait = *rec.Trait
		}
		effect := "NA"
		switch rec.Effect.Kind {
		case domain.EffectOddsRatio:
			effect = fmt.Sprintf("OR %.3f", rec.Effect.OddsRatio)
		case domain.EffectSuspectedBeta:
			effect = rec.Effect.BetaText
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			snp, rec.RiskAllele, trait, effect, rec.PubmedLink())
		if err != nil {
			return err
		}
	}
	return nil
}

// writeTraits prints the active catalog snapshot's distinct traits.
func writeTraits(ctx context.Context, w io.Writer, catalog domain.CatalogStore) error {
	traits, err := catalog.Traits(ctx)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "trait\ttrait_translated"); err != nil {
		return err
	}
	for _, t := range traits {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Translated); err != nil {
			return err
		}
	}
	return nil
}

// openRefSNPStore builds the cached dbSNP lookup chain, or a nil store when
// no local reference database is configured.
func openRefSNPStore(cfg *domain.Config, logger *logrus.Logger) (domain.ReferenceSNPStore, func(), error) {
	if cfg.RefSNP.SQLitePath == "" {
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
