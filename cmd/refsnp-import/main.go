package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/config"
	"github.com/gwas-risk-server/internal/store"
)

// Loads a dbSNP extract (tab-separated rs, ref, alt, info) into the local
// SQLite reference database used for risk-allele strand checks.
func main() {
	input := flag.String("in", "", "dbSNP extract TSV to load")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()
	if cfg.RefSNP.SQLitePath == "" {
		log.Fatal("refsnp.sqlite_path must be configured")
	}

	logger := logrus.New()

	refStore, err := store.NewSQLiteRefSNPStore(cfg.RefSNP.SQLitePath)
	if err != nil {
		logger.WithError(err).Fatal("Opening reference SNP store failed")
	}
	defer refStore.Close()

	f, err := os.Open(*input)
	if err != nil {
		logger.WithError(err).Fatal("Opening dbSNP extract failed")
	}
	defer f.Close()

	count, err := refStore.ImportTSV(context.Background(), f)
	if err != nil {
		logger.WithError(err).Fatal("Importing dbSNP extract failed")
	}

	logger.WithFields(logrus.Fields{
		"entries": count,
		"path":    cfg.RefSNP.SQLitePath,
	}).Info("Reference SNP database loaded")
}
