package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReferenceSNPStore is the optional dbSNP collaborator. A nil store is a
// supported degraded mode: risk-allele resolution then skips the strand check.
type ReferenceSNPStore interface {
	// Find returns the reference entry for an rsID, or ErrNotFound.
	Find(ctx context.Context, rsID int64) (*ReferenceSNP, error)
}

// GeneLookup is the bidirectional gene-symbol / Entrez-id reference table
type GeneLookup interface {
	BySymbol(symbol string) (GeneAnnotation, bool)
	ByEntrezID(id int64) (GeneAnnotation, bool)
}

// CatalogStore owns normalized catalog snapshots. A snapshot becomes visible
// to readers only when activated; activation atomically supersedes the
// previous latest snapshot.
type CatalogStore interface {
	BeginSnapshot(ctx context.Context, info SnapshotInfo) error
	InsertRecords(ctx context.Context, snapshotID string, records []*CatalogRecord) error
	ActivateSnapshot(ctx context.Context, snapshotID string) error

	// ActiveSnapshot returns the latest snapshot, or ErrSnapshotUnavailable.
	ActiveSnapshot(ctx context.Context) (*SnapshotInfo, error)

	// FindByPopulation returns the active snapshot's records whose population
	// field contains any of the given terms, ordered by trait name.
	FindByPopulation(ctx context.Context, terms []string) ([]*CatalogRecord, error)

	// FindByStudy returns the active snapshot's records for one study name.
	FindByStudy(ctx context.Context, study string) ([]*CatalogRecord, error)

	// Traits returns the active snapshot's distinct traits, ordered by name.
	Traits(ctx context.Context) ([]TraitInfo, error)
}

// GenotypeStore resolves a user's observed allele pairs for a set of SNPs
type GenotypeStore interface {
	// Genotypes returns observed allele pairs keyed by rsID. SNPs absent
	// from the user's panel are simply missing from the map.
	Genotypes(ctx context.Context, fileUUID uuid.UUID, format FileFormat, rsIDs []int64) (map[int64]string, error)

	// DefaultCall returns the genotype to assume for a catalog SNP the panel
	// did not observe: homozygous reference when the platform assayed the
	// locus and the reference allele is known, otherwise "na".
	DefaultCall(ctx context.Context, rsID int64, format FileFormat, rec *CatalogRecord) string
}

// ReportStore persists per-user+file risk reports and the user file registry.
// Report replacement is all-or-nothing: drop-then-insert, never merge.
type ReportStore interface {
	ReplaceReports(ctx context.Context, fileUUID uuid.UUID, reports []*TraitRiskReport) error
	Reports(ctx context.Context, fileUUID uuid.UUID) ([]*TraitRiskReport, error)

	FileInfo(ctx context.Context, userID, name string) (*UserFileInfo, error)
	UpdateReportStatus(ctx context.Context, userID, name string, reportedAt time.Time, stats CoverageStats) error
}

// ConfigManager provides read access to the loaded configuration
type ConfigManager interface {
	GetConfig() *Config
	Validate() error
}
