package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gwas-risk-server/internal/domain"
)

// PostgresGenotypeStore implements domain.GenotypeStore over the genotypes
// table written by the genome file importer.
type PostgresGenotypeStore struct {
	db  *pgxpool.Pool
	ref domain.ReferenceSNPStore
}

// NewPostgresGenotypeStore creates a genotype store. The reference store may
// be nil, in which case every absent locus defaults to "na".
func NewPostgresGenotypeStore(db *pgxpool.Pool, ref domain.ReferenceSNPStore) *PostgresGenotypeStore {
	return &PostgresGenotypeStore{db: db, ref: ref}
}

// Genotypes returns a file's observed allele pairs for the requested SNPs
func (s *PostgresGenotypeStore) Genotypes(ctx context.Context, fileUUID uuid.UUID, _ domain.FileFormat, rsIDs []int64) (map[int64]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rs, genotype FROM genotypes
		WHERE file_uuid = $1 AND rs = ANY($2)`,
		fileUUID, rsIDs)
	if err != nil {
		return nil, fmt.Errorf("querying genotypes: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var rs int64
		var genotype string
		if err := rows.Scan(&rs, &genotype); err != nil {
			return nil, fmt.Errorf("scanning genotype: %w", err)
		}
		out[rs] = genotype
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating genotypes: %w", err)
	}
	return out, nil
}

// ImportCalls bulk-loads a parsed genome file's calls for one file UUID
func (s *PostgresGenotypeStore) ImportCalls(ctx context.Context, fileUUID uuid.UUID, calls map[int64]string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning genotype import: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM genotypes WHERE file_uuid = $1`, fileUUID); err != nil {
		return fmt.Errorf("clearing genotypes for %s: %w", fileUUID, err)
	}
	for rs, genotype := range calls {
		if _, err := tx.Exec(ctx, `
			INSERT INTO genotypes (file_uuid, rs, genotype)
			VALUES ($1, $2, $3)`,
			fileUUID, rs, genotype); err != nil {
			return fmt.Errorf("inserting genotype rs%d: %w", rs, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing genotype import: %w", err)
	}
	return nil
}

// DefaultCall implements the homozygous-reference-or-missing policy
func (s *PostgresGenotypeStore) DefaultCall(ctx context.Context, rsID int64, format domain.FileFormat, rec *domain.CatalogRecord) string {
	return DefaultCall(ctx, s.ref, rsID, format, rec)
}
