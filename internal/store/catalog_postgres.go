package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// PostgresCatalogStore implements domain.CatalogStore over a pgx pool.
// Records are stored as JSONB documents with the filterable columns
// (trait, population, snp id, pubmed id) extracted alongside.
type PostgresCatalogStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresCatalogStore creates a new catalog store
func NewPostgresCatalogStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db, log: logger}
}

// BeginSnapshot registers a snapshot in "building" state. Re-running an
// ingestion for the same id rebuilds it from scratch.
func (s *PostgresCatalogStore) BeginSnapshot(ctx context.Context, info domain.SnapshotInfo) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO catalog_snapshots (id, date, status)
		VALUES ($1, $2, 'building')
		ON CONFLICT (id) DO UPDATE SET date = $2, status = 'building'`,
		info.ID, info.Date,
	)
	if err != nil {
		return fmt.Errorf("registering snapshot %s: %w", info.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_records WHERE snapshot_id = $1`, info.ID); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", info.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot registration: %w", err)
	}

	s.log.WithField("snapshot", info.ID).Info("Catalog snapshot started")
	return nil
}

// InsertRecords bulk-inserts accepted records into a snapshot being built
func (s *PostgresCatalogStore) InsertRecords(ctx context.Context, snapshotID string, records []*domain.CatalogRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding catalog record: %w", err)
		}
		batch.Queue(`
			INSERT INTO catalog_records (snapshot_id, snp_id, trait, study, population, pubmed_id, record)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snapshotID, rec.SNPID, rec.Trait, rec.Study, rec.Population, rec.PubmedID, doc,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting catalog records: %w", err)
		}
	}
	return nil
}

// ActivateSnapshot atomically swaps the latest snapshot marker so readers
// never observe a partially-ingested catalog.
func (s *PostgresCatalogStore) ActivateSnapshot(ctx context.Context, snapshotID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning activation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE catalog_snapshots SET status = 'superseded' WHERE status = 'latest'`); err != nil {
		return fmt.Errorf("superseding previous snapshot: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE catalog_snapshots SET status = 'latest' WHERE id = $1`, snapshotID)
	if err != nil {
		return fmt.Errorf("activating snapshot %s: %w", snapshotID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activating snapshot %s: %w", snapshotID, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing activation: %w", err)
	}

	s.log.WithField("snapshot", snapshotID).Info("Catalog snapshot activated")
	return nil
}

// ActiveSnapshot returns the latest snapshot, or ErrSnapshotUnavailable
func (s *PostgresCatalogStore) ActiveSnapshot(ctx context.Context) (*domain.SnapshotInfo, error) {
	info := &domain.SnapshotInfo{}
	err := s.db.QueryRow(ctx,
		`SELECT id, date, status FROM catalog_snapshots WHERE status = 'latest'`,
	).Scan(&info.ID, &info.Date, &info.Status)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrSnapshotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("querying active snapshot: %w", err)
	}
	return info, nil
}

// FindByPopulation returns the active snapshot's records whose population
// contains any of the terms, ordered by trait name. An empty term matches
// records without a population.
func (s *PostgresCatalogStore) FindByPopulation(ctx context.Context, terms []string) ([]*domain.CatalogRecord, error) {
	query := `
		SELECT record FROM catalog_records
		WHERE snapshot_id = (SELECT id FROM catalog_snapshots WHERE status = 'latest')`

	args := []interface{}{}
	if len(terms) > 0 {
		query += ` AND (`
		for i, term := range terms {
			if i > 0 {
				query += ` OR `
			}
			if term == "" {
				query += `(population IS NULL OR population = '')`
				continue
			}
			args = append(args, "%"+term+"%")
			query += fmt.Sprintf(`population ILIKE $%d`, len(args))
		}
		query += `)`
	}
	query += ` ORDER BY trait, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog by population: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindByStudy returns the active snapshot's records for one study name
func (s *PostgresCatalogStore) FindByStudy(ctx context.Context, study string) ([]*domain.CatalogRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT record FROM catalog_records
		WHERE snapshot_id = (SELECT id FROM catalog_snapshots WHERE status = 'latest')
		  AND study = $1
		ORDER BY id`, study)
	if err != nil {
		return nil, fmt.Errorf("querying catalog by study: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Traits returns the active snapshot's distinct traits, ordered by name
func (s *PostgresCatalogStore) Traits(ctx context.Context) ([]domain.TraitInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT trait, COALESCE(record->>'trait_translated', '')
		FROM catalog_records
		WHERE snapshot_id = (SELECT id FROM catalog_snapshots WHERE status = 'latest')
		  AND trait IS NOT NULL
		ORDER BY trait`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog traits: %w", err)
	}
	defer rows.Close()

	var out []domain.TraitInfo
	for rows.Next() {
		var info domain.TraitInfo
		if err := rows.Scan(&info.Name, &info.Translated); err != nil {
			return nil, fmt.Errorf("scanning trait: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading traits: %w", err)
	}
	return out, nil
}

func scanRecords(rows pgx.Rows) ([]*domain.CatalogRecord, error) {
	var out []*domain.CatalogRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning catalog record: %w", err)
		}
		rec := &domain.CatalogRecord{}
		if err := json.Unmarshal(doc, rec); err != nil {
			return nil, fmt.Errorf("decoding catalog record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog records: %w", err)
	}
	return out, nil
}
