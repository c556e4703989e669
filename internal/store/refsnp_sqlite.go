package store

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/gwas-risk-server/internal/domain"
)

// SQLiteRefSNPStore implements domain.ReferenceSNPStore over a local SQLite
// copy of the reference SNP database.
type SQLiteRefSNPStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRefSNPStore opens (creating if needed) the reference SNP database
func NewSQLiteRefSNPStore(dbPath string) (*SQLiteRefSNPStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps concurrent scoring runs from blocking on readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createRefSNPSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRefSNPStore{db: db, dbPath: dbPath}, nil
}

func createRefSNPSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS refsnp (
		rs INTEGER PRIMARY KEY,
		ref TEXT NOT NULL,
		alt TEXT NOT NULL,
		info TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Find implements domain.ReferenceSNPStore
func (s *SQLiteRefSNPStore) Find(ctx context.Context, rsID int64) (*domain.ReferenceSNP, error) {
	entry := &domain.ReferenceSNP{RsID: rsID}
	err := s.db.QueryRowContext(ctx,
		"SELECT ref, alt, info FROM refsnp WHERE rs = ?", rsID,
	).Scan(&entry.Ref, &entry.Alt, &entry.Info)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying refsnp rs%d: %w", rsID, err)
	}
	return entry, nil
}

// Put inserts or replaces one entry
func (s *SQLiteRefSNPStore) Put(ctx context.Context, entry *domain.ReferenceSNP) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO refsnp (rs, ref, alt, info) VALUES (?, ?, ?, ?)",
		entry.RsID, entry.Ref, entry.Alt, entry.Info,
	)
	if err != nil {
		return fmt.Errorf("upserting refsnp rs%d: %w", entry.RsID, err)
	}
	return nil
}

// ImportTSV bulk-loads tab-delimited reference data (rs, ref, alt, info per
// line, with or without the "rs" id prefix; "#" comment lines are skipped).
// It returns the number of rows loaded.
func (s *SQLiteRefSNPStore) ImportTSV(ctx context.Context, r io.Reader) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO refsnp (rs, ref, alt, info) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing import statement: %w", err)
	}
	defer stmt.Close()

	count := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		rsID, err := strconv.ParseInt(strings.TrimPrefix(parts[0], "rs"), 10, 64)
		if err != nil {
			continue
		}
		info := ""
		if len(parts) > 3 {
			info = parts[3]
		}
		if _, err := stmt.ExecContext(ctx, rsID, parts[1], parts[2], info); err != nil {
			return 0, fmt.Errorf("inserting refsnp rs%d: %w", rsID, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading reference data: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return count, nil
}

// Close closes the underlying database
func (s *SQLiteRefSNPStore) Close() error {
	return s.db.Close()
}
