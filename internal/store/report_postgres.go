package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// PostgresReportStore implements domain.ReportStore plus the user file
// registry (data_info) on database/sql with the pq driver.
type PostgresReportStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresReportStore creates a new report store
func NewPostgresReportStore(db *sql.DB, logger *logrus.Logger) *PostgresReportStore {
	return &PostgresReportStore{db: db, log: logger}
}

// PutFileInfo registers an uploaded file in data_info, replacing any prior
// registration of the same user+name.
func (s *PostgresReportStore) PutFileInfo(ctx context.Context, info *domain.UserFileInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data_info (user_id, name, file_uuid, file_format, population, riskreport_at, n_studies, cover_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, name) DO UPDATE SET
			file_uuid = $3, file_format = $4, population = $5,
			riskreport_at = $6, n_studies = $7, cover_rate = $8`,
		info.UserID, info.Name, info.FileUUID, string(info.FileFormat),
		info.Population, info.ReportedAt, info.NStudies, info.CoverRate,
	)
	if err != nil {
		return fmt.Errorf("registering file %s/%s: %w", info.UserID, info.Name, err)
	}
	return nil
}

// ReplaceReports swaps all reports for a file in one transaction.
// Drop-then-insert, never merge: a rerun leaves no stale trait behind.
func (s *PostgresReportStore) ReplaceReports(ctx context.Context, fileUUID uuid.UUID, reports []*domain.TraitRiskReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning report transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM risk_reports WHERE file_uuid = $1`, fileUUID); err != nil {
		return fmt.Errorf("dropping previous reports: %w", err)
	}

	for _, report := range reports {
		doc, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encoding report for trait %s: %w", report.Trait, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO risk_reports (file_uuid, trait, report)
			VALUES ($1, $2, $3)`,
			fileUUID, report.Trait, doc,
		); err != nil {
			return fmt.Errorf("inserting report for trait %s: %w", report.Trait, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reports: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"file_uuid": fileUUID,
		"traits":    len(reports),
	}).Info("Risk reports replaced")
	return nil
}

// Reports returns a file's reports ordered by trait name
func (s *PostgresReportStore) Reports(ctx context.Context, fileUUID uuid.UUID) ([]*domain.TraitRiskReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report FROM risk_reports
		WHERE file_uuid = $1
		ORDER BY trait`, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []*domain.TraitRiskReport
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		report := &domain.TraitRiskReport{}
		if err := json.Unmarshal(doc, report); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return out, nil
}

// FileInfo returns the registry entry for a user's named file, or ErrNotFound
func (s *PostgresReportStore) FileInfo(ctx context.Context, userID, name string) (*domain.UserFileInfo, error) {
	info := &domain.UserFileInfo{}
	var format string
	var reportedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, file_uuid, file_format, population, riskreport_at, n_studies, cover_rate
		FROM data_info
		WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&info.UserID, &info.Name, &info.FileUUID, &format,
		&info.Population, &reportedAt, &info.NStudies, &info.CoverRate)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying file info %s/%s: %w", userID, name, err)
	}
	info.FileFormat = domain.FileFormat(format)
	if reportedAt.Valid {
		t := reportedAt.Time
		info.ReportedAt = &t
	}
	return info, nil
}

// UpdateReportStatus stamps a registry entry with the report time and the
// coverage stats computed for it.
func (s *PostgresReportStore) UpdateReportStatus(ctx context.Context, userID, name string, reportedAt time.Time, stats domain.CoverageStats) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE data_info
		SET riskreport_at = $3, n_studies = $4, cover_rate = $5
		WHERE user_id = $1 AND name = $2`,
		userID, name, reportedAt, stats.NStudies, stats.CoverRate,
	)
	if err != nil {
		return fmt.Errorf("updating report status %s/%s: %w", userID, name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking report status update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("updating report status %s/%s: %w", userID, name, domain.ErrNotFound)
	}
	return nil
}
