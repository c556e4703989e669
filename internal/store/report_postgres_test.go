package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwas-risk-server/internal/domain"
)

func setupReportStore(t *testing.T) (*PostgresReportStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewPostgresReportStore(db, logger), mock, db
}

func TestReplaceReportsDropsThenInserts(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	fileUUID := uuid.New()
	reports := []*domain.TraitRiskReport{
		{Trait: "Asthma", RelativeRisk: 1.2},
		{Trait: "Height", RelativeRisk: 1.0},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM risk_reports").
		WithArgs(fileUUID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO risk_reports").
		WithArgs(fileUUID, "Asthma", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO risk_reports").
		WithArgs(fileUUID, "Height", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ReplaceReports(context.Background(), fileUUID, reports)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReportsRollsBackOnInsertFailure(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	fileUUID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM risk_reports").
		WithArgs(fileUUID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO risk_reports").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.ReplaceReports(context.Background(), fileUUID,
		[]*domain.TraitRiskReport{{Trait: "Asthma"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportsDecodesStoredDocuments(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	fileUUID := uuid.New()
	doc, err := json.Marshal(&domain.TraitRiskReport{Trait: "Asthma", RelativeRisk: 1.44})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT report FROM risk_reports").
		WithArgs(fileUUID).
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(doc))

	reports, err := store.Reports(context.Background(), fileUUID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Asthma", reports[0].Trait)
	assert.Equal(t, 1.44, reports[0].RelativeRisk)
}

func TestFileInfo(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	fileUUID := uuid.New()
	reportedAt := time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"user_id", "name", "file_uuid", "file_format", "population",
		"riskreport_at", "n_studies", "cover_rate",
	}).AddRow("alice", "genome.vcf", fileUUID.String(), "vcf_whole_genome", "Asian", reportedAt, 120, 95)

	mock.ExpectQuery("SELECT (.+) FROM data_info").
		WithArgs("alice", "genome.vcf").
		WillReturnRows(rows)

	info, err := store.FileInfo(context.Background(), "alice", "genome.vcf")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatVCFWholeGenome, info.FileFormat)
	assert.Equal(t, fileUUID, info.FileUUID)
	require.NotNil(t, info.ReportedAt)
	assert.Equal(t, reportedAt, *info.ReportedAt)
	assert.Equal(t, 120, info.NStudies)
}

func TestFileInfoNotFound(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM data_info").
		WithArgs("alice", "missing.vcf").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "name", "file_uuid", "file_format", "population",
			"riskreport_at", "n_studies", "cover_rate",
		}))

	_, err := store.FileInfo(context.Background(), "alice", "missing.vcf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateReportStatus(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	reportedAt := time.Now().UTC()
	stats := domain.CoverageStats{NStudies: 100, CoverRate: 90}

	mock.ExpectExec("UPDATE data_info").
		WithArgs("alice", "genome.vcf", reportedAt, 100, 90).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateReportStatus(context.Background(), "alice", "genome.vcf", reportedAt, stats)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReportStatusUnregisteredFile(t *testing.T) {
	store, mock, db := setupReportStore(t)
	defer db.Close()

	mock.ExpectExec("UPDATE data_info").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateReportStatus(context.Background(), "alice", "ghost.vcf",
		time.Now(), domain.CoverageStats{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
