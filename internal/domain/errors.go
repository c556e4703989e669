package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and services
var (
	// ErrNotFound indicates a keyed lookup matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrSnapshotUnavailable indicates no catalog snapshot is marked latest.
	ErrSnapshotUnavailable = errors.New("no active catalog snapshot")

	// ErrNoMatchingPopulation indicates the population filter matched zero
	// catalog records, so no report can be computed.
	ErrNoMatchingPopulation = errors.New("no catalog records for population")

	// ErrInsufficientCoverage indicates the filtered catalog references no
	// SNPs the user's platform could contribute to.
	ErrInsufficientCoverage = errors.New("insufficient catalog coverage")
)

// RowError describes one rejected catalog row. Rejections are logged and
// collected; they never abort the ingestion pass.
type RowError struct {
	Line     int    `json:"line"`
	PubmedID int64  `json:"pubmed_id,omitempty"`
	Reason   string `json:"reason"`
}

// Error implements the error interface
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// BadDateError marks the one converter failure with a configurable policy:
// depending on ingest.on_bad_date it rejects the row or aborts the run.
type BadDateError struct {
	Column string
	Text   string
	Err    error
}

// Error implements the error interface
func (e *BadDateError) Error() string {
	return fmt.Sprintf("malformed date in %s: %q", e.Column, e.Text)
}

// Unwrap returns the underlying parse error
func (e *BadDateError) Unwrap() error { return e.Err }
