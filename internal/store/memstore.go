// Package store provides the persistence implementations: Postgres-backed
// catalog snapshots and risk reports, a local SQLite reference SNP database,
// and in-memory stores used by tests and small local runs.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwas-risk-server/internal/domain"
)

// MemCatalogStore is an in-memory CatalogStore. Snapshot activation swaps an
// atomic reference, so readers always see a fully built snapshot.
type MemCatalogStore struct {
	mu        sync.RWMutex
	snapshots map[string]*memSnapshot
	active    string
}

type memSnapshot struct {
	info    domain.SnapshotInfo
	records []*domain.CatalogRecord
}

// NewMemCatalogStore creates an empty in-memory catalog store
func NewMemCatalogStore() *MemCatalogStore {
	return &MemCatalogStore{snapshots: make(map[string]*memSnapshot)}
}

// BeginSnapshot starts building a snapshot; an existing snapshot with the
// same id is discarded and rebuilt from scratch.
func (s *MemCatalogStore) BeginSnapshot(_ context.Context, info domain.SnapshotInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[info.ID] = &memSnapshot{info: info}
	return nil
}

// InsertRecords appends records to a snapshot being built
func (s *MemCatalogStore) InsertRecords(_ context.Context, snapshotID string, records []*domain.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return domain.ErrNotFound
	}
	snap.records = append(snap.records, records...)
	return nil
}

// ActivateSnapshot atomically swaps the active snapshot reference
func (s *MemCatalogStore) ActivateSnapshot(_ context.Context, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return domain.ErrNotFound
	}
	if prev, ok := s.snapshots[s.active]; ok {
		prev.info.Status = "superseded"
	}
	snap.info.Status = "latest"
	s.active = snapshotID
	return nil
}

// ActiveSnapshot returns the latest snapshot info
func (s *MemCatalogStore) ActiveSnapshot(_ context.Context) (*domain.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[s.active]
	if !ok {
		return nil, domain.ErrSnapshotUnavailable
	}
	info := snap.info
	return &info, nil
}

// FindByPopulation filters the active snapshot, ordered by trait name
func (s *MemCatalogStore) FindByPopulation(_ context.Context, terms []string) ([]*domain.CatalogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[s.active]
	if !ok {
		return nil, domain.ErrSnapshotUnavailable
	}

	var out []*domain.CatalogRecord
	for _, rec := range snap.records {
		if matchesPopulation(rec, terms) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return traitOf(out[i]) < traitOf(out[j])
	})
	return out, nil
}

// FindByStudy returns the active snapshot's records for one study
func (s *MemCatalogStore) FindByStudy(_ context.Context, study string) ([]*domain.CatalogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[s.active]
	if !ok {
		return nil, domain.ErrSnapshotUnavailable
	}
	var out []*domain.CatalogRecord
	for _, rec := range snap.records {
		if rec.Study != nil && *rec.Study == study {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Traits returns the active snapshot's distinct traits, ordered by name
func (s *MemCatalogStore) Traits(_ context.Context) ([]domain.TraitInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[s.active]
	if !ok {
		return nil, domain.ErrSnapshotUnavailable
	}

	seen := make(map[string]bool)
	var out []domain.TraitInfo
	for _, rec := range snap.records {
		if rec.Trait == nil || seen[*rec.Trait] {
			continue
		}
		seen[*rec.Trait] = true
		info := domain.TraitInfo{Name: *rec.Trait}
		if rec.TraitTranslated != nil {
			info.Translated = *rec.TraitTranslated
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func matchesPopulation(rec *domain.CatalogRecord, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	pop := ""
	if rec.Population != nil {
		pop = *rec.Population
	}
	for _, term := range terms {
		if term == "" && pop == "" {
			return true
		}
		if term != "" && strings.Contains(pop, term) {
			return true
		}
	}
	return false
}

func traitOf(rec *domain.CatalogRecord) string {
	if rec.Trait == nil {
		return ""
	}
	return *rec.Trait
}

// MemRefSNPStore is an in-memory ReferenceSNPStore
type MemRefSNPStore struct {
	mu      sync.RWMutex
	entries map[int64]domain.ReferenceSNP
}

// NewMemRefSNPStore creates a reference store seeded with entries
func NewMemRefSNPStore(entries ...domain.ReferenceSNP) *MemRefSNPStore {
	s := &MemRefSNPStore{entries: make(map[int64]domain.ReferenceSNP, len(entries))}
	for _, e := range entries {
		s.entries[e.RsID] = e
	}
	return s
}

// Add inserts or replaces one entry
func (s *MemRefSNPStore) Add(entry domain.ReferenceSNP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.RsID] = entry
}

// Find implements domain.ReferenceSNPStore
func (s *MemRefSNPStore) Find(_ context.Context, rsID int64) (*domain.ReferenceSNP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[rsID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// MemGenotypeStore is an in-memory GenotypeStore keyed by file UUID
type MemGenotypeStore struct {
	mu    sync.RWMutex
	calls map[uuid.UUID]map[int64]string
	ref   domain.ReferenceSNPStore // optional, for homozygous-reference fills
}

// NewMemGenotypeStore creates an empty genotype store; ref may be nil
func NewMemGenotypeStore(ref domain.ReferenceSNPStore) *MemGenotypeStore {
	return &MemGenotypeStore{calls: make(map[uuid.UUID]map[int64]string), ref: ref}
}

// SetCalls replaces one file's genotype panel
func (s *MemGenotypeStore) SetCalls(fileUUID uuid.UUID, calls map[int64]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[int64]string, len(calls))
	for k, v := range calls {
		copied[k] = v
	}
	s.calls[fileUUID] = copied
}

// Genotypes implements domain.GenotypeStore
func (s *MemGenotypeStore) Genotypes(_ context.Context, fileUUID uuid.UUID, _ domain.FileFormat, rsIDs []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	panel := s.calls[fileUUID]
	out := make(map[int64]string)
	for _, id := range rsIDs {
		if gt, ok := panel[id]; ok {
			out[id] = gt
		}
	}
	return out, nil
}

// DefaultCall implements the homozygous-reference-or-missing policy
func (s *MemGenotypeStore) DefaultCall(ctx context.Context, rsID int64, format domain.FileFormat, rec *domain.CatalogRecord) string {
	return DefaultCall(ctx, s.ref, rsID, format, rec)
}

// DefaultCall is the shared absent-genotype policy: when the platform assays
// the locus and the reference allele is known, assume homozygous reference;
// otherwise the call is "na".
func DefaultCall(ctx context.Context, ref domain.ReferenceSNPStore, rsID int64, format domain.FileFormat, rec *domain.CatalogRecord) string {
	if rec == nil || !rec.AssayedBy(format) || ref == nil {
		return "na"
	}
	entry, err := ref.Find(ctx, rsID)
	if err != nil {
		return "na"
	}
	base := strings.SplitN(entry.Ref, ",", 2)[0]
	if len(base) != 1 {
		return "na"
	}
	return base + base
}

// MemReportStore is an in-memory ReportStore plus user file registry
type MemReportStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID][]*domain.TraitRiskReport
	files   map[string]*domain.UserFileInfo // key: userID + "/" + name
}

// NewMemReportStore creates an empty report store
func NewMemReportStore() *MemReportStore {
	return &MemReportStore{
		reports: make(map[uuid.UUID][]*domain.TraitRiskReport),
		files:   make(map[string]*domain.UserFileInfo),
	}
}

// PutFileInfo registers a user genome file
func (s *MemReportStore) PutFileInfo(info *domain.UserFileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *info
	s.files[info.UserID+"/"+info.Name] = &copied
}

// ReplaceReports drops any previous report set for the file and stores the
// new one; all-or-nothing by construction.
func (s *MemReportStore) ReplaceReports(_ context.Context, fileUUID uuid.UUID, reports []*domain.TraitRiskReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[fileUUID] = append([]*domain.TraitRiskReport(nil), reports...)
	return nil
}

// Reports returns the stored report set for a file
func (s *MemReportStore) Reports(_ context.Context, fileUUID uuid.UUID) ([]*domain.TraitRiskReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.TraitRiskReport(nil), s.reports[fileUUID]...), nil
}

// FileInfo returns the registry entry for one user file
func (s *MemReportStore) FileInfo(_ context.Context, userID, name string) (*domain.UserFileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.files[userID+"/"+name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *info
	return &copied, nil
}

// UpdateReportStatus records the last report computation and coverage stats
func (s *MemReportStore) UpdateReportStatus(_ context.Context, userID, name string, reportedAt time.Time, stats domain.CoverageStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.files[userID+"/"+name]
	if !ok {
		return domain.ErrNotFound
	}
	at := reportedAt
	info.ReportedAt = &at
	info.NStudies = stats.NStudies
	info.CoverRate = stats.CoverRate
	return nil
}
