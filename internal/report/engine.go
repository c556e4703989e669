// Package report implements the personal risk scoring engine: it combines
// the active catalog snapshot with one user's genotype panel into a per-trait
// risk report with coverage statistics.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// Engine computes and persists risk reports. Runs for different user files
// may execute concurrently; runs for the same file are serialized to keep
// the drop-then-insert report replacement race-free.
type Engine struct {
	catalog   domain.CatalogStore
	genotypes domain.GenotypeStore
	reports   domain.ReportStore

	popMap     map[string][]string
	updateSpan int // days

	log       *logrus.Logger
	fileLocks sync.Map // uuid.UUID -> *sync.Mutex
}

// Outcome carries one finished scoring run
type Outcome struct {
	Reports []*domain.TraitRiskReport
	Stats   domain.CoverageStats
}

// NewEngine wires the engine's collaborators
func NewEngine(
	catalog domain.CatalogStore,
	genotypes domain.GenotypeStore,
	reports domain.ReportStore,
	cfg domain.ReportConfig,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		catalog:    catalog,
		genotypes:  genotypes,
		reports:    reports,
		popMap:     cfg.PopulationMap,
		updateSpan: cfg.UpdateSpanDays,
		log:        logger,
	}
}

// IsUpToDate reports whether a stored risk report is still fresh against the
// active catalog snapshot: the day delta must be strictly below the update
// span. No stored report is always stale.
func (e *Engine) IsUpToDate(ctx context.Context, info *domain.UserFileInfo) (bool, error) {
	if info.ReportedAt == nil {
		return false, nil
	}

	snapshot, err := e.catalog.ActiveSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("resolving active snapshot: %w", err)
	}

	deltaDays := int(snapshot.Date.Sub(*info.ReportedAt).Hours() / 24)
	return deltaDays < e.updateSpan, nil
}

// ComputeReport builds and persists the full risk report set for one
// user+file, replacing any previous set wholesale. It returns
// ErrNoMatchingPopulation or ErrInsufficientCoverage as explicit outcomes
// instead of silently emitting an empty report.
func (e *Engine) ComputeReport(ctx context.Context, userID, name string) (*Outcome, error) {
	info, err := e.reports.FileInfo(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("looking up user file %s/%s: %w", userID, name, err)
	}

	lock := e.lockFor(info.FileUUID)
	lock.Lock()
	defer lock.Unlock()

	records, err := e.catalog.FindByPopulation(ctx, e.populationTerms(info.Population))
	if err != nil {
		return nil, fmt.Errorf("filtering catalog by population: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNoMatchingPopulation
	}

	snpIDs := distinctSNPs(records)
	if len(snpIDs) == 0 {
		return nil, domain.ErrInsufficientCoverage
	}

	calls, err := e.genotypes.Genotypes(ctx, info.FileUUID, info.FileFormat, snpIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving genotypes: %w", err)
	}

	// A catalog SNP absent from the observed panel is filled in explicitly,
	// never left unresolved.
	byID := recordsBySNP(records)
	for _, id := range snpIDs {
		if _, ok := calls[id]; !ok {
			calls[id] = e.genotypes.DefaultCall(ctx, id, info.FileFormat, byID[id])
		}
	}

	stats := e.coverageStats(records, info.FileFormat)

	store := buildRiskStore(records, calls)
	reports := e.assembleReports(store)
	if len(reports) == 0 {
		return nil, domain.ErrInsufficientCoverage
	}

	if err := e.reports.ReplaceReports(ctx, info.FileUUID, reports); err != nil {
		return nil, fmt.Errorf("replacing risk reports: %w", err)
	}
	if err := e.reports.UpdateReportStatus(ctx, userID, name, time.Now().UTC(), stats); err != nil {
		return nil, fmt.Errorf("updating report status: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"file":       name,
		"traits":     len(reports),
		"n_studies":  stats.NStudies,
		"cover_rate": stats.CoverRate,
	}).Info("Risk report computed")

	return &Outcome{Reports: reports, Stats: stats}, nil
}

func (e *Engine) lockFor(fileUUID uuid.UUID) *sync.Mutex {
	v, _ := e.fileLocks.LoadOrStore(fileUUID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (e *Engine) populationTerms(population string) []string {
	if terms, ok := e.popMap[population]; ok {
		return terms
	}
	return []string{population}
}

// coverageStats counts distinct studies (by pubmed id) and distinct SNPs (by
// resolved SNP id), and the share of those SNPs the platform assays. The
// whole-genome platform is 100% by definition; a zero SNP count is 0%, never
// a division fault.
func (e *Engine) coverageStats(records []*domain.CatalogRecord, format domain.FileFormat) domain.CoverageStats {
	studies := make(map[int64]bool)
	snps := make(map[int64]bool)
	available := 0

	for _, rec := range records {
		if rec.PubmedID != nil {
			studies[*rec.PubmedID] = true
		}
		if rec.SNPID == nil || snps[*rec.SNPID] {
			continue
		}
		snps[*rec.SNPID] = true
		if rec.AssayedBy(format) {
			available++
		}
	}

	stats := domain.CoverageStats{NStudies: len(studies), NUniqueSNP: len(snps)}
	switch {
	case format == domain.FormatVCFWholeGenome:
		stats.CoverRate = 100
	case len(snps) == 0:
		stats.CoverRate = 0
	default:
		stats.CoverRate = int(math.Round(100 * float64(available) / float64(len(snps))))
	}
	return stats
}

// riskStore maps trait -> study -> SNP -> per-SNP contribution. It is built
// fresh per scoring run and never shared across runs.
type riskStore map[string]map[string]map[int64]domain.SNPRisk

// buildRiskStore computes the per-SNP risk contributions. Zygosity is the
// number of risk-allele copies in the observed genotype; under the OR model
// the contribution is OR^zygosity. Suspected-beta effects are carried
// through tagged but contribute a neutral 1.0 to the multiplicative
// aggregate.
func buildRiskStore(records []*domain.CatalogRecord, calls map[int64]string) riskStore {
	store := make(riskStore)

	for _, rec := range records {
		if rec.SNPID == nil || rec.Trait == nil || rec.Study == nil {
			continue
		}

		genotype := calls[*rec.SNPID]
		zygosity := zygosityOf(genotype, rec.RiskAllele)

		rr := 1.0
		if rec.Effect.Kind == domain.EffectOddsRatio {
			rr = math.Pow(rec.Effect.OddsRatio, float64(zygosity))
		}

		entry := domain.SNPRisk{
			SNPID:         *rec.SNPID,
			Study:         *rec.Study,
			Genotype:      genotype,
			Zygosity:      zygosity,
			RelativeRisk:  rr,
			Effect:        rec.Effect,
			LowConfidence: strings.HasSuffix(rec.RiskAllele, "?") && len(rec.RiskAllele) > 1,
			Record:        rec,
		}

		byStudy, ok := store[*rec.Trait]
		if !ok {
			byStudy = make(map[string]map[int64]domain.SNPRisk)
			store[*rec.Trait] = byStudy
		}
		bySNP, ok := byStudy[*rec.Study]
		if !ok {
			bySNP = make(map[int64]domain.SNPRisk)
			byStudy[*rec.Study] = bySNP
		}
		bySNP[*rec.SNPID] = entry
	}

	return store
}

// zygosityOf counts risk-allele copies in an observed allele pair. The "na"
// fallback genotype and unresolved alleles count zero copies.
func zygosityOf(genotype, riskAllele string) int {
	allele := strings.TrimSuffix(riskAllele, "?")
	if genotype == "" || genotype == "na" || allele == "" {
		return 0
	}
	return strings.Count(genotype, allele)
}

// assembleReports ranks each trait's studies, picks the highest-priority one
// and flattens the per-SNP entries in deterministic order.
func (e *Engine) assembleReports(store riskStore) []*domain.TraitRiskReport {
	traits := make([]string, 0, len(store))
	for trait := range store {
		traits = append(traits, trait)
	}
	sort.Strings(traits)

	var reports []*domain.TraitRiskReport
	for _, trait := range traits {
		byStudy := store[trait]

		candidates := make([]studyCandidate, 0, len(byStudy))
		for study, bySNP := range byStudy {
			rr := 1.0
			for _, entry := range bySNP {
				rr *= entry.RelativeRisk
			}
			rec := firstRecord(bySNP)
			candidates = append(candidates, studyCandidate{
				study: study,
				rank:  ReliabilityRank(rec),
				rr:    rr,
				rec:   rec,
			})
		}
		highest := pickHighest(candidates)

		rep := &domain.TraitRiskReport{
			Trait:        trait,
			HighestStudy: highest.study,
			Rank:         highest.rank,
			RelativeRisk: highest.rr,
			PubmedLink:   highest.rec.PubmedLink(),
		}
		if highest.rec.TraitTranslated != nil {
			rep.TraitTranslated = *highest.rec.TraitTranslated
		}

		// Every contributing per-SNP record, ordered by study then SNP.
		studyNames := make([]string, 0, len(byStudy))
		for study := range byStudy {
			studyNames = append(studyNames, study)
		}
		sort.Strings(studyNames)
		for _, study := range studyNames {
			bySNP := byStudy[study]
			ids := make([]int64, 0, len(bySNP))
			for id := range bySNP {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				rep.SNPs = append(rep.SNPs, bySNP[id])
			}
		}

		reports = append(reports, rep)
	}
	return reports
}

type studyCandidate struct {
	study string
	rank  float64
	rr    float64
	rec   *domain.CatalogRecord
}

// pickHighest selects the highest-priority study deterministically: rank,
// then total sample size, then publication date, then study name.
func pickHighest(candidates []studyCandidate) studyCandidate {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rank != b.rank {
			return a.rank > b.rank
		}
		as, bs := TotalSamples(a.rec), TotalSamples(b.rec)
		if as != bs {
			return as > bs
		}
		ad, bd := publishedAt(a.rec), publishedAt(b.rec)
		if !ad.Equal(bd) {
			return ad.After(bd)
		}
		return a.study < b.study
	})
	return candidates[0]
}

func publishedAt(rec *domain.CatalogRecord) time.Time {
	if rec.PublishedAt == nil {
		return time.Time{}
	}
	return *rec.PublishedAt
}

// firstRecord returns the record of the lowest SNP id, keeping the rank
// source deterministic.
func firstRecord(bySNP map[int64]domain.SNPRisk) *domain.CatalogRecord {
	var min int64 = math.MaxInt64
	for id := range bySNP {
		if id < min {
			min = id
		}
	}
	return bySNP[min].Record
}

func distinctSNPs(records []*domain.CatalogRecord) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, rec := range records {
		if rec.SNPID == nil || seen[*rec.SNPID] {
			continue
		}
		seen[*rec.SNPID] = true
		ids = append(ids, *rec.SNPID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func recordsBySNP(records []*domain.CatalogRecord) map[int64]*domain.CatalogRecord {
	byID := make(map[int64]*domain.CatalogRecord, len(records))
	for _, rec := range records {
		if rec.SNPID == nil {
			continue
		}
		if _, ok := byID[*rec.SNPID]; !ok {
			byID[*rec.SNPID] = rec
		}
	}
	return byID
}
