// Package ingest drives the catalog ingestion pipeline: one pass over raw
// tab-delimited catalog rows through the field converters, the risk-allele
// resolver and the effect-size disambiguator, into an immutable normalized
// snapshot that replaces the previous one atomically.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/convert"
	"github.com/gwas-risk-server/internal/domain"
	"github.com/gwas-risk-server/internal/genecatalog"
	"github.com/gwas-risk-server/internal/resolve"
)

// insertBatchSize bounds how many accepted records are buffered per insert
const insertBatchSize = 1000

// Pipeline is the catalog ingestion pipeline. It owns the snapshot being
// built; readers only ever see the previously activated snapshot until the
// new one is swapped in.
type Pipeline struct {
	genes       *genecatalog.Catalog
	resolver    *resolve.RiskAlleleResolver
	store       domain.CatalogStore
	translation map[string]string
	capture     CaptureSets
	onBadDate   string
	log         *logrus.Logger
}

// NewPipeline wires the pipeline's collaborators
func NewPipeline(
	genes *genecatalog.Catalog,
	resolver *resolve.RiskAlleleResolver,
	store domain.CatalogStore,
	translation map[string]string,
	capture CaptureSets,
	onBadDate string,
	logger *logrus.Logger,
) *Pipeline {
	if onBadDate == "" {
		onBadDate = domain.OnBadDateSkipRow
	}
	return &Pipeline{
		genes:       genes,
		resolver:    resolver,
		store:       store,
		translation: translation,
		capture:     capture,
		onBadDate:   onBadDate,
		log:         logger,
	}
}

// SnapshotFromPath derives the snapshot identity from a catalog file name
// such as "gwascatalog.2012_12_12.txt"; the current day is used when the
// name carries no date.
func SnapshotFromPath(path string) domain.SnapshotInfo {
	parts := strings.Split(filepath.Base(path), ".")
	if len(parts) >= 2 {
		if date, err := time.Parse("2006_01_02", parts[1]); err == nil {
			return domain.SnapshotInfo{ID: parts[1], Date: date, Status: "building"}
		}
	}
	now := time.Now().UTC().Truncate(24 * time.Hour)
	return domain.SnapshotInfo{ID: now.Format("2006_01_02"), Date: now, Status: "building"}
}

// Run executes one full ingestion pass. Rows failing data-quality checks are
// logged and skipped; the snapshot is activated only after the whole pass
// succeeds, so readers never observe a partially-ingested catalog.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, snapshot domain.SnapshotInfo) (*domain.IngestResult, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	if err := p.store.BeginSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("beginning snapshot %s: %w", snapshot.ID, err)
	}

	result := &domain.IngestResult{
		Snapshot:      snapshot,
		Summary:       make(domain.CatalogSummary),
		FieldManifest: convert.FieldManifest,
	}
	traits := make(map[string]bool)
	var batch []*domain.CatalogRecord

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row %d: %w", line, err)
		}

		// Unknown and missing source columns are tolerated, not errors.
		get := func(column string) string {
			i, ok := colIndex[column]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		rec, err := p.convertRow(get)
		if err != nil {
			if p.onBadDate == domain.OnBadDateAbort {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
			p.rejectRow(result, rec, line, err.Error())
			continue
		}

		// Both anchor fields are required before the integrity gate can run.
		if rec.SNPID == nil || rec.StrongestSNPRiskAllele == nil {
			p.rejectRow(result, rec, line, "absence of snps or strongest_snp_risk_allele")
			continue
		}

		resolved := p.resolver.Resolve(ctx, *rec.StrongestSNPRiskAllele)
		if resolved.RsID != *rec.SNPID {
			p.rejectRow(result, rec, line, fmt.Sprintf(
				"snps %d does not match rsID %d from risk allele text", *rec.SNPID, resolved.RsID))
			continue
		}
		rec.RiskAllele = resolved.Allele

		rec.Effect = resolve.ClassifyEffect(rec.RawEffect, rec.CI)

		if rec.Trait != nil {
			traits[*rec.Trait] = true
			if translated, ok := p.translation[*rec.Trait]; ok {
				rec.TraitTranslated = &translated
			}
		}

		rec.IsInTruseq = p.capture.Has(domain.FormatVCFExomeTruseq, *rec.SNPID)
		rec.IsInIonTSeq = p.capture.Has(domain.FormatVCFExomeIonTSeq, *rec.SNPID)
		rec.IsInAndme = p.capture.Has(domain.FormatAndme, *rec.SNPID)

		tallyRecord(result.Summary, rec)
		result.Accepted++

		batch = append(batch, rec)
		if len(batch) >= insertBatchSize {
			if err := p.store.InsertRecords(ctx, snapshot.ID, batch); err != nil {
				return nil, fmt.Errorf("inserting records: %w", err)
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := p.store.InsertRecords(ctx, snapshot.ID, batch); err != nil {
			return nil, fmt.Errorf("inserting records: %w", err)
		}
	}

	if err := p.store.ActivateSnapshot(ctx, snapshot.ID); err != nil {
		return nil, fmt.Errorf("activating snapshot %s: %w", snapshot.ID, err)
	}
	result.Snapshot.Status = "latest"

	for trait := range traits {
		result.Traits = append(result.Traits, trait)
	}
	sort.Strings(result.Traits)
	for _, trait := range result.Traits {
		translated, ok := p.translation[trait]
		if !ok {
			translated = trait
		}
		result.TraitsTranslated = append(result.TraitsTranslated, translated)
	}

	p.log.WithFields(logrus.Fields{
		"snapshot": snapshot.ID,
		"accepted": result.Accepted,
		"rejected": result.Rejected,
		"traits":   len(result.Traits),
	}).Info("Catalog ingestion finished")

	return result, nil
}

func (p *Pipeline) rejectRow(result *domain.IngestResult, rec *domain.CatalogRecord, line int, reason string) {
	rowErr := domain.RowError{Line: line, Reason: reason}
	if rec != nil && rec.PubmedID != nil {
		rowErr.PubmedID = *rec.PubmedID
	}
	result.Rejected++
	result.Rejections = append(result.Rejections, rowErr)
	p.log.WithFields(logrus.Fields{
		"line":      line,
		"pubmed_id": rowErr.PubmedID,
	}).Warn(reason)
}

// convertRow runs every field converter over one raw row. Converter failures
// degrade to nil fields; only a malformed date is returned as an error, and
// the partially converted record comes back with it so the rejection can
// still name the row's pubmed id.
func (p *Pipeline) convertRow(get func(string) string) (*domain.CatalogRecord, error) {
	rec := &domain.CatalogRecord{}

	var dateErr error
	parseDate := func(column string) *time.Time {
		t, err := convert.Date(get(column))
		if err != nil && dateErr == nil {
			dateErr = &domain.BadDateError{Column: column, Text: get(column), Err: err}
		}
		return t
	}

	// Private-catalog columns, usually absent.
	rec.MyAdded = parseDate("Date Added to MyCatalog")
	rec.WhoAdded = convert.String(get("Who Added"))
	rec.Activated = convert.Integer(get("Activated"))
	rec.Population = convert.String(get("Population"))
	rec.DTC = convert.String(get("DTC genetic testing companies"))
	rec.ClinicalChannel = convert.String(get("Clinical Channel"))

	rec.AddedToCatalog = parseDate("Date Added to Catalog")
	rec.PubmedID = convert.Integer(get("PUBMEDID"))
	rec.FirstAuthor = convert.String(get("First Author"))
	rec.PublishedAt = parseDate("Date")
	rec.Journal = convert.String(get("Journal"))
	rec.Study = convert.StringWithoutSlash(get("Study"), p.log)
	rec.Trait = convert.StringWithoutSlash(get("Disease/Trait"), p.log)
	rec.InitialSampleSize = convert.String(get("Initial Sample Size"))
	rec.ReplicationSampleSize = convert.String(get("Replication Sample Size"))
	rec.Region = convert.String(get("Region"))
	rec.ChrID = convert.Integer(get("Chr_id"))
	rec.ChrPos = convert.Integer(get("Chr_pos"))
	rec.ReportedGenes = p.genes.GenesFromSymbols(get("Reported Gene(s)"))
	rec.MappedGenes = p.genes.GenesFromSymbols(get("Mapped_gene"))
	rec.UpstreamGene = p.genes.GeneFromID(get("Upstream_gene_id"))
	rec.DownstreamGene = p.genes.GeneFromID(get("Downstream_gene_id"))
	rec.SNPGenes = p.genes.GenesFromIDs(get("Snp_gene_ids"))
	rec.UpstreamGeneDist = convert.Float(get("Upstream_gene_distance"))
	rec.DownstreamGeneDist = convert.Float(get("Downstream_gene_distance"))
	rec.StrongestSNPRiskAllele = convert.String(get("Strongest SNP-Risk Allele"))
	rec.SNPID = convert.RsID(get("SNPs"), p.log)
	rec.Merged = convert.Integer(get("Merged"))
	rec.SNPIDCurrent = convert.Integer(get("Snp_id_current"))
	rec.Context = convert.String(get("Context"))
	rec.Intergenic = convert.Integer(get("Intergenic"))
	rec.RiskAlleleFrequency = convert.Float(get("Risk Allele Frequency"))
	rec.PValue = convert.Float(get("p-Value"))
	rec.PValueMlog = convert.Float(get("Pvalue_mlog"))
	rec.PValueText = convert.String(get("p-Value (text)"))
	rec.RawEffect = convert.Float(get("OR or beta"))
	rec.CI = resolve.ParseCI(get("95% CI (text)"), p.log)
	rec.Platform = convert.String(get("Platform [SNPs passing QC]"))
	rec.CNV = convert.String(get("CNV"))

	if dateErr != nil {
		return rec, dateErr
	}
	return rec, nil
}

// tallyRecord accumulates the record's scalar fields into the summary.
// Gene-list fields (including the gene distances) and the CI field are
// skipped; their value domains are not tally-safe.
func tallyRecord(summary domain.CatalogSummary, rec *domain.CatalogRecord) {
	summary.Add("my_added", renderTime(rec.MyAdded))
	summary.Add("who_added", renderString(rec.WhoAdded))
	summary.Add("activated", renderInt(rec.Activated))
	summary.Add("population", renderString(rec.Population))
	summary.Add("dtc", renderString(rec.DTC))
	summary.Add("clinical", renderString(rec.ClinicalChannel))

	summary.Add("added", renderTime(rec.AddedToCatalog))
	summary.Add("pubmed_id", renderInt(rec.PubmedID))
	summary.Add("first_author", renderString(rec.FirstAuthor))
	summary.Add("date", renderTime(rec.PublishedAt))
	summary.Add("journal", renderString(rec.Journal))
	summary.Add("study", renderString(rec.Study))
	summary.Add("trait", renderString(rec.Trait))
	summary.Add("initial_sample_size", renderString(rec.InitialSampleSize))
	summary.Add("replication_sample_size", renderString(rec.ReplicationSampleSize))
	summary.Add("region", renderString(rec.Region))
	summary.Add("chr_id", renderInt(rec.ChrID))
	summary.Add("chr_pos", renderInt(rec.ChrPos))
	summary.Add("strongest_snp_risk_allele", renderString(rec.StrongestSNPRiskAllele))
	summary.Add("snps", renderInt(rec.SNPID))
	summary.Add("merged", renderInt(rec.Merged))
	summary.Add("snp_id_current", renderInt(rec.SNPIDCurrent))
	summary.Add("context", renderString(rec.Context))
	summary.Add("intergenic", renderInt(rec.Intergenic))
	summary.Add("risk_allele_frequency", renderFloat(rec.RiskAlleleFrequency))
	summary.Add("p_value", renderFloat(rec.PValue))
	summary.Add("p_value_mlog", renderFloat(rec.PValueMlog))
	summary.Add("p_value_text", renderString(rec.PValueText))
	summary.Add("platform", renderString(rec.Platform))
	summary.Add("cnv", renderString(rec.CNV))

	summary.Add("risk_allele", rec.RiskAllele)
	summary.Add("trait_translated", renderString(rec.TraitTranslated))
	summary.Add("or", renderEffect(rec.Effect))

	if rec.Effect.Kind == domain.EffectOddsRatio {
		summary.Add("or_or_beta", renderFloat(rec.RawEffect))
	} else {
		summary.Add("or_or_beta", "NA")
	}
}

func renderString(v *string) string {
	if v == nil {
		return "NA"
	}
	return *v
}

func renderInt(v *int64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatInt(*v, 10)
}

func renderFloat(v *float64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func renderTime(v *time.Time) string {
	if v == nil {
		return "NA"
	}
	return v.Format("2006-01-02")
}

func renderEffect(e domain.EffectSize) string {
	switch e.Kind {
	case domain.EffectOddsRatio:
		return strconv.FormatFloat(e.OddsRatio, 'g', -1, 64)
	case domain.EffectSuspectedBeta:
		return e.BetaText
	}
	return "NA"
}
