package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Core Enums and Types

// FileFormat identifies the genotyping platform a user genome file came from
type FileFormat string

const (
	FormatVCFWholeGenome  FileFormat = "vcf_whole_genome"
	FormatVCFExomeTruseq  FileFormat = "vcf_exome_truseq"
	FormatVCFExomeIonTSeq FileFormat = "vcf_exome_iontargetseq"
	FormatAndme           FileFormat = "andme"
)

// EffectKind tags how a reported effect-size value is to be interpreted
type EffectKind string

const (
	EffectOddsRatio     EffectKind = "ODDS_RATIO"
	EffectSuspectedBeta EffectKind = "SUSPECTED_BETA"
	EffectUnknown       EffectKind = "UNKNOWN"
)

// CIKind classifies the confidence-interval text attached to an effect size
type CIKind string

const (
	CINone      CIKind = "NONE"       // empty or NR/NS placeholder
	CIOddsRatio CIKind = "ODDS_RATIO" // bracketed numeric range, no trailing text
	CIBeta      CIKind = "BETA"       // bracketed range followed by a unit/description
	CIFreeText  CIKind = "FREE_TEXT"  // no bracketed range, description only
)

// EffectSize is the disambiguated effect-size measure of a catalog record.
// Exactly one interpretation applies, selected by Kind.
type EffectSize struct {
	Kind      EffectKind `json:"kind"`
	OddsRatio float64    `json:"odds_ratio,omitempty"`
	BetaText  string     `json:"beta_text,omitempty"` // literal form, e.g. "beta:0.85?"
	Suspect   bool       `json:"suspect,omitempty"`   // reported OR below 1.0, reclassified as beta
}

// ConfidenceInterval is the parsed 95% CI field of a catalog record
type ConfidenceInterval struct {
	Kind CIKind  `json:"kind"`
	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`
	Text string  `json:"text,omitempty"` // unit/description for beta, free text otherwise
}

// HasInterval reports whether a numeric range was parsed out of the CI text
func (ci ConfidenceInterval) HasInterval() bool {
	return ci.Kind == CIOddsRatio || ci.Kind == CIBeta
}

// GeneAnnotation cross-references a gene symbol with Entrez and OMIM ids.
// Any of the three may be unresolved; partial information is kept rather
// than dropping the owning record.
type GeneAnnotation struct {
	Symbol   *string `json:"gene_symbol"`
	EntrezID *int64  `json:"entrez_gene_id"`
	OMIMID   *string `json:"omim_gene_id"`
}

// ReferenceSNP is one entry of the reference SNP database (dbSNP)
type ReferenceSNP struct {
	RsID int64  `json:"rs"`
	Ref  string `json:"ref"`  // comma-separated reference allele(s)
	Alt  string `json:"alt"`  // comma-separated alternative allele(s)
	Info string `json:"info"` // semicolon-delimited info flags
}

// IsReverseStrand reports whether the entry carries the reverse-strand flag
func (s *ReferenceSNP) IsReverseStrand() bool {
	return strings.Contains(s.Info, "RV")
}

// Alleles returns every REF and ALT allele as a flat list
func (s *ReferenceSNP) Alleles() []string {
	return append(strings.Split(s.Ref, ","), strings.Split(s.Alt, ",")...)
}

// CatalogRecord is one normalized study-trait-SNP association.
// Unparseable optional fields are nil, never zero values. A record is
// persisted only when its SNPID matches the rsID re-derived from
// StrongestSNPRiskAllele.
type CatalogRecord struct {
	AddedToCatalog         *time.Time         `json:"added"`
	PubmedID               *int64             `json:"pubmed_id"`
	FirstAuthor            *string            `json:"first_author"`
	PublishedAt            *time.Time         `json:"date"`
	Journal                *string            `json:"journal"`
	Study                  *string            `json:"study"`
	Trait                  *string            `json:"trait"`
	TraitTranslated        *string            `json:"trait_translated"`
	InitialSampleSize      *string            `json:"initial_sample_size"`
	ReplicationSampleSize  *string            `json:"replication_sample_size"`
	Region                 *string            `json:"region"`
	ChrID                  *int64             `json:"chr_id"`
	ChrPos                 *int64             `json:"chr_pos"`
	ReportedGenes          []GeneAnnotation   `json:"reported_genes"`
	MappedGenes            []GeneAnnotation   `json:"mapped_genes"`
	UpstreamGene           *GeneAnnotation    `json:"upstream_gene"`
	DownstreamGene         *GeneAnnotation    `json:"downstream_gene"`
	SNPGenes               []GeneAnnotation   `json:"snp_genes"`
	UpstreamGeneDist       *float64           `json:"upstream_gene_distance"`
	DownstreamGeneDist     *float64           `json:"downstream_gene_distance"`
	StrongestSNPRiskAllele *string            `json:"strongest_snp_risk_allele"`
	SNPID                  *int64             `json:"snps"`
	Merged                 *int64             `json:"merged"`
	SNPIDCurrent           *int64             `json:"snp_id_current"`
	Context                *string            `json:"context"`
	Intergenic             *int64             `json:"intergenic"`
	RiskAlleleFrequency    *float64           `json:"risk_allele_frequency"`
	PValue                 *float64           `json:"p_value"`
	PValueMlog             *float64           `json:"p_value_mlog"`
	PValueText             *string            `json:"p_value_text"`
	RawEffect              *float64           `json:"or_or_beta"` // numeric OR-or-beta before disambiguation
	CI                     ConfidenceInterval `json:"ci_95"`
	Platform               *string            `json:"platform"`
	CNV                    *string            `json:"cnv"`

	// Optional private-catalog columns; absent in the public catalog.
	MyAdded         *time.Time `json:"my_added,omitempty"`
	WhoAdded        *string    `json:"who_added,omitempty"`
	Activated       *int64     `json:"activated,omitempty"`
	Population      *string    `json:"population,omitempty"`
	DTC             *string    `json:"dtc,omitempty"`
	ClinicalChannel *string    `json:"clinical,omitempty"`

	// Derived during ingestion.
	RiskAllele string     `json:"risk_allele"` // may carry a trailing '?' low-confidence marker
	Effect     EffectSize `json:"effect"`

	// Platform capture flags, stamped from per-platform capture lists.
	IsInTruseq  bool `json:"is_in_truseq"`
	IsInIonTSeq bool `json:"is_in_iontargetseq"`
	IsInAndme   bool `json:"is_in_andme"`
}

// PubmedLink returns the PubMed URL for the record's study, or "" without a pubmed id
func (r *CatalogRecord) PubmedLink() string {
	if r.PubmedID == nil {
		return ""
	}
	return fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pubmed/%d", *r.PubmedID)
}

// AssayedBy reports whether the record's SNP is captured by the given platform.
// The whole-genome platform captures everything by definition.
func (r *CatalogRecord) AssayedBy(format FileFormat) bool {
	switch format {
	case FormatVCFWholeGenome:
		return true
	case FormatVCFExomeTruseq:
		return r.IsInTruseq
	case FormatVCFExomeIonTSeq:
		return r.IsInIonTSeq
	case FormatAndme:
		return r.IsInAndme
	}
	return false
}

// SnapshotInfo identifies one immutable normalized-catalog snapshot
type SnapshotInfo struct {
	ID     string    `json:"id"` // e.g. "2012_12_12", taken from the source file name
	Date   time.Time `json:"date"`
	Status string    `json:"status"` // "building" or "latest"
}

// CatalogSummary maps field name -> rendered field value -> occurrence count.
// Gene-list and CI fields are excluded; they are not tally-safe scalar domains.
type CatalogSummary map[string]map[string]int

// Add increments the tally for one field value
func (s CatalogSummary) Add(field, value string) {
	values, ok := s[field]
	if !ok {
		values = make(map[string]int)
		s[field] = values
	}
	values[value]++
}

// TraitInfo pairs a trait name with its translated form
type TraitInfo struct {
	Name       string `json:"name"`
	Translated string `json:"translated,omitempty"`
}

// FieldName pairs a record field key with its source column label
type FieldName struct {
	Key    string `json:"key"`
	Column string `json:"column"`
}

// IngestResult reports the outcome of one full ingestion pass
type IngestResult struct {
	Snapshot         SnapshotInfo   `json:"snapshot"`
	Accepted         int            `json:"accepted"`
	Rejected         int            `json:"rejected"`
	Summary          CatalogSummary `json:"summary"`
	FieldManifest    []FieldName    `json:"field_manifest"`
	Traits           []string       `json:"traits"`
	TraitsTranslated []string       `json:"traits_translated"`
	Rejections       []RowError     `json:"rejections"`
}

// Scoring Models

// SNPRisk is the per-SNP risk contribution of one catalog record for one user
type SNPRisk struct {
	SNPID         int64          `json:"snp"`
	Study         string         `json:"study"`
	Genotype      string         `json:"genotype"`
	Zygosity      int            `json:"zygosity"`
	RelativeRisk  float64        `json:"rr"` // 1.0 when the effect is not a trusted OR
	Effect        EffectSize     `json:"effect"`
	LowConfidence bool           `json:"low_confidence"` // risk allele carried a '?' marker
	Record        *CatalogRecord `json:"-"`
}

// StudyRisk aggregates the per-SNP contributions of one (trait, study) pair
type StudyRisk struct {
	Study        string  `json:"study"`
	Rank         float64 `json:"rank"`
	RelativeRisk float64 `json:"rr"`
}

// TraitRiskReport is the final per-trait entry of a user's risk report.
// A report set is replaced wholesale on recompute, never merged.
type TraitRiskReport struct {
	Trait           string    `json:"trait"`
	TraitTranslated string    `json:"trait_translated,omitempty"`
	HighestStudy    string    `json:"highest"`
	Rank            float64   `json:"rank"`
	RelativeRisk    float64   `json:"rr"`
	PubmedLink      string    `json:"pubmed_link,omitempty"`
	SNPs            []SNPRisk `json:"studies"` // every contributing per-SNP record, ordered
}

// CoverageStats summarizes how well the catalog covers one user's platform
type CoverageStats struct {
	NStudies   int `json:"n_studies"` // deduplicated by pubmed id
	NUniqueSNP int `json:"n_unique_snps"`
	CoverRate  int `json:"catalog_cover_rate_for_this_population"` // percent
}

// UserFileInfo is the registry entry for one uploaded user genome file
type UserFileInfo struct {
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	FileUUID   uuid.UUID  `json:"file_uuid"`
	FileFormat FileFormat `json:"file_format"`
	Population string     `json:"population"`
	ReportedAt *time.Time `json:"riskreport,omitempty"` // last risk-report computation
	NStudies   int        `json:"n_studies"`
	CoverRate  int        `json:"catalog_cover_rate_for_this_population"`
}
