// Package convert holds the per-field parsing functions the ingestion
// pipeline runs over raw catalog columns. The sentinel tokens "NR" and "NS"
// and empty text always convert to nil, never to a zero value.
package convert

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// catalogDateLayout is the exact month/day/year format the catalog uses
const catalogDateLayout = "01/02/2006"

// leadingDecimal extracts a decimal-number prefix from otherwise unparseable text
var leadingDecimal = regexp.MustCompile(`^\d*\.\d+`)

// isNull reports whether raw text stands for a missing value
func isNull(text string) bool {
	return text == "" || text == "NR" || text == "NS"
}

// Integer parses an integer field, nil on sentinel or unparseable text
func Integer(text string) *int64 {
	if isNull(text) {
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Float parses a float field. Text that fails a direct parse falls back to
// a leading decimal-number substring before giving up to nil.
func Float(text string) *float64 {
	if isNull(text) {
		return nil
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return &v
	}
	if m := leadingDecimal.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return &v
		}
	}
	return nil
}

// String passes text through, nil on sentinels
func String(text string) *string {
	if isNull(text) {
		return nil
	}
	return &text
}

// StringWithoutSlash replaces "/" with " or ", logging a data-quality note.
// Slashes in study and trait names collide with downstream path handling.
func StringWithoutSlash(text string, log *logrus.Logger) *string {
	if isNull(text) {
		return nil
	}
	if strings.Contains(text, "/") {
		log.WithField("text", text).Warn("Slash in catalog text field")
		text = strings.ReplaceAll(text, "/", " or ")
	}
	return &text
}

// Date parses the catalog's exact date format. Unlike the other converters a
// malformed date is a hard failure: the caller applies the configured
// skip-row or abort policy instead of silently nulling the field.
func Date(text string) (*time.Time, error) {
	if text == "" {
		return nil, nil
	}
	t, err := time.Parse(catalogDateLayout, text)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RsID extracts a single SNP id from free text such as "rs671".
// Multi-SNP records (comma-separated rsIDs) are unsupported and convert to
// nil, as does anything that fails to parse.
func RsID(text string, log *logrus.Logger) *int64 {
	if isNull(text) {
		return nil
	}
	if strings.Contains(text, ",") {
		log.WithField("text", text).Warn("More than one rsID in SNPs field")
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(strings.ReplaceAll(text, "rs", "")), 10, 64)
	if err != nil {
		log.WithField("text", text).Warn("Failed to parse rsID")
		return nil
	}
	return &v
}

// FieldManifest is the ordered field-name manifest the pipeline emits:
// every converted source column plus the derived post-fields.
var FieldManifest = []domain.FieldName{
	{Key: "added", Column: "Date Added to Catalog"},
	{Key: "pubmed_id", Column: "PUBMEDID"},
	{Key: "first_author", Column: "First Author"},
	{Key: "date", Column: "Date"},
	{Key: "journal", Column: "Journal"},
	{Key: "study", Column: "Study"},
	{Key: "trait", Column: "Disease/Trait"},
	{Key: "initial_sample_size", Column: "Initial Sample Size"},
	{Key: "replication_sample_size", Column: "Replication Sample Size"},
	{Key: "region", Column: "Region"},
	{Key: "chr_id", Column: "Chr_id"},
	{Key: "chr_pos", Column: "Chr_pos"},
	{Key: "reported_genes", Column: "Reported Gene(s)"},
	{Key: "mapped_genes", Column: "Mapped_gene"},
	{Key: "upstream_gene", Column: "Upstream_gene_id"},
	{Key: "downstream_gene", Column: "Downstream_gene_id"},
	{Key: "snp_genes", Column: "Snp_gene_ids"},
	{Key: "upstream_gene_distance", Column: "Upstream_gene_distance"},
	{Key: "downstream_gene_distance", Column: "Downstream_gene_distance"},
	{Key: "strongest_snp_risk_allele", Column: "Strongest SNP-Risk Allele"},
	{Key: "snps", Column: "SNPs"},
	{Key: "merged", Column: "Merged"},
	{Key: "snp_id_current", Column: "Snp_id_current"},
	{Key: "context", Column: "Context"},
	{Key: "intergenic", Column: "Intergenic"},
	{Key: "risk_allele_frequency", Column: "Risk Allele Frequency"},
	{Key: "p_value", Column: "p-Value"},
	{Key: "p_value_mlog", Column: "Pvalue_mlog"},
	{Key: "p_value_text", Column: "p-Value (text)"},
	{Key: "or_or_beta", Column: "OR or beta"},
	{Key: "ci_95", Column: "95% CI (text)"},
	{Key: "platform", Column: "Platform [SNPs passing QC]"},
	{Key: "cnv", Column: "CNV"},
	{Key: "risk_allele", Column: "Risk Allele"},
	{Key: "trait_translated", Column: "Disease/Trait (translated)"},
	{Key: "or", Column: "OR"},
}

// PrivateFieldManifest lists the optional private-catalog columns; their
// absence from the source is tolerated, not an error.
var PrivateFieldManifest = []domain.FieldName{
	{Key: "my_added", Column: "Date Added to MyCatalog"},
	{Key: "who_added", Column: "Who Added"},
	{Key: "activated", Column: "Activated"},
	{Key: "population", Column: "Population"},
	{Key: "dtc", Column: "DTC genetic testing companies"},
	{Key: "clinical", Column: "Clinical Channel"},
}
