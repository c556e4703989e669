// Package resolve turns free-text catalog fields into resolved values: the
// strongest-SNP risk allele (with strand correction against a reference SNP
// database) and the odds-ratio/beta-coefficient effect-size disambiguation.
package resolve

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// riskAllelePattern matches catalog text of the shape "rs331615-T"
var riskAllelePattern = regexp.MustCompile(`rs(\d+)-(\S+)`)

// complement maps each base to its reverse-strand counterpart
var complement = map[string]string{"A": "T", "T": "A", "G": "C", "C": "G"}

// RiskAllele is the outcome of resolving a strongest-SNP-risk-allele string.
// A trailing '?' on Allele is a first-class low-confidence marker that
// downstream scoring must treat as weaker evidence.
type RiskAllele struct {
	RsID   int64  // 0 when the text did not parse as rs<digits>-<allele>
	Raw    string // original text, kept when RsID is 0
	Allele string // "" when unresolved
}

// LowConfidence reports whether the allele carries the '?' marker
func (ra RiskAllele) LowConfidence() bool {
	return len(ra.Allele) > 1 && strings.HasSuffix(ra.Allele, "?")
}

// RiskAlleleResolver resolves risk alleles against an optional reference SNP
// store. A nil store is the degraded mode: alleles are accepted as given
// with no strand check.
type RiskAlleleResolver struct {
	ref domain.ReferenceSNPStore
	log *logrus.Logger
}

// NewRiskAlleleResolver creates a resolver; ref may be nil
func NewRiskAlleleResolver(ref domain.ReferenceSNPStore, logger *logrus.Logger) *RiskAlleleResolver {
	return &RiskAlleleResolver{ref: ref, log: logger}
}

// Resolve parses the risk-allele text and, when a reference entry exists,
// verifies the allele against REF/ALT with reverse-strand correction.
// The only silent substitution allowed is the complement of an allele whose
// reference entry carries the RV flag; every other mismatch keeps the
// original allele with a trailing '?'.
func (r *RiskAlleleResolver) Resolve(ctx context.Context, text string) RiskAllele {
	if text == "" || text == "NR" || text == "NS" {
		return RiskAllele{}
	}

	m := riskAllelePattern.FindStringSubmatch(text)
	if m == nil {
		r.log.WithField("text", text).Warn("Failed to parse strongest SNP risk allele")
		return RiskAllele{Raw: text}
	}

	rsID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		r.log.WithField("text", text).Warn("Risk allele rsID overflows")
		return RiskAllele{Raw: text}
	}
	allele := m[2]

	// The catalog itself marks some alleles as unknown.
	if allele == "?" {
		return RiskAllele{RsID: rsID, Allele: allele}
	}

	if _, ok := complement[allele]; !ok {
		r.log.WithField("text", text).Warn("Risk allele is not one of A, T, G, C")
		return RiskAllele{Raw: text}
	}

	if r.ref == nil {
		return RiskAllele{RsID: rsID, Allele: allele}
	}

	entry, err := r.ref.Find(ctx, rsID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.log.WithField("rs", rsID).Warn("rsID is not in the reference SNP database")
			return RiskAllele{RsID: rsID, Allele: allele + "?"}
		}
		// Collaborator unavailable: degrade to the no-strand-check mode.
		r.log.WithError(err).WithField("rs", rsID).Warn("Reference SNP lookup failed, skipping strand check")
		return RiskAllele{RsID: rsID, Allele: allele}
	}

	return RiskAllele{RsID: rsID, Allele: r.strandCheck(rsID, allele, entry)}
}

// strandCheck verifies an allele against one reference entry
func (r *RiskAlleleResolver) strandCheck(rsID int64, allele string, entry *domain.ReferenceSNP) string {
	if allele == entry.Ref || allele == entry.Alt {
		return allele
	}

	rev := complement[allele]
	revFound := false
	for _, a := range entry.Alleles() {
		if a == rev {
			revFound = true
			break
		}
	}

	if entry.IsReverseStrand() && revFound {
		r.log.WithFields(logrus.Fields{
			"rs":      rsID,
			"allele":  allele,
			"flipped": rev,
			"ref":     entry.Ref,
			"alt":     entry.Alt,
		}).Warn("Risk allele flipped to reverse strand")
		return rev
	}

	r.log.WithFields(logrus.Fields{
		"rs":     rsID,
		"allele": allele,
		"ref":    entry.Ref,
		"alt":    entry.Alt,
		"rv":     entry.IsReverseStrand(),
	}).Warn("Risk allele not in REF/ALT, marking low confidence")
	return allele + "?"
}
