package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gwas-risk-server/internal/domain"
)

// numberGroups matches integer groups with optional thousands separators in
// free-text sample-size descriptions like "1,206 European ancestry cases"
var numberGroups = regexp.MustCompile(`\d[\d,]*`)

// TotalSamples sums every number found in the record's initial and
// replication sample-size texts. Sample sizes in the catalog are prose, not
// numbers, so this extracts what it can; unparseable text counts zero.
func TotalSamples(rec *domain.CatalogRecord) int64 {
	return sampleCount(rec.InitialSampleSize) + sampleCount(rec.ReplicationSampleSize)
}

func sampleCount(text *string) int64 {
	if text == nil {
		return 0
	}
	var total int64
	for _, group := range numberGroups.FindAllString(*text, -1) {
		n, err := strconv.ParseInt(strings.ReplaceAll(group, ",", ""), 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// ReliabilityRank derives the deterministic scalar rank of a study from one
// of its catalog records. Larger sample size, a replication stage, and higher
// significance each increase the rank.
func ReliabilityRank(rec *domain.CatalogRecord) float64 {
	rank := math.Log10(float64(TotalSamples(rec)) + 1)

	if rec.ReplicationSampleSize != nil {
		rank += 1
	}

	if rec.PValueMlog != nil {
		rank += math.Min(*rec.PValueMlog, 50) / 10
	}

	return rank
}
