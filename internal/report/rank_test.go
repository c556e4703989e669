package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwas-risk-server/internal/domain"
)

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }

func TestTotalSamples(t *testing.T) {
	tests := []struct {
		name        string
		initial     *string
		replication *string
		want        int64
	}{
		{
			"cases and controls",
			strPtr("1,206 European ancestry cases, 2,000 controls"),
			nil,
			3206,
		},
		{
			"initial plus replication",
			strPtr("5,000 individuals"),
			strPtr("1,500 individuals"),
			6500,
		},
		{"prose without numbers", strPtr("European ancestry individuals"), nil, 0},
		{"both missing", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &domain.CatalogRecord{
				InitialSampleSize:     tt.initial,
				ReplicationSampleSize: tt.replication,
			}
			assert.Equal(t, tt.want, TotalSamples(rec))
		})
	}
}

func TestReliabilityRank(t *testing.T) {
	base := &domain.CatalogRecord{
		InitialSampleSize: strPtr("999 cases"),
		PValueMlog:        floatPtr(20),
	}
	// log10(1000) + mlog/10
	assert.InDelta(t, 3+2, ReliabilityRank(base), 1e-9)

	replicated := &domain.CatalogRecord{
		InitialSampleSize:     strPtr("999 cases"),
		ReplicationSampleSize: strPtr("0 extra"),
		PValueMlog:            floatPtr(20),
	}
	assert.InDelta(t, 3+1+2, ReliabilityRank(replicated), 1e-9)

	// The significance contribution is capped.
	capped := &domain.CatalogRecord{PValueMlog: floatPtr(300)}
	assert.InDelta(t, 5, ReliabilityRank(capped), 1e-9)

	empty := &domain.CatalogRecord{}
	assert.Equal(t, math.Log10(1), ReliabilityRank(empty))
}
