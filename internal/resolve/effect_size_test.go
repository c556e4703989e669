package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwas-risk-server/internal/domain"
)

func TestParseCI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.ConfidenceInterval
	}{
		{"empty", "", domain.ConfidenceInterval{Kind: domain.CINone}},
		{"not reported", "NR", domain.ConfidenceInterval{Kind: domain.CINone}},
		{
			"odds ratio range",
			"[1.02-1.17]",
			domain.ConfidenceInterval{Kind: domain.CIOddsRatio, Low: 1.02, High: 1.17},
		},
		{
			"comma separated range",
			"[1.02, 1.17]",
			domain.ConfidenceInterval{Kind: domain.CIOddsRatio, Low: 1.02, High: 1.17},
		},
		{
			"spaced dash range",
			"[1.02 - 1.17]",
			domain.ConfidenceInterval{Kind: domain.CIOddsRatio, Low: 1.02, High: 1.17},
		},
		{
			"beta with unit text",
			"[0.006-0.01] ml/min/1.73 m2 decrease",
			domain.ConfidenceInterval{Kind: domain.CIBeta, Low: 0.006, High: 0.01, Text: "ml/min/1.73 m2 decrease"},
		},
		{
			"double close bracket",
			"[0.006-0.01] ml/min/1.73 m2 decrease]",
			domain.ConfidenceInterval{Kind: domain.CIBeta, Low: 0.006, High: 0.01, Text: "ml/min/1.73 m2 decrease"},
		},
		{
			"negative low bound",
			"[-0.2-0.4] unit increase",
			domain.ConfidenceInterval{Kind: domain.CIBeta, Low: -0.2, High: 0.4, Text: "unit increase"},
		},
		{
			"bracketed NR",
			"[NR]",
			domain.ConfidenceInterval{Kind: domain.CINone},
		},
		{
			"bracketed NR with unit",
			"[NR] kg/m2",
			domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: "kg/m2"},
		},
		{
			"no brackets at all",
			"0.012 s.d. increase",
			domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: "0.012 s.d. increase"},
		},
		{
			"unsplittable range",
			"[approx 1.2]",
			domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: "[approx 1.2]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCI(tt.text, quietLogger()))
		})
	}
}

func TestParseCIHasInterval(t *testing.T) {
	assert.True(t, ParseCI("[1.02-1.17]", quietLogger()).HasInterval())
	assert.True(t, ParseCI("[0.01-0.02] units", quietLogger()).HasInterval())
	assert.False(t, ParseCI("", quietLogger()).HasInterval())
	assert.False(t, ParseCI("free text", quietLogger()).HasInterval())
}

func TestClassifyEffect(t *testing.T) {
	or135 := 1.35
	beta012 := 0.12
	beta085 := 0.85

	t.Run("plain odds ratio", func(t *testing.T) {
		got := ClassifyEffect(&or135, domain.ConfidenceInterval{Kind: domain.CIOddsRatio, Low: 1.2, High: 1.5})
		assert.Equal(t, domain.EffectSize{Kind: domain.EffectOddsRatio, OddsRatio: 1.35}, got)
	})

	t.Run("beta marked by CI unit text", func(t *testing.T) {
		ci := domain.ConfidenceInterval{Kind: domain.CIBeta, Low: 0.1, High: 0.14, Text: "kg/m2 increase"}
		got := ClassifyEffect(&beta012, ci)
		assert.Equal(t, domain.EffectSuspectedBeta, got.Kind)
		assert.Equal(t, "beta:0.12", got.BetaText)
		assert.False(t, got.Suspect)
	})

	t.Run("value below one with no CI text", func(t *testing.T) {
		got := ClassifyEffect(&beta085, domain.ConfidenceInterval{Kind: domain.CINone})
		assert.Equal(t, domain.EffectSuspectedBeta, got.Kind)
		assert.Equal(t, "beta:0.85?", got.BetaText)
		assert.True(t, got.Suspect)
	})

	t.Run("missing value", func(t *testing.T) {
		got := ClassifyEffect(nil, domain.ConfidenceInterval{Kind: domain.CINone})
		assert.Equal(t, domain.EffectSize{Kind: domain.EffectUnknown}, got)
	})

	t.Run("missing value with CI text", func(t *testing.T) {
		ci := domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: "unit decrease"}
		assert.Equal(t, domain.EffectSize{Kind: domain.EffectUnknown}, ClassifyEffect(nil, ci))
	})
}
