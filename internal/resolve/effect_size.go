package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// ciBracket matches "[<range>]<trailing>"; greedy, so the range group runs to
// the last closing bracket.
var ciBracket = regexp.MustCompile(`\[(.+)\](.*)`)

// ciBracketMalformed retries anchored to the last closing bracket for inputs
// like "[0.006-0.01] ml/min/1.73 m2 decrease]"
var ciBracketMalformed = regexp.MustCompile(`\[(.+)\](.*)\]`)

// rangeSeparators is the bounded set of accepted low/high separators, tried
// in order. The catalog is not consistent about them.
var rangeSeparators = []string{", ", " - ", "- ", " -", " ", "-"}

// ParseCI classifies the 95% CI text of a catalog record. A bracketed
// numeric range with no trailing text reads as an odds-ratio interval; a
// trailing unit/description marks a beta coefficient; anything outside the
// grammar is kept as free-form description only.
func ParseCI(text string, log *logrus.Logger) domain.ConfidenceInterval {
	if text == "" || text == "NR" || text == "NS" {
		return domain.ConfidenceInterval{Kind: domain.CINone}
	}

	m := ciBracket.FindStringSubmatch(text)
	if m == nil {
		return domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: text}
	}

	inner, trailing := m[1], m[2]
	if strings.Contains(inner, "]") {
		// Double-close-bracket malformation; re-anchor to the last bracket.
		if rm := ciBracketMalformed.FindStringSubmatch(text); rm != nil {
			inner, trailing = rm[1], rm[2]
		}
	}

	if inner == "NR" || inner == "NS" {
		if t := strings.TrimLeft(trailing, " "); t != "" {
			return domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: t}
		}
		return domain.ConfidenceInterval{Kind: domain.CINone}
	}

	low, high, ok := splitRange(inner)
	if !ok {
		log.WithField("text", text).Warn("CI text outside the accepted grammar")
		return domain.ConfidenceInterval{Kind: domain.CIFreeText, Text: text}
	}

	if t := strings.TrimLeft(trailing, " "); t != "" {
		return domain.ConfidenceInterval{Kind: domain.CIBeta, Low: low, High: high, Text: t}
	}
	return domain.ConfidenceInterval{Kind: domain.CIOddsRatio, Low: low, High: high}
}

// splitRange parses "lo<sep>hi" with any accepted separator. A leading
// minus sign is a negative low bound, not a separator.
func splitRange(inner string) (float64, float64, bool) {
	negate := false
	if strings.HasPrefix(inner, "-") {
		negate = true
		inner = inner[1:]
	}

	for _, sep := range rangeSeparators {
		parts := strings.SplitN(inner, sep, 2)
		if len(parts) != 2 {
			continue
		}
		low, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if negate {
			low = -low
		}
		return low, high, true
	}
	return 0, 0, false
}

// ClassifyEffect disambiguates the numeric OR-or-beta value using the CI
// classification. CI descriptive text marks a beta coefficient; a bare value
// below 1.0 violates the catalog's OR >= 1.0 convention and is reclassified
// as a suspected beta with a trailing '?' marker.
func ClassifyEffect(value *float64, ci domain.ConfidenceInterval) domain.EffectSize {
	if ci.Text != "" {
		if value == nil {
			return domain.EffectSize{Kind: domain.EffectUnknown}
		}
		return domain.EffectSize{
			Kind:     domain.EffectSuspectedBeta,
			BetaText: "beta:" + formatValue(*value),
		}
	}

	if value == nil {
		return domain.EffectSize{Kind: domain.EffectUnknown}
	}

	if *value < 1.0 {
		return domain.EffectSize{
			Kind:     domain.EffectSuspectedBeta,
			BetaText: "beta:" + formatValue(*value) + "?",
			Suspect:  true,
		}
	}

	return domain.EffectSize{Kind: domain.EffectOddsRatio, OddsRatio: *value}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
