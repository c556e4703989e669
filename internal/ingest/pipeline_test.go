package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwas-risk-server/internal/domain"
	"github.com/gwas-risk-server/internal/genecatalog"
	"github.com/gwas-risk-server/internal/resolve"
	"github.com/gwas-risk-server/internal/store"
)

const catalogHeader = "Date Added to Catalog\tPUBMEDID\tFirst Author\tDate\tJournal\tStudy\t" +
	"Disease/Trait\tInitial Sample Size\tReplication Sample Size\tReported Gene(s)\t" +
	"Strongest SNP-Risk Allele\tSNPs\tRisk Allele Frequency\tp-Value\tPvalue_mlog\t" +
	"OR or beta\t95% CI (text)"

func catalogRow(cols ...string) string {
	return strings.Join(cols, "\t")
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testGenes(t *testing.T) *genecatalog.Catalog {
	t.Helper()
	table := "# Mim Number\tType\tGene IDs\tApproved Gene Symbols\n" +
		"100650\tgene\t217\tALDH2\n"
	c, err := genecatalog.LoadReader(strings.NewReader(table), quietLogger())
	require.NoError(t, err)
	return c
}

func testPipeline(t *testing.T, catalogStore domain.CatalogStore, onBadDate string) *Pipeline {
	t.Helper()
	ref := store.NewMemRefSNPStore(
		domain.ReferenceSNP{RsID: 671, Ref: "G", Alt: "A", Info: "dbSNPBuildID=52"},
		domain.ReferenceSNP{RsID: 700, Ref: "A", Alt: "G", Info: ""},
	)
	return NewPipeline(
		testGenes(t),
		resolve.NewRiskAlleleResolver(ref, quietLogger()),
		catalogStore,
		map[string]string{"Esophageal cancer": "Esophageal cancer (ja)"},
		CaptureSets{domain.FormatAndme: {671: true}},
		onBadDate,
		quietLogger(),
	)
}

func TestPipelineRun(t *testing.T) {
	input := strings.Join([]string{
		catalogHeader,
		// Accepted: odds-ratio study, allele matches ALT of rs671.
		catalogRow("06/01/2012", "12345", "Smith JR", "05/15/2012", "Nat Genet",
			"Genome-wide study of esophageal cancer", "Esophageal cancer",
			"1,000 cases, 2,000 controls", "500 cases", "ALDH2",
			"rs671-A", "rs671", "0.24", "2E-26", "25.7", "1.35", "[1.2-1.5]"),
		// Rejected: rsID in the risk-allele text disagrees with the SNPs field.
		catalogRow("06/01/2012", "12346", "Doe A", "04/02/2012", "PLoS Genet",
			"Height study", "Height", "5,000 individuals", "", "",
			"rs999-T", "rs100", "", "1E-8", "8.0", "1.10", "[1.05-1.15]"),
		// Rejected: no risk-allele text at all.
		catalogRow("06/01/2012", "12347", "Roe B", "03/10/2012", "Hum Mol Genet",
			"Weight study", "Body weight", "2,000 individuals", "", "",
			"", "rs671", "", "1E-9", "9.0", "1.20", ""),
		// Accepted: beta coefficient marked by CI unit text.
		catalogRow("06/01/2012", "12348", "Poe C", "02/20/2012", "Nat Genet",
			"BMI study", "Body mass index", "10,000 individuals", "3,000 individuals", "",
			"rs700-A", "rs700", "0.41", "3E-15", "14.5", "0.12", "[0.1-0.14] kg/m2 increase"),
	}, "\n")

	catalogStore := store.NewMemCatalogStore()
	p := testPipeline(t, catalogStore, "")
	ctx := context.Background()

	result, err := p.Run(ctx, strings.NewReader(input), domain.SnapshotInfo{ID: "2012_06_01"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Rejected)
	require.Len(t, result.Rejections, 2)
	assert.Equal(t, int64(12346), result.Rejections[0].PubmedID)
	assert.Equal(t, 3, result.Rejections[0].Line)

	assert.Equal(t, []string{"Body mass index", "Esophageal cancer"}, result.Traits)
	assert.Equal(t, []string{"Body mass index", "Esophageal cancer (ja)"}, result.TraitsTranslated)

	// The snapshot went live and holds exactly the accepted records.
	active, err := catalogStore.ActiveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2012_06_01", active.ID)

	records, err := catalogStore.FindByPopulation(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byTrait := map[string]*domain.CatalogRecord{}
	for _, rec := range records {
		byTrait[*rec.Trait] = rec
	}

	cancer := byTrait["Esophageal cancer"]
	require.NotNil(t, cancer)
	assert.Equal(t, "A", cancer.RiskAllele)
	assert.Equal(t, domain.EffectOddsRatio, cancer.Effect.Kind)
	assert.Equal(t, 1.35, cancer.Effect.OddsRatio)
	require.NotNil(t, cancer.TraitTranslated)
	assert.Equal(t, "Esophageal cancer (ja)", *cancer.TraitTranslated)
	assert.True(t, cancer.IsInAndme)
	assert.False(t, cancer.IsInTruseq)
	require.Len(t, cancer.ReportedGenes, 1)
	assert.Equal(t, "ALDH2", *cancer.ReportedGenes[0].Symbol)

	bmi := byTrait["Body mass index"]
	require.NotNil(t, bmi)
	assert.Equal(t, domain.EffectSuspectedBeta, bmi.Effect.Kind)
	assert.Equal(t, "beta:0.12", bmi.Effect.BetaText)
	assert.False(t, bmi.IsInAndme)
}

func TestPipelineSummaryTallies(t *testing.T) {
	input := strings.Join([]string{
		catalogHeader,
		catalogRow("06/01/2012", "12345", "Smith JR", "05/15/2012", "Nat Genet",
			"Genome-wide study of esophageal cancer", "Esophageal cancer",
			"1,000 cases", "", "", "rs671-A", "rs671", "0.24", "2E-26", "25.7", "1.35", "[1.2-1.5]"),
		catalogRow("06/01/2012", "12348", "Poe C", "02/20/2012", "Nat Genet",
			"BMI study", "Body mass index", "10,000 individuals", "", "",
			"rs700-A", "rs700", "", "3E-15", "14.5", "0.12", "[0.1-0.14] kg/m2 increase"),
	}, "\n")

	p := testPipeline(t, store.NewMemCatalogStore(), "")
	result, err := p.Run(context.Background(), strings.NewReader(input), domain.SnapshotInfo{ID: "s1"})
	require.NoError(t, err)

	summary := result.Summary
	assert.Equal(t, 2, summary["journal"]["Nat Genet"])
	assert.Equal(t, 1, summary["trait"]["Esophageal cancer"])
	assert.Equal(t, 1, summary["or"]["1.35"])
	assert.Equal(t, 1, summary["or"]["beta:0.12"])
	assert.Equal(t, 1, summary["or_or_beta"]["1.35"])
	assert.Equal(t, 1, summary["or_or_beta"]["NA"], "beta values stay out of the OR tally")
	assert.Equal(t, 1, summary["risk_allele_frequency"]["NA"])

	// Gene lists and CI text are not tally-safe.
	assert.NotContains(t, summary, "reported_genes")
	assert.NotContains(t, summary, "ci_95")
}

func TestPipelineBadDatePolicies(t *testing.T) {
	input := strings.Join([]string{
		catalogHeader,
		catalogRow("06/01/2012", "12349", "Noe D", "13/45/2012", "Nat Genet",
			"Broken date study", "Asthma", "1,000 cases", "", "",
			"rs671-A", "rs671", "", "1E-10", "10.0", "1.25", ""),
	}, "\n")

	t.Run("skip row", func(t *testing.T) {
		p := testPipeline(t, store.NewMemCatalogStore(), domain.OnBadDateSkipRow)
		result, err := p.Run(context.Background(), strings.NewReader(input), domain.SnapshotInfo{ID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Accepted)
		assert.Equal(t, 1, result.Rejected)
		assert.Equal(t, int64(12349), result.Rejections[0].PubmedID)
	})

	t.Run("abort", func(t *testing.T) {
		p := testPipeline(t, store.NewMemCatalogStore(), domain.OnBadDateAbort)
		_, err := p.Run(context.Background(), strings.NewReader(input), domain.SnapshotInfo{ID: "s1"})
		require.Error(t, err)
		var badDate *domain.BadDateError
		assert.ErrorAs(t, err, &badDate)
	})
}

func TestPipelineSnapshotSwap(t *testing.T) {
	input := strings.Join([]string{
		catalogHeader,
		catalogRow("06/01/2012", "12345", "Smith JR", "05/15/2012", "Nat Genet",
			"Study", "Esophageal cancer", "1,000 cases", "", "",
			"rs671-A", "rs671", "", "2E-26", "25.7", "1.35", ""),
	}, "\n")

	catalogStore := store.NewMemCatalogStore()
	p := testPipeline(t, catalogStore, "")
	ctx := context.Background()

	_, err := p.Run(ctx, strings.NewReader(input), domain.SnapshotInfo{ID: "2012_05_01"})
	require.NoError(t, err)
	_, err = p.Run(ctx, strings.NewReader(input), domain.SnapshotInfo{ID: "2012_06_01"})
	require.NoError(t, err)

	active, err := catalogStore.ActiveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2012_06_01", active.ID)
}

func TestPipelineRunIsRepeatable(t *testing.T) {
	input := strings.Join([]string{
		catalogHeader,
		catalogRow("06/01/2012", "12345", "Smith JR", "05/15/2012", "Nat Genet",
			"Genome-wide study of esophageal cancer", "Esophageal cancer",
			"1,000 cases, 2,000 controls", "500 cases", "ALDH2",
			"rs671-A", "rs671", "0.24", "2E-26", "25.7", "1.35", "[1.2-1.5]"),
		catalogRow("06/01/2012", "12346", "Doe A", "04/02/2012", "PLoS Genet",
			"Height study", "Height", "5,000 individuals", "", "",
			"rs999-T", "rs100", "", "1E-8", "8.0", "1.10", "[1.05-1.15]"),
		catalogRow("06/01/2012", "12348", "Poe C", "02/20/2012", "Nat Genet",
			"BMI study", "Body mass index", "10,000 individuals", "", "",
			"rs700-A", "rs700", "", "3E-15", "14.5", "0.12", "[0.1-0.14] kg/m2 increase"),
	}, "\n")
	ctx := context.Background()

	run := func() *domain.IngestResult {
		p := testPipeline(t, store.NewMemCatalogStore(), "")
		result, err := p.Run(ctx, strings.NewReader(input), domain.SnapshotInfo{ID: "s1"})
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.Accepted, second.Accepted)
	assert.Equal(t, first.Rejected, second.Rejected)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Traits, second.Traits)
	assert.Equal(t, first.TraitsTranslated, second.TraitsTranslated)
}

func TestSnapshotFromPath(t *testing.T) {
	info := SnapshotFromPath("/data/gwascatalog.2012_12_12.txt")
	assert.Equal(t, "2012_12_12", info.ID)
	assert.Equal(t, 2012, info.Date.Year())

	// A name without a date falls back to today.
	fallback := SnapshotFromPath("gwascatalog.txt")
	assert.NotEmpty(t, fallback.ID)
	assert.False(t, fallback.Date.IsZero())
}
