package genecatalog

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geneTable = "# Mim Number\tType\tGene IDs\tApproved Gene Symbols\n" +
	"100650\tgene\t217\tALDH2\n" +
	"190180\tgene\t7040\tTGFB1\n" +
	"114480\tphenotype\t\t\n" +
	"603688\tgene/phenotype\t3953\tLEPR\n" +
	"102579\tmoved/removed\t\t\n"

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c, err := LoadReader(strings.NewReader(geneTable), logger)
	require.NoError(t, err)
	return c
}

func TestLoadReaderIndexesGeneRowsOnly(t *testing.T) {
	c := loadTestCatalog(t)

	ann, ok := c.BySymbol("ALDH2")
	require.True(t, ok)
	require.NotNil(t, ann.EntrezID)
	assert.Equal(t, int64(217), *ann.EntrezID)
	require.NotNil(t, ann.OMIMID)
	assert.Equal(t, "100650", *ann.OMIMID)

	// gene/phenotype rows count as genes
	_, ok = c.BySymbol("LEPR")
	assert.True(t, ok)

	// phenotype-only and removed rows do not
	_, ok = c.ByEntrezID(114480)
	assert.False(t, ok)
}

func TestGenesFromSymbols(t *testing.T) {
	c := loadTestCatalog(t)

	t.Run("resolved and unresolved mixed", func(t *testing.T) {
		genes := c.GenesFromSymbols("ALDH2, NOTAGENE")
		require.Len(t, genes, 2)
		assert.Equal(t, "ALDH2", *genes[0].Symbol)
		assert.NotNil(t, genes[0].EntrezID)
		assert.Equal(t, "NOTAGENE", *genes[1].Symbol)
		assert.Nil(t, genes[1].EntrezID)
	})

	t.Run("semicolon separated", func(t *testing.T) {
		genes := c.GenesFromSymbols("ALDH2;TGFB1")
		assert.Len(t, genes, 2)
	})

	t.Run("intergenic sentinel", func(t *testing.T) {
		assert.Nil(t, c.GenesFromSymbols("Intergenic"))
	})

	t.Run("missing value sentinels", func(t *testing.T) {
		assert.Nil(t, c.GenesFromSymbols(""))
		assert.Nil(t, c.GenesFromSymbols("NR"))
	})
}

func TestGeneFromID(t *testing.T) {
	c := loadTestCatalog(t)

	known := c.GeneFromID("217")
	require.NotNil(t, known)
	assert.Equal(t, "ALDH2", *known.Symbol)

	unknown := c.GeneFromID("424242")
	require.NotNil(t, unknown)
	assert.Nil(t, unknown.Symbol)
	assert.Equal(t, int64(424242), *unknown.EntrezID)

	assert.Nil(t, c.GeneFromID(""))
	assert.Nil(t, c.GeneFromID("notanumber"))
}

func TestGenesFromIDs(t *testing.T) {
	c := loadTestCatalog(t)

	genes := c.GenesFromIDs("217;7040")
	require.Len(t, genes, 2)
	assert.Equal(t, "ALDH2", *genes[0].Symbol)
	assert.Equal(t, "TGFB1", *genes[1].Symbol)

	assert.Nil(t, c.GenesFromIDs("NS"))
}
