package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwas-risk-server/internal/domain"
)

func TestLoadTraitTranslationReader(t *testing.T) {
	table := "eng\ttranslated\n" +
		"Esophageal cancer\tEsophageal cancer (ja)\n" +
		"#\t#\n" +
		"Asthma\tAsthma (ja)\n"

	translation, err := LoadTraitTranslationReader(strings.NewReader(table), quietLogger())
	require.NoError(t, err)

	assert.Len(t, translation, 2)
	assert.Equal(t, "Esophageal cancer (ja)", translation["Esophageal cancer"])
	assert.Equal(t, "Asthma (ja)", translation["Asthma"])
}

func TestLoadCaptureSets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "andme.txt")
	require.NoError(t, os.WriteFile(path, []byte("# capture list\nrs671\n700\n\nnotanid\n"), 0644))

	sets, err := LoadCaptureSets(map[string]string{string(domain.FormatAndme): path}, quietLogger())
	require.NoError(t, err)

	assert.True(t, sets.Has(domain.FormatAndme, 671))
	assert.True(t, sets.Has(domain.FormatAndme, 700))
	assert.False(t, sets.Has(domain.FormatAndme, 999))
	assert.False(t, sets.Has(domain.FormatVCFExomeTruseq, 671), "platforms without a list capture nothing")
}

func TestLoadCaptureSetsMissingFile(t *testing.T) {
	_, err := LoadCaptureSets(map[string]string{"andme": "/nonexistent/capture.txt"}, quietLogger())
	assert.Error(t, err)
}
