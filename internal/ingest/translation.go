package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// translationRow mirrors one line of the trait-translation table
type translationRow struct {
	English    string `csv:"eng"`
	Translated string `csv:"translated"`
}

// LoadTraitTranslation reads the tab-delimited {english trait, translated
// trait} table. A literal "#" sentinel row is ignored.
func LoadTraitTranslation(path string, logger *logrus.Logger) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trait translation table: %w", err)
	}
	defer f.Close()

	return LoadTraitTranslationReader(f, logger)
}

// LoadTraitTranslationReader reads the translation table from a reader
func LoadTraitTranslationReader(r io.Reader, logger *logrus.Logger) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true

	var rows []*translationRow
	if err := gocsv.UnmarshalDecoder(gocsv.NewSimpleDecoderFromCSVReader(reader), &rows); err != nil {
		return nil, fmt.Errorf("parsing trait translation table: %w", err)
	}

	translation := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.English == "#" {
			continue
		}
		translation[row.English] = row.Translated
	}

	logger.WithField("traits", len(translation)).Info("Trait translation table loaded")
	return translation, nil
}
