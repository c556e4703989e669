package genecatalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// geneRow mirrors one line of the mim2gene reference table
type geneRow struct {
	MimNumber       string `csv:"# Mim Number"`
	Type            string `csv:"Type"`
	GeneIDs         string `csv:"Gene IDs"`
	ApprovedSymbols string `csv:"Approved Gene Symbols"`
}

// Catalog is the bidirectional gene-symbol / Entrez-id lookup, built once
// from a mim2gene-style reference table and read-only afterwards.
type Catalog struct {
	bySymbol map[string]domain.GeneAnnotation
	byEntrez map[int64]domain.GeneAnnotation
	log      *logrus.Logger
}

// geneListSeparators matches the delimiters found in catalog gene-list fields
var geneListSeparators = regexp.MustCompile(`,|;| - | `)

// Load builds a Catalog from a tab-delimited mim2gene file
func Load(path string, logger *logrus.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gene table: %w", err)
	}
	defer f.Close()

	return LoadReader(f, logger)
}

// LoadReader builds a Catalog from tab-delimited reference data.
// Only rows whose type contains "gene" are indexed.
func LoadReader(r io.Reader, logger *logrus.Logger) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true

	var rows []*geneRow
	if err := gocsv.UnmarshalDecoder(gocsv.NewSimpleDecoderFromCSVReader(reader), &rows); err != nil {
		return nil, fmt.Errorf("parsing gene table: %w", err)
	}

	c := &Catalog{
		bySymbol: make(map[string]domain.GeneAnnotation),
		byEntrez: make(map[int64]domain.GeneAnnotation),
		log:      logger,
	}

	for _, row := range rows {
		if !strings.Contains(strings.ToLower(row.Type), "gene") {
			continue
		}

		symbol := strings.TrimSpace(row.ApprovedSymbols)
		omim := strings.TrimSpace(row.MimNumber)

		ann := domain.GeneAnnotation{}
		if symbol != "" {
			ann.Symbol = &symbol
		}
		if omim != "" {
			ann.OMIMID = &omim
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(row.GeneIDs), 10, 64); err == nil {
			ann.EntrezID = &id
			c.byEntrez[id] = ann
		}
		if symbol != "" {
			c.bySymbol[symbol] = ann
		}
	}

	logger.WithFields(logrus.Fields{
		"symbols":    len(c.bySymbol),
		"entrez_ids": len(c.byEntrez),
	}).Info("Gene catalog loaded")

	return c, nil
}

// BySymbol returns the annotation for a gene symbol
func (c *Catalog) BySymbol(symbol string) (domain.GeneAnnotation, bool) {
	ann, ok := c.bySymbol[symbol]
	return ann, ok
}

// ByEntrezID returns the annotation for an Entrez gene id
func (c *Catalog) ByEntrezID(id int64) (domain.GeneAnnotation, bool) {
	ann, ok := c.byEntrez[id]
	return ann, ok
}

// GenesFromSymbols converts a free-text gene-symbol list into annotations.
// Unresolved symbols are retained with null cross-reference ids.
func (c *Catalog) GenesFromSymbols(text string) []domain.GeneAnnotation {
	if text == "" || text == "NR" || text == "NS" || text == "Intergenic" {
		return nil
	}

	var result []domain.GeneAnnotation
	for _, token := range geneListSeparators.Split(text, -1) {
		symbol := strings.TrimSpace(token)
		if symbol == "" {
			continue
		}

		if ann, ok := c.bySymbol[symbol]; ok {
			result = append(result, ann)
			continue
		}

		s := symbol
		result = append(result, domain.GeneAnnotation{Symbol: &s})
	}
	return result
}

// GeneFromID converts a single Entrez gene id into an annotation.
// An id missing from the reference keeps the id with a null symbol.
func (c *Catalog) GeneFromID(text string) *domain.GeneAnnotation {
	if text == "" || text == "NR" || text == "NS" {
		return nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		c.log.WithField("text", text).Warn("Unparseable Entrez gene id")
		return nil
	}

	if ann, ok := c.byEntrez[id]; ok {
		return &ann
	}
	return &domain.GeneAnnotation{EntrezID: &id}
}

// GenesFromIDs converts a semicolon-separated Entrez id list into annotations
func (c *Catalog) GenesFromIDs(text string) []domain.GeneAnnotation {
	if text == "" || text == "NR" || text == "NS" {
		return nil
	}

	var result []domain.GeneAnnotation
	for _, token := range strings.Split(text, ";") {
		if ann := c.GeneFromID(strings.TrimSpace(token)); ann != nil {
			result = append(result, *ann)
		}
	}
	return result
}
