package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gwas-risk-server/internal/domain"
)

// CaptureSets maps a platform to the set of rsIDs its assay captures
type CaptureSets map[domain.FileFormat]map[int64]bool

// LoadCaptureSets reads per-platform rsID capture lists (one rsID per line,
// with or without the "rs" prefix). Missing platforms simply have no list;
// their capture flags stay false.
func LoadCaptureSets(paths map[string]string, logger *logrus.Logger) (CaptureSets, error) {
	sets := make(CaptureSets, len(paths))
	for platform, path := range paths {
		set, err := loadRsIDList(path)
		if err != nil {
			return nil, fmt.Errorf("loading capture list for %s: %w", platform, err)
		}
		sets[domain.FileFormat(platform)] = set
		logger.WithFields(logrus.Fields{
			"platform": platform,
			"snps":     len(set),
		}).Info("Platform capture list loaded")
	}
	return sets, nil
}

// Has reports whether a platform's capture list contains the rsID
func (c CaptureSets) Has(format domain.FileFormat, rsID int64) bool {
	return c[format][rsID]
}

func loadRsIDList(path string) (map[int64]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set := make(map[int64]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(line, "rs"), 10, 64)
		if err != nil {
			continue
		}
		set[id] = true
	}
	return set, scanner.Err()
}
