// Package ranking loads the top-sites list ("rank,domain" per line).
package ranking

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"
	"golang.org/x/net/idna"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Load reads the first threshold records of the ranking file at path.
func Load(path string, threshold int, logger log.Interface) ([]models.DomainRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: input file: %v", config.ErrInvalid, err)
	}
	defer f.Close()
	return Parse(f, threshold, logger)
}

// Parse reads at most threshold records from r. A file shorter than threshold
// is not an error.
func Parse(r io.Reader, threshold int, logger log.Interface) ([]models.DomainRecord, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive", config.ErrInvalid)
	}
	records := make([]models.DomainRecord, 0, threshold)
	scanner := bufio.NewScanner(r)
	lineNo, consumed := 0, 0
	for consumed < threshold && scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		consumed++
		rec, err := parseLine(line)
		if errors.Is(err, errBadDomain) {
			logger.WithFields(log.Fields{"line": lineNo}).WithError(err).Warn("skipping domain")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: input file line %d: %v", config.ErrInvalid, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	if consumed < threshold {
		logger.WithFields(log.Fields{
			"threshold": threshold,
			"records":   consumed,
		}).Warn("input file has fewer records than threshold")
	}
	return records, nil
}

func parseLine(line string) (models.DomainRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return models.DomainRecord{}, fmt.Errorf("expected rank,domain")
	}
	rank, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.DomainRecord{}, fmt.Errorf("invalid rank %q", fields[0])
	}
	if strings.TrimSpace(fields[1]) == "" {
		return models.DomainRecord{}, fmt.Errorf("empty domain")
	}
	domain, err := NormalizeDomain(fields[1])
	if err != nil {
		return models.DomainRecord{}, err
	}
	return models.DomainRecord{Rank: rank, Domain: domain}, nil
}

var errBadDomain = errors.New("invalid domain")

// NormalizeDomain trims the name and converts labels holding non-ASCII
// characters to their punycode form. ASCII labels are kept as written,
// including their case and characters such as '_'.
func NormalizeDomain(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" {
		return "", fmt.Errorf("%w: empty name", errBadDomain)
	}
	labels := strings.Split(name, ".")
	for i, label := range labels {
		if isASCII(label) {
			continue
		}
		ascii, err := idna.Lookup.ToASCII(label)
		if err != nil {
			return "", fmt.Errorf("%w %q: %v", errBadDomain, name, err)
		}
		labels[i] = ascii
	}
	return strings.Join(labels, "."), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
