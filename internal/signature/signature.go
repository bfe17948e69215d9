// Package signature holds the ordered list of CDN hostname signatures.
package signature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Index answers first-match-wins substring queries. It is immutable once built.
type Index struct {
	signatures []models.CdnSignature
}

func New(signatures []models.CdnSignature) (*Index, error) {
	out := make([]models.CdnSignature, 0, len(signatures))
	for i, sig := range signatures {
		if sig.Substring == "" {
			return nil, fmt.Errorf("%w: signature %d has an empty substring", config.ErrInvalid, i)
		}
		out = append(out, sig)
	}
	return &Index{signatures: out}, nil
}

// Match returns the first signature, in file order, whose substring occurs in text.
// Matching is case-sensitive.
func (idx *Index) Match(text string) (models.CdnSignature, bool) {
	for _, sig := range idx.signatures {
		if strings.Contains(text, sig.Substring) {
			return sig, true
		}
	}
	return models.CdnSignature{}, false
}

func (idx *Index) Len() int {
	return len(idx.signatures)
}

func (idx *Index) Signatures() []models.CdnSignature {
	return append([]models.CdnSignature(nil), idx.signatures...)
}

// Load reads a CDN file of "hostnameSubstring,cdnName" lines.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cdn file: %v", config.ErrInvalid, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads signatures from r. Blank lines and lines starting with '#' are
// skipped; fields beyond the second are ignored.
func Parse(r io.Reader) (*Index, error) {
	var signatures []models.CdnSignature
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: cdn file line %d: expected substring,cdn", config.ErrInvalid, lineNo)
		}
		sig := models.CdnSignature{
			Substring: strings.TrimSpace(fields[0]),
			CDN:       strings.TrimSpace(fields[1]),
		}
		if sig.Substring == "" || sig.CDN == "" {
			return nil, fmt.Errorf("%w: cdn file line %d: empty field", config.ErrInvalid, lineNo)
		}
		signatures = append(signatures, sig)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cdn file: %w", err)
	}
	return New(signatures)
}
