package signature

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
)

func TestParseAndMatch(t *testing.T) {
	idx, err := Parse(strings.NewReader("cloudfront,CloudFront\nakadns,Akamai\n"))
	if err != nil {
		t.Fatal(err)
	}
	sig, ok := idx.Match("d1234.cloudfront.net")
	if !ok || sig.CDN != "CloudFront" {
		t.Fatalf("unexpected match: %+v %v", sig, ok)
	}
	if _, ok := idx.Match("example.com"); ok {
		t.Fatal("expected no match")
	}
}

func TestMatchFirstWins(t *testing.T) {
	idx, err := New([]models.CdnSignature{
		{Substring: "edge", CDN: "Generic"},
		{Substring: "edgekey", CDN: "Akamai"},
	})
	if err != nil {
		t.Fatal(err)
	}
	sig, ok := idx.Match("www.example.com.edgekey.net")
	if !ok || sig.CDN != "Generic" {
		t.Fatalf("expected earlier signature to win, got %+v", sig)
	}
}

func TestMatchIsCaseSensitive(t *testing.T) {
	idx, err := New([]models.CdnSignature{{Substring: "cloudfront", CDN: "CloudFront"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := idx.Match("D1234.CLOUDFRONT.NET"); ok {
		t.Fatal("expected no match on different case")
	}
}

func TestParseSkipsBlankAndComments(t *testing.T) {
	input := "# cdn list\n\n  fastly , Fastly \nakamai,Akamai,extra\n"
	idx, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	expect := []models.CdnSignature{
		{Substring: "fastly", CDN: "Fastly"},
		{Substring: "akamai", CDN: "Akamai"},
	}
	if diff := cmp.Diff(expect, idx.Signatures()); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{"cloudfront\n", ",CloudFront\n", "cloudfront,\n"} {
		if _, err := Parse(strings.NewReader(input)); !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("%q: expected config.ErrInvalid, got %v", input, err)
		}
	}
}

func TestNewRejectsEmptySubstring(t *testing.T) {
	_, err := New([]models.CdnSignature{{CDN: "x"}})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatal("expected config.ErrInvalid")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/cdn.csv")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config.ErrInvalid, got %v", err)
	}
}
