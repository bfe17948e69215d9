package survey

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/google/go-cmp/cmp"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

var quiet = &log.Logger{Handler: discard.Default, Level: log.DebugLevel}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(ctx context.Context, domain string) (models.Resolution, error) {
	res := models.Resolution{Domain: domain}
	cdn, ok := f[domain]
	if !ok {
		return res, nil
	}
	if cdn == "" {
		return res, errors.New("i/o timeout")
	}
	res.CDN, res.Matched, res.Via = cdn, true, domain
	return res, nil
}

type fakeProber struct {
	mu    sync.Mutex
	urls  map[string]string
	calls []string
}

func (f *fakeProber) Discover(ctx context.Context, domain string) models.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, domain)
	if u, ok := f.urls[domain]; ok {
		return models.ProbeResult{Outcome: models.Success, URL: u}
	}
	return models.ProbeResult{Outcome: models.Unreachable}
}

// fakeSampler drops the trials listed in drop for a given URL.
type fakeSampler struct {
	drop map[string]int
}

func (f fakeSampler) Sample(ctx context.Context, cdn, domain, url string, trials int) (models.SampleTable, int) {
	var table models.SampleTable
	dropped := f.drop[url]
	for i := 0; i < trials-dropped; i++ {
		v := float64(i+1) / 10
		table = append(table, models.TimingSample{
			CDN: cdn, Domain: domain, URL: url,
			Namelookup: v, Connect: v, Appconnect: v, Pretransfer: v, Starttransfer: v, Total: v,
		})
	}
	return table, dropped
}

func records(domains ...string) []models.DomainRecord {
	var out []models.DomainRecord
	for i, d := range domains {
		out = append(out, models.DomainRecord{Rank: i + 1, Domain: d})
	}
	return out
}

func TestMapDomainsOrderAndDedup(t *testing.T) {
	r := fakeResolver{
		"a.com": "Akamai", "b.com": "Fastly", "c.com": "Akamai",
		"d.com": "CloudFront", "e.com": "Fastly", "broken.com": "",
	}
	s := New(r, nil, nil, Options{Logger: quiet, Workers: 3})
	got := s.MapDomains(context.Background(),
		records("a.com", "b.com", "plain.com", "c.com", "broken.com", "d.com", "e.com", "a.com"))
	expect := models.CdnDomainMap{
		{CDN: "Akamai", Domains: []string{"a.com", "c.com"}},
		{CDN: "Fastly", Domains: []string{"b.com", "e.com"}},
		{CDN: "CloudFront", Domains: []string{"d.com"}},
	}
	if diff := cmp.Diff(expect, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestSelect(t *testing.T) {
	m := models.CdnDomainMap{
		{CDN: "Akamai", Domains: []string{"a.com", "c.com", "f.com"}},
		{CDN: "Fastly", Domains: []string{"b.com"}},
	}
	s := New(nil, nil, nil, Options{Logger: quiet, CDNs: []string{"Akamai"}, MaxDomains: 2})
	expect := []Job{{CDN: "Akamai", Domain: "a.com"}, {CDN: "Akamai", Domain: "c.com"}}
	if diff := cmp.Diff(expect, s.Select(m)); diff != "" {
		t.Fatal(diff)
	}
	all := New(nil, nil, nil, Options{Logger: quiet})
	if len(all.Select(m)) != 4 {
		t.Fatal("no filter selects every domain")
	}
}

func TestRunUnreachableContributesNothing(t *testing.T) {
	r := fakeResolver{"a.com": "Akamai", "b.com": "Akamai", "c.com": "Fastly"}
	p := &fakeProber{urls: map[string]string{
		"a.com": "https://a.com",
		"c.com": "http://www.c.com",
	}}
	smp := fakeSampler{drop: map[string]int{"http://www.c.com": 3}}
	s := New(r, p, smp, Options{Logger: quiet, Trials: 10})

	res, err := s.Run(context.Background(), records("a.com", "b.com", "c.com"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Samples) != 17 {
		t.Fatalf("expected 17 samples, got %d", len(res.Samples))
	}
	if len(res.Stats) != 2 {
		t.Fatalf("expected two groups, got %+v", res.Stats)
	}
	for _, g := range res.Stats {
		if g.Key.Domain == "b.com" {
			t.Fatal("an unreachable domain must not produce a group")
		}
	}
	if res.Stats[1].Count != 7 || res.Stats[1].Key.URL != "http://www.c.com" {
		t.Fatalf("unexpected fastly group %+v", res.Stats[1])
	}
	if res.Probes[2].Dropped != 3 || res.Probes[1].Probe.OK() {
		t.Fatalf("unexpected probes %+v", res.Probes)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	r := fakeResolver{}
	urls := map[string]string{}
	var domains []string
	for _, d := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		domain := d + ".com"
		domains = append(domains, domain)
		r[domain] = []string{"Akamai", "Fastly", "CloudFront"}[len(domains)%3]
		urls[domain] = "https://" + domain
	}
	run := func(workers int) *Result {
		s := New(r, &fakeProber{urls: urls}, fakeSampler{}, Options{Logger: quiet, Trials: 4, Workers: workers})
		res, err := s.Run(context.Background(), records(domains...))
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	if diff := cmp.Diff(run(1), run(4)); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunEmpty(t *testing.T) {
	s := New(fakeResolver{}, &fakeProber{}, fakeSampler{}, Options{Logger: quiet, Trials: 10})
	res, err := s.Run(context.Background(), records("plain.com"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CdnDomains) != 0 || len(res.Samples) != 0 || len(res.Stats) != 0 {
		t.Fatalf("expected an empty result, got %+v", res)
	}
}
