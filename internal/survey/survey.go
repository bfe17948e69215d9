// Package survey wires resolution, URL discovery, timing and aggregation into
// a single pass over the ranking list.
package survey

import (
	"context"
	"io"
	"sort"

	"github.com/apex/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sagoresarker/cdnprobe/internal/aggregate"
	"github.com/sagoresarker/cdnprobe/internal/models"
)

type Resolver interface {
	Resolve(ctx context.Context, domain string) (models.Resolution, error)
}

type Discoverer interface {
	Discover(ctx context.Context, domain string) models.ProbeResult
}

type TimingSampler interface {
	Sample(ctx context.Context, cdn, domain, url string, trials int) (models.SampleTable, int)
}

type Options struct {
	Trials  int
	Workers int
	// CDNs restricts probing to these CDN names; empty means all.
	CDNs []string
	// MaxDomains caps the domains probed per CDN; zero means all.
	MaxDomains int
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	Logger   log.Interface
}

type Survey struct {
	resolver Resolver
	prober   Discoverer
	sampler  TimingSampler
	opts     Options
	logger   log.Interface
}

func New(r Resolver, p Discoverer, s TimingSampler, opts Options) *Survey {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}
	return &Survey{resolver: r, prober: p, sampler: s, opts: opts, logger: logger}
}

// DomainProbe is the per-domain outcome of the probing pass.
type DomainProbe struct {
	CDN     string             `json:"cdn"`
	Domain  string             `json:"domain"`
	Probe   models.ProbeResult `json:"probe"`
	Samples int                `json:"samples"`
	Dropped int                `json:"dropped_trials"`
}

type Result struct {
	CdnDomains models.CdnDomainMap `json:"cdn_domains"`
	Probes     []DomainProbe       `json:"probes"`
	Samples    models.SampleTable  `json:"samples"`
	Stats      []models.GroupStats `json:"stats"`
}

// Run resolves every record, probes the selected domains and aggregates the
// samples once all probing has finished.
func (s *Survey) Run(ctx context.Context, records []models.DomainRecord) (*Result, error) {
	cdnDomains := s.MapDomains(ctx, records)
	s.logger.WithField("cdns", len(cdnDomains)).Info("CDN domain map built")

	probes, table := s.Measure(ctx, s.Select(cdnDomains))

	groups, err := aggregate.Aggregate(table)
	if err != nil {
		return nil, err
	}
	return &Result{
		CdnDomains: cdnDomains,
		Probes:     probes,
		Samples:    table,
		Stats:      groups,
	}, nil
}

// MapDomains resolves every record and groups matched domains by CDN. The map
// is ordered by number of domains, largest first, then by CDN name.
func (s *Survey) MapDomains(ctx context.Context, records []models.DomainRecord) models.CdnDomainMap {
	resolutions := make([]models.Resolution, len(records))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			res, err := s.resolver.Resolve(ctx, rec.Domain)
			if err != nil {
				s.logger.WithField("domain", rec.Domain).WithError(err).Warn("dns lookup failed")
			}
			resolutions[i] = res
			return nil
		})
	}
	_ = g.Wait()

	index := make(map[string]int)
	seen := make(map[string]bool)
	var out models.CdnDomainMap
	for _, res := range resolutions {
		if !res.Matched || seen[res.Domain] {
			continue
		}
		seen[res.Domain] = true
		i, ok := index[res.CDN]
		if !ok {
			i = len(out)
			index[res.CDN] = i
			out = append(out, models.CdnDomains{CDN: res.CDN})
		}
		out[i].Domains = append(out[i].Domains, res.Domain)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Domains) != len(out[j].Domains) {
			return len(out[i].Domains) > len(out[j].Domains)
		}
		return out[i].CDN < out[j].CDN
	})
	return out
}

// Job is one domain scheduled for probing.
type Job struct {
	CDN    string
	Domain string
}

// Select applies the CDN filter and the per-CDN cap.
func (s *Survey) Select(m models.CdnDomainMap) []Job {
	wanted := make(map[string]bool, len(s.opts.CDNs))
	for _, name := range s.opts.CDNs {
		wanted[name] = true
	}
	var jobs []Job
	for _, entry := range m {
		if len(wanted) > 0 && !wanted[entry.CDN] {
			continue
		}
		domains := entry.Domains
		if s.opts.MaxDomains > 0 && len(domains) > s.opts.MaxDomains {
			domains = domains[:s.opts.MaxDomains]
		}
		for _, d := range domains {
			jobs = append(jobs, Job{CDN: entry.CDN, Domain: d})
		}
	}
	return jobs
}

// Measure probes and samples every job. Each worker fills its own batch and
// the batches are concatenated in job order once all workers are done.
func (s *Survey) Measure(ctx context.Context, jobs []Job) ([]DomainProbe, models.SampleTable) {
	probes := make([]DomainProbe, len(jobs))
	batches := make([]models.SampleTable, len(jobs))

	var bar *progressbar.ProgressBar
	if s.opts.Progress != nil {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetWriter(s.opts.Progress),
			progressbar.OptionSetDescription("probing"),
			progressbar.OptionShowCount(),
		)
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			probes[i], batches[i] = s.measureOne(ctx, job)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	var table models.SampleTable
	for _, batch := range batches {
		table = append(table, batch...)
	}
	return probes, table
}

func (s *Survey) measureOne(ctx context.Context, job Job) (DomainProbe, models.SampleTable) {
	dp := DomainProbe{CDN: job.CDN, Domain: job.Domain}
	dp.Probe = s.prober.Discover(ctx, job.Domain)
	if !dp.Probe.OK() {
		s.logger.WithFields(log.Fields{"cdn": job.CDN, "domain": job.Domain}).Warn("no reachable URL, skipping")
		return dp, nil
	}
	batch, dropped := s.sampler.Sample(ctx, job.CDN, job.Domain, dp.Probe.URL, s.opts.Trials)
	dp.Samples, dp.Dropped = len(batch), dropped
	return dp, batch
}
