package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/logging"
	"github.com/sagoresarker/cdnprobe/internal/probe"
	"github.com/sagoresarker/cdnprobe/internal/ranking"
	"github.com/sagoresarker/cdnprobe/internal/ratelimit"
	"github.com/sagoresarker/cdnprobe/internal/report"
	"github.com/sagoresarker/cdnprobe/internal/resolver"
	"github.com/sagoresarker/cdnprobe/internal/sampler"
	"github.com/sagoresarker/cdnprobe/internal/signature"
	"github.com/sagoresarker/cdnprobe/internal/store"
	"github.com/sagoresarker/cdnprobe/internal/survey"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func newApp(cfg *config.Config) *kingpin.Application {
	app := kingpin.New("cdnprobe", "Find the CDN behind popular domains and measure per-stage HTTP latency.")

	app.Flag("ifile", "Ranking file of rank,domain lines.").Short('i').Required().StringVar(&cfg.InputFile)
	app.Flag("cfile", "CDN file of hostnameSubstring,cdnName lines.").Short('c').Required().StringVar(&cfg.CDNFile)
	app.Flag("ofile", "Output prefix for the .txt, .csv and .png reports.").Short('o').Required().StringVar(&cfg.OutputFile)
	app.Flag("threshold", "Number of top domains to consider.").Short('t').Required().IntVar(&cfg.Threshold)

	app.Flag("dns-server", "DNS server used for CNAME lookups.").
		Default(cfg.DNSServer).Envar("CDNPROBE_DNS_SERVER").StringVar(&cfg.DNSServer)
	app.Flag("dns-timeout", "Timeout of a single DNS query.").
		Default(cfg.DNSTimeout.String()).Envar("CDNPROBE_DNS_TIMEOUT").DurationVar(&cfg.DNSTimeout)
	app.Flag("http-timeout", "Timeout of a single HTTP request.").
		Default(cfg.HTTPTimeout.String()).Envar("CDNPROBE_HTTP_TIMEOUT").DurationVar(&cfg.HTTPTimeout)
	app.Flag("trials", "Timed requests per reachable URL.").
		Default(fmt.Sprint(cfg.Trials)).Envar("CDNPROBE_TRIALS").IntVar(&cfg.Trials)
	app.Flag("workers", "Domains probed in parallel.").
		Default(fmt.Sprint(cfg.Workers)).Envar("CDNPROBE_WORKERS").IntVar(&cfg.Workers)
	app.Flag("rate", "Requests per second per host, 0 for no limit.").
		Default("0").Envar("CDNPROBE_RATE").Float64Var(&cfg.Rate)
	app.Flag("burst", "Burst size for --rate.").
		Default(fmt.Sprint(cfg.Burst)).IntVar(&cfg.Burst)
	app.Flag("cdn", "Only probe domains of this CDN (repeatable).").StringsVar(&cfg.CDNs)
	app.Flag("max-domains", "Probe at most this many domains per CDN, 0 for all.").
		Default("0").IntVar(&cfg.MaxDomains)
	app.Flag("user-agent", "User-Agent header sent with every request.").
		Default(cfg.UserAgent).StringVar(&cfg.UserAgent)
	app.Flag("probe-method", "Method used for URL discovery (GET or HEAD).").
		Default(cfg.ProbeMethod).StringVar(&cfg.ProbeMethod)
	app.Flag("redis-addr", "Export the run to this Redis server.").
		Envar("CDNPROBE_REDIS_ADDR").StringVar(&cfg.RedisAddr)
	app.Flag("redis-key", "Key prefix for the Redis export.").
		Default(cfg.RedisKey).StringVar(&cfg.RedisKey)
	app.Flag("no-plot", "Do not render the box plot.").BoolVar(&cfg.NoPlot)
	app.Flag("no-progress", "Do not show a progress bar.").BoolVar(&cfg.NoProgress)
	app.Flag("verbose", "Enable debug logging.").Short('v').BoolVar(&cfg.Verbose)
	return app
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Default()
	app := newApp(&cfg)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	if _, err := app.Parse(args); err != nil {
		return usage(app, stderr, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return usage(app, stderr, err)
	}

	logger := logging.Setup(stderr, cfg.Verbose)
	logger.WithFields(log.Fields{
		"input":     cfg.InputFile,
		"cdn_file":  cfg.CDNFile,
		"output":    cfg.OutputFile,
		"threshold": cfg.Threshold,
	}).Info("starting")

	res, err := execute(ctx, cfg, logger, stderr)
	if errors.Is(err, config.ErrInvalid) {
		return usage(app, stderr, err)
	}
	if err != nil {
		logger.WithError(err).Error("run failed")
		return exitFailed
	}

	if err := report.WriteAll(cfg.OutputFile, res.Samples, res.Stats, !cfg.NoPlot, logger); err != nil {
		logger.WithError(err).Error("writing reports")
		return exitFailed
	}
	if cfg.RedisAddr != "" {
		if err := export(ctx, cfg, res, logger); err != nil {
			logger.WithError(err).Error("redis export")
			return exitFailed
		}
	}

	fmt.Fprintf(stdout, "%d CDNs, %d domains probed, %d samples, %d groups\n",
		len(res.CdnDomains), len(res.Probes), len(res.Samples), len(res.Stats))
	return exitOK
}

func usage(app *kingpin.Application, stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "cdnprobe: %v\n\n", err)
	app.Usage(nil)
	return exitUsage
}

func execute(ctx context.Context, cfg config.Config, logger log.Interface, stderr io.Writer) (*survey.Result, error) {
	index, err := signature.Load(cfg.CDNFile)
	if err != nil {
		return nil, err
	}
	records, err := ranking.Load(cfg.InputFile, cfg.Threshold, logger)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"signatures": index.Len(), "domains": len(records)}).Info("inputs loaded")
	for _, sig := range index.Signatures() {
		logger.WithFields(log.Fields{"substring": sig.Substring, "cdn": sig.CDN}).Debug("signature")
	}

	limiter := ratelimit.NewPerSecond(cfg.Rate, cfg.Burst)
	r := resolver.New(index,
		resolver.WithServer(cfg.DNSServer),
		resolver.WithTimeout(cfg.DNSTimeout),
		resolver.WithLogger(logger),
	)
	p := probe.New(cfg.HTTPTimeout,
		probe.WithLimiter(limiter),
		probe.WithMethod(cfg.ProbeMethod),
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithLogger(logger),
	)
	s := sampler.New(cfg.HTTPTimeout,
		sampler.WithLimiter(limiter),
		sampler.WithUserAgent(cfg.UserAgent),
		sampler.WithLogger(logger),
	)

	opts := survey.Options{
		Trials:     cfg.Trials,
		Workers:    cfg.Workers,
		CDNs:       cfg.CDNs,
		MaxDomains: cfg.MaxDomains,
		Logger:     logger,
	}
	if !cfg.NoProgress {
		opts.Progress = stderr
	}
	res, err := survey.New(r, p, s, opts).Run(ctx, records)
	if err != nil {
		return nil, err
	}
	for _, entry := range res.CdnDomains {
		logger.WithFields(log.Fields{"cdn": entry.CDN, "domains": len(entry.Domains)}).Info("CDN")
	}
	return res, nil
}

func export(ctx context.Context, cfg config.Config, res *survey.Result, logger log.Interface) error {
	rs := store.NewRedisStore(cfg.RedisAddr, cfg.RedisKey)
	defer rs.Close()

	if err := rs.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis %s: %w", cfg.RedisAddr, err)
	}
	id := time.Now().UTC().Format("20060102_150405")
	err := rs.Save(ctx, store.Run{
		ID:         id,
		CdnDomains: res.CdnDomains,
		Samples:    res.Samples,
		Stats:      res.Stats,
	})
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{"addr": cfg.RedisAddr, "run": id}).Info("exported to redis")
	return nil
}
