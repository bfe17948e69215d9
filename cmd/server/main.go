package main

import (
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/handlers"
	"github.com/sagoresarker/cdnprobe/internal/logging"
	"github.com/sagoresarker/cdnprobe/internal/probe"
	"github.com/sagoresarker/cdnprobe/internal/ratelimit"
	"github.com/sagoresarker/cdnprobe/internal/resolver"
	"github.com/sagoresarker/cdnprobe/internal/sampler"
	"github.com/sagoresarker/cdnprobe/internal/signature"
)

func main() {
	cfg := config.Default()
	cfg.Trials = 3

	app := kingpin.New("cdnprobe-server", "Probe a single domain over HTTP.")
	addr := app.Flag("addr", "Listen address.").Default(":8090").Envar("CDNPROBE_ADDR").String()
	app.Flag("cfile", "CDN file of hostnameSubstring,cdnName lines.").Short('c').
		Required().Envar("CDNPROBE_CDN_FILE").StringVar(&cfg.CDNFile)
	app.Flag("dns-server", "DNS server used for CNAME lookups.").
		Default(cfg.DNSServer).Envar("CDNPROBE_DNS_SERVER").StringVar(&cfg.DNSServer)
	app.Flag("dns-timeout", "Timeout of a single DNS query.").
		Default(cfg.DNSTimeout.String()).DurationVar(&cfg.DNSTimeout)
	app.Flag("http-timeout", "Timeout of a single HTTP request.").
		Default(cfg.HTTPTimeout.String()).DurationVar(&cfg.HTTPTimeout)
	app.Flag("trials", "Timed requests per probe.").
		Default("3").Envar("CDNPROBE_TRIALS").IntVar(&cfg.Trials)
	app.Flag("rate", "Requests per second per probed host, 0 for no limit.").
		Default("0").Float64Var(&cfg.Rate)
	app.Flag("verbose", "Enable debug logging.").Short('v').BoolVar(&cfg.Verbose)
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if err := cfg.ValidateProbing(); err != nil {
		app.Fatalf("%v", err)
	}

	logger := logging.Setup(os.Stderr, cfg.Verbose)

	index, err := signature.Load(cfg.CDNFile)
	if err != nil {
		logger.WithError(err).Fatal("loading cdn file")
	}

	limiter := ratelimit.NewPerSecond(cfg.Rate, cfg.Burst)
	probeHandler := handlers.NewProbeHandler(
		resolver.New(index,
			resolver.WithServer(cfg.DNSServer),
			resolver.WithTimeout(cfg.DNSTimeout),
			resolver.WithLogger(logger)),
		probe.New(cfg.HTTPTimeout, probe.WithLimiter(limiter), probe.WithLogger(logger)),
		sampler.New(cfg.HTTPTimeout, sampler.WithLimiter(limiter), sampler.WithLogger(logger)),
		cfg.Trials,
		logger,
	)
	healthHandler := handlers.NewHealthHandler(probeHandler, logger)

	http.HandleFunc("/health", healthHandler.Handle)
	http.HandleFunc("/probe", handlers.EnableCORS(probeHandler.Handle))

	server := &http.Server{
		Addr:         *addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}

	logger.WithFields(log.Fields{"addr": *addr, "signatures": index.Len()}).Info("server is running")
	if err := server.ListenAndServe(); err != nil {
		logger.WithError(err).Fatal("server failed to start")
	}
}
