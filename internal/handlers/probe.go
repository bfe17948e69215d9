package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/aggregate"
	"github.com/sagoresarker/cdnprobe/internal/cache"
	"github.com/sagoresarker/cdnprobe/internal/models"
	"github.com/sagoresarker/cdnprobe/internal/ranking"
	"github.com/sagoresarker/cdnprobe/internal/ratelimit"
	"github.com/sagoresarker/cdnprobe/internal/survey"
	"github.com/sagoresarker/cdnprobe/internal/utils"
)

var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-\.]{1,61}[a-zA-Z0-9]\.[a-zA-Z]{2,}$`)

// NoCDN labels samples of domains that matched no signature.
const NoCDN = "none"

type ProbeHandler struct {
	resolver    survey.Resolver
	prober      survey.Discoverer
	sampler     survey.TimingSampler
	trials      int
	timeout     time.Duration
	cache       *cache.Cache
	rateLimiter *ratelimit.RateLimiter
	logger      log.Interface
}

func NewProbeHandler(r survey.Resolver, p survey.Discoverer, s survey.TimingSampler, trials int, logger log.Interface) *ProbeHandler {
	return &ProbeHandler{
		resolver:    r,
		prober:      p,
		sampler:     s,
		trials:      trials,
		timeout:     2 * time.Minute,
		cache:       cache.NewCache(10 * time.Minute),
		rateLimiter: ratelimit.NewRateLimiter(time.Minute, 10), // 10 requests per minute
		logger:      logger,
	}
}

func (h *ProbeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.rateLimiter.Allow(utils.GetClientIP(r)); err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		http.Error(w, "Missing domain parameter", http.StatusBadRequest)
		return
	}
	if !domainRegex.MatchString(domain) {
		http.Error(w, "Invalid domain format", http.StatusBadRequest)
		return
	}
	domain, err := ranking.NormalizeDomain(domain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Check cache first
	if cached, found := h.cache.Get(domain); found {
		cached.CacheStatus = "HIT"
		writeJSON(w, h.logger, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.probe(ctx, domain)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error aggregating samples: %v", err), http.StatusInternalServerError)
		return
	}
	report.CacheStatus = "MISS"
	h.cache.Set(domain, report)
	writeJSON(w, h.logger, report)
}

func (h *ProbeHandler) probe(ctx context.Context, domain string) (models.ProbeReport, error) {
	start := time.Now()
	report := models.ProbeReport{Domain: domain}

	res, err := h.resolver.Resolve(ctx, domain)
	if err != nil {
		h.logger.WithField("domain", domain).WithError(err).Warn("dns lookup failed")
	}
	report.Resolution = res
	cdn := res.CDN
	if !res.Matched {
		cdn = NoCDN
	}

	report.Probe = h.prober.Discover(ctx, domain)
	if report.Probe.OK() {
		report.Samples, report.Dropped = h.sampler.Sample(ctx, cdn, domain, report.Probe.URL, h.trials)
	}
	report.Stats, err = aggregate.Aggregate(report.Samples)
	if err != nil {
		return report, err
	}
	report.ExecutionTime = time.Since(start).Round(time.Millisecond).String()
	return report, nil
}

func writeJSON(w http.ResponseWriter, logger log.Interface, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("encoding response")
	}
}

func EnableCORS(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}
