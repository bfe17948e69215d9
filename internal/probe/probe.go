// Package probe discovers a reachable URL for a bare domain.
package probe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
	"github.com/sagoresarker/cdnprobe/internal/ratelimit"
	"github.com/sagoresarker/cdnprobe/internal/utils"
)

// Prefixes are tried in this order; the first 2xx wins.
var Prefixes = []string{"http://", "http://www.", "https://", "https://www."}

// Variants returns the candidate URLs for domain in the order they are tried.
func Variants(domain string) []string {
	out := make([]string, 0, len(Prefixes))
	for _, prefix := range Prefixes {
		out = append(out, prefix+domain)
	}
	return out
}

type Prober struct {
	client    *http.Client
	limiter   *ratelimit.RateLimiter
	method    string
	userAgent string
	logger    log.Interface
}

type Option func(*Prober)

func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

func WithLimiter(l *ratelimit.RateLimiter) Option {
	return func(p *Prober) { p.limiter = l }
}

// WithMethod sets the discovery method. Methods are case-sensitive on the
// wire, so the name is sent upper-cased.
func WithMethod(method string) Option {
	return func(p *Prober) { p.method = strings.ToUpper(method) }
}

func WithUserAgent(ua string) Option {
	return func(p *Prober) { p.userAgent = ua }
}

func WithLogger(l log.Interface) Option {
	return func(p *Prober) { p.logger = l }
}

func New(timeout time.Duration, opts ...Option) *Prober {
	p := &Prober{
		method:    http.MethodGet,
		userAgent: config.DefaultUserAgent,
		logger:    log.Log,
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = utils.NewHTTPClient(timeout)
	}
	if p.limiter == nil {
		p.limiter = ratelimit.NewPerSecond(0, 0)
	}
	return p
}

// Discover tries every variant in order and stops at the first 2xx answer.
// Failures of individual variants are recorded in the result, never returned.
func (p *Prober) Discover(ctx context.Context, domain string) models.ProbeResult {
	result := models.ProbeResult{Outcome: models.Unreachable}

	for _, u := range Variants(domain) {
		if ctx.Err() != nil {
			break
		}
		logger := p.logger.WithField("url", u)
		logger.Info("Trying")

		attempt := p.try(ctx, u)
		result.Attempts = append(result.Attempts, attempt)

		if attempt.Error != "" {
			logger.WithField("error", attempt.Error).Warn("Exception")
			continue
		}
		logger = logger.WithField("status", attempt.StatusCode)
		switch attempt.StatusCode / 100 {
		case 2:
			logger.Info("Success")
			result.Outcome = models.Success
			result.URL = u
			return result
		case 3:
			logger.Info("Redirected")
		case 4:
			logger.Warn("Error")
		default:
			logger.Warn("Unhandled status code")
		}
	}
	return result
}

func (p *Prober) try(ctx context.Context, rawURL string) models.Attempt {
	attempt := models.Attempt{URL: rawURL}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	if err := p.limiter.Wait(ctx, parsed.Host); err != nil {
		attempt.Error = err.Error()
		return attempt
	}

	req, err := http.NewRequestWithContext(ctx, p.method, rawURL, nil)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	utils.SetNoCache(req.Header)
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	attempt.StatusCode = resp.StatusCode
	return attempt
}
