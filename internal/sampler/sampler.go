// Package sampler runs repeated timed GETs against a confirmed URL.
package sampler

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
	"github.com/sagoresarker/cdnprobe/internal/ratelimit"
	"github.com/sagoresarker/cdnprobe/internal/utils"
)

type Sampler struct {
	client    *http.Client
	limiter   *ratelimit.RateLimiter
	userAgent string
	logger    log.Interface
}

type Option func(*Sampler)

func WithClient(c *http.Client) Option {
	return func(s *Sampler) { s.client = c }
}

func WithLimiter(l *ratelimit.RateLimiter) Option {
	return func(s *Sampler) { s.limiter = l }
}

func WithUserAgent(ua string) Option {
	return func(s *Sampler) { s.userAgent = ua }
}

func WithLogger(l log.Interface) Option {
	return func(s *Sampler) { s.logger = l }
}

func New(timeout time.Duration, opts ...Option) *Sampler {
	s := &Sampler{
		userAgent: config.DefaultUserAgent,
		logger:    log.Log,
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = utils.NewHTTPClient(timeout)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewPerSecond(0, 0)
	}
	return s
}

// Sample runs trials GETs against rawURL and returns one row per successful
// trial plus the number of trials dropped because of transport failures.
// The HTTP status code of a trial is not checked.
func (s *Sampler) Sample(ctx context.Context, cdn, domain, rawURL string, trials int) (models.SampleTable, int) {
	table := make(models.SampleTable, 0, trials)
	dropped := 0
	logger := s.logger.WithFields(log.Fields{"cdn": cdn, "url": rawURL})

	for i := 0; i < trials; i++ {
		if ctx.Err() != nil {
			dropped += trials - i
			break
		}
		timing, err := s.trial(ctx, rawURL)
		if err != nil {
			dropped++
			logger.WithField("trial", i).WithError(err).Warn("trial failed")
			continue
		}
		timing.CDN, timing.Domain, timing.URL = cdn, domain, rawURL
		table = append(table, timing)
	}
	return table, dropped
}

// stamps collects trace callbacks, which may run on transport goroutines.
type stamps struct {
	mu           sync.Mutex
	dnsDone      time.Time
	connectDone  time.Time
	tlsDone      time.Time
	wroteHeaders time.Time
	firstByte    time.Time
	tlsVersion   uint16
}

func (st *stamps) mark(field *time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if field.IsZero() {
		*field = time.Now()
	}
}

func (s *Sampler) trial(ctx context.Context, rawURL string) (models.TimingSample, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.TimingSample{}, err
	}
	if err := s.limiter.Wait(ctx, parsed.Host); err != nil {
		return models.TimingSample{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.TimingSample{}, err
	}
	utils.SetNoCache(req.Header)
	req.Header.Set("User-Agent", s.userAgent)

	st := &stamps{}
	trace := &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) {
			st.mark(&st.dnsDone)
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				st.mark(&st.connectDone)
			}
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil {
				st.mark(&st.tlsDone)
				st.mu.Lock()
				st.tlsVersion = state.Version
				st.mu.Unlock()
			}
		},
		WroteHeaders: func() {
			st.mark(&st.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			st.mark(&st.firstByte)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return models.TimingSample{}, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return models.TimingSample{}, fmt.Errorf("reading body: %w", err)
	}
	end := time.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	s.logger.WithFields(log.Fields{
		"url":    rawURL,
		"status": resp.StatusCode,
		"tls":    utils.GetTLSVersionString(st.tlsVersion),
	}).Debug("trial done")

	return stagesFrom(start, end, st), nil
}

// stagesFrom converts trace timestamps into cumulative seconds. A stage that
// did not happen (no DNS for an IP literal, no TLS for plain HTTP) takes the
// value of the previous stage so the sequence stays non-decreasing.
func stagesFrom(start, end time.Time, st *stamps) models.TimingSample {
	var out models.TimingSample
	prev := 0.0
	at := func(t time.Time) float64 {
		if !t.IsZero() {
			if v := t.Sub(start).Seconds(); v > prev {
				prev = v
			}
		}
		return prev
	}
	out.Namelookup = at(st.dnsDone)
	out.Connect = at(st.connectDone)
	out.Appconnect = at(st.tlsDone)
	out.Pretransfer = at(st.wroteHeaders)
	out.Starttransfer = at(st.firstByte)
	out.Total = at(end)
	return out
}
