package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrInvalid marks configuration errors detected before any probing starts.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultDNSServer   = "8.8.8.8:53"
	DefaultDNSTimeout  = 5 * time.Second
	DefaultHTTPTimeout = 15 * time.Second
	DefaultTrials      = 10
	DefaultUserAgent   = "cdnprobe/1.0"
	DefaultRedisKey    = "cdnprobe"
)

type Config struct {
	InputFile  string
	CDNFile    string
	OutputFile string
	Threshold  int

	DNSServer   string
	DNSTimeout  time.Duration
	HTTPTimeout time.Duration
	Trials      int
	Workers     int

	// Rate is the per-host request rate; zero disables pacing.
	Rate  float64
	Burst int

	CDNs       []string
	MaxDomains int

	UserAgent   string
	ProbeMethod string

	RedisAddr string
	RedisKey  string

	NoPlot     bool
	NoProgress bool
	Verbose    bool
}

func Default() Config {
	return Config{
		DNSServer:   DefaultDNSServer,
		DNSTimeout:  DefaultDNSTimeout,
		HTTPTimeout: DefaultHTTPTimeout,
		Trials:      DefaultTrials,
		Workers:     1,
		Burst:       1,
		UserAgent:   DefaultUserAgent,
		ProbeMethod: "GET",
		RedisKey:    DefaultRedisKey,
	}
}

// Normalize canonicalises fields that are accepted in more than one spelling.
func (c *Config) Normalize() {
	c.ProbeMethod = strings.ToUpper(strings.TrimSpace(c.ProbeMethod))
}

func (c Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("%w: input file is required", ErrInvalid)
	}
	if c.CDNFile == "" {
		return fmt.Errorf("%w: cdn file is required", ErrInvalid)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("%w: output file prefix is required", ErrInvalid)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %d", ErrInvalid, c.Threshold)
	}
	return c.ValidateProbing()
}

// ValidateProbing checks only the knobs used by the network components.
func (c Config) ValidateProbing() error {
	if _, _, err := net.SplitHostPort(c.DNSServer); err != nil {
		return fmt.Errorf("%w: dns server %q: %v", ErrInvalid, c.DNSServer, err)
	}
	if c.DNSTimeout <= 0 || c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalid, c.Trials)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}
	if c.Rate < 0 || c.MaxDomains < 0 {
		return fmt.Errorf("%w: rate and max-domains cannot be negative", ErrInvalid)
	}
	if c.Rate > 0 && c.Burst <= 0 {
		return fmt.Errorf("%w: burst must be positive when rate is set", ErrInvalid)
	}
	switch c.ProbeMethod {
	case "GET", "HEAD":
	default:
		return fmt.Errorf("%w: probe method must be GET or HEAD, got %q", ErrInvalid, c.ProbeMethod)
	}
	return nil
}
