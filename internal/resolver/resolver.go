// Package resolver decides which CDN, if any, fronts a domain.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/miekg/dns"

	"github.com/sagoresarker/cdnprobe/internal/config"
	"github.com/sagoresarker/cdnprobe/internal/models"
	"github.com/sagoresarker/cdnprobe/internal/signature"
	"github.com/sagoresarker/cdnprobe/internal/utils"
)

// ErrRcode is returned when the server answers with anything but NOERROR.
var ErrRcode = errors.New("dns error response")

type Resolver struct {
	index     *signature.Index
	client    *dns.Client
	tcpClient *dns.Client
	server    string
	timeout   time.Duration
	logger    log.Interface
}

type Option func(*Resolver)

func WithServer(addr string) Option {
	return func(r *Resolver) { r.server = addr }
}

func WithTimeout(t time.Duration) Option {
	return func(r *Resolver) { r.timeout = t }
}

func WithLogger(l log.Interface) Option {
	return func(r *Resolver) { r.logger = l }
}

func New(index *signature.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:   index,
		server:  config.DefaultDNSServer,
		timeout: config.DefaultDNSTimeout,
		logger:  log.Log,
	}
	for _, o := range opts {
		o(r)
	}
	r.client = &dns.Client{Net: "udp", Timeout: r.timeout}
	r.tcpClient = &dns.Client{Net: "tcp", Timeout: r.timeout}
	return r
}

// Resolve matches the domain name itself first and otherwise the CNAME targets
// returned by the DNS server, in the order the server emitted them.
// A non-nil error means the lookup failed; the returned Resolution is then
// unmatched.
func (r *Resolver) Resolve(ctx context.Context, domain string) (models.Resolution, error) {
	res := models.Resolution{Domain: domain}

	if sig, ok := r.index.Match(domain); ok {
		r.logger.WithField("domain", domain).WithField("cdn", sig.CDN).Info("CDN domain")
		res.CDN, res.Matched, res.Via = sig.CDN, true, domain
		return res, nil
	}

	msg, err := r.query(ctx, domain)
	if err != nil {
		return res, err
	}

	for _, cname := range utils.ExtractCNAMEs(msg) {
		if sig, ok := r.index.Match(cname.Target); ok {
			r.logger.WithFields(log.Fields{
				"domain": domain,
				"cname":  cname.String(),
				"cdn":    sig.CDN,
			}).Info("CDN CNAME")
			res.CDN, res.Matched, res.Via = sig.CDN, true, cname.Target
			return res, nil
		}
	}
	r.logger.WithField("domain", domain).Debug("no CDN signature matched")
	return res, nil
}

func (r *Resolver) query(ctx context.Context, domain string) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns query for %s: %w", domain, err)
	}
	if resp.Truncated {
		r.logger.WithField("domain", domain).Debug("truncated answer, retrying over tcp")
		resp, _, err = r.tcpClient.ExchangeContext(ctx, msg, r.server)
		if err != nil {
			return nil, fmt.Errorf("dns tcp query for %s: %w", domain, err)
		}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s for %s", ErrRcode, dns.RcodeToString[resp.Rcode], domain)
	}
	return resp, nil
}
