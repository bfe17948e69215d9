package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// NewHTTPClient returns a client that opens a fresh connection per request and
// never follows redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
			TLSHandshakeTimeout: timeout,
			DisableKeepAlives:   true,
			DisableCompression:  true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ExtractCNAMEs returns the CNAME records of every section of msg, in the order
// the resolver emitted them.
func ExtractCNAMEs(msg *dns.Msg) []*dns.CNAME {
	var cnames []*dns.CNAME
	for _, section := range [][]dns.RR{msg.Answer, msg.Ns, msg.Extra} {
		for _, rr := range section {
			if cname, ok := rr.(*dns.CNAME); ok {
				cnames = append(cnames, cname)
			}
		}
	}
	return cnames
}

func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SetNoCache sets the cache-defeating request headers used by every probe.
func SetNoCache(header http.Header) {
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
}

func GetTLSVersionString(version uint16) string {
	switch version {
	case 0:
		return ""
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}
