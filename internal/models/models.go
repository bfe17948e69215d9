package models

import "fmt"

// CdnSignature maps a hostname substring to the CDN that owns it.
type CdnSignature struct {
	Substring string `json:"substring"`
	CDN       string `json:"cdn"`
}

// DomainRecord is one line of the site ranking list.
type DomainRecord struct {
	Rank   int    `json:"rank"`
	Domain string `json:"domain"`
}

// Resolution is the outcome of matching a domain against the signature index.
type Resolution struct {
	Domain  string `json:"domain"`
	CDN     string `json:"cdn,omitempty"`
	Matched bool   `json:"matched"`
	// Via is the text that matched: the domain itself or a CNAME target.
	Via string `json:"via,omitempty"`
}

// CdnDomains is one CDN with the domains that resolved to it, in resolution order.
type CdnDomains struct {
	CDN     string   `json:"cdn"`
	Domains []string `json:"domains"`
}

// CdnDomainMap is ordered by number of domains, largest first.
type CdnDomainMap []CdnDomains

type ProbeOutcome int

const (
	Unreachable ProbeOutcome = iota
	Success
)

func (o ProbeOutcome) String() string {
	if o == Success {
		return "success"
	}
	return "unreachable"
}

func (o ProbeOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *ProbeOutcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*o = Success
	case "unreachable":
		*o = Unreachable
	default:
		return fmt.Errorf("unknown probe outcome %q", text)
	}
	return nil
}

// Attempt records one URL variant tried during discovery.
// StatusCode is 0 when the request failed at the transport level.
type Attempt struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

type ProbeResult struct {
	Outcome  ProbeOutcome `json:"outcome"`
	URL      string       `json:"url,omitempty"`
	Attempts []Attempt    `json:"attempts"`
}

func (r ProbeResult) OK() bool {
	return r.Outcome == Success
}

// ProbeReport is what the HTTP service returns for a single domain.
type ProbeReport struct {
	Domain        string       `json:"domain"`
	Resolution    Resolution   `json:"resolution"`
	Probe         ProbeResult  `json:"probe"`
	Samples       SampleTable  `json:"samples"`
	Dropped       int          `json:"dropped_trials"`
	Stats         []GroupStats `json:"stats"`
	ExecutionTime string       `json:"execution_time"`
	CacheStatus   string       `json:"cache_status,omitempty"`
}
