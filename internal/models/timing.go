package models

// Stage is one phase of an HTTP transfer, in transfer order.
type Stage int

const (
	Namelookup Stage = iota
	Connect
	Appconnect
	Pretransfer
	Starttransfer
	Total
	numStages
)

var stageNames = [numStages]string{
	"Namelookup", "Connect", "Appconnect", "Pretransfer", "Starttransfer", "Total",
}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "Unknown"
	}
	return stageNames[s]
}

// Stages lists every stage in transfer order.
func Stages() []Stage {
	out := make([]Stage, numStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// TimingSample is one trial's timing breakdown in seconds, each stage measured
// from the start of the request.
type TimingSample struct {
	CDN           string  `json:"cdn"`
	Domain        string  `json:"domain"`
	URL           string  `json:"url"`
	Namelookup    float64 `json:"namelookup"`
	Connect       float64 `json:"connect"`
	Appconnect    float64 `json:"appconnect"`
	Pretransfer   float64 `json:"pretransfer"`
	Starttransfer float64 `json:"starttransfer"`
	Total         float64 `json:"total"`
}

func (s TimingSample) Key() GroupKey {
	return GroupKey{CDN: s.CDN, Domain: s.Domain, URL: s.URL}
}

func (s TimingSample) Value(stage Stage) float64 {
	switch stage {
	case Namelookup:
		return s.Namelookup
	case Connect:
		return s.Connect
	case Appconnect:
		return s.Appconnect
	case Pretransfer:
		return s.Pretransfer
	case Starttransfer:
		return s.Starttransfer
	case Total:
		return s.Total
	}
	return 0
}

// SampleTable is append-only and ordered by the order trials were merged.
type SampleTable []TimingSample

type GroupKey struct {
	CDN    string `json:"cdn"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

func (k GroupKey) Less(o GroupKey) bool {
	if k.CDN != o.CDN {
		return k.CDN < o.CDN
	}
	if k.Domain != o.Domain {
		return k.Domain < o.Domain
	}
	return k.URL < o.URL
}

type Summary struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// GroupStats holds per-stage statistics for every sample sharing a GroupKey.
type GroupStats struct {
	Key    GroupKey  `json:"key"`
	Count  int       `json:"count"`
	Stages []Summary `json:"stages"`
}

// Stage returns the summary for stage.
func (g GroupStats) Stage(stage Stage) Summary {
	if int(stage) < 0 || int(stage) >= len(g.Stages) {
		return Summary{}
	}
	return g.Stages[stage]
}
