package report

import (
	"encoding/csv"
	"io"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

// StatsHeader is CDN,Domain,URL,Count followed by <Stage>_min,_mean,_max for
// every stage.
func StatsHeader() []string {
	header := []string{"CDN", "Domain", "URL", "Count"}
	for _, stage := range models.Stages() {
		name := stage.String()
		header = append(header, name+"_min", name+"_mean", name+"_max")
	}
	return header
}

// WriteStatsCSV exports grouped statistics. An empty slice yields a header-only
// file.
func WriteStatsCSV(w io.Writer, groups []models.GroupStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatsHeader()); err != nil {
		return err
	}
	for _, g := range groups {
		rec := []string{g.Key.CDN, g.Key.Domain, g.Key.URL, itoa(g.Count)}
		for _, stage := range models.Stages() {
			s := g.Stage(stage)
			rec = append(rec, seconds(s.Min), seconds(s.Mean), seconds(s.Max))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
