// Package aggregate groups timing samples by (CDN, domain, URL) and summarises
// every stage.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Aggregate returns one GroupStats per distinct key in table, sorted by key.
// The result does not depend on the order of the rows.
func Aggregate(table models.SampleTable) ([]models.GroupStats, error) {
	groups := make(map[models.GroupKey][]models.TimingSample)
	for _, row := range table {
		groups[row.Key()] = append(groups[row.Key()], row)
	}

	keys := make([]models.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]models.GroupStats, 0, len(keys))
	for _, k := range keys {
		g, err := summarise(k, groups[k])
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func summarise(key models.GroupKey, rows []models.TimingSample) (models.GroupStats, error) {
	g := models.GroupStats{Key: key, Count: len(rows)}
	for _, stage := range models.Stages() {
		data := make(stats.Float64Data, 0, len(rows))
		for _, row := range rows {
			data = append(data, row.Value(stage))
		}
		sum, err := Summarise(data)
		if err != nil {
			return g, fmt.Errorf("%s %s: %w", key.URL, stage, err)
		}
		g.Stages = append(g.Stages, sum)
	}
	return g, nil
}

// Summarise returns min, arithmetic mean and max of data.
func Summarise(data stats.Float64Data) (models.Summary, error) {
	var s models.Summary
	var err error
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	return s, nil
}

// ByCDN returns the values of stage grouped by CDN, with CDN names sorted.
func ByCDN(table models.SampleTable, stage models.Stage) ([]string, map[string][]float64) {
	values := make(map[string][]float64)
	for _, row := range table {
		values[row.CDN] = append(values[row.CDN], row.Value(stage))
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, values
}
