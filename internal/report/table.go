package report

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

var sampleHeader = []string{"", "CDN", "Domain", "URL",
	"Namelookup", "Connect", "Appconnect", "Pretransfer", "Starttransfer", "Total"}

// WriteTable renders every raw sample as a bordered text table.
func WriteTable(w io.Writer, table models.SampleTable) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(sampleHeader)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, row := range table {
		line := []string{strconv.Itoa(i), row.CDN, row.Domain, row.URL}
		for _, stage := range models.Stages() {
			line = append(line, seconds(row.Value(stage)))
		}
		tw.Append(line)
	}
	tw.Render()
	return nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
