package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/sagoresarker/cdnprobe/internal/aggregate"
	"github.com/sagoresarker/cdnprobe/internal/models"
)

// PlotStages are drawn as a 2x2 grid of box plots grouped by CDN.
var PlotStages = []models.Stage{models.Namelookup, models.Connect, models.Appconnect, models.Starttransfer}

const plotCols = 2

// WriteBoxPlot renders a PNG with one box plot per stage in PlotStages.
func WriteBoxPlot(w io.Writer, table models.SampleTable) error {
	rows := (len(PlotStages) + plotCols - 1) / plotCols
	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, plotCols)
	}
	for i, stage := range PlotStages {
		p, err := stagePlot(table, stage)
		if err != nil {
			return err
		}
		plots[i/plotCols][i%plotCols] = p
	}

	img := vgimg.New(vg.Points(900), vg.Points(300*float64(rows)))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: plotCols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(4), PadBottom: vg.Points(4),
		PadLeft: vg.Points(4), PadRight: vg.Points(4),
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i, p := range plots[j] {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}
	png := vgimg.PngCanvas{Canvas: img}
	_, err := png.WriteTo(w)
	return err
}

func stagePlot(table models.SampleTable, stage models.Stage) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = stage.String()
	p.X.Label.Text = "CDN"
	p.Y.Label.Text = "seconds"

	names, values := aggregate.ByCDN(table, stage)
	if len(names) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
		return p, nil
	}
	width := vg.Points(20)
	for i, name := range names {
		box, err := plotter.NewBoxPlot(width, float64(i), plotter.Values(values[name]))
		if err != nil {
			return nil, fmt.Errorf("box plot %s/%s: %w", stage, name, err)
		}
		p.Add(box)
	}
	p.NominalX(names...)
	return p, nil
}
