// Package report writes the raw sample table, the grouped statistics and the
// box plot for a survey run.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/apex/log"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Paths returns the .txt, .csv and .png paths for an output prefix.
func Paths(prefix string) (txt, csv, png string) {
	return prefix + ".txt", prefix + ".csv", prefix + ".png"
}

// WriteAll writes every report for prefix. The box plot is skipped when plot is
// false.
func WriteAll(prefix string, table models.SampleTable, groups []models.GroupStats, plot bool, logger log.Interface) error {
	txt, csvPath, png := Paths(prefix)
	if err := writeFile(txt, func(w io.Writer) error { return WriteTable(w, table) }); err != nil {
		return err
	}
	logger.WithField("path", txt).Info("wrote sample table")

	if err := writeFile(csvPath, func(w io.Writer) error { return WriteStatsCSV(w, groups) }); err != nil {
		return err
	}
	logger.WithField("path", csvPath).Info("wrote statistics")

	if !plot {
		return nil
	}
	if err := writeFile(png, func(w io.Writer) error { return WriteBoxPlot(w, table) }); err != nil {
		return err
	}
	logger.WithField("path", png).Info("wrote box plot")
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
