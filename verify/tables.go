package verify

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteDistancesCSV writes the distance table with a header row.
func WriteDistancesCSV(w io.Writer, rows []DistanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DistanceColumns); err != nil {
		return fmt.Errorf("writing distance header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Label, strconv.Itoa(r.Suffix), formatFloat(r.Distance)}); err != nil {
			return fmt.Errorf("writing distance row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes the summary table with a header row.
func WriteSummaryCSV(w io.Writer, rows []SummaryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryColumns); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}
	for _, r := range rows {
		row := []string{
			r.Label,
			strconv.Itoa(r.Suffix),
			formatFloat(r.Length),
			strconv.Itoa(r.PointCount),
			strconv.Itoa(r.DistanceCount),
			formatFloat(r.Mean),
			formatFloat(r.Stdev),
		}
		for _, p := range r.Percentiles {
			row = append(row, formatFloat(p))
		}
		row = append(row, formatFloat(r.AngleDifferenceDegrees))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTables writes <label>Distances.csv and <label>Summary.csv into dir and
// returns their paths. Labels that would leave dir are rejected.
func WriteTables(dir, label string, t Tables) (string, string, error) {
	if label == "" || label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return "", "", fmt.Errorf("%q: %w", label, ErrInvalidLabel)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}
	distPath := filepath.Join(dir, label+"Distances.csv")
	sumPath := filepath.Join(dir, label+"Summary.csv")

	if err := writeFile(distPath, func(w io.Writer) error { return WriteDistancesCSV(w, t.Distances) }); err != nil {
		return "", "", err
	}
	if err := writeFile(sumPath, func(w io.Writer) error { return WriteSummaryCSV(w, t.Summary) }); err != nil {
		return "", "", err
	}
	return distPath, sumPath, nil
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
