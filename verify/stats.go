package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// PercentileLevels are the percentiles reported in every summary row.
var PercentileLevels = [7]float64{0, 5, 25, 50, 75, 95, 100}

// Column names of the output tables, in output order.
var (
	DistanceColumns = []string{"Label", "Suffix", "Distance"}
	SummaryColumns  = []string{
		"Label", "Suffix", "Length", "PointCount", "DistanceCount", "Mean", "Stdev",
		"Percentile0", "Percentile5", "Percentile25", "Percentile50",
		"Percentile75", "Percentile95", "Percentile100",
		"AngleDifferenceDegrees",
	}
)

// DistanceRecord is one compare-sample-to-reference distance.
type DistanceRecord struct {
	Label    string  `json:"label"`
	Suffix   int     `json:"suffix"`
	Distance float64 `json:"distance"`
}

// SummaryRecord summarises the distances of one compare path. Undefined
// values are NaN in memory and null in JSON.
type SummaryRecord struct {
	Label                  string
	Suffix                 int
	ReferenceSuffix        int
	Length                 float64
	PointCount             int
	DistanceCount          int
	Mean                   float64
	Stdev                  float64
	Percentiles            [7]float64 // at PercentileLevels
	AngleDifferenceDegrees float64
}

type summaryJSON struct {
	Label                  string      `json:"label"`
	Suffix                 int         `json:"suffix"`
	ReferenceSuffix        int         `json:"referenceSuffix"`
	Length                 *float64    `json:"length"`
	PointCount             int         `json:"pointCount"`
	DistanceCount          int         `json:"distanceCount"`
	Mean                   *float64    `json:"mean"`
	Stdev                  *float64    `json:"stdev"`
	Percentiles            [7]*float64 `json:"percentiles"`
	AngleDifferenceDegrees *float64    `json:"angleDifferenceDegrees"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON implements json.Marshaler.
func (r SummaryRecord) MarshalJSON() ([]byte, error) {
	out := summaryJSON{
		Label:                  r.Label,
		Suffix:                 r.Suffix,
		ReferenceSuffix:        r.ReferenceSuffix,
		Length:                 nullable(r.Length),
		PointCount:             r.PointCount,
		DistanceCount:          r.DistanceCount,
		Mean:                   nullable(r.Mean),
		Stdev:                  nullable(r.Stdev),
		AngleDifferenceDegrees: nullable(r.AngleDifferenceDegrees),
	}
	for i, p := range r.Percentiles {
		out.Percentiles[i] = nullable(p)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SummaryRecord) UnmarshalJSON(data []byte) error {
	var in summaryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = SummaryRecord{
		Label:                  in.Label,
		Suffix:                 in.Suffix,
		ReferenceSuffix:        in.ReferenceSuffix,
		Length:                 fromNullable(in.Length),
		PointCount:             in.PointCount,
		DistanceCount:          in.DistanceCount,
		Mean:                   fromNullable(in.Mean),
		Stdev:                  fromNullable(in.Stdev),
		AngleDifferenceDegrees: fromNullable(in.AngleDifferenceDegrees),
	}
	for i, p := range in.Percentiles {
		r.Percentiles[i] = fromNullable(p)
	}
	return nil
}

// Tables holds both output tables of a statistics run.
type Tables struct {
	Distances []DistanceRecord `json:"distances"`
	Summary   []SummaryRecord  `json:"summary"`
}

// Percentiles returns the values at PercentileLevels using linear
// interpolation of the empirical distribution. p0 is the minimum and p100 the
// maximum. An empty input yields NaN for every level.
func Percentiles(values []float64) [7]float64 {
	var out [7]float64
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	for i, level := range PercentileLevels {
		out[i] = stat.Quantile(level/100, stat.LinInterp, sorted, nil)
	}
	return out
}

// NearestByCentroid returns the reference path whose curve centroid is closest
// to centroid. Ties go to the lowest suffix. Paths without samples are skipped.
func NearestByCentroid(reference *PathCollection, centroid Vec3) (*Path, bool) {
	var best *Path
	bestDist := math.Inf(1)
	for _, p := range reference.Paths() {
		if p.Curve == nil || len(p.Curve.Samples) == 0 {
			continue
		}
		if d := Distance2(centroid, p.Curve.Centroid()); d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best, best != nil
}

// ComputeStatistics maps every compare curve through t, pairs it with the
// reference curve of nearest centroid and measures sample-to-curve distances.
// Rows are produced in ascending compare suffix order and labelled with the
// compare collection's name. Per-suffix failures are joined into the returned
// error while the remaining suffixes are still reported.
func ComputeStatistics(reference, compare *PathCollection, t RigidTransform) (Tables, error) {
	var tables Tables
	if reference == nil || compare == nil {
		return tables, ErrNilCollection
	}
	label := compare.Name

	var errs []error
	for _, p := range compare.Paths() {
		if p.Curve == nil {
			errs = append(errs, fmt.Errorf("%s: %w", compare.CurveName(p.Suffix), ErrMissingCurve))
			continue
		}
		registered := t.ApplyAll(p.Curve.Samples)
		centroid := Centroid(registered)

		match, ok := NearestByCentroid(reference, centroid)
		if !ok {
			log.Printf("[STATS] %s: no reference path in %s", compare.CurveName(p.Suffix), reference.Name)
			errs = append(errs, fmt.Errorf("%s: %w", compare.CurveName(p.Suffix), ErrNoCorrespondence))
			continue
		}

		distances := DistanceHistogram(registered, match.Curve.Samples)
		for _, d := range distances {
			tables.Distances = append(tables.Distances, DistanceRecord{Label: label, Suffix: p.Suffix, Distance: d})
		}

		row := SummaryRecord{
			Label:           label,
			Suffix:          p.Suffix,
			ReferenceSuffix: match.Suffix,
			Length:          p.Curve.Length,
			PointCount:      p.Points.Len(),
			DistanceCount:   len(distances),
			Mean:            math.NaN(),
			Stdev:           math.NaN(),
			Percentiles:     Percentiles(distances),
		}
		if len(distances) > 0 {
			row.Mean, row.Stdev = stat.PopMeanStdDev(distances, nil)
		}

		var compareDir Vec3
		if len(registered) > 0 {
			compareDir = registered[len(registered)-1].Sub(registered[0])
		}
		row.AngleDifferenceDegrees = AngleBetweenDeg(compareDir, match.Curve.Direction())
		if math.IsNaN(row.AngleDifferenceDegrees) {
			log.Printf("[STATS] %s: zero-length direction, angle difference undefined", compare.CurveName(p.Suffix))
		}

		tables.Summary = append(tables.Summary, row)
	}

	log.Printf("[STATS] %s vs %s: %d summary rows, %d distances", label, reference.Name, len(tables.Summary), len(tables.Distances))
	return tables, errors.Join(errs...)
}
