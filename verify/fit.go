package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fitter turns a raw point cloud into a smooth, densely sampled curve.
type Fitter interface {
	Refit(points *PointCloud, cfg FitConfig) (*Curve, error)
}

// Curve fitting options.
const (
	CurvePolynomial = "polynomial"

	FitMovingLeastSquares = "moving-least-squares"
	FitGlobalLeastSquares = "global-least-squares"

	OrderingMinimumSpanningTree = "minimum-spanning-tree"
	OrderingAcquisition         = "acquisition"

	WeightingGaussian = "gaussian"
)

// maxFitOrder is the highest supported polynomial order.
const maxFitOrder = 3

// FitConfig configures curve fitting. SampleSpacing is in millimetres;
// KernelWidth is the gaussian sigma as a fraction of the parameter range.
type FitConfig struct {
	CurveType     string  `yaml:"curveType" json:"curveType"`
	FitType       string  `yaml:"fitType" json:"fitType"`
	Order         int     `yaml:"order" json:"order"`
	SampleSpacing float64 `yaml:"sampleSpacing" json:"sampleSpacing"`
	KernelWidth   float64 `yaml:"kernelWidth" json:"kernelWidth"`
	PointOrdering string  `yaml:"pointOrdering" json:"pointOrdering"`
	Weighting     string  `yaml:"weighting" json:"weighting"`
}

// DefaultFitConfig returns the first order moving least squares fit sampled
// every 0.25mm with points ordered along their minimum spanning tree.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		CurveType:     CurvePolynomial,
		FitType:       FitMovingLeastSquares,
		Order:         1,
		SampleSpacing: 0.25,
		KernelWidth:   0.25,
		PointOrdering: OrderingMinimumSpanningTree,
		Weighting:     WeightingGaussian,
	}
}

// Validate reports configuration values the fitter cannot honour.
func (cfg FitConfig) Validate() error {
	if cfg.CurveType != CurvePolynomial {
		return fmt.Errorf("curve type %q: %w", cfg.CurveType, ErrUnsupportedFit)
	}
	if cfg.FitType != FitMovingLeastSquares && cfg.FitType != FitGlobalLeastSquares {
		return fmt.Errorf("fit type %q: %w", cfg.FitType, ErrUnsupportedFit)
	}
	if cfg.Order < 0 || cfg.Order > maxFitOrder {
		return fmt.Errorf("order %d: %w", cfg.Order, ErrUnsupportedFit)
	}
	if cfg.SampleSpacing <= 0 {
		return fmt.Errorf("sample spacing %g: %w", cfg.SampleSpacing, ErrUnsupportedFit)
	}
	if cfg.PointOrdering != OrderingMinimumSpanningTree && cfg.PointOrdering != OrderingAcquisition {
		return fmt.Errorf("point ordering %q: %w", cfg.PointOrdering, ErrUnsupportedFit)
	}
	if cfg.FitType == FitMovingLeastSquares {
		if cfg.Weighting != WeightingGaussian {
			return fmt.Errorf("weighting %q: %w", cfg.Weighting, ErrUnsupportedFit)
		}
		if cfg.KernelWidth <= 0 {
			return fmt.Errorf("kernel width %g: %w", cfg.KernelWidth, ErrUnsupportedFit)
		}
	}
	return nil
}

// MLSFitter fits a parametric polynomial curve x(t), y(t), z(t) to the points.
// The parameter of each point is its distance from one end along the chosen
// ordering, so the fit follows the catheter even when points arrive out of
// order.
type MLSFitter struct{}

// Refit implements Fitter.
func (MLSFitter) Refit(points *PointCloud, cfg FitConfig) (*Curve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pts := points.Points
	if points.Len() < 2 {
		return nil, fmt.Errorf("%d points: %w", points.Len(), ErrTooFewPoints)
	}

	var params []float64
	var span float64
	switch cfg.PointOrdering {
	case OrderingMinimumSpanningTree:
		params, span = treeParameters(pts)
	default:
		params, span = acquisitionParameters(pts)
	}
	if span == 0 {
		return nil, fmt.Errorf("all %d points coincide: %w", len(pts), ErrTooFewPoints)
	}
	if distinct := countDistinct(params); distinct < cfg.Order+1 {
		return nil, fmt.Errorf("%d distinct parameters for order %d: %w", distinct, cfg.Order, ErrTooFewPoints)
	}

	evaluations := int(math.Ceil(2*span/cfg.SampleSpacing)) + 1
	dense := make([]Vec3, 0, evaluations)
	for i := 0; i < evaluations; i++ {
		t := float64(i) / float64(evaluations-1)
		p, err := evaluateLocalPolynomial(pts, params, t, cfg)
		if err != nil {
			return nil, err
		}
		dense = append(dense, p)
	}

	samples := ResampleByArcLength(dense, cfg.SampleSpacing)
	return &Curve{Samples: samples, Length: PolylineLength(samples)}, nil
}

// evaluateLocalPolynomial solves the weighted least squares polynomial around
// t0 for all three axes and returns its value at t0.
func evaluateLocalPolynomial(pts []Vec3, params []float64, t0 float64, cfg FitConfig) (Vec3, error) {
	cols := cfg.Order + 1
	a := mat.NewDense(len(pts), cols, nil)
	b := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		d := params[i] - t0
		w := 1.0
		if cfg.FitType == FitMovingLeastSquares {
			u := d / cfg.KernelWidth
			w = math.Sqrt(math.Exp(-0.5 * u * u))
		}
		term := w
		for c := 0; c < cols; c++ {
			a.Set(i, c, term)
			term *= d
		}
		b.Set(i, 0, w*p.X)
		b.Set(i, 1, w*p.Y)
		b.Set(i, 2, w*p.Z)
	}

	var coef mat.Dense
	if err := coef.Solve(a, b); err != nil {
		return Vec3{}, fmt.Errorf("local fit at t=%.4f: %v: %w", t0, err, ErrUnsupportedFit)
	}
	return Vec3{coef.At(0, 0), coef.At(0, 1), coef.At(0, 2)}, nil
}

// acquisitionParameters uses cumulative distance in acquisition order,
// normalised to [0, 1].
func acquisitionParameters(pts []Vec3) ([]float64, float64) {
	params := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		params[i] = params[i-1] + Distance(pts[i-1], pts[i])
	}
	span := params[len(params)-1]
	if span > 0 {
		for i := range params {
			params[i] /= span
		}
	}
	return params, span
}

// treeParameters orders points along their minimum spanning tree. Each point's
// parameter is its tree distance from one end of the tree's longest path,
// normalised to [0, 1]. The end nearer the first acquired point gets 0.
func treeParameters(pts []Vec3) ([]float64, float64) {
	adj := minimumSpanningTree(pts)

	fromFirst := treeDistances(adj, 0)
	a := argMax(fromFirst)
	fromA := treeDistances(adj, a)
	b := argMax(fromA)
	span := fromA[b]
	if span == 0 {
		return make([]float64, len(pts)), 0
	}

	params := make([]float64, len(pts))
	flip := Distance2(pts[a], pts[0]) > Distance2(pts[b], pts[0])
	for i, d := range fromA {
		params[i] = d / span
		if flip {
			params[i] = 1 - params[i]
		}
	}
	return params, span
}

type treeEdge struct {
	to     int
	weight float64
}

// minimumSpanningTree builds the Euclidean MST with Prim's algorithm.
func minimumSpanningTree(pts []Vec3) [][]treeEdge {
	n := len(pts)
	adj := make([][]treeEdge, n)
	inTree := make([]bool, n)
	best := make([]float64, n)
	parent := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		parent[i] = -1
	}
	best[0] = 0
	for iter := 0; iter < n; iter++ {
		u := -1
		for i := 0; i < n; i++ {
			if !inTree[i] && (u < 0 || best[i] < best[u]) {
				u = i
			}
		}
		inTree[u] = true
		if parent[u] >= 0 {
			w := Distance(pts[u], pts[parent[u]])
			adj[u] = append(adj[u], treeEdge{to: parent[u], weight: w})
			adj[parent[u]] = append(adj[parent[u]], treeEdge{to: u, weight: w})
		}
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			if d := Distance(pts[u], pts[v]); d < best[v] {
				best[v] = d
				parent[v] = u
			}
		}
	}
	return adj
}

// treeDistances returns the path length from root to every node of the tree.
func treeDistances(adj [][]treeEdge, root int) []float64 {
	dist := make([]float64, len(adj))
	visited := make([]bool, len(adj))
	visited[root] = true
	stack := []int{root}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range adj[u] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			dist[e.to] = dist[u] + e.weight
			stack = append(stack, e.to)
		}
	}
	return dist
}

func argMax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func countDistinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// ResampleByArcLength returns points spaced every spacing along the polyline,
// starting at its first point. The last point is always included.
func ResampleByArcLength(points []Vec3, spacing float64) []Vec3 {
	if len(points) < 2 || spacing <= 0 {
		out := make([]Vec3, len(points))
		copy(out, points)
		return out
	}

	cumulative := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cumulative[i] = cumulative[i-1] + Distance(points[i-1], points[i])
	}
	total := cumulative[len(cumulative)-1]
	eps := 1e-6 * spacing

	count := int(math.Floor(total/spacing + 1e-9))
	out := make([]Vec3, 0, count+2)
	seg := 1
	for i := 0; i <= count; i++ {
		s := math.Min(float64(i)*spacing, total)
		for seg < len(points)-1 && cumulative[seg] < s {
			seg++
		}
		segLen := cumulative[seg] - cumulative[seg-1]
		if segLen == 0 {
			out = append(out, points[seg])
			continue
		}
		f := (s - cumulative[seg-1]) / segLen
		f = math.Max(0, math.Min(1, f))
		a, b := points[seg-1], points[seg]
		out = append(out, a.Add(b.Sub(a).Scale(f)))
	}
	if total-float64(count)*spacing > eps {
		out = append(out, points[len(points)-1])
	}
	return out
}
