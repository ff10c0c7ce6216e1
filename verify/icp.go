package verify

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ICPConfig holds configuration for the ICP algorithm.
// Distances are in millimetres.
type ICPConfig struct {
	MaxIterations            int     `yaml:"maxIterations" json:"maxIterations"`                       // Iteration cap; reaching it unconverged is a failure
	Tolerance                float64 `yaml:"tolerance" json:"tolerance"`                               // Converged when the RMS changes by less than this
	DivergenceTolerance      float64 `yaml:"divergenceTolerance" json:"divergenceTolerance"`           // Fail when the RMS grows by more than this
	MaxLandmarks             int     `yaml:"maxLandmarks" json:"maxLandmarks"`                         // Source points used per iteration (evenly strided)
	StartByMatchingCentroids bool    `yaml:"startByMatchingCentroids" json:"startByMatchingCentroids"` // Translate centroids together before iterating
}

// DefaultICPConfig returns sensible defaults for ICP on catheter curves
// sampled every 0.25mm.
func DefaultICPConfig() ICPConfig {
	return ICPConfig{
		MaxIterations:       100,
		Tolerance:           1e-6,
		DivergenceTolerance: 1e-6,
		MaxLandmarks:        200,
	}
}

// ICPResult contains the result of ICP alignment
type ICPResult struct {
	Transform  RigidTransform // Maps source onto target
	RMS        float64        // Final RMS closest-point distance
	Iterations int            // Number of iterations performed
	Converged  bool
}

// curveVertex is a target sample tagged with its curve and position so the
// segments on either side of it can be recovered.
type curveVertex struct {
	p     Vec3
	curve int
	index int
}

func coord(p Vec3, d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func (v curveVertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return coord(v.p, d) - coord(c.(curveVertex).p, d)
}

func (v curveVertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, as kdtree.Point does.
func (v curveVertex) Distance(c kdtree.Comparable) float64 {
	d := v.p.Sub(c.(curveVertex).p)
	return d.Dot(d)
}

type curveVertices []curveVertex

func (v curveVertices) Index(i int) kdtree.Comparable         { return v[i] }
func (v curveVertices) Len() int                              { return len(v) }
func (v curveVertices) Pivot(d kdtree.Dim) int                { return vertexPlane{Dim: d, curveVertices: v}.Pivot() }
func (v curveVertices) Slice(start, end int) kdtree.Interface { return v[start:end] }

type vertexPlane struct {
	kdtree.Dim
	curveVertices
}

func (p vertexPlane) Less(i, j int) bool {
	return coord(p.curveVertices[i].p, p.Dim) < coord(p.curveVertices[j].p, p.Dim)
}
func (p vertexPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100)) }
func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	p.curveVertices = p.curveVertices[start:end]
	return p
}
func (p vertexPlane) Swap(i, j int) {
	p.curveVertices[i], p.curveVertices[j] = p.curveVertices[j], p.curveVertices[i]
}

// nearestIndex answers closest-point queries against a fixed set of
// polylines. Segments never join the end of one curve to the start of the next.
type nearestIndex struct {
	curves [][]Vec3
	tree   *kdtree.Tree
	// reach is half the longest segment: the closest point on any segment lies
	// within reach of one of its end vertices.
	reach float64
}

func newNearestIndex(curves [][]Vec3) *nearestIndex {
	var vertices curveVertices
	var longest float64
	for ci, curve := range curves {
		for i, p := range curve {
			vertices = append(vertices, curveVertex{p: p, curve: ci, index: i})
			if i > 0 {
				longest = math.Max(longest, Distance(curve[i-1], p))
			}
		}
	}
	return &nearestIndex{curves: curves, tree: kdtree.New(vertices, false), reach: longest / 2}
}

// Nearest returns the closest point to q on any indexed polyline and the
// squared distance to it.
func (ni *nearestIndex) Nearest(q Vec3) (Vec3, float64) {
	query := curveVertex{p: q}
	c, d2 := ni.tree.Nearest(query)
	best, bestD2 := c.(curveVertex).p, d2

	r := math.Sqrt(d2) + ni.reach
	keeper := kdtree.NewDistKeeper(r * r)
	ni.tree.NearestSet(keeper, query)
	for _, kept := range keeper.Heap {
		if kept.Comparable == nil {
			continue
		}
		v := kept.Comparable.(curveVertex)
		curve := ni.curves[v.curve]
		for _, j := range [2]int{v.index - 1, v.index + 1} {
			if j < 0 || j >= len(curve) {
				continue
			}
			p := ClosestPointOnSegment(q, curve[v.index], curve[j])
			if d := p.Sub(q); d.Dot(d) < bestD2 {
				best, bestD2 = p, d.Dot(d)
			}
		}
	}
	return best, bestD2
}

// subsample keeps at most max points using an even stride.
func subsample(points []Vec3, max int) []Vec3 {
	if max <= 0 || len(points) <= max {
		return points
	}
	step := float64(len(points)) / float64(max)
	result := make([]Vec3, 0, max)
	for i := 0; i < max; i++ {
		result = append(result, points[int(float64(i)*step)])
	}
	return result
}

// RunICP rigidly aligns source points onto the target polylines by iterating
// closest-point correspondence and least-squares rigid fitting. Each source
// point is matched to the nearest point on any target segment, not to the
// nearest target sample. The returned transform maps source coordinates onto
// target coordinates.
//
// Reaching MaxIterations without the RMS settling returns ErrICPNotConverged
// and an RMS increase beyond DivergenceTolerance returns ErrICPDiverged. The
// result is filled in either case for diagnostics.
func RunICP(source []Vec3, target [][]Vec3, config ICPConfig) (ICPResult, error) {
	result := ICPResult{Transform: Identity(), RMS: math.NaN()}
	var targetPoints []Vec3
	for _, curve := range target {
		targetPoints = append(targetPoints, curve...)
	}
	if len(source) == 0 || len(targetPoints) == 0 {
		return result, fmt.Errorf("source %d, target %d points: %w", len(source), len(targetPoints), ErrEmptySurface)
	}

	sourcePoints := subsample(source, config.MaxLandmarks)
	index := newNearestIndex(target)

	current := Identity()
	if config.StartByMatchingCentroids {
		shift := Centroid(targetPoints).Sub(Centroid(sourcePoints))
		current = Translation(shift.X, shift.Y, shift.Z)
	}

	matches := make([]Vec3, len(sourcePoints))
	correspond := func(moved []Vec3) float64 {
		var sum float64
		for i, p := range moved {
			q, d2 := index.Nearest(p)
			matches[i] = q
			sum += d2
		}
		return math.Sqrt(sum / float64(len(moved)))
	}

	prevRMS := math.Inf(1)
	for iter := 0; iter < config.MaxIterations; iter++ {
		result.Iterations = iter + 1

		moved := current.ApplyAll(sourcePoints)
		rms := correspond(moved)
		result.RMS = rms
		result.Transform = current

		if rms > prevRMS+config.DivergenceTolerance {
			log.Printf("[ICP] diverged at iteration %d: rms %.6f > %.6f", iter+1, rms, prevRMS)
			return result, fmt.Errorf("iteration %d rms %.6f after %.6f: %w", iter+1, rms, prevRMS, ErrICPDiverged)
		}
		if math.Abs(prevRMS-rms) < config.Tolerance || rms < 1e-12 {
			result.Converged = true
			return result, nil
		}

		step, err := FitRigid(moved, matches, true)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", iter+1, err)
		}
		current = current.Then(step)
		prevRMS = rms
	}

	log.Printf("[ICP] not converged after %d iterations (rms %.6f)", result.Iterations, result.RMS)
	return result, fmt.Errorf("%d iterations, rms %.6f: %w", result.Iterations, result.RMS, ErrICPNotConverged)
}
