package verify

import (
	"fmt"
	"log"
	"math"
)

// TrimMode selects how path ends are trimmed.
type TrimMode string

const (
	// TrimDirectionalMode cuts every path at planes shared by the whole collection.
	TrimDirectionalMode TrimMode = "directional"
	// TrimFarthestPairMode cuts each path around its own two most distant points.
	TrimFarthestPairMode TrimMode = "farthest-pair"
)

// TrimConfig holds trimming parameters. Distances are in millimetres.
type TrimConfig struct {
	Mode         TrimMode `yaml:"mode" json:"mode"`
	NearTrim     float64  `yaml:"nearTrim" json:"nearTrim"`
	FarTrim      float64  `yaml:"farTrim" json:"farTrim"`
	TrimDistance float64  `yaml:"trimDistance" json:"trimDistance"`
}

// DefaultTrimConfig returns the directional policy with no trimming.
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{Mode: TrimDirectionalMode}
}

// TrimResult describes what a trim did.
type TrimResult struct {
	Applied bool
	// AverageDirection and the bounds are only set by directional trimming.
	AverageDirection Vec3
	Min              float64
	Max              float64
	// Removed maps suffix to the number of points dropped from that path.
	Removed map[int]int
}

// Trim applies the configured policy to every path of the collection.
// Curves are not refit; callers refit after trimming.
func Trim(c *PathCollection, cfg TrimConfig) (TrimResult, error) {
	switch cfg.Mode {
	case TrimDirectionalMode, "":
		return TrimDirectional(c, cfg.NearTrim, cfg.FarTrim)
	case TrimFarthestPairMode:
		return TrimFarthestPair(c, cfg.TrimDistance)
	default:
		return TrimResult{}, fmt.Errorf("%q: %w", cfg.Mode, ErrUnknownTrimMode)
	}
}

// TrimDirectional removes points outside the region that every path covers
// along the collection's average direction, shrunk by nearTrim at the low end
// and farTrim at the high end.
func TrimDirectional(c *PathCollection, nearTrim, farTrim float64) (TrimResult, error) {
	result := TrimResult{Removed: make(map[int]int)}
	if c == nil {
		log.Printf("[TRIM] trim paths collection is nil")
		return result, ErrNilCollection
	}
	paths := c.Paths()
	if len(paths) == 0 {
		log.Printf("[TRIM] %s: there are no paths", c.Name)
		return result, nil
	}
	for _, p := range paths {
		if p.Points.Len() == 0 {
			return result, fmt.Errorf("%s: %w", c.PointsName(p.Suffix), ErrTooFewPoints)
		}
	}

	// Directions are summed with a sign chosen against the first path. A
	// direction whose dot product with the first is positive is subtracted,
	// which includes the first path itself.
	var sum Vec3
	var first Vec3
	for i, p := range paths {
		pts := p.Points.Points
		direction := pts[len(pts)-1].Sub(pts[0])
		if i == 0 {
			first = direction
		}
		if first.Dot(direction) > 0 {
			sum = sum.Sub(direction)
		} else {
			sum = sum.Add(direction)
		}
	}
	average := sum.Scale(1 / float64(len(paths)))
	if average.Norm() == 0 {
		return result, fmt.Errorf("%s: %w", c.Name, ErrDegenerateDirection)
	}
	average = average.Normalize()

	lower := math.Inf(-1)
	upper := math.Inf(1)
	for _, p := range paths {
		localMin := math.Inf(1)
		localMax := math.Inf(-1)
		for _, pt := range p.Points.Points {
			along := pt.Dot(average)
			localMin = math.Min(localMin, along)
			localMax = math.Max(localMax, along)
		}
		lower = math.Max(lower, localMin)
		upper = math.Min(upper, localMax)
	}
	lower += nearTrim
	upper -= farTrim
	result.AverageDirection = average
	result.Min = lower
	result.Max = upper

	if lower > upper {
		return result, fmt.Errorf("%s: bounds [%.3f, %.3f]: %w", c.Name, lower, upper, ErrInvertedTrimBounds)
	}

	kept := make(map[int][]Vec3, len(paths))
	for _, p := range paths {
		var survivors []Vec3
		for _, pt := range p.Points.Points {
			along := pt.Dot(average)
			if along < lower || along > upper {
				continue
			}
			survivors = append(survivors, pt)
		}
		if len(survivors) == 0 {
			return result, fmt.Errorf("%s: %w", c.PointsName(p.Suffix), ErrTrimRemovesAll)
		}
		kept[p.Suffix] = survivors
	}

	applyTrim(c, kept, &result)
	log.Printf("[TRIM] %s: directional trim along (%.3f, %.3f, %.3f) kept [%.3f, %.3f]",
		c.Name, average.X, average.Y, average.Z, lower, upper)
	return result, nil
}

// TrimFarthestPair removes, independently for every path, the points lying
// within trimDistance of either of the path's two most distant points.
func TrimFarthestPair(c *PathCollection, trimDistance float64) (TrimResult, error) {
	result := TrimResult{Removed: make(map[int]int)}
	if c == nil {
		log.Printf("[TRIM] trim paths collection is nil")
		return result, ErrNilCollection
	}
	paths := c.Paths()
	if len(paths) == 0 {
		log.Printf("[TRIM] %s: there are no paths", c.Name)
		return result, nil
	}

	kept := make(map[int][]Vec3, len(paths))
	for _, p := range paths {
		pts := p.Points.Points
		if len(pts) < 2 {
			kept[p.Suffix] = pts
			continue
		}
		a, b := FarthestPair(pts)
		var survivors []Vec3
		for _, pt := range pts {
			if Distance(pt, pts[a]) < trimDistance || Distance(pt, pts[b]) < trimDistance {
				continue
			}
			survivors = append(survivors, pt)
		}
		if len(survivors) == 0 {
			return result, fmt.Errorf("%s: %w", c.PointsName(p.Suffix), ErrTrimRemovesAll)
		}
		kept[p.Suffix] = survivors
	}

	applyTrim(c, kept, &result)
	log.Printf("[TRIM] %s: farthest-pair trim with radius %.3f", c.Name, trimDistance)
	return result, nil
}

// FarthestPair returns the indices of the two points with maximum separation.
func FarthestPair(points []Vec3) (int, int) {
	bestA, bestB := 0, 0
	best := -1.0
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if d := Distance2(points[i], points[j]); d > best {
				best = d
				bestA, bestB = i, j
			}
		}
	}
	return bestA, bestB
}

// applyTrim swaps in the surviving points once every path has been validated.
func applyTrim(c *PathCollection, kept map[int][]Vec3, result *TrimResult) {
	for suffix, survivors := range kept {
		p := c.Path(suffix)
		result.Removed[suffix] = p.Points.Len() - len(survivors)
		rebuilt := NewPointCloud(survivors)
		rebuilt.Parent = p.Points.Parent
		p.Points = rebuilt
	}
	result.Applied = true
}
