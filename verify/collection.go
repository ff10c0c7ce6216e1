package verify

import (
	"fmt"
	"log"
	"sort"
)

// PathCollection owns a set of paths keyed by suffix (catheter index).
// Suffixes need not be contiguous; iteration is always in ascending order.
type PathCollection struct {
	Name string

	paths     map[int]*Path
	nextCount int
	lastAdded int
}

// NewPathCollection creates an empty collection.
func NewPathCollection(name string) *PathCollection {
	return &PathCollection{
		Name:      name,
		paths:     make(map[int]*Path),
		lastAdded: -1,
	}
}

// AddPath stores a copy of points under the next free suffix and returns the new path.
func (c *PathCollection) AddPath(points []Vec3) *Path {
	for {
		if _, taken := c.paths[c.nextCount]; !taken {
			break
		}
		c.nextCount++
	}
	p := &Path{Suffix: c.nextCount, Points: NewPointCloud(points)}
	c.paths[p.Suffix] = p
	c.lastAdded = p.Suffix
	c.nextCount++
	return p
}

// SetPath stores points under an explicit suffix. The suffix must be unused.
func (c *PathCollection) SetPath(suffix int, points []Vec3) (*Path, error) {
	if suffix < 0 {
		return nil, fmt.Errorf("suffix %d: must not be negative", suffix)
	}
	if _, taken := c.paths[suffix]; taken {
		return nil, fmt.Errorf("suffix %d: %w", suffix, ErrDuplicateSuffix)
	}
	p := &Path{Suffix: suffix, Points: NewPointCloud(points)}
	c.paths[suffix] = p
	c.lastAdded = suffix
	if suffix >= c.nextCount {
		c.nextCount = suffix + 1
	}
	return p, nil
}

// Path returns the path stored under suffix, or nil.
func (c *PathCollection) Path(suffix int) *Path {
	if c == nil {
		return nil
	}
	return c.paths[suffix]
}

// Suffixes returns every suffix in ascending order.
func (c *PathCollection) Suffixes() []int {
	if c == nil {
		return nil
	}
	suffixes := make([]int, 0, len(c.paths))
	for s := range c.paths {
		suffixes = append(suffixes, s)
	}
	sort.Ints(suffixes)
	return suffixes
}

// Paths returns every path in ascending suffix order.
func (c *PathCollection) Paths() []*Path {
	suffixes := c.Suffixes()
	paths := make([]*Path, len(suffixes))
	for i, s := range suffixes {
		paths[i] = c.paths[s]
	}
	return paths
}

func (c *PathCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.paths)
}

// RemovePath deletes the path with the given suffix.
func (c *PathCollection) RemovePath(suffix int) error {
	if _, ok := c.paths[suffix]; !ok {
		return fmt.Errorf("suffix %d: %w", suffix, ErrUnknownSuffix)
	}
	delete(c.paths, suffix)
	if c.lastAdded == suffix {
		c.lastAdded = -1
	}
	return nil
}

// LastAddedSuffix returns the suffix of the most recently added path, or -1.
func (c *PathCollection) LastAddedSuffix() int {
	return c.lastAdded
}

// DeleteLastPath removes the most recently added path. An empty collection
// logs a warning and is left unchanged.
func (c *PathCollection) DeleteLastPath() error {
	if c == nil {
		return ErrNilCollection
	}
	if len(c.paths) == 0 || c.lastAdded < 0 {
		log.Printf("[PATHS] %s: no path to delete", c.Name)
		return nil
	}
	suffix := c.lastAdded
	delete(c.paths, suffix)

	// Fall back to the highest remaining suffix so repeated deletes keep working.
	c.lastAdded = -1
	for s := range c.paths {
		if s > c.lastAdded {
			c.lastAdded = s
		}
	}
	return nil
}

// PointsName is the display name of the point cloud for suffix.
func (c *PathCollection) PointsName(suffix int) string {
	return fmt.Sprintf("%s_CatheterPoints%d", c.Name, suffix)
}

// CurveName is the display name of the fitted curve for suffix.
func (c *PathCollection) CurveName(suffix int) string {
	return fmt.Sprintf("%s_CatheterPath%d", c.Name, suffix)
}

// Refit regenerates every path's curve from its current points.
func (c *PathCollection) Refit(fitter Fitter, cfg FitConfig) error {
	if c == nil {
		return ErrNilCollection
	}
	curves := make(map[int]*Curve, len(c.paths))
	for _, p := range c.Paths() {
		curve, err := fitter.Refit(p.Points, cfg)
		if err != nil {
			return fmt.Errorf("refitting %s: %w", c.CurveName(p.Suffix), err)
		}
		curves[p.Suffix] = curve
	}
	// Only swap curves in once every path fitted.
	for suffix, curve := range curves {
		p := c.paths[suffix]
		if p.Curve != nil {
			curve.Parent = p.Curve.Parent
		}
		p.Curve = curve
	}
	return nil
}

// PointCount returns the total number of raw points in the collection.
func (c *PathCollection) PointCount() int {
	total := 0
	for _, p := range c.Paths() {
		total += p.Points.Len()
	}
	return total
}

// CurveSamples returns the curve samples of every path in ascending suffix
// order, one polyline per path. This is the ICP target.
func (c *PathCollection) CurveSamples() ([][]Vec3, error) {
	if c == nil {
		return nil, ErrNilCollection
	}
	var curves [][]Vec3
	for _, p := range c.Paths() {
		if p.Curve == nil {
			return nil, fmt.Errorf("%s: %w", c.CurveName(p.Suffix), ErrMissingCurve)
		}
		curves = append(curves, p.Curve.Samples)
	}
	return curves, nil
}

// CombinedSamples concatenates the curve samples of every path in ascending
// suffix order. This is the ICP source.
func (c *PathCollection) CombinedSamples() ([]Vec3, error) {
	curves, err := c.CurveSamples()
	if err != nil {
		return nil, err
	}
	var combined []Vec3
	for _, samples := range curves {
		combined = append(combined, samples...)
	}
	return combined, nil
}

// Clone returns a deep copy of the collection's points and curves. Transform
// observations are not copied.
func (c *PathCollection) Clone(name string) *PathCollection {
	out := NewPathCollection(name)
	for _, p := range c.Paths() {
		np, _ := out.SetPath(p.Suffix, p.Points.Points)
		if p.Curve != nil {
			samples := make([]Vec3, len(p.Curve.Samples))
			copy(samples, p.Curve.Samples)
			np.Curve = &Curve{Samples: samples, Length: p.Curve.Length}
		}
	}
	out.nextCount = c.nextCount
	out.lastAdded = c.lastAdded
	return out
}

// TransformedCopy returns a deep copy with every point and curve sample
// rewritten by m. Used to build synthetic compare data.
func (c *PathCollection) TransformedCopy(name string, m RigidTransform) *PathCollection {
	out := c.Clone(name)
	for _, p := range out.Paths() {
		p.Points.Points = m.ApplyAll(p.Points.Points)
		if p.Curve != nil {
			p.Curve.Samples = m.ApplyAll(p.Curve.Samples)
		}
	}
	return out
}
