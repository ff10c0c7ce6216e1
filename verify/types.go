package verify

import (
	"math"
	"sync"
)

// Vec3 is a point or direction in millimetres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// Distance2 returns the squared Euclidean distance between two points
func Distance2(a, b Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// Centroid calculates the center of mass of a set of points
func Centroid(points []Vec3) Vec3 {
	if len(points) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points)))
}

// PolylineLength returns the summed segment length of an ordered point list.
func PolylineLength(points []Vec3) float64 {
	var length float64
	for i := 1; i < len(points); i++ {
		length += Distance(points[i-1], points[i])
	}
	return length
}

// TransformNode is a named, shared handle to a rigid transform. Geometry that
// observes a node reads the matrix when it needs world coordinates; the stored
// matrix is only ever replaced as a whole.
type TransformNode struct {
	Name string

	mu     sync.RWMutex
	matrix RigidTransform
}

// NewTransformNode creates a node holding the identity transform.
func NewTransformNode(name string) *TransformNode {
	return &TransformNode{Name: name, matrix: Identity()}
}

// Matrix returns a copy of the current transform.
func (n *TransformNode) Matrix() RigidTransform {
	if n == nil {
		return Identity()
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.matrix
}

// Set replaces the transform held by the node.
func (n *TransformNode) Set(m RigidTransform) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matrix = m
}

// PointCloud is an ordered set of raw points for one catheter, in acquisition order.
type PointCloud struct {
	Points []Vec3
	Parent *TransformNode
}

// NewPointCloud copies points into a new cloud.
func NewPointCloud(points []Vec3) *PointCloud {
	cp := make([]Vec3, len(points))
	copy(cp, points)
	return &PointCloud{Points: cp}
}

// Len returns the number of points, treating a nil cloud as empty.
func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.Points)
}

// WorldPoints returns the points with the observed parent transform applied.
func (pc *PointCloud) WorldPoints() []Vec3 {
	return pc.Parent.Matrix().ApplyAll(pc.Points)
}

// Curve is the smooth resampled representation of a point cloud produced by a
// Fitter. Samples are ordered from one end of the catheter to the other.
type Curve struct {
	Samples []Vec3
	Length  float64
	Parent  *TransformNode
}

// First returns the first sample of the curve.
func (c *Curve) First() Vec3 {
	if c == nil || len(c.Samples) == 0 {
		return Vec3{}
	}
	return c.Samples[0]
}

// Last returns the last sample of the curve.
func (c *Curve) Last() Vec3 {
	if c == nil || len(c.Samples) == 0 {
		return Vec3{}
	}
	return c.Samples[len(c.Samples)-1]
}

// Direction is the end-to-end vector of the curve.
func (c *Curve) Direction() Vec3 {
	return c.Last().Sub(c.First())
}

func (c *Curve) Centroid() Vec3 {
	return Centroid(c.Samples)
}

// WorldSamples returns the samples with the observed parent transform applied.
func (c *Curve) WorldSamples() []Vec3 {
	return c.Parent.Matrix().ApplyAll(c.Samples)
}

// Path pairs a catheter's raw points with the curve fitted to them.
type Path struct {
	Suffix int
	Points *PointCloud
	Curve  *Curve
}

// LandmarkSet is an ordered list of registration landmarks.
type LandmarkSet struct {
	Name   string
	Points []Vec3
	Parent *TransformNode
}

// NewLandmarkSet creates an empty landmark set.
func NewLandmarkSet(name string) *LandmarkSet {
	return &LandmarkSet{Name: name}
}

// Clear removes all landmarks.
func (ls *LandmarkSet) Clear() {
	ls.Points = ls.Points[:0]
}

// Add appends a landmark.
func (ls *LandmarkSet) Add(p Vec3) {
	ls.Points = append(ls.Points, p)
}

func (ls *LandmarkSet) Len() int {
	if ls == nil {
		return 0
	}
	return len(ls.Points)
}

// WorldPoints returns the landmarks with the observed parent transform applied.
func (ls *LandmarkSet) WorldPoints() []Vec3 {
	return ls.Parent.Matrix().ApplyAll(ls.Points)
}
