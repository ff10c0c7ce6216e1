package verify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linePoints returns n evenly spaced points from a to b inclusive.
func linePoints(a, b Vec3, n int) []Vec3 {
	points := make([]Vec3, n)
	for i := range points {
		f := float64(i) / float64(n-1)
		points[i] = a.Add(b.Sub(a).Scale(f))
	}
	return points
}

// parallelPaths returns three paths along +X from x=0 to x=10 with 11 points
// each, at y = 0, 5 and 10.
func parallelPaths(name string) *PathCollection {
	c := NewPathCollection(name)
	for _, y := range []float64{0, 5, 10} {
		c.AddPath(linePoints(Vec3{0, y, 0}, Vec3{10, y, 0}, 11))
	}
	return c
}

// fitted refits c with the default configuration.
func fitted(t *testing.T, c *PathCollection) *PathCollection {
	t.Helper()
	require.NoError(t, c.Refit(MLSFitter{}, DefaultFitConfig()))
	return c
}

func TestPathCollection_AddPath(t *testing.T) {
	c := NewPathCollection("Ref")
	assert.Equal(t, -1, c.LastAddedSuffix())

	p0 := c.AddPath([]Vec3{{0, 0, 0}})
	p1 := c.AddPath([]Vec3{{1, 0, 0}})
	assert.Equal(t, 0, p0.Suffix)
	assert.Equal(t, 1, p1.Suffix)
	assert.Equal(t, 1, c.LastAddedSuffix())
	assert.Equal(t, "Ref_CatheterPoints1", c.PointsName(1))
	assert.Equal(t, "Ref_CatheterPath1", c.CurveName(1))

	// Explicit suffixes may leave gaps; AddPath continues after the highest
	_, err := c.SetPath(5, []Vec3{{5, 0, 0}})
	require.NoError(t, err)
	p6 := c.AddPath(nil)
	assert.Equal(t, 6, p6.Suffix)
	assert.Equal(t, []int{0, 1, 5, 6}, c.Suffixes())

	_, err = c.SetPath(5, nil)
	assert.ErrorIs(t, err, ErrDuplicateSuffix)
	_, err = c.SetPath(-1, nil)
	assert.Error(t, err)
}

func TestPathCollection_AddPathCopiesPoints(t *testing.T) {
	points := []Vec3{{1, 2, 3}}
	c := NewPathCollection("Ref")
	p := c.AddPath(points)
	points[0].X = 99
	assert.Equal(t, 1.0, p.Points.Points[0].X)
}

func TestPathCollection_DeleteLastPath(t *testing.T) {
	c := NewPathCollection("Ref")
	require.NoError(t, c.DeleteLastPath(), "empty collection is a no-op")

	c.AddPath([]Vec3{{0, 0, 0}})
	c.AddPath([]Vec3{{1, 0, 0}})
	c.AddPath([]Vec3{{2, 0, 0}})

	require.NoError(t, c.DeleteLastPath())
	assert.Equal(t, []int{0, 1}, c.Suffixes())
	require.NoError(t, c.DeleteLastPath())
	assert.Equal(t, []int{0}, c.Suffixes())

	var nilCollection *PathCollection
	assert.ErrorIs(t, nilCollection.DeleteLastPath(), ErrNilCollection)
}

func TestPathCollection_RemovePath(t *testing.T) {
	c := parallelPaths("Ref")
	require.NoError(t, c.RemovePath(1))
	assert.Nil(t, c.Path(1))
	assert.Equal(t, 2, c.Len())
	assert.ErrorIs(t, c.RemovePath(1), ErrUnknownSuffix)
}

func TestPathCollection_Refit(t *testing.T) {
	c := fitted(t, parallelPaths("Ref"))
	for _, p := range c.Paths() {
		require.NotNil(t, p.Curve, "suffix %d", p.Suffix)
		assert.InDelta(t, 10, p.Curve.Length, 1e-6)
	}
	assert.Equal(t, 33, c.PointCount())

	samples, err := c.CombinedSamples()
	require.NoError(t, err)
	assert.Len(t, samples, 3*41)

	curves, err := c.CurveSamples()
	require.NoError(t, err)
	require.Len(t, curves, 3)
	for _, curve := range curves {
		assert.Len(t, curve, 41)
	}
}

func TestPathCollection_RefitKeepsCurvesOnFailure(t *testing.T) {
	c := fitted(t, parallelPaths("Ref"))
	before := c.Path(0).Curve

	c.Path(2).Points = NewPointCloud([]Vec3{{1, 1, 1}})
	err := c.Refit(MLSFitter{}, DefaultFitConfig())
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Same(t, before, c.Path(0).Curve, "no curve is replaced when any path fails")
}

func TestPathCollection_CombinedSamplesMissingCurve(t *testing.T) {
	c := parallelPaths("Ref")
	_, err := c.CombinedSamples()
	assert.True(t, errors.Is(err, ErrMissingCurve))
	_, err = c.CurveSamples()
	assert.True(t, errors.Is(err, ErrMissingCurve))
}

func TestPathCollection_TransformedCopy(t *testing.T) {
	ref := fitted(t, parallelPaths("Ref"))
	m := RotationZDeg(90).Then(Translation(5, 0, 0))
	cmp := ref.TransformedCopy("Cmp", m)

	assert.Equal(t, "Cmp", cmp.Name)
	assert.Equal(t, ref.Suffixes(), cmp.Suffixes())
	for _, p := range cmp.Paths() {
		orig := ref.Path(p.Suffix)
		for i, pt := range p.Points.Points {
			assert.InDelta(t, 0, Distance(pt, m.Apply(orig.Points.Points[i])), 1e-12)
		}
		assert.InDelta(t, 0, Distance(p.Curve.First(), m.Apply(orig.Curve.First())), 1e-12)
	}

	// The source is untouched
	assert.Equal(t, Vec3{0, 0, 0}, ref.Path(0).Points.Points[0])
}
