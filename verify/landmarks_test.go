package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEndLandmarks(t *testing.T) {
	c := fitted(t, parallelPaths("Ref"))
	dst := NewLandmarkSet("Ref_Landmarks")

	require.NoError(t, ComputeEndLandmarks(c, dst))
	require.Equal(t, 6, dst.Len())
	for i, p := range c.Paths() {
		assert.Equal(t, p.Curve.First(), dst.Points[2*i])
		assert.Equal(t, p.Curve.Last(), dst.Points[2*i+1])
	}
	first := append([]Vec3(nil), dst.Points...)

	// Recomputing replaces rather than appends
	require.NoError(t, ComputeEndLandmarks(c, dst))
	assert.Equal(t, first, dst.Points)
}

func TestComputeEndLandmarks_Errors(t *testing.T) {
	c := parallelPaths("Ref")
	dst := NewLandmarkSet("l")
	dst.Add(Vec3{1, 2, 3})

	assert.ErrorIs(t, ComputeEndLandmarks(c, dst), ErrMissingCurve)
	assert.Equal(t, 1, dst.Len(), "landmarks untouched on failure")

	fitted(t, c)
	c.Path(1).Curve.Samples = nil
	assert.ErrorIs(t, ComputeEndLandmarks(c, dst), ErrEmptyCurve)

	assert.ErrorIs(t, ComputeEndLandmarks(nil, dst), ErrNilCollection)
	assert.ErrorIs(t, ComputeEndLandmarks(c, nil), ErrNilLandmarks)
}
