package verify

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectXY(t *testing.T) {
	ls := ProjectXY([]Vec3{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, orb.LineString{{1, 2}, {4, 5}}, ls)
	assert.Empty(t, ProjectXY(nil))
}

// observing makes c observe a new node holding m.
func observing(t *testing.T, c *PathCollection, m RigidTransform) *PathCollection {
	t.Helper()
	node := NewTransformNode(c.Name + "_Transform")
	node.Set(m)
	require.NoError(t, ObserveTransform(c, nil, node))
	return c
}

func TestPathRenderer_Curves(t *testing.T) {
	reference := fitted(t, parallelPaths("Reference"))
	compare := fitted(t, parallelPaths("Compare"))
	other := fitted(t, parallelPaths("Other"))

	r := NewPathRenderer(0, 0.1)
	r.AddReference(reference)
	r.AddCompare(observing(t, compare, Translation(0, 1, 0)))
	r.AddCompare(other)
	r.AddCompare(nil)

	curves := r.Curves()
	require.Len(t, curves, 9)

	first := curves[0]
	assert.Equal(t, "Reference", first.Label)
	assert.Equal(t, referenceColor, first.Color)
	assert.Len(t, first.Line, 2, "a straight line simplifies to its ends")
	assert.InDelta(t, 10, first.ProjectedLength, 1e-6)

	assert.Equal(t, comparePalette[0], curves[3].Color)
	assert.InDelta(t, 0, curves[3].Line[0][0], 1e-9)
	assert.InDelta(t, 1, curves[3].Line[0][1], 1e-9)
	assert.Equal(t, comparePalette[1], curves[6].Color)
}

func TestPathRenderer_FollowsObservedTransform(t *testing.T) {
	compare := observing(t, fitted(t, parallelPaths("Compare")), Translation(0, 2, 0))
	node := compare.Path(0).Curve.Parent

	r := NewPathRenderer(0, 0.1)
	r.AddCompare(compare)
	assert.InDelta(t, 2, r.Curves()[0].Line[0][1], 1e-9)

	// Later transform updates are seen without re-observing
	node.Set(Translation(0, -3, 0))
	r = NewPathRenderer(0, 0.1)
	r.AddCompare(compare)
	assert.InDelta(t, -3, r.Curves()[0].Line[0][1], 1e-9)
	assert.InDelta(t, 0, compare.Path(0).Curve.First().Y, 1e-9, "stored samples are not rewritten")
}

func TestPathRenderer_NoSimplify(t *testing.T) {
	reference := fitted(t, parallelPaths("Reference"))
	r := NewPathRenderer(5, 0)
	r.AddReference(reference)
	assert.Len(t, r.Curves()[0].Line, len(reference.Path(0).Curve.Samples))
	assert.Equal(t, 5.0, r.Resolution.DPMM())
}

func TestPathRenderer_SkipsMissingCurves(t *testing.T) {
	r := NewPathRenderer(10, 0.1)
	r.AddReference(parallelPaths("Unfitted"))
	assert.Empty(t, r.Curves())

	var buf bytes.Buffer
	assert.EqualError(t, r.RenderToSVG(&buf), "nothing to render")
	assert.EqualError(t, r.RenderToPNG(&buf), "nothing to render")
}

func TestPathRenderer_RenderToSVG(t *testing.T) {
	r := NewPathRenderer(10, 0.1)
	r.AddReference(fitted(t, parallelPaths("Reference")))

	var buf bytes.Buffer
	require.NoError(t, r.RenderToSVG(&buf))
	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"), "output should be an SVG document")
	assert.Contains(t, out, "</svg>")
}

func TestPathRenderer_RenderToPNG(t *testing.T) {
	r := NewPathRenderer(4, 0.1)
	r.AddReference(fitted(t, parallelPaths("Reference")))
	r.AddCompare(observing(t, fitted(t, parallelPaths("Compare")), Translation(0.5, 0.5, 0)))

	var buf bytes.Buffer
	require.NoError(t, r.RenderToPNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)

	// 10.5mm square of curves plus 5mm padding each side at 4 px/mm, give or take rounding
	b := img.Bounds()
	assert.InDelta(t, 82, b.Dx(), 2)
	assert.InDelta(t, 82, b.Dy(), 2)
}

func TestDrawText(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 20))
	drawText(img, 2, 14, "P:1", comparePalette[0])

	painted := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 60; x++ {
			if img.RGBAAt(x, y).A != 0 {
				painted++
			}
		}
	}
	assert.Greater(t, painted, 0)

	// Out of bounds text is clipped, not a panic
	drawText(img, 500, 500, "far away", comparePalette[0])
}
