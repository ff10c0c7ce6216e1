package verify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Layer colours: the reference is drawn in dark grey, compare collections
// cycle through the palette.
var (
	referenceColor = color.RGBA{60, 60, 60, 255}
	comparePalette = []color.RGBA{
		{220, 50, 47, 255},
		{38, 139, 210, 255},
		{133, 153, 0, 255},
		{211, 54, 130, 255},
		{181, 137, 0, 255},
	}
)

// RenderCurve is one curve projected onto the XY plane and simplified.
type RenderCurve struct {
	Label           string
	Suffix          int
	Line            orb.LineString
	ProjectedLength float64 // mm, of the unsimplified projection
	Color           color.RGBA
}

// PathRenderer draws the XY projection of a reference collection and any
// number of registered compare collections.
type PathRenderer struct {
	Padding         float64 // mm around the drawing
	StrokeWidth     float64 // mm
	SimplifyEpsilon float64 // Douglas-Peucker tolerance in mm, 0 disables
	Resolution      canvas.Resolution
	Labels          bool // draw suffix labels on PNG output

	curves []RenderCurve
}

// NewPathRenderer creates a renderer with dpmm pixels per millimetre for PNG output.
func NewPathRenderer(dpmm, simplifyEpsilon float64) *PathRenderer {
	if dpmm <= 0 {
		dpmm = 10
	}
	return &PathRenderer{
		Padding:         5,
		StrokeWidth:     0.3,
		SimplifyEpsilon: simplifyEpsilon,
		Resolution:      canvas.DPMM(dpmm),
		Labels:          true,
	}
}

// AddReference adds the reference curves at their world positions.
func (r *PathRenderer) AddReference(c *PathCollection) {
	r.addCollection(c, referenceColor)
}

// AddCompare adds compare curves at their world positions, so a collection
// observing a registration transform is drawn registered.
func (r *PathRenderer) AddCompare(c *PathCollection) {
	idx := r.countCompareLabels()
	r.addCollection(c, comparePalette[idx%len(comparePalette)])
}

func (r *PathRenderer) countCompareLabels() int {
	seen := make(map[string]bool)
	for _, rc := range r.curves {
		if rc.Color != referenceColor {
			seen[rc.Label] = true
		}
	}
	return len(seen)
}

func (r *PathRenderer) addCollection(c *PathCollection, col color.RGBA) {
	if c == nil {
		return
	}
	for _, p := range c.Paths() {
		if p.Curve == nil || len(p.Curve.Samples) == 0 {
			continue
		}
		line := ProjectXY(p.Curve.WorldSamples())
		length := planar.Length(line)
		if r.SimplifyEpsilon > 0 && len(line) > 2 {
			line = simplify.DouglasPeucker(r.SimplifyEpsilon).Simplify(line.Clone()).(orb.LineString)
		}
		r.curves = append(r.curves, RenderCurve{
			Label:           c.Name,
			Suffix:          p.Suffix,
			Line:            line,
			ProjectedLength: length,
			Color:           col,
		})
	}
}

// Curves returns the curves queued for drawing.
func (r *PathRenderer) Curves() []RenderCurve {
	return r.curves
}

// ProjectXY drops the Z coordinate of every point.
func ProjectXY(points []Vec3) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// bounds returns the XY bounding box of all curves.
func (r *PathRenderer) bounds() orb.Bound {
	var b orb.Bound
	first := true
	for _, rc := range r.curves {
		cb := rc.Line.Bound()
		if first {
			b = cb
			first = false
			continue
		}
		b = b.Union(cb)
	}
	return b
}

// size returns the drawing size in mm and the mapping from world to canvas.
func (r *PathRenderer) size() (float64, float64, func(orb.Point) (float64, float64)) {
	b := r.bounds()
	width := b.Max[0] - b.Min[0] + 2*r.Padding
	height := b.Max[1] - b.Min[1] + 2*r.Padding
	toCanvas := func(p orb.Point) (float64, float64) {
		return p[0] - b.Min[0] + r.Padding, p[1] - b.Min[1] + r.Padding
	}
	return width, height, toCanvas
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the drawing as SVG.
func (r *PathRenderer) RenderToSVG(w io.Writer) error {
	if len(r.curves) == 0 {
		return fmt.Errorf("nothing to render")
	}
	width, height, toCanvas := r.size()
	s := svg.New(w, width, height, nil)
	r.draw(s, width, height, toCanvas)
	return s.Close()
}

// RenderToPNG writes the drawing as PNG, with suffix labels when enabled.
func (r *PathRenderer) RenderToPNG(w io.Writer) error {
	if len(r.curves) == 0 {
		return fmt.Errorf("nothing to render")
	}
	width, height, toCanvas := r.size()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.draw(rast, width, height, toCanvas)

	img := image.NewRGBA(rast.Bounds())
	draw.Draw(img, img.Bounds(), rast, rast.Bounds().Min, draw.Src)

	if r.Labels {
		dpmm := r.Resolution.DPMM()
		for _, rc := range r.curves {
			if len(rc.Line) == 0 {
				continue
			}
			cx, cy := toCanvas(rc.Line[len(rc.Line)-1])
			px := int(math.Round(cx * dpmm))
			py := int(math.Round((height - cy) * dpmm))
			drawText(img, px+3, py-3, fmt.Sprintf("%s:%d", rc.Label, rc.Suffix), rc.Color)
		}
	}
	return png.Encode(w, img)
}

func (r *PathRenderer) draw(renderer canvasRenderer, width, height float64, toCanvas func(orb.Point) (float64, float64)) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	for _, rc := range r.curves {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: rc.Color}
		style.StrokeWidth = r.StrokeWidth

		cp := &canvas.Path{}
		for i, pt := range rc.Line {
			x, y := toCanvas(pt)
			if i == 0 {
				cp.MoveTo(x, y)
			} else {
				cp.LineTo(x, y)
			}
		}
		renderer.RenderPath(cp, style, canvas.Identity)

		// Start marker so direction is visible.
		if len(rc.Line) > 0 {
			x, y := toCanvas(rc.Line[0])
			marker := canvas.Circle(2 * r.StrokeWidth)
			markerStyle := canvas.DefaultStyle
			markerStyle.Fill = canvas.Paint{Color: rc.Color}
			markerStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
			renderer.RenderPath(marker, markerStyle, canvas.Identity.Translate(x, y))
		}
	}
}

// drawText draws a label onto an RGBA image using the basic bitmap font.
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
