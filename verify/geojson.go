package verify

import (
	"fmt"
	"image/color"
	"io"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection returns the queued curves as GeoJSON LineString features in
// millimetre XY coordinates, one feature per curve with its label, suffix,
// role, projected length and stroke colour as properties.
func (r *PathRenderer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rc := range r.curves {
		f := geojson.NewFeature(rc.Line)
		f.ID = fmt.Sprintf("%s_%d", rc.Label, rc.Suffix)

		role := "compare"
		if rc.Color == referenceColor {
			role = "reference"
		}
		f.Properties["label"] = rc.Label
		f.Properties["suffix"] = rc.Suffix
		f.Properties["role"] = role
		f.Properties["projectedLength"] = rc.ProjectedLength
		f.Properties["stroke"] = hexColor(rc.Color)
		fc.Append(f)
	}
	return fc
}

// RenderToGeoJSON writes the curves as a GeoJSON FeatureCollection.
func (r *PathRenderer) RenderToGeoJSON(w io.Writer) error {
	if len(r.curves) == 0 {
		return fmt.Errorf("nothing to render")
	}
	data, err := r.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
