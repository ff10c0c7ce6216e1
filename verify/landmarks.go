package verify

import "fmt"

// ComputeEndLandmarks replaces the contents of dst with the first and last
// curve sample of every path, in ascending suffix order. The result always
// holds two landmarks per path. dst is left untouched when any path lacks a
// curve.
func ComputeEndLandmarks(c *PathCollection, dst *LandmarkSet) error {
	if c == nil {
		return ErrNilCollection
	}
	if dst == nil {
		return ErrNilLandmarks
	}
	paths := c.Paths()
	for _, p := range paths {
		if p.Curve == nil {
			return fmt.Errorf("%s: %w", c.CurveName(p.Suffix), ErrMissingCurve)
		}
		if len(p.Curve.Samples) == 0 {
			return fmt.Errorf("%s: %w", c.CurveName(p.Suffix), ErrEmptyCurve)
		}
	}

	dst.Clear()
	for _, p := range paths {
		dst.Add(p.Curve.First())
		dst.Add(p.Curve.Last())
	}
	return nil
}
