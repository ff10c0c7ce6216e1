package verify

import "math"

// ClosestPointOnSegment returns the point of the segment [a, b] nearest to p.
// A zero-length segment returns a.
func ClosestPointOnSegment(p, a, b Vec3) Vec3 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / den
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Scale(t))
}

// PointSegmentDistance returns the distance from p to the segment [a, b].
func PointSegmentDistance(p, a, b Vec3) float64 {
	return Distance(p, ClosestPointOnSegment(p, a, b))
}

// PointPolylineDistance returns the distance from p to the nearest point on the
// polyline through samples. A single sample is treated as a point. An empty
// polyline returns +Inf.
func PointPolylineDistance(p Vec3, samples []Vec3) float64 {
	switch len(samples) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, samples[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(samples); i++ {
		if d := PointSegmentDistance(p, samples[i-1], samples[i]); d < best {
			best = d
		}
	}
	return best
}

// DistanceHistogram returns, for every compare sample, the distance to the
// nearest point on the reference polyline. Distances are one-sided.
func DistanceHistogram(compare, reference []Vec3) []float64 {
	distances := make([]float64, len(compare))
	for i, p := range compare {
		distances[i] = PointPolylineDistance(p, reference)
	}
	return distances
}

// AngleBetweenDeg returns the angle between a and b in degrees, or NaN when
// either vector has zero length.
func AngleBetweenDeg(a, b Vec3) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	cos := a.Dot(b) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
