package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// collinearRatio is the smallest ratio of second to first singular value of the
// cross-covariance for which the rotation is considered fully determined.
const collinearRatio = 1e-9

// FitRigid computes the least-squares rigid transform mapping source onto
// target (target ≈ T(source)) for positionally paired points, using the SVD of
// the centred cross-covariance (Kabsch). Reflections are corrected so the
// result always has det(R) = +1.
//
// When every pair lies on one line the rotation about that line is free. With
// allowCollinear the smallest rotation carrying the source line onto the
// target line is used, otherwise ErrCollinearLandmarks is returned.
func FitRigid(source, target []Vec3, allowCollinear bool) (RigidTransform, error) {
	n := len(source)
	if n != len(target) {
		return Identity(), fmt.Errorf("%d vs %d: %w", n, len(target), ErrLandmarkCountMismatch)
	}
	if n < 2 {
		return Identity(), fmt.Errorf("%d pairs: %w", n, ErrInsufficientLandmarks)
	}

	srcCentroid := Centroid(source)
	tgtCentroid := Centroid(target)

	var srcSpread, tgtSpread float64
	h := mat.NewDense(3, 3, nil)
	for i := range source {
		s := source[i].Sub(srcCentroid)
		t := target[i].Sub(tgtCentroid)
		srcSpread += s.Dot(s)
		tgtSpread += t.Dot(t)
		sv := [3]float64{s.X, s.Y, s.Z}
		tv := [3]float64{t.X, t.Y, t.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+sv[r]*tv[c])
			}
		}
	}
	if srcSpread < 1e-18 || tgtSpread < 1e-18 {
		return Identity(), fmt.Errorf("all landmarks coincide: %w", ErrInsufficientLandmarks)
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return Identity(), fmt.Errorf("SVD of cross-covariance failed: %w", ErrDegenerateTransform)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var rot [9]float64
	if values[0] == 0 || values[1]/values[0] < collinearRatio {
		if !allowCollinear {
			return Identity(), ErrCollinearLandmarks
		}
		srcDir := Vec3{u.At(0, 0), u.At(1, 0), u.At(2, 0)}
		tgtDir := Vec3{v.At(0, 0), v.At(1, 0), v.At(2, 0)}
		rot = alignDirections(srcDir, tgtDir).Rotation()
	} else {
		// R = V * diag(1, 1, d) * U^T
		var vut mat.Dense
		vut.Mul(&v, u.T())
		d := 1.0
		if mat.Det(&vut) < 0 {
			d = -1.0
		}
		diag := mat.NewDiagDense(3, []float64{1, 1, d})
		var vd, r mat.Dense
		vd.Mul(&v, diag)
		r.Mul(&vd, u.T())
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rot[i*3+j] = r.At(i, j)
			}
		}
	}

	m := FromRotation(rot, Vec3{})
	t := tgtCentroid.Sub(m.ApplyVector(srcCentroid))
	m[3], m[7], m[11] = t.X, t.Y, t.Z

	if !m.IsRigid(RigidTolerance) {
		return Identity(), fmt.Errorf("%v: %w", m, ErrDegenerateTransform)
	}
	return m, nil
}

// alignDirections returns the smallest rotation taking direction a onto b.
func alignDirections(a, b Vec3) RigidTransform {
	a = a.Normalize()
	b = b.Normalize()
	axis := a.Cross(b)
	sin := axis.Norm()
	cos := a.Dot(b)
	if sin < 1e-12 {
		if cos > 0 {
			return Identity()
		}
		// Opposite directions: half turn about any axis perpendicular to a.
		perp := a.Cross(Vec3{X: 1})
		if perp.Norm() < 1e-6 {
			perp = a.Cross(Vec3{Y: 1})
		}
		return AxisAngle(perp, math.Pi)
	}
	return AxisAngle(axis, math.Atan2(sin, cos))
}

// RMSDistance returns the root mean square distance between paired points.
func RMSDistance(a, b []Vec3) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		sum += Distance2(a[i], b[i])
	}
	return math.Sqrt(sum / float64(len(a)))
}
