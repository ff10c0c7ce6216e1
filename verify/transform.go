package verify

import (
	"encoding/json"
	"fmt"
	"math"
)

// RigidTransform is a 4x4 homogeneous matrix stored row-major:
//
//	| r00 r01 r02 tx |
//	| r10 r11 r12 ty |
//	| r20 r21 r22 tz |
//	|  0   0   0   1 |
//
// It is a value type; copies never alias.
type RigidTransform [16]float64

// RigidTolerance is the tolerance used when checking that a matrix is a proper rotation.
const RigidTolerance = 1e-6

// Identity returns an identity matrix (no transformation)
func Identity() RigidTransform {
	return RigidTransform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation creates a translation-only transform
func Translation(tx, ty, tz float64) RigidTransform {
	m := Identity()
	m[3], m[7], m[11] = tx, ty, tz
	return m
}

// FromRotation builds a transform from a row-major 3x3 rotation and a translation.
func FromRotation(r [9]float64, t Vec3) RigidTransform {
	return RigidTransform{
		r[0], r[1], r[2], t.X,
		r[3], r[4], r[5], t.Y,
		r[6], r[7], r[8], t.Z,
		0, 0, 0, 1,
	}
}

// AxisAngle creates a rotation of angle radians about axis (Rodrigues' formula).
// A zero axis yields the identity.
func AxisAngle(axis Vec3, angle float64) RigidTransform {
	u := axis.Normalize()
	if u.Norm() == 0 {
		return Identity()
	}
	c := math.Cos(angle)
	s := math.Sin(angle)
	k := 1 - c
	return FromRotation([9]float64{
		c + u.X*u.X*k, u.X*u.Y*k - u.Z*s, u.X*u.Z*k + u.Y*s,
		u.Y*u.X*k + u.Z*s, c + u.Y*u.Y*k, u.Y*u.Z*k - u.X*s,
		u.Z*u.X*k - u.Y*s, u.Z*u.Y*k + u.X*s, c + u.Z*u.Z*k,
	}, Vec3{})
}

// RotationZDeg creates a rotation about the Z axis (angle in degrees)
func RotationZDeg(degrees float64) RigidTransform {
	return AxisAngle(Vec3{Z: 1}, degrees*math.Pi/180.0)
}

// Apply transforms a single point.
func (m RigidTransform) Apply(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// ApplyVector rotates a direction without translating it.
func (m RigidTransform) ApplyVector(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z,
	}
}

// ApplyAll transforms a slice of points into a new slice.
func (m RigidTransform) ApplyAll(points []Vec3) []Vec3 {
	result := make([]Vec3, len(points))
	for i, p := range points {
		result[i] = m.Apply(p)
	}
	return result
}

// Multiply composes two transforms: result = m * o.
// Applying result is equivalent to applying o first, then m.
func (m RigidTransform) Multiply(o RigidTransform) RigidTransform {
	var r RigidTransform
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// Then post-multiplies: the result applies m first, then next.
func (m RigidTransform) Then(next RigidTransform) RigidTransform {
	return next.Multiply(m)
}

// Rotation returns the row-major 3x3 rotation block.
func (m RigidTransform) Rotation() [9]float64 {
	return [9]float64{m[0], m[1], m[2], m[4], m[5], m[6], m[8], m[9], m[10]}
}

// TranslationPart returns the translation column.
func (m RigidTransform) TranslationPart() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// Determinant returns the determinant of the rotation block.
func (m RigidTransform) Determinant() float64 {
	return m[0]*(m[5]*m[10]-m[6]*m[9]) -
		m[1]*(m[4]*m[10]-m[6]*m[8]) +
		m[2]*(m[4]*m[9]-m[5]*m[8])
}

// IsRigid reports whether the rotation block is orthonormal with determinant +1
// and the last row is [0 0 0 1].
func (m RigidTransform) IsRigid(tol float64) bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if math.Abs(m.Determinant()-1) > tol {
		return false
	}
	// R * R^T == I
	r := m.Rotation()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += r[i*3+k] * r[j*3+k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > tol {
				return false
			}
		}
	}
	return m[12] == 0 && m[13] == 0 && m[14] == 0 && math.Abs(m[15]-1) <= tol
}

// Inverse returns the inverse of a rigid transform: [R^T | -R^T t].
func (m RigidTransform) Inverse() RigidTransform {
	r := m.Rotation()
	rt := [9]float64{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
	t := m.TranslationPart()
	inv := FromRotation(rt, Vec3{})
	negT := inv.ApplyVector(t).Scale(-1)
	inv[3], inv[7], inv[11] = negT.X, negT.Y, negT.Z
	return inv
}

// RotationAngleDeg returns the magnitude of the rotation in degrees.
func (m RigidTransform) RotationAngleDeg() float64 {
	trace := m[0] + m[5] + m[10]
	c := (trace - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// ApproxEqual compares all sixteen entries within tol.
func (m RigidTransform) ApproxEqual(o RigidTransform, tol float64) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

func (m RigidTransform) String() string {
	return fmt.Sprintf("[%.6f %.6f %.6f %.4f; %.6f %.6f %.6f %.4f; %.6f %.6f %.6f %.4f]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8], m[9], m[10], m[11])
}

// MarshalJSON encodes the matrix as four rows.
func (m RigidTransform) MarshalJSON() ([]byte, error) {
	rows := [4][4]float64{}
	for i := 0; i < 16; i++ {
		rows[i/4][i%4] = m[i]
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes four rows of four values.
func (m *RigidTransform) UnmarshalJSON(data []byte) error {
	var rows [4][4]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decoding transform rows: %w", err)
	}
	for i := 0; i < 16; i++ {
		m[i] = rows[i/4][i%4]
	}
	return nil
}
