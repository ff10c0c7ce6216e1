package verify

import (
	"encoding/json"
	"math"
	"testing"
)

const testTol = 1e-9

func vecNear(a, b Vec3, tol float64) bool {
	return Distance(a, b) <= tol
}

func TestIdentity(t *testing.T) {
	m := Identity()
	p := Vec3{1.5, -2, 7}
	if got := m.Apply(p); got != p {
		t.Errorf("Identity().Apply(%v) = %v", p, got)
	}
	if !m.IsRigid(RigidTolerance) {
		t.Error("identity should be rigid")
	}
	if m.RotationAngleDeg() != 0 {
		t.Errorf("identity rotation = %f", m.RotationAngleDeg())
	}
}

func TestRotationZDeg(t *testing.T) {
	m := RotationZDeg(90)
	got := m.Apply(Vec3{X: 1})
	if !vecNear(got, Vec3{Y: 1}, testTol) {
		t.Errorf("RotationZDeg(90) of x axis = %v, want y axis", got)
	}
	if math.Abs(m.RotationAngleDeg()-90) > 1e-9 {
		t.Errorf("RotationAngleDeg = %f, want 90", m.RotationAngleDeg())
	}
}

func TestThen_AppliesInOrder(t *testing.T) {
	rotate := RotationZDeg(90)
	shift := Translation(5, 0, 0)

	// Rotate first, then shift: (1,0,0) -> (0,1,0) -> (5,1,0)
	got := rotate.Then(shift).Apply(Vec3{X: 1})
	if !vecNear(got, Vec3{5, 1, 0}, testTol) {
		t.Errorf("rotate.Then(shift) = %v, want (5,1,0)", got)
	}

	// Shift first, then rotate: (1,0,0) -> (6,0,0) -> (0,6,0)
	got = shift.Then(rotate).Apply(Vec3{X: 1})
	if !vecNear(got, Vec3{0, 6, 0}, testTol) {
		t.Errorf("shift.Then(rotate) = %v, want (0,6,0)", got)
	}

	// Then is Multiply with operands swapped
	if !rotate.Then(shift).ApproxEqual(shift.Multiply(rotate), 0) {
		t.Error("Then should equal the reversed Multiply")
	}
}

func TestInverse(t *testing.T) {
	m := AxisAngle(Vec3{1, 2, 3}, 0.7).Then(Translation(4, -5, 6))
	inv := m.Inverse()

	if !m.Then(inv).ApproxEqual(Identity(), testTol) {
		t.Errorf("m.Then(m.Inverse()) = %v, want identity", m.Then(inv))
	}
	p := Vec3{3, 1, -2}
	if got := inv.Apply(m.Apply(p)); !vecNear(got, p, testTol) {
		t.Errorf("round trip of %v = %v", p, got)
	}
}

func TestIsRigid(t *testing.T) {
	tests := []struct {
		name string
		m    RigidTransform
		want bool
	}{
		{"rotation and translation", AxisAngle(Vec3{0, 1, 1}, 1.2).Then(Translation(1, 2, 3)), true},
		{"scale", FromRotation([9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, Vec3{}), false},
		{"reflection", FromRotation([9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}, Vec3{}), false},
		{"NaN", RigidTransform{math.NaN()}, false},
		{"projective row", func() RigidTransform { m := Identity(); m[12] = 1; return m }(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsRigid(RigidTolerance); got != tt.want {
				t.Errorf("IsRigid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAxisAngle_ZeroAxis(t *testing.T) {
	if !AxisAngle(Vec3{}, 1).ApproxEqual(Identity(), 0) {
		t.Error("zero axis should give identity")
	}
}

func TestApplyVector_IgnoresTranslation(t *testing.T) {
	m := RotationZDeg(180).Then(Translation(10, 10, 10))
	got := m.ApplyVector(Vec3{X: 1})
	if !vecNear(got, Vec3{X: -1}, testTol) {
		t.Errorf("ApplyVector = %v, want (-1,0,0)", got)
	}
}

func TestRigidTransformJSON_Rows(t *testing.T) {
	m := Translation(1, 2, 3)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[[1,0,0,1],[0,1,0,2],[0,0,1,3],[0,0,0,1]]`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}

	var back RigidTransform
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != m {
		t.Errorf("decoded %v, want %v", back, m)
	}

	if err := json.Unmarshal([]byte(`[1,2,3]`), &back); err == nil {
		t.Error("expected error for malformed rows")
	}
}

func TestVec3Helpers(t *testing.T) {
	a := Vec3{1, 0, 0}
	b := Vec3{0, 1, 0}
	if got := a.Cross(b); got != (Vec3{0, 0, 1}) {
		t.Errorf("Cross = %v", got)
	}
	if got := (Vec3{3, 4, 0}).Norm(); got != 5 {
		t.Errorf("Norm = %f", got)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("Normalize of zero = %v", got)
	}
	if got := Centroid(nil); got != (Vec3{}) {
		t.Errorf("Centroid(nil) = %v", got)
	}
	if got := PolylineLength([]Vec3{{0, 0, 0}, {3, 4, 0}, {3, 4, 2}}); got != 7 {
		t.Errorf("PolylineLength = %f, want 7", got)
	}
}

func TestTransformNode(t *testing.T) {
	var nilNode *TransformNode
	if nilNode.Matrix() != Identity() {
		t.Error("nil node should read as identity")
	}

	n := NewTransformNode("n")
	if n.Matrix() != Identity() {
		t.Error("new node should hold identity")
	}
	m := Translation(1, 0, 0)
	n.Set(m)
	if n.Matrix() != m {
		t.Errorf("Matrix = %v, want %v", n.Matrix(), m)
	}
}
