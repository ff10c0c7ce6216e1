package verify

import (
	"errors"
	"math"
	"testing"
)

// curvePoints samples an elliptical loop rising quadratically, which has no
// rigid symmetry for ICP to slide along.
func curvePoints(n int) []Vec3 {
	points := make([]Vec3, n)
	for i := range points {
		theta := 2 * math.Pi * float64(i) / float64(n-1)
		points[i] = Vec3{10 * math.Cos(theta), 6 * math.Sin(theta), 0.5 * theta * theta}
	}
	return points
}

func TestICP_Identity(t *testing.T) {
	points := curvePoints(300)
	result, err := RunICP(points, [][]Vec3{points}, DefaultICPConfig())
	if err != nil {
		t.Fatalf("RunICP failed: %v", err)
	}
	if !result.Converged {
		t.Error("identical surfaces should converge")
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if !result.Transform.ApproxEqual(Identity(), 1e-12) {
		t.Errorf("Transform = %v, want identity", result.Transform)
	}
}

func TestICP_SmallMisalignment(t *testing.T) {
	target := curvePoints(300)
	perturbation := AxisAngle(Vec3{0, 0, 1}, 2*math.Pi/180).Then(Translation(0.3, -0.2, 0.1))
	source := perturbation.ApplyAll(target)

	result, err := RunICP(source, [][]Vec3{target}, DefaultICPConfig())
	if err != nil {
		t.Fatalf("RunICP failed: %v", err)
	}
	if !result.Converged {
		t.Fatal("expected convergence")
	}
	if result.RMS > 1e-3 {
		t.Errorf("RMS = %g, want < 1e-3", result.RMS)
	}
	want := perturbation.Inverse()
	if !result.Transform.ApproxEqual(want, 1e-2) {
		t.Errorf("Transform = %v, want %v", result.Transform, want)
	}
	if !result.Transform.IsRigid(RigidTolerance) {
		t.Error("ICP transform must be rigid")
	}
}

func TestICP_StartByMatchingCentroids(t *testing.T) {
	target := curvePoints(300)
	source := Translation(40, -25, 10).ApplyAll(target)

	config := DefaultICPConfig()
	config.StartByMatchingCentroids = true
	config.MaxLandmarks = 0
	result, err := RunICP(source, [][]Vec3{target}, config)
	if err != nil {
		t.Fatalf("RunICP failed: %v", err)
	}
	if !result.Transform.ApproxEqual(Translation(-40, 25, -10), 1e-6) {
		t.Errorf("Transform = %v", result.Transform)
	}
}

func TestICP_NotConverged(t *testing.T) {
	target := curvePoints(300)
	source := Translation(0.5, 0, 0).ApplyAll(target)

	config := DefaultICPConfig()
	config.MaxIterations = 1
	result, err := RunICP(source, [][]Vec3{target}, config)
	if !errors.Is(err, ErrICPNotConverged) {
		t.Fatalf("err = %v, want ErrICPNotConverged", err)
	}
	if result.Converged {
		t.Error("Converged should be false")
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if math.IsNaN(result.RMS) {
		t.Error("RMS should be reported for diagnostics")
	}
}

func TestICP_Diverged(t *testing.T) {
	target := curvePoints(300)
	source := Translation(0.5, 0, 0).ApplyAll(target)

	// A negative tolerance demands each step improve by more than its magnitude.
	config := DefaultICPConfig()
	config.DivergenceTolerance = -10
	_, err := RunICP(source, [][]Vec3{target}, config)
	if !errors.Is(err, ErrICPDiverged) {
		t.Fatalf("err = %v, want ErrICPDiverged", err)
	}
}

func TestICP_EmptySurface(t *testing.T) {
	_, err := RunICP(nil, [][]Vec3{curvePoints(10)}, DefaultICPConfig())
	if !errors.Is(err, ErrEmptySurface) {
		t.Errorf("err = %v, want ErrEmptySurface", err)
	}
	_, err = RunICP(curvePoints(10), [][]Vec3{nil}, DefaultICPConfig())
	if !errors.Is(err, ErrEmptySurface) {
		t.Errorf("err = %v, want ErrEmptySurface", err)
	}
}

func TestSubsample(t *testing.T) {
	points := curvePoints(10)
	if got := subsample(points, 0); len(got) != 10 {
		t.Errorf("max 0 should keep all, got %d", len(got))
	}
	got := subsample(points, 4)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0] != points[0] {
		t.Error("subsample should start at the first point")
	}
}

func TestNearestIndex(t *testing.T) {
	tests := []struct {
		name   string
		curves [][]Vec3
		q      Vec3
		want   Vec3
		wantD2 float64
	}{
		{"segment interior", [][]Vec3{{{0, 0, 0}, {10, 0, 0}, {10, 10, 0}}}, Vec3{4, 1, 0}, Vec3{4, 0, 0}, 1},
		{"vertex", [][]Vec3{{{0, 0, 0}, {10, 0, 0}, {10, 10, 0}}}, Vec3{11, -1, 0}, Vec3{10, 0, 0}, 2},
		// The nearest sample belongs to the second curve, the nearest point does not
		{"segment beats nearer sample", [][]Vec3{{{0, 0, 0}, {10, 0, 0}}, {{5, 1.2, 0}}}, Vec3{5, 0.5, 0}, Vec3{5, 0, 0}, 0.25},
		{"curves are not joined", [][]Vec3{{{0, 0, 0}}, {{10, 0, 0}}}, Vec3{4, 3, 0}, Vec3{0, 0, 0}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, d2 := newNearestIndex(tt.curves).Nearest(tt.q)
			if Distance(p, tt.want) > 1e-12 {
				t.Errorf("nearest = %v, want %v", p, tt.want)
			}
			if math.Abs(d2-tt.wantD2) > 1e-12 {
				t.Errorf("squared distance = %f, want %f", d2, tt.wantD2)
			}
		})
	}
}

// A dense target converges to the exact pose even though no source point
// lands on a target sample.
func TestICP_SparseSourceOnDenseTarget(t *testing.T) {
	target := curvePoints(300)
	offset := Translation(0.05, 0.02, 0)
	source := offset.ApplyAll(curvePoints(77))

	result, err := RunICP(source, [][]Vec3{target}, DefaultICPConfig())
	if err != nil {
		t.Fatalf("RunICP failed: %v", err)
	}
	if result.RMS > 1e-2 {
		t.Errorf("RMS = %g, want < 1e-2", result.RMS)
	}
}
