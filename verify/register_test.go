package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleLine returns a fitted collection holding one path from x=0 to x=9.
func singleLine(t *testing.T, name string) *PathCollection {
	t.Helper()
	c := NewPathCollection(name)
	c.AddPath(linePoints(Vec3{0, 0, 0}, Vec3{9, 0, 0}, 10))
	return fitted(t, c)
}

// threeCurves returns a fitted collection of three non-parallel curved paths.
func threeCurves(t *testing.T, name string) *PathCollection {
	t.Helper()
	c := NewPathCollection(name)
	for k := 0; k < 3; k++ {
		var points []Vec3
		for i := 0; i <= 30; i++ {
			s := float64(i) / 2
			points = append(points, Vec3{
				X: s,
				Y: 6*float64(k) + 0.05*s*s,
				Z: float64(k) * s / 3,
			})
		}
		c.AddPath(points)
	}
	return fitted(t, c)
}

func TestRegistration_SingleLineEndToEnd(t *testing.T) {
	reference := singleLine(t, "Reference")
	misalignment := RotationZDeg(90).Then(Translation(5, 0, 0))
	compare := fitted(t, reference.TransformedCopy("Compare", misalignment))

	cfg := DefaultRegistrationConfig()
	cfg.AllowCollinearLandmarks = true
	reg := NewRegistration(reference, compare, cfg)
	require.NoError(t, reg.Run())
	assert.Equal(t, StateRefined, reg.State())

	want := misalignment.Inverse()
	assert.True(t, reg.CompareToReference.ApproxEqual(want, 1e-4), "got %v want %v", reg.CompareToReference, want)
	assert.InDelta(t, 0, reg.LandmarkRMS, 1e-9)

	tables, err := ComputeStatistics(reference, compare, reg.CompareToReference)
	require.NoError(t, err)
	require.Len(t, tables.Summary, 1)
	row := tables.Summary[0]
	assert.Equal(t, "Compare", row.Label)
	assert.Equal(t, 0, row.ReferenceSuffix)
	assert.Equal(t, 37, row.DistanceCount)
	assert.Equal(t, 10, row.PointCount)
	assert.InDelta(t, 9, row.Length, 1e-6)
	assert.InDelta(t, 0, row.Mean, 1e-6)
	for i, p := range row.Percentiles {
		assert.InDelta(t, 0, p, 1e-6, "percentile %v", PercentileLevels[i])
	}
	assert.InDelta(t, 0, row.AngleDifferenceDegrees, 1e-3)
}

func TestRegistration_StrictCollinearRejected(t *testing.T) {
	reference := singleLine(t, "Reference")
	compare := fitted(t, reference.TransformedCopy("Compare", Translation(1, 2, 3)))

	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())
	err := reg.AlignLandmarks()
	assert.ErrorIs(t, err, ErrCollinearLandmarks)
	assert.Equal(t, StateUnaligned, reg.State())
	assert.Equal(t, Identity(), reg.CompareToReference)
	assert.Equal(t, 0, reg.CompareLandmarks.Len())
}

func TestRegistration_CompositionLaw(t *testing.T) {
	reference := threeCurves(t, "Reference")
	misalignment := AxisAngle(Vec3{0.2, 1, 0.3}, 0.4).Then(Translation(-3, 8, 2))
	compare := fitted(t, reference.TransformedCopy("Compare", misalignment))

	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())
	require.NoError(t, reg.AlignLandmarks())
	assert.Equal(t, StateLandmarkAligned, reg.State())
	assert.Equal(t, reg.CompareToInitial, reg.CompareToReference, "before refinement the final transform is the landmark fit")
	assert.Equal(t, 6, reg.ReferenceLandmarks.Len())

	require.NoError(t, reg.Refine())
	composed := reg.CompareToInitial.Then(reg.InitialToReference)
	assert.True(t, composed.ApproxEqual(reg.CompareToReference, 1e-12))
	assert.True(t, reg.CompareToReference.IsRigid(RigidTolerance))
	assert.True(t, reg.CompareToReference.ApproxEqual(misalignment.Inverse(), 1e-4))
	assert.True(t, reg.ICP.Converged)

	// The composed transform carries raw compare landmarks onto the reference ones.
	moved := reg.CompareToReference.ApplyAll(reg.CompareLandmarks.Points)
	assert.InDelta(t, 0, RMSDistance(moved, reg.ReferenceLandmarks.Points), 1e-4)
}

func TestRegistration_RoundTripIdentity(t *testing.T) {
	reference := threeCurves(t, "Reference")
	compare := reference.Clone("Compare")

	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())
	require.NoError(t, reg.Run())
	assert.True(t, reg.CompareToReference.ApproxEqual(Identity(), 1e-9), "got %v", reg.CompareToReference)

	tables, err := ComputeStatistics(reference, compare, reg.CompareToReference)
	require.NoError(t, err)
	for _, row := range tables.Summary {
		assert.Equal(t, row.Suffix, row.ReferenceSuffix)
		assert.InDelta(t, 0, row.Percentiles[6], 1e-9)
	}
}

func TestRegistration_RefineRequiresAlignment(t *testing.T) {
	reference := threeCurves(t, "Reference")
	reg := NewRegistration(reference, reference.Clone("Compare"), DefaultRegistrationConfig())
	assert.ErrorIs(t, reg.Refine(), ErrInvalidState)
	assert.Equal(t, StateUnaligned, reg.State())
}

func TestRegistration_RealignResetsRefinement(t *testing.T) {
	reference := threeCurves(t, "Reference")
	compare := fitted(t, reference.TransformedCopy("Compare", Translation(0.5, 0, 0)))
	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())
	require.NoError(t, reg.Run())

	require.NoError(t, reg.AlignLandmarks())
	assert.Equal(t, StateLandmarkAligned, reg.State())
	assert.Equal(t, Identity(), reg.InitialToReference)
	assert.Equal(t, ICPResult{}, reg.ICP)
}

func TestRegistration_MissingCurves(t *testing.T) {
	reference := threeCurves(t, "Reference")
	compare := parallelPaths("Compare")

	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())
	assert.ErrorIs(t, reg.Run(), ErrMissingCurve)
	assert.Equal(t, StateUnaligned, reg.State())

	reg = NewRegistration(nil, compare, DefaultRegistrationConfig())
	assert.ErrorIs(t, reg.AlignLandmarks(), ErrNilCollection)
}

func TestRegistration_ICPFailureKeepsLandmarkStage(t *testing.T) {
	reference := threeCurves(t, "Reference")
	compare := fitted(t, reference.TransformedCopy("Compare", Translation(2, 0, 0)))

	cfg := DefaultRegistrationConfig()
	cfg.ICP.DivergenceTolerance = -100
	reg := NewRegistration(reference, compare, cfg)
	require.NoError(t, reg.AlignLandmarks())
	landmarkFit := reg.CompareToReference

	// Start ICP from the raw compare pose so it has to take a step.
	reg.CompareToInitial = Identity()
	err := reg.Refine()
	assert.ErrorIs(t, err, ErrICPDiverged)
	assert.Equal(t, StateLandmarkAligned, reg.State())
	assert.Equal(t, landmarkFit, reg.CompareToReference)
	assert.Equal(t, 2, reg.ICP.Iterations, "ICP diagnostics are kept")
}

func TestRegistration_Restore(t *testing.T) {
	reference := threeCurves(t, "Reference")
	compare := reference.Clone("Compare")
	reg := NewRegistration(reference, compare, DefaultRegistrationConfig())

	entry := RegistrationEntry{
		CompareToInitial:   Translation(1, 0, 0),
		InitialToReference: Translation(0, 1, 0),
		CompareToReference: Translation(1, 1, 0),
		RMS:                0.01,
		Iterations:         4,
	}
	require.NoError(t, reg.Restore(entry))
	assert.Equal(t, StateRefined, reg.State())
	assert.Equal(t, entry.CompareToReference, reg.CompareToReference)
	assert.Equal(t, 4, reg.ICP.Iterations)
	assert.Equal(t, 6, reg.ReferenceLandmarks.Len())
	assert.Equal(t, 6, reg.CompareLandmarks.Len())

	// The restored transform reaches the landmarks through the published node
	node, err := PublishRegistration(reg, nil)
	require.NoError(t, err)
	assert.Same(t, node, reg.CompareLandmarks.Parent)
	assert.InDelta(t, 1, reg.CompareLandmarks.WorldPoints()[0].X-reg.CompareLandmarks.Points[0].X, 1e-12)

	bad := entry
	bad.CompareToReference[0] = 3
	assert.ErrorIs(t, NewRegistration(reference, compare, DefaultRegistrationConfig()).Restore(bad), ErrDegenerateTransform)

	inconsistent := entry
	inconsistent.CompareToReference = Translation(1, 2, 0)
	fresh := NewRegistration(reference, compare, DefaultRegistrationConfig())
	assert.ErrorIs(t, fresh.Restore(inconsistent), ErrInconsistentTransforms)
	assert.Equal(t, StateUnaligned, fresh.State())

	unfitted := NewRegistration(reference, parallelPaths("Compare"), DefaultRegistrationConfig())
	assert.ErrorIs(t, unfitted.Restore(entry), ErrMissingCurve)
}

func TestRegistrationState_String(t *testing.T) {
	assert.Equal(t, "unaligned", StateUnaligned.String())
	assert.Equal(t, "landmark-aligned", StateLandmarkAligned.String())
	assert.Equal(t, "refined", StateRefined.String())
	assert.Equal(t, "RegistrationState(9)", RegistrationState(9).String())
}
