package verify

import (
	"fmt"
	"log"
)

// RegistrationState tracks how far a Registration has progressed.
type RegistrationState int

const (
	StateUnaligned RegistrationState = iota
	StateLandmarkAligned
	StateRefined
)

func (s RegistrationState) String() string {
	switch s {
	case StateUnaligned:
		return "unaligned"
	case StateLandmarkAligned:
		return "landmark-aligned"
	case StateRefined:
		return "refined"
	default:
		return fmt.Sprintf("RegistrationState(%d)", int(s))
	}
}

// RegistrationConfig holds the parameters of both registration stages.
type RegistrationConfig struct {
	// AllowCollinearLandmarks accepts landmark sets lying on a single line
	// (e.g. one straight path) by fixing the free roll to the smallest rotation.
	AllowCollinearLandmarks bool      `yaml:"allowCollinearLandmarks" json:"allowCollinearLandmarks"`
	ICP                     ICPConfig `yaml:"icp" json:"icp"`
}

// DefaultRegistrationConfig rejects collinear landmarks and uses the default ICP settings.
func DefaultRegistrationConfig() RegistrationConfig {
	return RegistrationConfig{ICP: DefaultICPConfig()}
}

// Registration aligns a compare collection onto a reference collection in two
// stages: a landmark fit on curve end points, then ICP on the combined curve
// samples. Every stage result is kept as its own value.
type Registration struct {
	Reference *PathCollection
	Compare   *PathCollection
	Config    RegistrationConfig

	ReferenceLandmarks *LandmarkSet
	CompareLandmarks   *LandmarkSet

	CompareToInitial   RigidTransform
	InitialToReference RigidTransform
	CompareToReference RigidTransform

	LandmarkRMS float64
	ICP         ICPResult

	state RegistrationState
}

// NewRegistration prepares a registration of compare onto reference.
func NewRegistration(reference, compare *PathCollection, cfg RegistrationConfig) *Registration {
	refName, cmpName := "", ""
	if reference != nil {
		refName = reference.Name
	}
	if compare != nil {
		cmpName = compare.Name
	}
	return &Registration{
		Reference:          reference,
		Compare:            compare,
		Config:             cfg,
		ReferenceLandmarks: NewLandmarkSet(refName + "_Landmarks"),
		CompareLandmarks:   NewLandmarkSet(cmpName + "_Landmarks"),
		CompareToInitial:   Identity(),
		InitialToReference: Identity(),
		CompareToReference: Identity(),
	}
}

// State returns the current stage.
func (r *Registration) State() RegistrationState {
	return r.state
}

// AlignLandmarks fits the compare end landmarks onto the reference end
// landmarks. Running it again discards any earlier refinement.
func (r *Registration) AlignLandmarks() error {
	if r.Reference == nil || r.Compare == nil {
		return ErrNilCollection
	}

	refLandmarks := NewLandmarkSet(r.ReferenceLandmarks.Name)
	cmpLandmarks := NewLandmarkSet(r.CompareLandmarks.Name)
	if err := ComputeEndLandmarks(r.Reference, refLandmarks); err != nil {
		return fmt.Errorf("reference landmarks: %w", err)
	}
	if err := ComputeEndLandmarks(r.Compare, cmpLandmarks); err != nil {
		return fmt.Errorf("compare landmarks: %w", err)
	}

	m, err := FitRigid(cmpLandmarks.Points, refLandmarks.Points, r.Config.AllowCollinearLandmarks)
	if err != nil {
		return fmt.Errorf("landmark registration %s -> %s: %w", r.Compare.Name, r.Reference.Name, err)
	}

	r.ReferenceLandmarks.Points = refLandmarks.Points
	r.CompareLandmarks.Points = cmpLandmarks.Points
	r.CompareToInitial = m
	r.LandmarkRMS = RMSDistance(m.ApplyAll(cmpLandmarks.Points), refLandmarks.Points)
	r.InitialToReference = Identity()
	r.CompareToReference = m
	r.ICP = ICPResult{}
	r.state = StateLandmarkAligned

	log.Printf("[REGISTER] %s -> %s: landmark fit on %d pairs, rms %.4f mm, rotation %.2f°",
		r.Compare.Name, r.Reference.Name, refLandmarks.Len(), r.LandmarkRMS, m.RotationAngleDeg())
	return nil
}

// Refine runs ICP from the landmark-aligned compare samples onto the reference
// curves and composes the final transform.
func (r *Registration) Refine() error {
	if r.Reference == nil || r.Compare == nil {
		return ErrNilCollection
	}
	if r.state < StateLandmarkAligned {
		return fmt.Errorf("refine requires %s, registration is %s: %w", StateLandmarkAligned, r.state, ErrInvalidState)
	}

	target, err := r.Reference.CurveSamples()
	if err != nil {
		return fmt.Errorf("reference surface: %w", err)
	}
	source, err := r.Compare.CombinedSamples()
	if err != nil {
		return fmt.Errorf("compare surface: %w", err)
	}
	targetCount := 0
	for _, curve := range target {
		targetCount += len(curve)
	}
	if targetCount == 0 || len(source) == 0 {
		return fmt.Errorf("reference %d, compare %d samples: %w", targetCount, len(source), ErrEmptySurface)
	}

	result, err := RunICP(r.CompareToInitial.ApplyAll(source), target, r.Config.ICP)
	r.ICP = result
	if err != nil {
		return fmt.Errorf("ICP %s -> %s: %w", r.Compare.Name, r.Reference.Name, err)
	}

	r.InitialToReference = result.Transform
	r.CompareToReference = r.CompareToInitial.Then(result.Transform)
	r.state = StateRefined

	log.Printf("[REGISTER] %s -> %s: ICP converged in %d iterations, rms %.4f mm",
		r.Compare.Name, r.Reference.Name, result.Iterations, result.RMS)
	return nil
}

// Run performs landmark alignment followed by refinement.
func (r *Registration) Run() error {
	if err := r.AlignLandmarks(); err != nil {
		return err
	}
	return r.Refine()
}

// Restore marks the registration refined using previously computed
// transforms, skipping both stages. The end landmarks are recomputed from the
// current curves so the compare landmarks can observe the restored transform.
func (r *Registration) Restore(e RegistrationEntry) error {
	if r.Reference == nil || r.Compare == nil {
		return ErrNilCollection
	}
	if !e.CompareToReference.IsRigid(RigidTolerance) {
		return fmt.Errorf("cached transform for %s: %w", r.Compare.Name, ErrDegenerateTransform)
	}
	if !e.CompareToInitial.Then(e.InitialToReference).ApproxEqual(e.CompareToReference, RigidTolerance) {
		return fmt.Errorf("cached transforms for %s: %w", r.Compare.Name, ErrInconsistentTransforms)
	}

	refLandmarks := NewLandmarkSet(r.ReferenceLandmarks.Name)
	cmpLandmarks := NewLandmarkSet(r.CompareLandmarks.Name)
	if err := ComputeEndLandmarks(r.Reference, refLandmarks); err != nil {
		return fmt.Errorf("reference landmarks: %w", err)
	}
	if err := ComputeEndLandmarks(r.Compare, cmpLandmarks); err != nil {
		return fmt.Errorf("compare landmarks: %w", err)
	}

	r.ReferenceLandmarks.Points = refLandmarks.Points
	r.CompareLandmarks.Points = cmpLandmarks.Points
	r.CompareToInitial = e.CompareToInitial
	r.InitialToReference = e.InitialToReference
	r.CompareToReference = e.CompareToReference
	r.LandmarkRMS = e.LandmarkRMS
	r.ICP = ICPResult{Transform: e.InitialToReference, RMS: e.RMS, Iterations: e.Iterations, Converged: true}
	r.state = StateRefined
	return nil
}
