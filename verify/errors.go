package verify

import "errors"

var (
	ErrNilCollection   = errors.New("path collection is nil")
	ErrNilLandmarks    = errors.New("landmark set is nil")
	ErrNilTransform    = errors.New("transform node is nil")
	ErrUnknownSuffix   = errors.New("no path with that suffix")
	ErrDuplicateSuffix = errors.New("suffix already in use")
	ErrMissingCurve    = errors.New("path has no fitted curve")
	ErrEmptyCurve      = errors.New("curve has no samples")

	ErrInvertedTrimBounds  = errors.New("trim distances exceed the common span of the paths")
	ErrDegenerateDirection = errors.New("average path direction is zero")
	ErrTrimRemovesAll      = errors.New("trim would remove every point of a path")
	ErrUnknownTrimMode     = errors.New("unknown trim mode")

	ErrLandmarkCountMismatch = errors.New("landmark sets differ in length")
	ErrInsufficientLandmarks = errors.New("not enough distinct landmark pairs")
	ErrCollinearLandmarks    = errors.New("landmarks are collinear, rotation is under-determined")
	ErrDegenerateTransform   = errors.New("computed transform is not a proper rigid transform")

	ErrICPNotConverged = errors.New("ICP did not converge within the iteration cap")
	ErrICPDiverged     = errors.New("ICP diverged")
	ErrEmptySurface    = errors.New("combined surface sampling is empty")
	ErrInvalidState    = errors.New("registration is not in the required state")

	ErrInconsistentTransforms = errors.New("cached transforms do not compose")
	ErrCacheReferenceMismatch = errors.New("registration cache belongs to another reference")

	ErrNoCorrespondence = errors.New("no reference path to correspond with")
	ErrInvalidLabel     = errors.New("label cannot be used as a file name")

	ErrTooFewPoints   = errors.New("too few points to fit a curve")
	ErrUnsupportedFit = errors.New("unsupported curve fit configuration")
)
