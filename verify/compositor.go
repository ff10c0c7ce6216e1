package verify

import (
	"fmt"
	"log"
)

// ObserveTransform makes the landmarks and every point cloud and curve of c
// observe node. Coordinates are never rewritten; consumers see transformed
// positions through WorldPoints and WorldSamples. Observing again re-points
// to the new node.
func ObserveTransform(c *PathCollection, landmarks *LandmarkSet, node *TransformNode) error {
	if c == nil {
		return ErrNilCollection
	}
	if node == nil {
		return ErrNilTransform
	}
	if landmarks != nil {
		landmarks.Parent = node
	}
	for _, p := range c.Paths() {
		if p.Points != nil {
			p.Points.Parent = node
		}
		if p.Curve != nil {
			p.Curve.Parent = node
		}
	}
	return nil
}

// PublishRegistration stores the final registration transform in node,
// creating the node when nil, and makes the compare collection observe it.
func PublishRegistration(r *Registration, node *TransformNode) (*TransformNode, error) {
	if r == nil || r.Compare == nil {
		return node, ErrNilCollection
	}
	if r.State() != StateRefined {
		return node, fmt.Errorf("publish requires %s, registration is %s: %w", StateRefined, r.State(), ErrInvalidState)
	}
	if node == nil {
		node = NewTransformNode(fmt.Sprintf("%s_To_%s", r.Compare.Name, r.Reference.Name))
	}
	node.Set(r.CompareToReference)
	if err := ObserveTransform(r.Compare, r.CompareLandmarks, node); err != nil {
		return node, err
	}
	log.Printf("[REGISTER] %s now observes %s", r.Compare.Name, node.Name)
	return node, nil
}
