package verify

import (
	"fmt"
	"log"
)

// Segment is one labelled region of a segmentation, given as voxel indices.
type Segment struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Visible bool     `json:"visible"`
	Voxels  [][3]int `json:"voxels"`
}

// Segmentation is a labelled volume with axis-aligned voxel geometry.
type Segmentation struct {
	Name     string    `json:"name"`
	Origin   Vec3      `json:"origin"`
	Spacing  Vec3      `json:"spacing"`
	Segments []Segment `json:"segments"`
}

// VoxelCenter converts voxel indices to the position of the voxel centre.
func (s *Segmentation) VoxelCenter(ijk [3]int) Vec3 {
	return Vec3{
		X: s.Origin.X + float64(ijk[0])*s.Spacing.X,
		Y: s.Origin.Y + float64(ijk[1])*s.Spacing.Y,
		Z: s.Origin.Z + float64(ijk[2])*s.Spacing.Z,
	}
}

// ExportSegmentation adds one path per visible, non-empty segment to paths,
// keeping voxel order as point order. It returns the number of paths added.
func ExportSegmentation(seg *Segmentation, paths *PathCollection) (int, error) {
	if seg == nil {
		return 0, fmt.Errorf("segmentation is nil")
	}
	if paths == nil {
		return 0, ErrNilCollection
	}
	if seg.Spacing.X <= 0 || seg.Spacing.Y <= 0 || seg.Spacing.Z <= 0 {
		return 0, fmt.Errorf("segmentation %s: spacing must be positive, got %v", seg.Name, seg.Spacing)
	}

	added := 0
	for _, s := range seg.Segments {
		if !s.Visible {
			continue
		}
		if len(s.Voxels) == 0 {
			log.Printf("[PATHS] %s: segment %s has no voxels, skipped", seg.Name, s.Name)
			continue
		}
		points := make([]Vec3, len(s.Voxels))
		for i, v := range s.Voxels {
			points[i] = seg.VoxelCenter(v)
		}
		paths.AddPath(points)
		added++
	}
	return added, nil
}
