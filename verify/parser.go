package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CollectionFile is the on-disk form of a PathCollection.
type CollectionFile struct {
	Name  string     `json:"name"`
	Paths []PathFile `json:"paths"`
}

// PathFile is one path of a CollectionFile. Points are [x, y, z] triples in mm.
type PathFile struct {
	Suffix int          `json:"suffix"`
	Points [][3]float64 `json:"points"`
}

// ParseCollectionFile reads and parses a path collection JSON file
func ParseCollectionFile(path string) (*PathCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseCollection(data)
}

// ParseCollection parses path collection JSON data
func ParseCollection(data []byte) (*PathCollection, error) {
	var f CollectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("collection has no name")
	}

	c := NewPathCollection(f.Name)
	for _, pf := range f.Paths {
		points := make([]Vec3, len(pf.Points))
		for i, p := range pf.Points {
			points[i] = Vec3{p[0], p[1], p[2]}
		}
		if _, err := c.SetPath(pf.Suffix, points); err != nil {
			return nil, fmt.Errorf("collection %s: %w", f.Name, err)
		}
	}
	return c, nil
}

// EncodeCollection converts a collection to its file form. Only raw points are
// stored; curves are refit on load.
func EncodeCollection(c *PathCollection) CollectionFile {
	f := CollectionFile{Name: c.Name}
	for _, p := range c.Paths() {
		pf := PathFile{Suffix: p.Suffix, Points: make([][3]float64, p.Points.Len())}
		for i, v := range p.Points.Points {
			pf.Points[i] = [3]float64{v.X, v.Y, v.Z}
		}
		f.Paths = append(f.Paths, pf)
	}
	return f
}

// WriteCollectionFile saves the raw points of c as JSON.
func WriteCollectionFile(path string, c *PathCollection) error {
	if c == nil {
		return ErrNilCollection
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating collection directory: %w", err)
	}
	data, err := json.MarshalIndent(EncodeCollection(c), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling collection: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing collection file: %w", err)
	}
	return nil
}

// ParseSegmentationFile reads a segmentation JSON file
func ParseSegmentationFile(path string) (*Segmentation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var seg Segmentation
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &seg, nil
}
