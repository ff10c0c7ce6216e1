package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollection(t *testing.T) {
	data := []byte(`{
		"name": "Reference",
		"paths": [
			{"suffix": 3, "points": [[0, 0, 0], [1, 2, 3]]},
			{"suffix": 0, "points": [[5, 5, 5]]}
		]
	}`)
	c, err := ParseCollection(data)
	require.NoError(t, err)
	assert.Equal(t, "Reference", c.Name)
	assert.Equal(t, []int{0, 3}, c.Suffixes())
	assert.Equal(t, []Vec3{{0, 0, 0}, {1, 2, 3}}, c.Path(3).Points.Points)
	assert.Nil(t, c.Path(3).Curve)

	// New paths continue after the highest stored suffix
	assert.Equal(t, 4, c.AddPath(nil).Suffix)
}

func TestParseCollection_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"name": `},
		{"missing name", `{"paths": []}`},
		{"duplicate suffix", `{"name": "c", "paths": [{"suffix": 1, "points": []}, {"suffix": 1, "points": []}]}`},
		{"negative suffix", `{"name": "c", "paths": [{"suffix": -1, "points": []}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCollection([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := ParseCollection([]byte(`{"name": "c", "paths": [{"suffix": 1, "points": []}, {"suffix": 1, "points": []}]}`))
	assert.ErrorIs(t, err, ErrDuplicateSuffix)
}

func TestCollectionFile_RoundTrip(t *testing.T) {
	original := parallelPaths("Compare")
	require.NoError(t, original.RemovePath(1))

	path := filepath.Join(t.TempDir(), "nested", "compare.json")
	require.NoError(t, WriteCollectionFile(path, original))

	loaded, err := ParseCollectionFile(path)
	require.NoError(t, err)
	assert.Equal(t, original.Name, loaded.Name)
	assert.Equal(t, []int{0, 2}, loaded.Suffixes())
	for _, s := range original.Suffixes() {
		assert.Equal(t, original.Path(s).Points.Points, loaded.Path(s).Points.Points)
	}

	_, err = ParseCollectionFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.ErrorIs(t, WriteCollectionFile(path, nil), ErrNilCollection)
}

func TestParseSegmentationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.json")
	data := `{
		"name": "Catheters",
		"origin": {"x": 10, "y": 0, "z": -5},
		"spacing": {"x": 0.5, "y": 0.5, "z": 2},
		"segments": [
			{"id": "s1", "name": "Catheter 1", "visible": true, "voxels": [[0, 0, 0], [2, 4, 1]]},
			{"id": "s2", "name": "Hidden", "visible": false, "voxels": [[1, 1, 1]]},
			{"id": "s3", "name": "Empty", "visible": true, "voxels": []},
			{"id": "s4", "name": "Catheter 2", "visible": true, "voxels": [[1, 0, 0]]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	seg, err := ParseSegmentationFile(path)
	require.NoError(t, err)
	require.Len(t, seg.Segments, 4)
	assert.Equal(t, Vec3{11, 2, -3}, seg.VoxelCenter([3]int{2, 4, 1}))

	c := NewPathCollection("Reference")
	n, err := ExportSegmentation(seg, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 1}, c.Suffixes())
	assert.Equal(t, []Vec3{{10, 0, -5}, {11, 2, -3}}, c.Path(0).Points.Points)
	assert.Equal(t, []Vec3{{10.5, 0, -5}}, c.Path(1).Points.Points)
}

func TestExportSegmentation_Errors(t *testing.T) {
	seg := &Segmentation{Name: "bad", Spacing: Vec3{1, 0, 1}}
	_, err := ExportSegmentation(seg, NewPathCollection("c"))
	assert.Error(t, err)

	_, err = ExportSegmentation(&Segmentation{Spacing: Vec3{1, 1, 1}}, nil)
	assert.ErrorIs(t, err, ErrNilCollection)

	_, err = ExportSegmentation(nil, NewPathCollection("c"))
	assert.Error(t, err)
}
