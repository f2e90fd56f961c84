package convert

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisslavik/xStage/types"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOBJQuadWithMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.mtl"), []byte(`
newmtl wood
Kd 0.8 0.6 0.4
Ks 0.1 0.1 0.1
Ns 250
d 0.9
map_Kd -blendu on textures/wood.png
`), 0o644))
	objPath := filepath.Join(dir, "cube.obj")
	require.NoError(t, os.WriteFile(objPath, []byte(`
# quad
mtllib cube.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
vt 0 0
usemtl wood
f 1/1/1 2/1/1 3/1/1 4/1/1
`), 0o644))

	mesh, raw, err := loadOBJ(objPath)
	require.NoError(t, err)

	assert.Len(t, mesh.Points, 4)
	assert.Equal(t, []int{4}, mesh.FaceCounts)
	assert.Equal(t, []int{0, 1, 2, 3}, mesh.FaceIndices)
	assert.Equal(t, "wood", mesh.MaterialName)

	require.Len(t, raw, 1)
	assert.Equal(t, "wood", raw[0].Name)
	assert.Equal(t, []float64{0.8, 0.6, 0.4}, raw[0].Fields["Kd"])
	assert.Equal(t, 250.0, raw[0].Fields["Ns"])
	assert.Equal(t, "textures/wood.png", raw[0].Fields["map_Kd"],
		"texture statement options are skipped, path is the last field")
}

func TestLoadOBJNegativeIndices(t *testing.T) {
	path := writeFixture(t, "tri.obj", `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`)
	mesh, _, err := loadOBJ(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, mesh.FaceIndices)
}

func TestLoadOBJMissingMaterialLibraryIsTolerated(t *testing.T) {
	path := writeFixture(t, "orphan.obj", `
mtllib nonexistent.mtl
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	mesh, raw, err := loadOBJ(path)
	require.NoError(t, err)
	assert.Len(t, mesh.Points, 3)
	assert.Empty(t, raw)
}

func TestLoadOBJMalformedFaceIsToolError(t *testing.T) {
	path := writeFixture(t, "bad.obj", `
v 0 0 0
f 1 2 99
`)
	_, _, err := loadOBJ(path)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
}

func TestLoadOBJEmptyIsToolError(t *testing.T) {
	path := writeFixture(t, "empty.obj", "# nothing\n")
	_, _, err := loadOBJ(path)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
}

func TestLoadSTLBinary(t *testing.T) {
	buf := make([]byte, 84+50)
	copy(buf, "generated fixture")
	binary.LittleEndian.PutUint32(buf[80:], 1)
	verts := [][3]float32{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	for i, v := range verts {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(buf[84+i*12+c*4:], math.Float32bits(v[c]))
		}
	}
	path := filepath.Join(t.TempDir(), "tri.stl")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	mesh, err := loadSTL(path)
	require.NoError(t, err)
	assert.Len(t, mesh.Points, 3)
	assert.Equal(t, []int{3}, mesh.FaceCounts)
	assert.Equal(t, [3]float64{0, 0, 1}, mesh.Normals[0])
}

func TestLoadSTLASCII(t *testing.T) {
	path := writeFixture(t, "tri.stl", `solid tri
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid tri
`)
	mesh, err := loadSTL(path)
	require.NoError(t, err)
	assert.Len(t, mesh.Points, 3)
	assert.Equal(t, []int{3}, mesh.FaceCounts)
}

func TestLoadSTLTruncatedIsToolError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.stl")
	require.NoError(t, os.WriteFile(path, make([]byte, 30), 0o644))

	_, err := loadSTL(path)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
}

func TestLoadPLYASCII(t *testing.T) {
	path := writeFixture(t, "tri.ply", `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
3 0 1 2
`)
	mesh, err := loadPLY(path)
	require.NoError(t, err)
	assert.Len(t, mesh.Points, 3)
	assert.Equal(t, []int{3}, mesh.FaceCounts)
	assert.Equal(t, []int{0, 1, 2}, mesh.FaceIndices)
}

func TestLoadPLYBinaryIsToolError(t *testing.T) {
	path := writeFixture(t, "bin.ply", `ply
format binary_little_endian 1.0
element vertex 0
end_header
`)
	_, err := loadPLY(path)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "binary ply")
}

func TestLoadPLYNegativeElementCountIsToolError(t *testing.T) {
	path := writeFixture(t, "neg.ply", `ply
format ascii 1.0
element vertex -1
property float x
property float y
property float z
end_header
`)
	_, err := loadPLY(path)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "out of range")
}

func TestLoadPLYAbsurdElementCountIsToolError(t *testing.T) {
	path := writeFixture(t, "huge.ply", `ply
format ascii 1.0
element vertex 9999999999
property float x
property float y
property float z
end_header
`)
	_, err := loadPLY(path)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
}

func TestLoadPLYBadMagicIsToolError(t *testing.T) {
	path := writeFixture(t, "notply.ply", "obj\n")
	_, err := loadPLY(path)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
}

func TestLibraryLoaderBuildsDocument(t *testing.T) {
	objPath := writeFixture(t, "tri.obj", `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	job, err := types.NewJob(objPath, filepath.Join(t.TempDir(), "tri.usda"), types.DefaultJobOptions())
	require.NoError(t, err)

	loader := newLibraryLoader()
	geo, err := loader.Convert(t.Context(), job, "")
	require.NoError(t, err)

	require.NotNil(t, geo.Doc)
	assert.Equal(t, 1, geo.Info.MeshCount)
	assert.Equal(t, 1, geo.Doc.MeshCount())
}
