package convert

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// loadSTL reads binary or ASCII stereolithography files. Vertices are not
// deduplicated; STL carries no shared topology.
func loadSTL(path string) (*scene.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.ErrToolError, "read stl").WithCause(err)
	}
	if looksASCIISTL(data) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

func looksASCIISTL(data []byte) bool {
	head := strings.ToLower(string(data[:min(128, len(data))]))
	if !strings.HasPrefix(strings.TrimSpace(head), "solid") {
		return false
	}
	// Binary files may also start with "solid"; require a facet keyword.
	probe := strings.ToLower(string(data[:min(1024, len(data))]))
	return strings.Contains(probe, "facet")
}

func parseBinarySTL(data []byte) (*scene.Mesh, error) {
	if len(data) < 84 {
		return nil, types.NewError(types.ErrToolError, "stl truncated header")
	}
	count := int(binary.LittleEndian.Uint32(data[80:]))
	need := 84 + count*50
	if len(data) < need {
		return nil, types.NewError(types.ErrToolError, "stl truncated facets")
	}

	mesh := &scene.Mesh{
		Points:      make([][3]float64, 0, count*3),
		FaceCounts:  make([]int, 0, count),
		FaceIndices: make([]int, 0, count*3),
	}
	for i := 0; i < count; i++ {
		base := 84 + i*50
		normal := readVec3f32(data[base:])
		for v := 0; v < 3; v++ {
			p := readVec3f32(data[base+12+v*12:])
			mesh.FaceIndices = append(mesh.FaceIndices, len(mesh.Points))
			mesh.Points = append(mesh.Points, p)
			mesh.Normals = append(mesh.Normals, normal)
		}
		mesh.FaceCounts = append(mesh.FaceCounts, 3)
	}
	return mesh, nil
}

func parseASCIISTL(data []byte) (*scene.Mesh, error) {
	mesh := &scene.Mesh{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var faceVerts int
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) < 4 {
				return nil, types.NewError(types.ErrToolError, "stl malformed vertex")
			}
			var p [3]float64
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, types.NewError(types.ErrToolError, "stl malformed vertex").WithCause(err)
				}
				p[i] = f
			}
			mesh.FaceIndices = append(mesh.FaceIndices, len(mesh.Points))
			mesh.Points = append(mesh.Points, p)
			faceVerts++
		case "endfacet":
			if faceVerts > 0 {
				mesh.FaceCounts = append(mesh.FaceCounts, faceVerts)
				faceVerts = 0
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewError(types.ErrToolError, "scan stl").WithCause(err)
	}
	if len(mesh.Points) == 0 {
		return nil, types.NewError(types.ErrToolError, "stl contains no facets")
	}
	return mesh, nil
}

func readVec3f32(data []byte) [3]float64 {
	var v [3]float64
	for i := 0; i < 3; i++ {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return v
}
