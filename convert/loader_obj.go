package convert

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// loadOBJ reads a Wavefront OBJ file and any material library it
// references. Groups and smoothing are ignored; all faces land in one mesh
// with the last bound material.
func loadOBJ(path string) (*scene.Mesh, []RawMaterial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, types.NewError(types.ErrToolError, "open obj").WithCause(err)
	}
	defer f.Close()

	mesh := &scene.Mesh{}
	var mtlFiles []string
	var currentMtl string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return nil, nil, types.NewError(types.ErrToolError,
					fmt.Sprintf("obj line %d: bad vertex", lineNo)).WithCause(err)
			}
			mesh.Points = append(mesh.Points, p)
		case "vn":
			n, err := parseVec3(fields[1:])
			if err == nil {
				mesh.Normals = append(mesh.Normals, n)
			}
		case "vt":
			if len(fields) >= 3 {
				u, err1 := strconv.ParseFloat(fields[1], 64)
				v, err2 := strconv.ParseFloat(fields[2], 64)
				if err1 == nil && err2 == nil {
					mesh.UVs = append(mesh.UVs, [2]float64{u, v})
				}
			}
		case "f":
			if len(fields) < 4 {
				continue
			}
			count := 0
			for _, corner := range fields[1:] {
				idxStr := corner
				if slash := strings.IndexByte(corner, '/'); slash >= 0 {
					idxStr = corner[:slash]
				}
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, nil, types.NewError(types.ErrToolError,
						fmt.Sprintf("obj line %d: bad face index", lineNo)).WithCause(err)
				}
				if idx < 0 {
					idx = len(mesh.Points) + idx
				} else {
					idx--
				}
				if idx < 0 || idx >= len(mesh.Points) {
					return nil, nil, types.NewError(types.ErrToolError,
						fmt.Sprintf("obj line %d: face index out of range", lineNo))
				}
				mesh.FaceIndices = append(mesh.FaceIndices, idx)
				count++
			}
			mesh.FaceCounts = append(mesh.FaceCounts, count)
		case "mtllib":
			if len(fields) > 1 {
				mtlFiles = append(mtlFiles, fields[1])
			}
		case "usemtl":
			if len(fields) > 1 {
				currentMtl = fields[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, types.NewError(types.ErrToolError, "scan obj").WithCause(err)
	}
	if len(mesh.Points) == 0 {
		return nil, nil, types.NewError(types.ErrToolError, "obj contains no vertices")
	}
	mesh.MaterialName = currentMtl

	var raw []RawMaterial
	for _, mtl := range mtlFiles {
		bags, err := loadMTL(filepath.Join(filepath.Dir(path), mtl))
		if err != nil {
			// Missing material library degrades to defaults downstream.
			continue
		}
		raw = append(raw, bags...)
	}
	return mesh, raw, nil
}

// loadMTL parses a material library into per-material field bags keyed the
// way the legacy material-library extractor expects (Kd, Ks, Ns, d, Tr,
// map_* texture statements).
func loadMTL(path string) ([]RawMaterial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bags []RawMaterial
	var current map[string]any

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		key := fields[0]
		switch key {
		case "newmtl":
			if len(fields) < 2 {
				continue
			}
			current = map[string]any{}
			bags = append(bags, RawMaterial{Name: fields[1], Fields: current})
		case "Kd", "Ks", "Ka", "Ke":
			if current == nil {
				continue
			}
			if v, err := parseVec3(fields[1:]); err == nil {
				current[key] = []float64{v[0], v[1], v[2]}
			}
		case "Ns", "d", "Tr", "Ni":
			if current == nil || len(fields) < 2 {
				continue
			}
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
				current[key] = v
			}
		case "map_Kd", "map_Ks", "map_Ka", "map_Bump", "bump", "map_d":
			if current == nil || len(fields) < 2 {
				continue
			}
			// Texture statements may carry options; the path is last.
			current[key] = fields[len(fields)-1]
		}
	}
	return bags, scanner.Err()
}

func parseVec3(fields []string) ([3]float64, error) {
	var v [3]float64
	if len(fields) < 3 {
		return v, fmt.Errorf("want 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
