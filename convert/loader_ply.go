package convert

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// plyMaxElementCount bounds declared element counts before any allocation;
// a header claiming more than this is treated as malformed.
const plyMaxElementCount = 100_000_000

// loadPLY reads ASCII polygon files. Binary PLY is left to the tool
// backend; the library fallback rejects it as a tool error so the
// orchestrator can report the attempt accurately.
func loadPLY(path string) (*scene.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewError(types.ErrToolError, "open ply").WithCause(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	// Header.
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return nil, types.NewError(types.ErrToolError, "not a ply file")
	}

	var vertexCount, faceCount int
	var ascii bool
	var xIdx, yIdx, zIdx = -1, -1, -1
	propIdx := 0
	inVertexElement := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			ascii = len(fields) > 1 && fields[1] == "ascii"
		case "element":
			if len(fields) < 3 {
				return nil, types.NewError(types.ErrToolError, "ply malformed element")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, types.NewError(types.ErrToolError, "ply malformed element count").WithCause(err)
			}
			if n < 0 || n > plyMaxElementCount {
				return nil, types.NewError(types.ErrToolError,
					fmt.Sprintf("ply %s count %d out of range", fields[1], n))
			}
			switch fields[1] {
			case "vertex":
				vertexCount = n
				inVertexElement = true
				propIdx = 0
			case "face":
				faceCount = n
				inVertexElement = false
			default:
				inVertexElement = false
			}
		case "property":
			if inVertexElement && len(fields) >= 3 {
				switch fields[len(fields)-1] {
				case "x":
					xIdx = propIdx
				case "y":
					yIdx = propIdx
				case "z":
					zIdx = propIdx
				}
				propIdx++
			}
		case "end_header":
			goto body
		}
	}
	return nil, types.NewError(types.ErrToolError, "ply header not terminated")

body:
	if !ascii {
		return nil, types.NewError(types.ErrToolError, "binary ply unsupported by library loader")
	}
	if xIdx < 0 || yIdx < 0 || zIdx < 0 {
		return nil, types.NewError(types.ErrToolError, "ply vertex element lacks x/y/z")
	}

	mesh := &scene.Mesh{
		Points:     make([][3]float64, 0, vertexCount),
		FaceCounts: make([]int, 0, faceCount),
	}
	for i := 0; i < vertexCount; i++ {
		if !scanner.Scan() {
			return nil, types.NewError(types.ErrToolError, "ply truncated vertices")
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) <= zIdx || len(fields) <= yIdx || len(fields) <= xIdx {
			return nil, types.NewError(types.ErrToolError, fmt.Sprintf("ply vertex %d malformed", i))
		}
		var p [3]float64
		for axis, idx := range []int{xIdx, yIdx, zIdx} {
			v, err := strconv.ParseFloat(fields[idx], 64)
			if err != nil {
				return nil, types.NewError(types.ErrToolError, fmt.Sprintf("ply vertex %d malformed", i)).WithCause(err)
			}
			p[axis] = v
		}
		mesh.Points = append(mesh.Points, p)
	}
	for i := 0; i < faceCount; i++ {
		if !scanner.Scan() {
			return nil, types.NewError(types.ErrToolError, "ply truncated faces")
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || len(fields) < n+1 {
			return nil, types.NewError(types.ErrToolError, fmt.Sprintf("ply face %d malformed", i))
		}
		for c := 0; c < n; c++ {
			idx, err := strconv.Atoi(fields[c+1])
			if err != nil || idx < 0 || idx >= len(mesh.Points) {
				return nil, types.NewError(types.ErrToolError, fmt.Sprintf("ply face %d index out of range", i))
			}
			mesh.FaceIndices = append(mesh.FaceIndices, idx)
		}
		mesh.FaceCounts = append(mesh.FaceCounts, n)
	}
	if len(mesh.Points) == 0 {
		return nil, types.NewError(types.ErrToolError, "ply contains no vertices")
	}
	return mesh, nil
}
