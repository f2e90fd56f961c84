package convert

import (
	"context"
	"path/filepath"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// libraryLoader is the best-effort in-process fallback. It reads the
// simple mesh formats directly; fidelity is limited to what those formats
// carry (no animation, flat hierarchy).
type libraryLoader struct{}

func newLibraryLoader() *libraryLoader { return &libraryLoader{} }

func (m *libraryLoader) ID() string             { return "library:mesh" }
func (m *libraryLoader) Kind() types.MethodKind { return types.MethodLibrary }

func (m *libraryLoader) Supports(format types.SourceFormat) bool {
	switch format {
	case types.FormatOBJ, types.FormatSTL, types.FormatPLY:
		return true
	}
	return false
}

func (m *libraryLoader) Convert(ctx context.Context, job *types.ConversionJob, tmpPath string) (*GeometryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mesh *scene.Mesh
	var raw []RawMaterial
	var err error

	switch job.Format {
	case types.FormatOBJ:
		mesh, raw, err = loadOBJ(job.SourcePath)
	case types.FormatSTL:
		mesh, err = loadSTL(job.SourcePath)
	case types.FormatPLY:
		mesh, err = loadPLY(job.SourcePath)
	default:
		return nil, types.NewError(types.ErrMethodUnavailable, "library loader does not read "+string(job.Format))
	}
	if err != nil {
		return nil, err
	}

	doc := scene.NewDocument()
	doc.ApplyJobOptions(job.Options)
	doc.SourceComment = "converted from " + filepath.Base(job.SourcePath)
	doc.Root.Children = append(doc.Root.Children, &scene.Node{Name: "Mesh", Mesh: mesh})

	return &GeometryOutput{
		Doc: doc,
		Info: SourceInfo{
			MeshCount: 1,
			NodeCount: doc.NodeCount(),
		},
		RawMaterials: raw,
	}, nil
}
