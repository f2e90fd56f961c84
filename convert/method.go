package convert

import (
	"context"

	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// RawMaterial is one schema-specific material field bag lifted from the
// source asset. The extractor registry maps it into a CanonicalMaterial.
type RawMaterial struct {
	Name   string
	Fields map[string]any
}

// SourceInfo describes what the successful method observed in the source.
type SourceInfo struct {
	// SampleTimes lists distinct animated sample times found across the
	// inspected channels. Empty means the asset is static.
	SampleTimes []float64
	MeshCount   int
	NodeCount   int
}

// GeometryOutput is the product of one successful conversion attempt.
// Either Doc holds the pending in-memory document (in-process methods) or
// Doc is nil and the method already wrote the temporary output file
// (external tools).
type GeometryOutput struct {
	Doc          *scene.Document
	Info         SourceInfo
	RawMaterials []RawMaterial

	// TmpPath is the temporary output location of the winning attempt,
	// set by the orchestrator and consumed by Finalize.
	TmpPath string
}

// Method is one conversion backend. Implementations are stateless with
// respect to jobs; a method may be exercised by many jobs concurrently.
type Method interface {
	// ID is the stable method identifier recorded in attempt results,
	// e.g. "native:gltf", "tool:usdcat", "library:mesh".
	ID() string

	Kind() types.MethodKind

	// Supports reports whether the method can read the format at all,
	// independent of environment availability.
	Supports(format types.SourceFormat) bool

	// Convert reads the source and produces geometry output. tmpPath is
	// the temporary output location for methods that write files
	// themselves; the final target is never touched here.
	Convert(ctx context.Context, job *types.ConversionJob, tmpPath string) (*GeometryOutput, error)
}

// Registry holds the registered methods in fixed registration order.
// Selection over a fixed registry keeps MethodList a pure function of
// (format, snapshot).
type Registry struct {
	methods []Method
}

// NewRegistry creates a registry with the engine's built-in backends.
//
// DAE and 3DS pass job intake but no built-in backend reads them, so every
// snapshot selects an empty list and such jobs end in AllMethodsExhausted
// until a method covering those formats is registered here.
func NewRegistry() *Registry {
	return &Registry{
		methods: []Method{
			newNativeGLTF(),
			newToolFBX2USD(),
			newToolUSDCat(),
			newLibraryLoader(),
		},
	}
}

// Lookup resolves a method identifier produced by Select.
func (r *Registry) Lookup(id string) (Method, bool) {
	for _, m := range r.methods {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

// NativeFormats lists formats served by in-process plugins, for the probe.
func (r *Registry) NativeFormats() []types.SourceFormat {
	return r.formatsOfKind(types.MethodNative)
}

// LibraryFormats lists formats the best-effort loader reads, for the probe.
func (r *Registry) LibraryFormats() []types.SourceFormat {
	return r.formatsOfKind(types.MethodLibrary)
}

func (r *Registry) formatsOfKind(kind types.MethodKind) []types.SourceFormat {
	var out []types.SourceFormat
	for _, f := range types.SupportedFormats() {
		for _, m := range r.methods {
			if m.Kind() == kind && m.Supports(f) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// MethodList is the deterministic ordered sequence of candidate method
// identifiers for one job.
type MethodList []string

// Select produces the candidate methods for a format given an availability
// snapshot: native plugin first, then external tool, then library fallback,
// skipping unavailable kinds. A format with zero available methods yields
// an empty list; the orchestrator turns that into AllMethodsExhausted.
func (r *Registry) Select(format types.SourceFormat, snap *probe.Snapshot) MethodList {
	var list MethodList
	for _, kind := range types.MethodOrder {
		if !snap.Available(format, kind) {
			continue
		}
		for _, m := range r.methods {
			if m.Kind() == kind && m.Supports(format) {
				list = append(list, m.ID())
			}
		}
	}
	return list
}
