package material

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crisslavik/xStage/types"
)

// Extractor maps one source schema's material field bag into the
// canonical descriptor. Implementations never fail over missing optional
// fields; those take the canonical defaults. The only extraction error is
// a structurally malformed bag, which the registry rejects before the
// extractor runs.
type Extractor interface {
	// Schema names the source schema the extractor reads.
	Schema() string

	// Extract maps the field bag into a canonical material. Texture
	// references that fail to resolve are kept verbatim and reported as
	// warnings, never dropped.
	Extract(name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning)
}

// extractorRegistry is the static schema registry keyed by declared source
// format. Formats without a dedicated schema fall back to the generic
// extractor.
var extractorRegistry = map[types.SourceFormat]Extractor{
	types.FormatFBX:  fbxExtractor{},
	types.FormatGLTF: gltfExtractor{},
	types.FormatGLB:  gltfExtractor{},
	types.FormatOBJ:  mtlExtractor{},
}

var genericFallback = genericExtractor{}

// ExtractorFor returns the extractor for a declared source format.
func ExtractorFor(format types.SourceFormat) Extractor {
	if e, ok := extractorRegistry[format]; ok {
		return e
	}
	return genericFallback
}

// Extract validates the bag shape and dispatches to the format's
// extractor. A nil field bag is structurally malformed and is the one
// case that returns an error.
func Extract(format types.SourceFormat, name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning, error) {
	if fields == nil {
		return types.CanonicalMaterial{}, nil,
			types.NewError(types.ErrMalformedMaterial, fmt.Sprintf("material %q: field bag is not a mapping", name))
	}
	m, warnings := ExtractorFor(format).Extract(name, fields, sourceDir)
	m.Normalize()
	return m, warnings, nil
}

// resolveTexture resolves a texture reference against the source asset's
// directory. When the file is absent the original reference string is kept
// and a warning is returned rather than dropping the slot.
func resolveTexture(ref, sourceDir string) (string, *types.Warning) {
	if ref == "" {
		return "", nil
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(sourceDir, filepath.FromSlash(ref))
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	w := types.Warning{
		Kind:    types.ErrMaterialExtractionIncomplete,
		Message: fmt.Sprintf("texture %q not found relative to source", ref),
	}
	return ref, &w
}

// Field bag accessors. Source bags are loosely typed; every accessor
// tolerates absence and wrong shapes by reporting !ok.

func bagFloat(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func bagColor(fields map[string]any, key string) (types.RGB, bool) {
	var vals []float64
	switch v := fields[key].(type) {
	case []float64:
		vals = v
	case types.RGB:
		return v, true
	case []any:
		for _, elem := range v {
			f, ok := elem.(float64)
			if !ok {
				return types.RGB{}, false
			}
			vals = append(vals, f)
		}
	default:
		return types.RGB{}, false
	}
	if len(vals) < 3 {
		return types.RGB{}, false
	}
	return types.RGB{vals[0], vals[1], vals[2]}, true
}

func bagString(fields map[string]any, key string) (string, bool) {
	s, ok := fields[key].(string)
	return s, ok && s != ""
}

func bagMap(fields map[string]any, key string) (map[string]any, bool) {
	m, ok := fields[key].(map[string]any)
	return m, ok
}
