package types

import (
	"path/filepath"
	"strings"
)

// SourceFormat identifies a supported input interchange format.
type SourceFormat string

const (
	FormatFBX     SourceFormat = "fbx"
	FormatOBJ     SourceFormat = "obj"
	FormatAlembic SourceFormat = "abc"
	FormatGLTF    SourceFormat = "gltf"
	FormatGLB     SourceFormat = "glb"
	FormatSTL     SourceFormat = "stl"
	FormatPLY     SourceFormat = "ply"
	FormatDAE     SourceFormat = "dae"
	Format3DS     SourceFormat = "3ds"
)

// extensionTable maps lowercase file extensions to formats.
var extensionTable = map[string]SourceFormat{
	".fbx":  FormatFBX,
	".obj":  FormatOBJ,
	".abc":  FormatAlembic,
	".gltf": FormatGLTF,
	".glb":  FormatGLB,
	".stl":  FormatSTL,
	".ply":  FormatPLY,
	".dae":  FormatDAE,
	".3ds":  Format3DS,
}

// SupportedFormats returns all supported formats in a fixed order.
func SupportedFormats() []SourceFormat {
	return []SourceFormat{
		FormatFBX, FormatOBJ, FormatAlembic, FormatGLTF, FormatGLB,
		FormatSTL, FormatPLY, FormatDAE, Format3DS,
	}
}

// FormatFromPath derives the source format from a file extension.
// The second return value is false for unsupported extensions.
func FormatFromPath(path string) (SourceFormat, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := extensionTable[ext]
	return f, ok
}

// MethodKind classifies a conversion backend by how it runs.
type MethodKind string

const (
	// MethodNative is an in-process format plugin. Highest fidelity, fastest.
	MethodNative MethodKind = "native"
	// MethodTool is an external command-line converter. Broad compatibility.
	MethodTool MethodKind = "tool"
	// MethodLibrary is the in-process best-effort loader. May lose fidelity.
	MethodLibrary MethodKind = "library"
)

// MethodOrder is the fixed fallback priority across backends.
var MethodOrder = []MethodKind{MethodNative, MethodTool, MethodLibrary}
