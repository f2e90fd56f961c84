package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	cases := []struct {
		path   string
		format SourceFormat
		ok     bool
	}{
		{"/assets/chair.fbx", FormatFBX, true},
		{"/assets/Chair.FBX", FormatFBX, true},
		{"scene.gltf", FormatGLTF, true},
		{"scene.glb", FormatGLB, true},
		{"model.OBJ", FormatOBJ, true},
		{"model.3ds", Format3DS, true},
		{"cache.abc", FormatAlembic, true},
		{"print.stl", FormatSTL, true},
		{"scan.ply", FormatPLY, true},
		{"legacy.dae", FormatDAE, true},
		{"notes.txt", "", false},
		{"noextension", "", false},
	}
	for _, tc := range cases {
		format, ok := FormatFromPath(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.format, format, tc.path)
	}
}

func TestSupportedFormatsCoverExtensionTable(t *testing.T) {
	formats := SupportedFormats()
	assert.Len(t, formats, len(extensionTable))
	seen := map[SourceFormat]bool{}
	for _, f := range formats {
		assert.False(t, seen[f], "duplicate format %s", f)
		seen[f] = true
	}
	for _, f := range extensionTable {
		assert.True(t, seen[f], "format %s missing from SupportedFormats", f)
	}
}

func TestMethodOrderIsNativeToolLibrary(t *testing.T) {
	require.Equal(t, []MethodKind{MethodNative, MethodTool, MethodLibrary}, MethodOrder)
}

func TestNewJobValidation(t *testing.T) {
	_, err := NewJob("", "/out/a.usda", DefaultJobOptions())
	assert.Equal(t, ErrInvalidJob, GetErrorCode(err))

	_, err = NewJob("/assets/a.obj", "", DefaultJobOptions())
	assert.Equal(t, ErrInvalidJob, GetErrorCode(err))

	_, err = NewJob("/assets/a.xyz", "/out/a.usda", DefaultJobOptions())
	assert.Equal(t, ErrUnsupportedFormat, GetErrorCode(err))

	job, err := NewJob("/assets/a.obj", "/out/a.usda", DefaultJobOptions())
	require.NoError(t, err)
	assert.Equal(t, FormatOBJ, job.Format)
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.SubmitTime.IsZero())
}
