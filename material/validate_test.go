package material

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisslavik/xStage/types"
)

func TestValidateCleanGraph(t *testing.T) {
	m := types.DefaultCanonicalMaterial("clean")
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))

	issues := Validate(graph, m)
	assert.Empty(t, issues)
	assert.False(t, HasFatal(issues))
}

func TestValidateMissingSurfaceOutputIsFatal(t *testing.T) {
	m := types.DefaultCanonicalMaterial("broken")
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))
	graph.SurfaceOutput = nil

	issues := Validate(graph, m)
	require.Len(t, issues, 1, "fatal defect short-circuits the later checks")
	assert.True(t, issues[0].Fatal)
	assert.Equal(t, types.ErrValidationStructural, issues[0].Kind)
	assert.True(t, HasFatal(issues))
}

func TestValidateUnboundRequiredInputIsWarning(t *testing.T) {
	m := types.DefaultCanonicalMaterial("partial")
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))
	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)
	delete(surface.Inputs, "roughness")

	issues := Validate(graph, m)
	require.Len(t, issues, 1)
	assert.False(t, issues[0].Fatal)
	assert.Equal(t, types.ErrValidationNonStructural, issues[0].Kind)
	assert.Contains(t, issues[0].Message, "roughness")
}

func TestValidateTextureConnectionCountsAsBound(t *testing.T) {
	dir := t.TempDir()
	texPath := filepath.Join(dir, "albedo.png")
	require.NoError(t, os.WriteFile(texPath, []byte("png"), 0o644))

	m := types.DefaultCanonicalMaterial("textured")
	m.TextureSlots[types.SlotBaseColor] = texPath
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))

	issues := Validate(graph, m)
	assert.Empty(t, issues, "a connected input satisfies the required-input check")
}

func TestValidateMissingTexturePathIsWarning(t *testing.T) {
	m := types.DefaultCanonicalMaterial("textured")
	m.TextureSlots[types.SlotBaseColor] = "/nonexistent/albedo.png"
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))

	issues := Validate(graph, m)
	require.Len(t, issues, 1)
	assert.False(t, issues[0].Fatal)
	assert.Contains(t, issues[0].Message, "/nonexistent/albedo.png")
}

func TestValidateMissingMetadataTagIsWarning(t *testing.T) {
	m := types.DefaultCanonicalMaterial("tagged")
	graph, _ := Synthesize(m, ProfileKarma, snapshotWithMaterialX(true))
	graph.Metadata = nil

	issues := Validate(graph, m)
	require.Len(t, issues, 1)
	assert.False(t, issues[0].Fatal)
	assert.Contains(t, issues[0].Message, "houdini:material")
}
