package material

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/types"
)

func snapshotWithMaterialX(present bool) *probe.Snapshot {
	return &probe.Snapshot{
		Generation:   1,
		Capabilities: map[string]bool{probe.CapabilityMaterialX: present},
	}
}

func TestSynthesizeGenericProfile(t *testing.T) {
	m := types.DefaultCanonicalMaterial("clay")
	graph, warnings := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))

	assert.Empty(t, warnings)
	assert.Equal(t, ProfileGeneric, graph.Profile)
	require.NotNil(t, graph.SurfaceOutput)
	assert.Equal(t, "surface", graph.SurfaceOutput.Output)

	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)
	assert.Equal(t, "UsdPreviewSurface", surface.ShaderID)
	assert.Equal(t, types.RGB{0.18, 0.18, 0.18}, surface.Inputs["diffuseColor"])
	assert.Equal(t, 0.5, surface.Inputs["roughness"])
}

func TestSynthesizeUnavailableProfileSubstitutesGeneric(t *testing.T) {
	m := types.DefaultCanonicalMaterial("hero")
	graph, warnings := Synthesize(m, ProfileKarma, snapshotWithMaterialX(false))

	assert.Equal(t, ProfileGeneric, graph.Profile)
	require.Len(t, warnings, 1, "exactly one substitution warning")
	assert.Equal(t, types.ErrProfileUnsupported, warnings[0].Kind)

	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)
	assert.Equal(t, "UsdPreviewSurface", surface.ShaderID)
}

func TestSynthesizeKarmaProfile(t *testing.T) {
	m := types.DefaultCanonicalMaterial("hero")
	m.Metallic = 0.8
	m.EmissiveColor = types.RGB{1, 0.5, 0}

	graph, warnings := Synthesize(m, ProfileKarma, snapshotWithMaterialX(true))

	assert.Empty(t, warnings)
	assert.Equal(t, ProfileKarma, graph.Profile)
	assert.Equal(t, "karma", graph.Metadata["houdini:material"])
	require.NotNil(t, graph.SurfaceOutput)
	assert.Equal(t, "out", graph.SurfaceOutput.Output)

	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)
	assert.Equal(t, "ND_standard_surface_surfaceshader", surface.ShaderID)
	assert.Equal(t, 0.8, surface.Inputs["metallic"])
	assert.Equal(t, types.RGB{1, 0.5, 0}, surface.Inputs["emission"])
	assert.Equal(t, 0.5, surface.Inputs["specular"])
}

func TestSynthesizeAutoPrefersRichProfile(t *testing.T) {
	m := types.DefaultCanonicalMaterial("auto")

	withMtlx, _ := Synthesize(m, ProfileAuto, snapshotWithMaterialX(true))
	assert.Equal(t, ProfileKarma, withMtlx.Profile)

	without, warnings := Synthesize(m, ProfileAuto, snapshotWithMaterialX(false))
	assert.Equal(t, ProfileGeneric, without.Profile)
	assert.Empty(t, warnings, "auto fallback is silent")
}

func TestSynthesizeUnsupportedPropertiesOmitted(t *testing.T) {
	m := types.DefaultCanonicalMaterial("sss")
	m.Subsurface = 0.4
	m.Transmission = 0.2

	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))
	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)

	_, hasSubsurface := surface.Inputs["subsurface"]
	_, hasTransmission := surface.Inputs["transmission"]
	assert.False(t, hasSubsurface)
	assert.False(t, hasTransmission)
}

func TestSynthesizeTextureNodesGeneric(t *testing.T) {
	m := types.DefaultCanonicalMaterial("textured")
	m.TextureSlots[types.SlotBaseColor] = "/assets/albedo.png"

	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))
	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)

	conn, ok := surface.Connections["diffuseColor"]
	require.True(t, ok)
	assert.Equal(t, "rgb", conn.Output)
	_, stillConstant := surface.Inputs["diffuseColor"]
	assert.False(t, stillConstant, "texture connection replaces the constant")

	tex := graph.Node(conn.NodePath)
	require.NotNil(t, tex)
	assert.Equal(t, "UsdUVTexture", tex.ShaderID)
	assert.Equal(t, "/assets/albedo.png", tex.Inputs["file"])
}

func TestSynthesizeTextureNodesStandardSurface(t *testing.T) {
	m := types.DefaultCanonicalMaterial("textured")
	m.TextureSlots[types.SlotBaseColor] = "/assets/albedo.png"
	m.TextureSlots[types.SlotNormal] = "/assets/normal.png"
	m.Displacement = &types.Displacement{HeightPath: "/assets/height.png", Scale: 0.1}

	graph, _ := Synthesize(m, ProfileNuke, snapshotWithMaterialX(true))
	surface := graph.Node(graph.SurfaceOutput.NodePath)
	require.NotNil(t, surface)

	baseConn := surface.Connections["base_color"]
	image := graph.Node(baseConn.NodePath)
	require.NotNil(t, image)
	assert.Equal(t, "ND_image_color3", image.ShaderID)
	uv := graph.Node(image.Connections["texcoord"].NodePath)
	require.NotNil(t, uv)
	assert.Equal(t, "ND_texcoord_vector2", uv.ShaderID)

	normal := graph.Node(surface.Connections["normal"].NodePath)
	require.NotNil(t, normal)
	assert.Equal(t, "ND_normalmap", normal.ShaderID)

	require.NotNil(t, graph.DisplacementOutput)
	disp := graph.Node(graph.DisplacementOutput.NodePath)
	require.NotNil(t, disp)
	assert.Equal(t, "ND_displacement_float", disp.ShaderID)
	assert.Equal(t, 0.1, disp.Inputs["scale"])
}

func TestSynthesizeSanitizesMaterialName(t *testing.T) {
	m := types.DefaultCanonicalMaterial("02 wood/oak")
	graph, _ := Synthesize(m, ProfileGeneric, snapshotWithMaterialX(false))
	assert.Equal(t, "_2_wood_oak", graph.MaterialName)
}

func TestGraphEncodeIsDeterministic(t *testing.T) {
	m := types.DefaultCanonicalMaterial("enc")
	m.TextureSlots[types.SlotBaseColor] = "/assets/albedo.png"
	graph, _ := Synthesize(m, ProfileKarma, snapshotWithMaterialX(true))

	var a, b strings.Builder
	graph.Encode(&a, "")
	graph.Encode(&b, "")
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), `def Material "enc"`)
	assert.Contains(t, a.String(), "outputs:surface.connect")
}
