package material

import (
	"fmt"
	"strings"

	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/types"
)

// ResolveProfile turns a requested profile name into the profile that will
// actually be used under the given availability, following the fallback
// rule: auto picks the richest working profile, and a profile whose
// dependency is missing substitutes generic with a ProfileUnsupported
// warning. Substitution is not a failure.
func ResolveProfile(requested string, snap *probe.Snapshot) (*ShaderProfile, []types.Warning) {
	if requested == "" || requested == ProfileAuto {
		if snap.HasCapability(probe.CapabilityMaterialX) {
			return profileRegistry[ProfileKarma], nil
		}
		return profileRegistry[ProfileGeneric], nil
	}

	p, ok := LookupProfile(requested)
	if !ok {
		return profileRegistry[ProfileGeneric], []types.Warning{{
			Kind:    types.ErrProfileUnsupported,
			Message: fmt.Sprintf("unknown shader profile %q, using generic", requested),
		}}
	}
	if p.RequiresDependency() && !snap.HasCapability(p.RequiredCapability) {
		return profileRegistry[ProfileGeneric], []types.Warning{{
			Kind: types.ErrProfileUnsupported,
			Message: fmt.Sprintf("profile %q requires capability %q which is unavailable, using generic",
				p.Name, p.RequiredCapability),
		}}
	}
	return p, nil
}

// Synthesize builds the target shading network for one canonical material.
// Properties outside the chosen profile's support set are silently
// omitted. Synthesis itself never fails; all degradation is expressed as
// warnings.
func Synthesize(canonical types.CanonicalMaterial, requestedProfile string, snap *probe.Snapshot) (*ShaderGraph, []types.Warning) {
	profile, warnings := ResolveProfile(requestedProfile, snap)

	name := safeName(canonical.Name)
	base := "/Materials/" + name
	graph := &ShaderGraph{
		MaterialName: name,
		Profile:      profile.Name,
		Metadata:     profile.MetadataTags,
	}

	surfacePath := base + "/" + profile.SurfaceNodeName
	surface := &ShaderNode{
		Path:        surfacePath,
		ShaderID:    profile.ShaderID,
		Inputs:      map[string]any{},
		Connections: map[string]ConnectionRef{},
	}
	graph.Nodes = append(graph.Nodes, surface)
	graph.SurfaceOutput = &ConnectionRef{NodePath: surfacePath, Output: profile.SurfaceOutputName}

	if profile.ShaderID == "UsdPreviewSurface" {
		buildPreviewSurface(graph, surface, profile, canonical)
	} else {
		buildStandardSurface(graph, surface, profile, canonical)
	}
	return graph, warnings
}

func buildPreviewSurface(graph *ShaderGraph, surface *ShaderNode, profile *ShaderProfile, m types.CanonicalMaterial) {
	surface.Inputs["diffuseColor"] = m.BaseColor
	surface.Inputs["metallic"] = m.Metallic
	surface.Inputs["roughness"] = m.Roughness
	if profile.Supported[propOpacity] {
		surface.Inputs["opacity"] = m.Opacity
	}
	if profile.Supported[propEmissive] && m.EmissiveColor != (types.RGB{}) {
		surface.Inputs["emissiveColor"] = m.EmissiveColor
	}

	if path, ok := m.TextureSlots[types.SlotBaseColor]; ok {
		tex := uvTextureNode(surface.Path+"/diffuseTexture", path)
		graph.Nodes = append(graph.Nodes, tex)
		delete(surface.Inputs, "diffuseColor")
		surface.Connections["diffuseColor"] = ConnectionRef{NodePath: tex.Path, Output: "rgb"}
	}
	if path, ok := m.TextureSlots[types.SlotNormal]; ok {
		tex := uvTextureNode(surface.Path+"/normalMap", path)
		graph.Nodes = append(graph.Nodes, tex)
		surface.Connections["normal"] = ConnectionRef{NodePath: tex.Path, Output: "rgb"}
	}
}

func buildStandardSurface(graph *ShaderGraph, surface *ShaderNode, profile *ShaderProfile, m types.CanonicalMaterial) {
	surface.Inputs["base_color"] = m.BaseColor
	surface.Inputs["metallic"] = m.Metallic
	surface.Inputs["roughness"] = m.Roughness
	if profile.Supported[propSpecular] {
		surface.Inputs["specular"] = m.Specular
		surface.Inputs["specular_color"] = m.SpecularColor
	}
	if profile.Supported[propOpacity] {
		surface.Inputs["opacity"] = m.Opacity
	}
	if profile.Supported[propEmissive] && m.EmissiveColor != (types.RGB{}) {
		surface.Inputs["emission"] = m.EmissiveColor
	}
	if profile.Supported[propSubsurface] && m.Subsurface > 0 {
		surface.Inputs["subsurface"] = m.Subsurface
		surface.Inputs["subsurface_color"] = m.SubsurfaceColor
	}
	if profile.Supported[propTransmission] && m.Transmission > 0 {
		surface.Inputs["transmission"] = m.Transmission
	}

	texSlot := func(slot, input string) {
		path, ok := m.TextureSlots[slot]
		if !ok {
			return
		}
		tex := imageNodes(graph, surface.Path+"/"+input+"Tex", path)
		delete(surface.Inputs, input)
		surface.Connections[input] = ConnectionRef{NodePath: tex.Path, Output: "out"}
	}
	texSlot(types.SlotBaseColor, "base_color")
	texSlot(types.SlotMetallic, "metallic")
	texSlot(types.SlotRoughness, "roughness")
	texSlot(types.SlotEmissive, "emission")

	if path, ok := m.TextureSlots[types.SlotNormal]; ok {
		normalPath := surface.Path + "/normalMap"
		image := imageNodes(graph, normalPath+"_image", path)
		normal := &ShaderNode{
			Path:     normalPath,
			ShaderID: "ND_normalmap",
			Inputs:   map[string]any{"scale": 1.0},
			Connections: map[string]ConnectionRef{
				"in": {NodePath: image.Path, Output: "out"},
			},
		}
		graph.Nodes = append(graph.Nodes, normal)
		surface.Connections["normal"] = ConnectionRef{NodePath: normalPath, Output: "out"}
	}

	if profile.Supported[propDisplacement] && m.Displacement != nil {
		dispPath := surface.Path + "/displacement"
		disp := &ShaderNode{
			Path:        dispPath,
			ShaderID:    "ND_displacement_float",
			Inputs:      map[string]any{"scale": m.Displacement.Scale},
			Connections: map[string]ConnectionRef{},
		}
		if m.Displacement.HeightPath != "" {
			height := imageNodes(graph, dispPath+"_height", m.Displacement.HeightPath)
			disp.Connections["in"] = ConnectionRef{NodePath: height.Path, Output: "out"}
		}
		graph.Nodes = append(graph.Nodes, disp)
		graph.DisplacementOutput = &ConnectionRef{NodePath: dispPath, Output: "out"}
	}
}

// uvTextureNode builds a UsdUVTexture image reader for the preview profile.
func uvTextureNode(path, file string) *ShaderNode {
	return &ShaderNode{
		Path:     path,
		ShaderID: "UsdUVTexture",
		Inputs:   map[string]any{"file": file},
	}
}

// imageNodes builds an image reader plus its texture-coordinate source and
// returns the image node, appending both to the graph.
func imageNodes(graph *ShaderGraph, path, file string) *ShaderNode {
	uv := &ShaderNode{
		Path:     path + "_uv",
		ShaderID: "ND_texcoord_vector2",
		Inputs:   map[string]any{"index": 0},
	}
	image := &ShaderNode{
		Path:     path,
		ShaderID: "ND_image_color3",
		Inputs:   map[string]any{"file": file},
		Connections: map[string]ConnectionRef{
			"texcoord": {NodePath: uv.Path, Output: "out"},
		},
	}
	graph.Nodes = append(graph.Nodes, image, uv)
	return image
}

// safeName rewrites a material name into a legal prim identifier.
func safeName(name string) string {
	if name == "" {
		return "Material"
	}
	var b strings.Builder
	for i, r := range name {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
