package material

import (
	"github.com/crisslavik/xStage/types"
)

// ============================================================================
// FBX schema
// ============================================================================

type fbxExtractor struct{}

func (fbxExtractor) Schema() string { return "fbx" }

// Extract maps the FBX surface property set. Shininess runs up to 1000 in
// production exports, so roughness = clamp(1 - shininess/1000).
func (e fbxExtractor) Extract(name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning) {
	m := types.DefaultCanonicalMaterial(name)
	var warnings []types.Warning

	if c, ok := bagColor(fields, "DiffuseColor"); ok {
		m.BaseColor = c
	} else if c, ok := bagColor(fields, "diffuseColor"); ok {
		m.BaseColor = c
	}
	if v, ok := firstFloat(fields, "ReflectionFactor", "reflectionFactor"); ok {
		m.Metallic = v
	}
	if v, ok := firstFloat(fields, "Shininess", "shininess"); ok {
		m.Roughness = 1 - v/1000
	}
	if v, ok := firstFloat(fields, "SpecularFactor", "specularFactor"); ok {
		m.Specular = v
	}
	if c, ok := bagColor(fields, "SpecularColor"); ok {
		m.SpecularColor = c
	}
	if c, ok := bagColor(fields, "Emissive"); ok {
		m.EmissiveColor = c
	} else if c, ok := bagColor(fields, "EmissiveColor"); ok {
		m.EmissiveColor = c
	}
	if v, ok := firstFloat(fields, "TransparencyFactor", "transparencyFactor"); ok {
		m.Opacity = 1 - v
	}
	if c, ok := bagColor(fields, "SubsurfaceColor"); ok {
		m.SubsurfaceColor = c
		if v, ok := bagFloat(fields, "SubsurfaceFactor"); ok {
			m.Subsurface = v
		}
	}

	warnings = appendSlot(&m, warnings, types.SlotBaseColor, firstString(fields, "Diffuse", "DiffuseTexture"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotNormal, firstString(fields, "NormalMap", "Bump"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotEmissive, firstString(fields, "EmissiveTexture"), sourceDir)

	return m, warnings
}

// ============================================================================
// glTF 2.0 schema (PBR-native, largely a pass-through)
// ============================================================================

type gltfExtractor struct{}

func (gltfExtractor) Schema() string { return "gltf" }

func (e gltfExtractor) Extract(name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning) {
	m := types.DefaultCanonicalMaterial(name)
	var warnings []types.Warning

	if pbr, ok := bagMap(fields, "pbrMetallicRoughness"); ok {
		if c, ok := bagColor(pbr, "baseColorFactor"); ok {
			m.BaseColor = c
			// RGBA base color factor carries opacity in its alpha channel.
			if vals, ok := pbr["baseColorFactor"].([]any); ok && len(vals) >= 4 {
				if a, ok := vals[3].(float64); ok {
					m.Opacity = a
				}
			}
		}
		if v, ok := bagFloat(pbr, "metallicFactor"); ok {
			m.Metallic = v
		}
		if v, ok := bagFloat(pbr, "roughnessFactor"); ok {
			m.Roughness = v
		}
		warnings = appendSlot(&m, warnings, types.SlotBaseColor, firstString(pbr, "baseColorTexture"), sourceDir)
		warnings = appendSlot(&m, warnings, types.SlotRoughness, firstString(pbr, "metallicRoughnessTexture"), sourceDir)
	}

	if c, ok := bagColor(fields, "emissiveFactor"); ok {
		m.EmissiveColor = c
	}
	warnings = appendSlot(&m, warnings, types.SlotNormal, firstString(fields, "normalTexture"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotEmissive, firstString(fields, "emissiveTexture"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotOcclusion, firstString(fields, "occlusionTexture"), sourceDir)

	return m, warnings
}

// ============================================================================
// Wavefront MTL schema (legacy material library)
// ============================================================================

type mtlExtractor struct{}

func (mtlExtractor) Schema() string { return "mtl" }

// Extract maps the MTL statement set. Ns runs up to 1000, so
// roughness = clamp(1 - Ns/1000). Both "d" (dissolve) and the inverted
// "Tr" convention are honored, with Tr taking precedence when both appear.
func (e mtlExtractor) Extract(name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning) {
	m := types.DefaultCanonicalMaterial(name)
	var warnings []types.Warning

	if c, ok := bagColor(fields, "Kd"); ok {
		m.BaseColor = c
	}
	if c, ok := bagColor(fields, "Ks"); ok {
		m.SpecularColor = c
		m.Specular = maxChannel(c)
	}
	if c, ok := bagColor(fields, "Ke"); ok {
		m.EmissiveColor = c
	}
	if v, ok := bagFloat(fields, "Ns"); ok {
		m.Roughness = 1 - v/1000
	}
	if v, ok := bagFloat(fields, "d"); ok {
		m.Opacity = v
	}
	if v, ok := bagFloat(fields, "Tr"); ok {
		m.Opacity = 1 - v
	}

	warnings = appendSlot(&m, warnings, types.SlotBaseColor, firstString(fields, "map_Kd"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotSpecular, firstString(fields, "map_Ks"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotOcclusion, firstString(fields, "map_Ka"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotNormal, firstString(fields, "map_Bump", "bump"), sourceDir)

	return m, warnings
}

// ============================================================================
// Generic schema for formats without a dedicated extractor
// ============================================================================

type genericExtractor struct{}

func (genericExtractor) Schema() string { return "generic" }

func (e genericExtractor) Extract(name string, fields map[string]any, sourceDir string) (types.CanonicalMaterial, []types.Warning) {
	m := types.DefaultCanonicalMaterial(name)
	var warnings []types.Warning

	for _, key := range []string{"baseColor", "color", "diffuse"} {
		if c, ok := bagColor(fields, key); ok {
			m.BaseColor = c
			break
		}
	}
	if v, ok := bagFloat(fields, "metallic"); ok {
		m.Metallic = v
	}
	if v, ok := bagFloat(fields, "roughness"); ok {
		m.Roughness = v
	}
	if v, ok := bagFloat(fields, "specular"); ok {
		m.Specular = v
	}
	if v, ok := bagFloat(fields, "opacity"); ok {
		m.Opacity = v
	}

	warnings = appendSlot(&m, warnings, types.SlotBaseColor,
		firstString(fields, "baseColorTexture", "diffuseTexture", "colorTexture", "albedoTexture"), sourceDir)
	warnings = appendSlot(&m, warnings, types.SlotNormal, firstString(fields, "normalTexture", "normalMap"), sourceDir)

	return m, warnings
}

// appendSlot resolves a texture reference into a slot, collecting the
// resolution warning when the file is absent. Empty references are skipped.
func appendSlot(m *types.CanonicalMaterial, warnings []types.Warning, slot, ref, sourceDir string) []types.Warning {
	if ref == "" {
		return warnings
	}
	resolved, w := resolveTexture(ref, sourceDir)
	m.TextureSlots[slot] = resolved
	if w != nil {
		warnings = append(warnings, *w)
	}
	return warnings
}

func firstFloat(fields map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := bagFloat(fields, k); ok {
			return v, true
		}
	}
	return 0, false
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := bagString(fields, k); ok {
			return s
		}
	}
	return ""
}

func maxChannel(c types.RGB) float64 {
	return max(c[0], max(c[1], c[2]))
}
