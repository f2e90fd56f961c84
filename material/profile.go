package material

import (
	"github.com/crisslavik/xStage/probe"
)

// Profile names accepted in job options. ProfileAuto is resolved by the
// synthesizer against the availability snapshot before lookup.
const (
	ProfileGeneric = "generic"
	ProfileKarma   = "karma"
	ProfileNuke    = "nuke"
	ProfileBlender = "blender"
	ProfileAuto    = "auto"
)

// Canonical property identifiers used in profile support sets.
const (
	propBaseColor     = "baseColor"
	propMetallic      = "metallic"
	propRoughness     = "roughness"
	propSpecular      = "specular"
	propSpecularColor = "specularColor"
	propEmissive      = "emissiveColor"
	propOpacity       = "opacity"
	propSubsurface    = "subsurface"
	propTransmission  = "transmission"
	propDisplacement  = "displacement"
)

// ShaderProfile is one fixed target shading convention: which shader the
// surface node instantiates, which canonical properties it expresses, and
// what the downstream application expects as material metadata. Profiles
// are declarative records in a static registry, never computed at runtime.
type ShaderProfile struct {
	Name     string
	ShaderID string

	// SurfaceNodeName names the surface shader node under the material.
	SurfaceNodeName string

	// SurfaceOutputName is the shader output the material surface terminal
	// connects to ("surface" for preview surface, "out" for standard
	// surface).
	SurfaceOutputName string

	// Supported is the canonical property subset this profile expresses.
	// Properties outside the set are silently omitted during synthesis.
	Supported map[string]bool

	// RequiredInputs must be bound on the surface node for the graph to
	// validate cleanly; absence is a warning, not a defect.
	RequiredInputs []string

	// RequiredCapability names the probe capability the profile depends
	// on; empty means the profile always works.
	RequiredCapability string

	// MetadataTags are stamped on the material prim for the target
	// application.
	MetadataTags map[string]string
}

// RequiresDependency reports whether the profile only works when its
// capability is present in the environment.
func (p *ShaderProfile) RequiresDependency() bool { return p.RequiredCapability != "" }

var previewSurfaceSupport = map[string]bool{
	propBaseColor: true,
	propMetallic:  true,
	propRoughness: true,
	propEmissive:  true,
	propOpacity:   true,
}

var standardSurfaceSupport = map[string]bool{
	propBaseColor:     true,
	propMetallic:      true,
	propRoughness:     true,
	propSpecular:      true,
	propSpecularColor: true,
	propEmissive:      true,
	propOpacity:       true,
	propSubsurface:    true,
	propTransmission:  true,
	propDisplacement:  true,
}

var standardSurfaceInputs = []string{"base_color", "metallic", "roughness"}

// profileRegistry is the static profile registry. The generic profile has
// no dependency and always works; the renderer profiles all instantiate
// the standard surface shader and need the shading-library capability.
var profileRegistry = map[string]*ShaderProfile{
	ProfileGeneric: {
		Name:              ProfileGeneric,
		ShaderID:          "UsdPreviewSurface",
		SurfaceNodeName:   "PreviewSurface",
		SurfaceOutputName: "surface",
		Supported:         previewSurfaceSupport,
		RequiredInputs:    []string{"diffuseColor", "metallic", "roughness"},
	},
	ProfileKarma: {
		Name:               ProfileKarma,
		ShaderID:           "ND_standard_surface_surfaceshader",
		SurfaceNodeName:    "KarmaSurface",
		SurfaceOutputName:  "out",
		Supported:          standardSurfaceSupport,
		RequiredInputs:     standardSurfaceInputs,
		RequiredCapability: probe.CapabilityMaterialX,
		MetadataTags:       map[string]string{"houdini:material": "karma"},
	},
	ProfileNuke: {
		Name:               ProfileNuke,
		ShaderID:           "ND_standard_surface_surfaceshader",
		SurfaceNodeName:    "NukeSurface",
		SurfaceOutputName:  "out",
		Supported:          standardSurfaceSupport,
		RequiredInputs:     standardSurfaceInputs,
		RequiredCapability: probe.CapabilityMaterialX,
		MetadataTags:       map[string]string{"nuke:material": "mtlx_standard_surface"},
	},
	ProfileBlender: {
		Name:               ProfileBlender,
		ShaderID:           "ND_standard_surface_surfaceshader",
		SurfaceNodeName:    "BlenderSurface",
		SurfaceOutputName:  "out",
		Supported:          standardSurfaceSupport,
		RequiredInputs:     standardSurfaceInputs,
		RequiredCapability: probe.CapabilityMaterialX,
		MetadataTags: map[string]string{
			"blender:material":      "mtlx_standard_surface",
			"blender:usd_materialx": "true",
		},
	},
}

// LookupProfile resolves a profile name from the static registry.
func LookupProfile(name string) (*ShaderProfile, bool) {
	p, ok := profileRegistry[name]
	return p, ok
}

// ProfileNames lists the registered profile names for option validation.
func ProfileNames() []string {
	return []string{ProfileGeneric, ProfileKarma, ProfileNuke, ProfileBlender}
}
