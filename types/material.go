package types

// RGB is a color triple. Canonical values live in [0,1] per channel.
type RGB [3]float64

// Clamp returns the color with every channel clamped into [0,1].
func (c RGB) Clamp() RGB {
	return RGB{Clamp01(c[0]), Clamp01(c[1]), Clamp01(c[2])}
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Texture slot semantic names shared by extractors and the synthesizer.
const (
	SlotBaseColor = "baseColor"
	SlotMetallic  = "metallic"
	SlotRoughness = "roughness"
	SlotNormal    = "normal"
	SlotEmissive  = "emissive"
	SlotSpecular  = "specular"
	SlotOcclusion = "occlusion"
)

// Displacement describes an optional height-based displacement slot.
type Displacement struct {
	HeightPath string  `json:"height_path"`
	Scale      float64 `json:"scale"`
}

// CanonicalMaterial is the single normalized representation every source
// material schema is mapped into before target-specific synthesis.
// Numeric fields are clamped into their declared ranges after mapping.
type CanonicalMaterial struct {
	Name            string            `json:"name"`
	BaseColor       RGB               `json:"base_color"`
	Metallic        float64           `json:"metallic"`
	Roughness       float64           `json:"roughness"`
	Specular        float64           `json:"specular"`
	SpecularColor   RGB               `json:"specular_color"`
	EmissiveColor   RGB               `json:"emissive_color"`
	Opacity         float64           `json:"opacity"`
	Subsurface      float64           `json:"subsurface"`
	SubsurfaceColor RGB               `json:"subsurface_color"`
	Transmission    float64           `json:"transmission"`
	TextureSlots    map[string]string `json:"texture_slots,omitempty"`
	Displacement    *Displacement     `json:"displacement,omitempty"`
}

// DefaultCanonicalMaterial returns the documented field defaults:
// metallic=0, roughness=0.5, opacity=1, everything else zero/neutral.
func DefaultCanonicalMaterial(name string) CanonicalMaterial {
	return CanonicalMaterial{
		Name:          name,
		BaseColor:     RGB{0.18, 0.18, 0.18},
		Roughness:     0.5,
		Specular:      0.5,
		SpecularColor: RGB{1, 1, 1},
		Opacity:       1,
		TextureSlots:  map[string]string{},
	}
}

// Normalize clamps every numeric field into its declared range. Extractors
// call this after mapping so no out-of-range source value leaks through.
func (m *CanonicalMaterial) Normalize() {
	m.BaseColor = m.BaseColor.Clamp()
	m.SpecularColor = m.SpecularColor.Clamp()
	m.EmissiveColor = m.EmissiveColor.Clamp()
	m.SubsurfaceColor = m.SubsurfaceColor.Clamp()
	m.Metallic = Clamp01(m.Metallic)
	m.Roughness = Clamp01(m.Roughness)
	m.Specular = Clamp01(m.Specular)
	m.Opacity = Clamp01(m.Opacity)
	m.Subsurface = Clamp01(m.Subsurface)
	m.Transmission = Clamp01(m.Transmission)
}
