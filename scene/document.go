// Package scene models the unified hierarchical scene-description output
// and its on-disk text encoding. The exact interchange schema is owned by
// the downstream viewer; this package emits the subset the engine produces.
package scene

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/crisslavik/xStage/material"
	"github.com/crisslavik/xStage/types"
)

// Mesh holds the geometry payload of one node.
type Mesh struct {
	Points       [][3]float64
	FaceCounts   []int
	FaceIndices  []int
	Normals      [][3]float64
	UVs          [][2]float64
	MaterialName string
}

// Node is one element of the scene hierarchy.
type Node struct {
	Name     string
	Mesh     *Mesh
	Children []*Node
}

// TimeCodes carries the output frame range stamped on the document.
type TimeCodes struct {
	Start float64
	End   float64
	FPS   float64
}

// Document is the in-memory unified scene description produced by
// in-process conversion methods before the atomic write to the target.
type Document struct {
	UpAxis        types.UpAxis
	MetersPerUnit float64
	Scale         float64
	FlipAxes      []types.UpAxis
	TimeCodes     *TimeCodes
	SampleTimes   []float64
	Root          *Node
	Materials     []*material.ShaderGraph
	SourceComment string
}

// NewDocument creates an empty document with a root transform node.
func NewDocument() *Document {
	return &Document{
		UpAxis:        types.UpAxisY,
		MetersPerUnit: 1.0,
		Scale:         1.0,
		Root:          &Node{Name: "World"},
	}
}

// ApplyJobOptions stamps geometric settings from the job onto the document.
func (d *Document) ApplyJobOptions(opts types.JobOptions) {
	d.UpAxis = opts.UpAxis
	d.MetersPerUnit = opts.MetersPerUnit
	d.Scale = opts.Scale
	d.FlipAxes = opts.FlipAxes
}

// AttachMaterial appends a synthesized shading network.
func (d *Document) AttachMaterial(g *material.ShaderGraph) {
	d.Materials = append(d.Materials, g)
}

// scaleVector folds the uniform scale and axis flips into one per-axis
// scale triple.
func (d *Document) scaleVector() [3]float64 {
	s := [3]float64{d.Scale, d.Scale, d.Scale}
	for _, axis := range d.FlipAxes {
		switch axis {
		case types.UpAxisX:
			s[0] = -s[0]
		case types.UpAxisY:
			s[1] = -s[1]
		case types.UpAxisZ:
			s[2] = -s[2]
		}
	}
	return s
}

// Encode renders the document in the text interchange form.
func (d *Document) Encode() string {
	var b strings.Builder
	b.WriteString("#usda 1.0\n(\n")
	if d.SourceComment != "" {
		fmt.Fprintf(&b, "    doc = \"%s\"\n", d.SourceComment)
	}
	fmt.Fprintf(&b, "    upAxis = \"%s\"\n", d.UpAxis)
	fmt.Fprintf(&b, "    metersPerUnit = %g\n", d.MetersPerUnit)
	if d.TimeCodes != nil {
		fmt.Fprintf(&b, "    startTimeCode = %g\n", d.TimeCodes.Start)
		fmt.Fprintf(&b, "    endTimeCode = %g\n", d.TimeCodes.End)
		fmt.Fprintf(&b, "    framesPerSecond = %g\n", d.TimeCodes.FPS)
	}
	fmt.Fprintf(&b, "    defaultPrim = \"%s\"\n", d.Root.Name)
	b.WriteString(")\n\n")

	d.encodeNode(&b, d.Root, "", true)
	return b.String()
}

func (d *Document) encodeNode(b *strings.Builder, n *Node, indent string, root bool) {
	kind := "Xform"
	if n.Mesh != nil {
		kind = "Mesh"
	}
	fmt.Fprintf(b, "%sdef %s \"%s\"\n%s{\n", indent, kind, sanitizeName(n.Name), indent)
	inner := indent + "    "

	if root {
		sv := d.scaleVector()
		if sv != [3]float64{1, 1, 1} {
			fmt.Fprintf(b, "%sfloat3 xformOp:scale = (%g, %g, %g)\n", inner, sv[0], sv[1], sv[2])
			fmt.Fprintf(b, "%suniform token[] xformOpOrder = [\"xformOp:scale\"]\n", inner)
		}
		if len(d.SampleTimes) > 0 {
			fmt.Fprintf(b, "%scustom double[] sampleTimes = %s\n", inner, encodeFloats(d.SampleTimes))
		}
	}

	if n.Mesh != nil {
		encodeMesh(b, inner, n.Mesh)
	}
	for _, c := range n.Children {
		d.encodeNode(b, c, inner, false)
	}
	if root {
		// Materials encode in name order, not attachment order, so the
		// output is stable across extraction passes.
		byName := make(map[string]*material.ShaderGraph, len(d.Materials))
		for _, g := range d.Materials {
			byName[g.MaterialName] = g
		}
		for _, name := range d.SortedMaterialNames() {
			if g := byName[name]; g != nil {
				g.Encode(b, inner)
				byName[name] = nil
			}
		}
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func encodeMesh(b *strings.Builder, indent string, m *Mesh) {
	fmt.Fprintf(b, "%sint[] faceVertexCounts = %s\n", indent, encodeInts(m.FaceCounts))
	fmt.Fprintf(b, "%sint[] faceVertexIndices = %s\n", indent, encodeInts(m.FaceIndices))
	fmt.Fprintf(b, "%spoint3f[] points = %s\n", indent, encodeVec3s(m.Points))
	if len(m.Normals) > 0 {
		fmt.Fprintf(b, "%snormal3f[] normals = %s\n", indent, encodeVec3s(m.Normals))
	}
	if len(m.UVs) > 0 {
		fmt.Fprintf(b, "%stexCoord2f[] primvars:st = %s\n", indent, encodeVec2s(m.UVs))
	}
	if m.MaterialName != "" {
		fmt.Fprintf(b, "%srel material:binding = <%s>\n", indent, sanitizeName(m.MaterialName))
	}
}

// WriteFile encodes the document to path. Callers write to a temporary
// sibling and rename; this function itself is not atomic.
func (d *Document) WriteFile(path string) error {
	return os.WriteFile(path, []byte(d.Encode()), 0o644)
}

// MeshCount walks the hierarchy and counts mesh nodes.
func (d *Document) MeshCount() int {
	return countMeshes(d.Root)
}

func countMeshes(n *Node) int {
	count := 0
	if n.Mesh != nil {
		count++
	}
	for _, c := range n.Children {
		count += countMeshes(c)
	}
	return count
}

// NodeCount walks the hierarchy and counts all nodes.
func (d *Document) NodeCount() int {
	return countNodes(d.Root)
}

func countNodes(n *Node) int {
	count := 1
	for _, c := range n.Children {
		count += countNodes(c)
	}
	return count
}

func sanitizeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func encodeInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func encodeFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func encodeVec3s(vals [][3]float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func encodeVec2s(vals [][2]float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("(%g, %g)", v[0], v[1])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// SortedMaterialNames returns attached material names in sorted order.
func (d *Document) SortedMaterialNames() []string {
	names := make([]string, 0, len(d.Materials))
	for _, g := range d.Materials {
		names = append(names, g.MaterialName)
	}
	sort.Strings(names)
	return names
}
