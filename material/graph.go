package material

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crisslavik/xStage/types"
)

// ConnectionRef points one shader input at another node's output.
type ConnectionRef struct {
	NodePath string `json:"node_path"`
	Output   string `json:"output"`
}

// ShaderNode is one node in a synthesized shading network. Inputs hold
// constant values (float64, int, string asset path, or types.RGB);
// Connections hold input-name to upstream-output wiring.
type ShaderNode struct {
	Path        string                   `json:"path"`
	ShaderID    string                   `json:"shader_id"`
	Inputs      map[string]any           `json:"inputs,omitempty"`
	Connections map[string]ConnectionRef `json:"connections,omitempty"`
}

// ShaderGraph is the target-specific shading network built from one
// canonical material. SurfaceOutput is the mandatory terminal connection;
// a graph without it fails structural validation.
type ShaderGraph struct {
	MaterialName       string            `json:"material_name"`
	Profile            string            `json:"profile"`
	Nodes              []*ShaderNode     `json:"nodes"`
	SurfaceOutput      *ConnectionRef    `json:"surface_output,omitempty"`
	DisplacementOutput *ConnectionRef    `json:"displacement_output,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Node returns the node at the given path, or nil.
func (g *ShaderGraph) Node(path string) *ShaderNode {
	for _, n := range g.Nodes {
		if n.Path == path {
			return n
		}
	}
	return nil
}

// Encode writes the graph as a block of the scene-description document.
func (g *ShaderGraph) Encode(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%sdef Material \"%s\"\n%s{\n", indent, g.MaterialName, indent)
	inner := indent + "    "

	keys := make([]string, 0, len(g.Metadata))
	for k := range g.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%scustom string %s = \"%s\"\n", inner, k, g.Metadata[k])
	}

	if g.SurfaceOutput != nil {
		fmt.Fprintf(b, "%stoken outputs:surface.connect = <%s.outputs:%s>\n",
			inner, g.SurfaceOutput.NodePath, g.SurfaceOutput.Output)
	}
	if g.DisplacementOutput != nil {
		fmt.Fprintf(b, "%stoken outputs:displacement.connect = <%s.outputs:%s>\n",
			inner, g.DisplacementOutput.NodePath, g.DisplacementOutput.Output)
	}

	for _, n := range g.Nodes {
		n.encode(b, inner)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func (n *ShaderNode) encode(b *strings.Builder, indent string) {
	name := n.Path[strings.LastIndex(n.Path, "/")+1:]
	fmt.Fprintf(b, "%sdef Shader \"%s\"\n%s{\n", indent, name, indent)
	inner := indent + "    "
	fmt.Fprintf(b, "%suniform token info:id = \"%s\"\n", inner, n.ShaderID)

	inputs := make([]string, 0, len(n.Inputs))
	for k := range n.Inputs {
		inputs = append(inputs, k)
	}
	sort.Strings(inputs)
	for _, k := range inputs {
		encodeInput(b, inner, k, n.Inputs[k])
	}

	conns := make([]string, 0, len(n.Connections))
	for k := range n.Connections {
		conns = append(conns, k)
	}
	sort.Strings(conns)
	for _, k := range conns {
		ref := n.Connections[k]
		fmt.Fprintf(b, "%sinputs:%s.connect = <%s.outputs:%s>\n", inner, k, ref.NodePath, ref.Output)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func encodeInput(b *strings.Builder, indent, name string, v any) {
	switch val := v.(type) {
	case float64:
		fmt.Fprintf(b, "%sfloat inputs:%s = %g\n", indent, name, val)
	case int:
		fmt.Fprintf(b, "%sint inputs:%s = %d\n", indent, name, val)
	case types.RGB:
		fmt.Fprintf(b, "%scolor3f inputs:%s = (%g, %g, %g)\n", indent, name, val[0], val[1], val[2])
	case string:
		fmt.Fprintf(b, "%sasset inputs:%s = @%s@\n", indent, name, val)
	}
}
