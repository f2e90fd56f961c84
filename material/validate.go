package material

import (
	"fmt"
	"os"

	"github.com/crisslavik/xStage/types"
)

// ValidationIssue is one finding from graph validation. Only a missing
// surface output is fatal; everything else degrades the job to
// SucceededWithWarnings.
type ValidationIssue struct {
	Kind    types.ErrorCode `json:"kind"`
	Fatal   bool            `json:"fatal"`
	Message string          `json:"message"`
}

// Warning converts a non-fatal issue into a result warning.
func (i ValidationIssue) Warning() types.Warning {
	return types.Warning{Kind: i.Kind, Message: i.Message}
}

// Validate runs the structural checks on a synthesized graph, in fixed
// order: surface output, required inputs, texture paths, metadata tags.
func Validate(graph *ShaderGraph, canonical types.CanonicalMaterial) []ValidationIssue {
	var issues []ValidationIssue

	if graph.SurfaceOutput == nil || graph.SurfaceOutput.NodePath == "" {
		issues = append(issues, ValidationIssue{
			Kind:    types.ErrValidationStructural,
			Fatal:   true,
			Message: fmt.Sprintf("material %q has no surface output connection", graph.MaterialName),
		})
		// The remaining checks assume a surface node; without the terminal
		// connection they would only pile noise on a dead graph.
		return issues
	}

	profile, ok := LookupProfile(graph.Profile)
	if ok {
		surface := graph.Node(graph.SurfaceOutput.NodePath)
		for _, input := range profile.RequiredInputs {
			if surface == nil || !surface.HasInput(input) {
				issues = append(issues, ValidationIssue{
					Kind:    types.ErrValidationNonStructural,
					Message: fmt.Sprintf("material %q: required input %q is unbound", graph.MaterialName, input),
				})
			}
		}
	}

	for _, slot := range orderedSlots {
		path, bound := canonical.TextureSlots[slot]
		if !bound {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			issues = append(issues, ValidationIssue{
				Kind:    types.ErrValidationNonStructural,
				Message: fmt.Sprintf("material %q: %s texture %q does not exist", graph.MaterialName, slot, path),
			})
		}
	}

	if ok {
		for tag := range profile.MetadataTags {
			if graph.Metadata[tag] == "" {
				issues = append(issues, ValidationIssue{
					Kind:    types.ErrValidationNonStructural,
					Message: fmt.Sprintf("material %q: metadata tag %q is missing", graph.MaterialName, tag),
				})
			}
		}
	}

	return issues
}

// HasFatal reports whether any issue is the fatal structural defect.
func HasFatal(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Fatal {
			return true
		}
	}
	return false
}

// HasInput reports whether the input is bound, either as a constant value
// or as an upstream connection.
func (n *ShaderNode) HasInput(name string) bool {
	if _, ok := n.Inputs[name]; ok {
		return true
	}
	_, ok := n.Connections[name]
	return ok
}

// orderedSlots fixes the texture check order so validation output is
// deterministic.
var orderedSlots = []string{
	types.SlotBaseColor,
	types.SlotMetallic,
	types.SlotRoughness,
	types.SlotNormal,
	types.SlotEmissive,
	types.SlotSpecular,
	types.SlotOcclusion,
}
