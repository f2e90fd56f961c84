package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/crisslavik/xStage/types"
)

// runTool executes an external converter and captures its output streams.
// A missing binary maps to MethodUnavailable; a non-zero exit maps to
// ToolError with the captured stderr as the diagnostic; timeouts are left
// to the orchestrator's classifier via the context error.
func runTool(ctx context.Context, name string, args []string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return types.NewError(types.ErrMethodUnavailable, name+" not on PATH").WithCause(err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return types.NewError(types.ErrToolError, fmt.Sprintf("%s failed: %s", name, truncate(diag, 512))).WithCause(err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// toolUSDCat converts through the usdcat command-line tool, which reads
// any format its host USD build has a fileformat plugin for.
type toolUSDCat struct{}

func newToolUSDCat() *toolUSDCat { return &toolUSDCat{} }

func (m *toolUSDCat) ID() string             { return "tool:usdcat" }
func (m *toolUSDCat) Kind() types.MethodKind { return types.MethodTool }

func (m *toolUSDCat) Supports(format types.SourceFormat) bool {
	switch format {
	case types.FormatOBJ, types.FormatAlembic, types.FormatGLTF, types.FormatGLB:
		return true
	}
	return false
}

func (m *toolUSDCat) Convert(ctx context.Context, job *types.ConversionJob, tmpPath string) (*GeometryOutput, error) {
	args := []string{job.SourcePath, "-o", tmpPath}
	if err := runTool(ctx, "usdcat", args); err != nil {
		return nil, err
	}
	// The tool wrote the file; geometry details stay opaque.
	return &GeometryOutput{}, nil
}

// toolFBX2USD converts FBX through the fbx2usd command-line tool, mapping
// job options onto its flags.
type toolFBX2USD struct{}

func newToolFBX2USD() *toolFBX2USD { return &toolFBX2USD{} }

func (m *toolFBX2USD) ID() string             { return "tool:fbx2usd" }
func (m *toolFBX2USD) Kind() types.MethodKind { return types.MethodTool }

func (m *toolFBX2USD) Supports(format types.SourceFormat) bool {
	return format == types.FormatFBX
}

func (m *toolFBX2USD) Convert(ctx context.Context, job *types.ConversionJob, tmpPath string) (*GeometryOutput, error) {
	args := []string{
		job.SourcePath,
		tmpPath,
		"--up-axis", strings.ToLower(string(job.Options.UpAxis)),
		"--meters-per-unit", fmt.Sprintf("%g", job.Options.MetersPerUnit),
	}
	if job.Options.ExportMaterials {
		args = append(args, "--materials")
	}
	if err := runTool(ctx, "fbx2usd", args); err != nil {
		return nil, err
	}
	return &GeometryOutput{}, nil
}

// IsTimeout reports whether an attempt error is a context deadline from
// the attempt's own timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
