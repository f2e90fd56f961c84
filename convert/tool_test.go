package convert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisslavik/xStage/types"
)

func TestRunToolMissingBinaryIsMethodUnavailable(t *testing.T) {
	err := runTool(t.Context(), "definitely-not-installed-converter", nil)
	assert.Equal(t, types.ErrMethodUnavailable, types.GetErrorCode(err))
}

func TestRunToolNonZeroExitIsToolErrorWithStderr(t *testing.T) {
	err := runTool(t.Context(), "sh", []string{"-c", "echo broken pipeline >&2; exit 3"})
	require.Error(t, err)
	assert.Equal(t, types.ErrToolError, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "broken pipeline")
}

func TestRunToolSuccess(t *testing.T) {
	assert.NoError(t, runTool(t.Context(), "true", nil))
}

func TestRunToolTimeoutSurfacesContextError(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := runTool(ctx, "sleep", []string{"5"})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, types.ErrConversionTimeout, classifyAttemptError(err, ctx))
}

func TestTruncateCapsDiagnostics(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	out := truncate(string(long), 512)
	assert.Len(t, out, 515)
	assert.Equal(t, "...", out[512:])
}
