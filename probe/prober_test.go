package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NativeFormats = []types.SourceFormat{types.FormatGLTF}
	cfg.LibraryFormats = []types.SourceFormat{types.FormatOBJ, types.FormatSTL, types.FormatPLY}
	cfg.LookPath = func(name string) (string, error) {
		if name == "usdcat" {
			return "/usr/bin/usdcat", nil
		}
		return "", errors.New("not found")
	}
	cfg.RunVersion = func(ctx context.Context, path string) error { return nil }
	cfg.CapabilityChecks = map[string]func() bool{
		CapabilityMaterialX: func() bool { return true },
	}
	return cfg
}

func TestProbeNeverErrors(t *testing.T) {
	cfg := testConfig()
	cfg.LookPath = func(string) (string, error) { return "", errors.New("missing") }
	cfg.CapabilityChecks[CapabilityMaterialX] = func() bool { panic("broken check") }

	p := New(cfg, zap.NewNop())
	snap := p.Snapshot(context.Background(), types.SupportedFormats())

	require.NotNil(t, snap)
	assert.False(t, snap.Available(types.FormatFBX, types.MethodTool))
	assert.False(t, snap.HasCapability(CapabilityMaterialX))
}

func TestProbeRecordsBackends(t *testing.T) {
	p := New(testConfig(), zap.NewNop())
	snap := p.Snapshot(context.Background(), types.SupportedFormats())

	assert.True(t, snap.Available(types.FormatGLTF, types.MethodNative))
	assert.True(t, snap.Available(types.FormatOBJ, types.MethodLibrary))
	assert.True(t, snap.Available(types.FormatOBJ, types.MethodTool), "usdcat reachable")
	assert.False(t, snap.Available(types.FormatFBX, types.MethodTool), "fbx2usd missing")
	assert.False(t, snap.Available(types.FormatSTL, types.MethodNative))
	assert.True(t, snap.HasCapability(CapabilityMaterialX))
}

func TestVersionTimeoutCountsAsUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.VersionTimeout = 10 * time.Millisecond
	cfg.RunVersion = func(ctx context.Context, path string) error {
		<-ctx.Done()
		return ctx.Err()
	}

	p := New(cfg, zap.NewNop())
	snap := p.Snapshot(context.Background(), []types.SourceFormat{types.FormatOBJ})
	assert.False(t, snap.Available(types.FormatOBJ, types.MethodTool))
}

func TestSnapshotCachedUntilRefresh(t *testing.T) {
	calls := 0
	cfg := testConfig()
	cfg.RunVersion = func(ctx context.Context, path string) error {
		calls++
		return nil
	}

	p := New(cfg, zap.NewNop())
	formats := []types.SourceFormat{types.FormatOBJ}

	first := p.Snapshot(context.Background(), formats)
	second := p.Snapshot(context.Background(), formats)
	assert.Same(t, first, second, "no silent re-probe")
	assert.Equal(t, 1, calls)

	third := p.Refresh(context.Background(), formats)
	assert.Equal(t, first.Generation+1, third.Generation)
	assert.Equal(t, 2, calls)
}

func TestAdoptRejectsForeignFingerprint(t *testing.T) {
	p := New(testConfig(), zap.NewNop())

	stale := &Snapshot{Fingerprint: "deadbeef"}
	assert.False(t, p.Adopt(stale))

	fresh := &Snapshot{
		Fingerprint: Fingerprint(),
		Methods:     map[types.SourceFormat]map[types.MethodKind]bool{},
	}
	assert.True(t, p.Adopt(fresh))
	assert.Same(t, fresh, p.Snapshot(context.Background(), nil))
}

func TestNilSnapshotReadsUnavailable(t *testing.T) {
	var snap *Snapshot
	assert.False(t, snap.Available(types.FormatOBJ, types.MethodLibrary))
	assert.False(t, snap.HasCapability(CapabilityMaterialX))
}
