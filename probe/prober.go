package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crisslavik/xStage/types"
)

// Config configures a Prober. Zero-value fields fall back to defaults.
type Config struct {
	// NativeFormats lists formats served by in-process plugins. Supplied
	// by the conversion layer from its plugin registry.
	NativeFormats []types.SourceFormat

	// LibraryFormats lists formats the best-effort library loader reads.
	LibraryFormats []types.SourceFormat

	// ToolFor maps a format to the external converter binary probed for
	// it. Empty string means no tool backend exists for the format.
	ToolFor func(types.SourceFormat) string

	// VersionTimeout bounds each diagnostic version-query subprocess.
	// A timed-out query counts as unavailable.
	VersionTimeout time.Duration

	// SpawnRate limits diagnostic subprocess spawns per second.
	SpawnRate rate.Limit

	// LookPath and RunVersion are injection points for tests. Defaults
	// use os/exec.
	LookPath   func(name string) (string, error)
	RunVersion func(ctx context.Context, path string) error

	// CapabilityChecks maps capability names to check functions. Checks
	// must not block; failures record false, never an error.
	CapabilityChecks map[string]func() bool
}

// DefaultConfig returns the standard probe configuration.
func DefaultConfig() Config {
	return Config{
		ToolFor:        DefaultToolFor,
		VersionTimeout: 5 * time.Second,
		SpawnRate:      rate.Limit(4),
		CapabilityChecks: map[string]func() bool{
			CapabilityMaterialX: materialXPresent,
		},
	}
}

// DefaultToolFor returns the external converter binary for a format:
// fbx2usd for FBX, usdcat for everything else the USD toolchain reads.
func DefaultToolFor(format types.SourceFormat) string {
	switch format {
	case types.FormatFBX:
		return "fbx2usd"
	case types.FormatOBJ, types.FormatAlembic, types.FormatGLTF, types.FormatGLB:
		return "usdcat"
	default:
		return ""
	}
}

// materialXPresent checks for a MaterialX standard node library on disk.
func materialXPresent() bool {
	dir := os.Getenv("MATERIALX_STDLIB_DIR")
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Prober detects, once per process lifetime and refreshable on demand,
// which conversion backends are present for each supported source format.
// Probing never returns an error; any failed check records false.
type Prober struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	gen     atomic.Uint64

	mu      sync.Mutex
	current *Snapshot
}

// New creates a Prober.
func New(cfg Config, logger *zap.Logger) *Prober {
	if cfg.ToolFor == nil {
		cfg.ToolFor = DefaultToolFor
	}
	if cfg.VersionTimeout <= 0 {
		cfg.VersionTimeout = 5 * time.Second
	}
	if cfg.SpawnRate <= 0 {
		cfg.SpawnRate = rate.Limit(4)
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.RunVersion == nil {
		cfg.RunVersion = runVersionQuery
	}
	return &Prober{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "probe")),
		limiter: rate.NewLimiter(cfg.SpawnRate, 1),
	}
}

func runVersionQuery(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// Snapshot returns the current availability snapshot, probing lazily on
// first use. The returned snapshot is shared and read-only.
func (p *Prober) Snapshot(ctx context.Context, formats []types.SourceFormat) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return p.current
	}
	p.current = p.probe(ctx, formats)
	return p.current
}

// Refresh discards the cached snapshot and probes again, bumping the
// generation counter. Callers refresh explicitly, e.g. after installing a
// new backend; the prober never re-probes silently mid-job.
func (p *Prober) Refresh(ctx context.Context, formats []types.SourceFormat) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.probe(ctx, formats)
	return p.current
}

// Adopt installs a cached snapshot as current if its fingerprint still
// matches this environment. Returns false on mismatch.
func (p *Prober) Adopt(snap *Snapshot) bool {
	if snap == nil || snap.Fingerprint != Fingerprint() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = snap
	return true
}

func (p *Prober) probe(ctx context.Context, formats []types.SourceFormat) *Snapshot {
	start := time.Now()
	snap := &Snapshot{
		Generation:   p.gen.Add(1),
		Fingerprint:  Fingerprint(),
		Methods:      make(map[types.SourceFormat]map[types.MethodKind]bool, len(formats)),
		Capabilities: make(map[string]bool, len(p.cfg.CapabilityChecks)),
		ProbedAt:     start,
	}

	native := make(map[types.SourceFormat]bool, len(p.cfg.NativeFormats))
	for _, f := range p.cfg.NativeFormats {
		native[f] = true
	}
	library := make(map[types.SourceFormat]bool, len(p.cfg.LibraryFormats))
	for _, f := range p.cfg.LibraryFormats {
		library[f] = true
	}

	toolOK := make(map[string]bool)
	for _, format := range formats {
		kinds := map[types.MethodKind]bool{
			types.MethodNative:  native[format],
			types.MethodLibrary: library[format],
		}
		if tool := p.cfg.ToolFor(format); tool != "" {
			ok, seen := toolOK[tool]
			if !seen {
				ok = p.checkTool(ctx, tool)
				toolOK[tool] = ok
			}
			kinds[types.MethodTool] = ok
		} else {
			kinds[types.MethodTool] = false
		}
		snap.Methods[format] = kinds
	}

	for name, check := range p.cfg.CapabilityChecks {
		snap.Capabilities[name] = safeCheck(check)
	}

	p.logger.Info("availability probe complete",
		zap.Uint64("generation", snap.Generation),
		zap.Int("formats", len(formats)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap
}

// checkTool verifies the binary exists and answers a version query within
// the timeout. Any failure, including the rate limiter's context expiring,
// counts as unavailable.
func (p *Prober) checkTool(ctx context.Context, tool string) bool {
	path, err := p.cfg.LookPath(tool)
	if err != nil {
		p.logger.Debug("tool not on PATH", zap.String("tool", tool))
		return false
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return false
	}
	qctx, cancel := context.WithTimeout(ctx, p.cfg.VersionTimeout)
	defer cancel()
	if err := p.cfg.RunVersion(qctx, path); err != nil {
		p.logger.Debug("tool version query failed",
			zap.String("tool", tool),
			zap.Error(err),
		)
		return false
	}
	return true
}

func safeCheck(check func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return check()
}

// Fingerprint identifies the current process environment for snapshot
// caching: OS, architecture and the PATH the tool lookups ran against.
func Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte{0})
	h.Write([]byte(runtime.GOARCH))
	h.Write([]byte{0})
	h.Write([]byte(os.Getenv("PATH")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
