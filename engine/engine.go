package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/config"
	"github.com/crisslavik/xStage/convert"
	"github.com/crisslavik/xStage/history"
	"github.com/crisslavik/xStage/internal/metrics"
	"github.com/crisslavik/xStage/internal/pool"
	"github.com/crisslavik/xStage/internal/snapcache"
	"github.com/crisslavik/xStage/material"
	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/types"
)

// JobState is the lifecycle state of a job inside the engine.
type JobState string

const (
	StateQueued   JobState = "queued"
	StateRunning  JobState = "running"
	StateFinished JobState = "finished"
)

// JobView is a point-in-time view of one tracked job. Result is nil until
// the job finishes.
type JobView struct {
	Job    *types.ConversionJob    `json:"job"`
	State  JobState                `json:"state"`
	Result *types.ConversionResult `json:"result,omitempty"`
}

// Deps carries the engine's collaborators. Metrics, History, Cache and
// OnProgress are optional; a nil field simply disables that concern.
type Deps struct {
	// ProbeConfig configures availability detection. The engine fills the
	// native and library format lists from its method registry.
	ProbeConfig probe.Config

	Metrics *metrics.Collector
	History *history.Store
	Cache   *snapcache.Cache

	// OnProgress receives every phase-boundary report in addition to the
	// hub's subscribers.
	OnProgress types.ProgressFunc
}

// Engine runs conversion jobs end to end: availability probing, method
// selection, the tiered attempt loop, material extraction and synthesis,
// validation, and the atomic write to the target path. Jobs run on a
// bounded worker pool; the engine itself never blocks intake on a running
// conversion.
type Engine struct {
	cfg    config.EngineConfig
	deps   Deps
	logger *zap.Logger
	tracer trace.Tracer

	registry *convert.Registry
	orch     *convert.Orchestrator
	prober   *probe.Prober
	locker   *convert.PathLocker
	workers  *pool.WorkerPool
	hub      *Hub

	bootstrap sync.Once
	storedGen atomic.Uint64

	baseCtx context.Context
	cancel  context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	job    *types.ConversionJob
	state  JobState
	result *types.ConversionResult
}

// New assembles an engine from configuration and collaborators.
func New(cfg config.EngineConfig, deps Deps, logger *zap.Logger) *Engine {
	registry := convert.NewRegistry()

	pc := deps.ProbeConfig
	if pc.ToolFor == nil {
		pc.ToolFor = probe.DefaultToolFor
	}
	if pc.CapabilityChecks == nil {
		pc.CapabilityChecks = probe.DefaultConfig().CapabilityChecks
	}
	pc.NativeFormats = registry.NativeFormats()
	pc.LibraryFormats = registry.LibraryFormats()

	e := &Engine{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With(zap.String("component", "engine")),
		tracer:   otel.Tracer("xstage/engine"),
		registry: registry,
		orch:     convert.NewOrchestrator(registry, logger),
		prober:   probe.New(pc, logger),
		locker:   convert.NewPathLocker(),
		hub:      NewHub(),
		jobs:     make(map[string]*jobEntry),
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	e.workers = pool.New(pool.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		PanicHandler: func(r any) {
			e.logger.Error("conversion job panicked", zap.Any("panic", r))
		},
	})
	return e
}

// Hub exposes the progress hub for streaming subscribers.
func (e *Engine) Hub() *Hub { return e.hub }

// Stats reports worker pool counters.
func (e *Engine) Stats() pool.Stats { return e.workers.Stats() }

// Submit enqueues a job for asynchronous execution. A full queue rejects
// immediately so intake fails fast instead of blocking.
func (e *Engine) Submit(job *types.ConversionJob) error {
	e.prepare(job)
	e.register(job)
	err := e.workers.Submit(e.baseCtx, func(ctx context.Context) error {
		e.runJob(ctx, job)
		return nil
	})
	if err != nil {
		e.drop(job.ID)
		return fmt.Errorf("submit job %s: %w", job.ID, err)
	}
	return nil
}

// Convert runs a job synchronously on the worker pool and returns its
// result. Expected degraded outcomes are encoded in the result, never as an
// error; the error covers only pool rejection and context expiry.
func (e *Engine) Convert(ctx context.Context, job *types.ConversionJob) (*types.ConversionResult, error) {
	e.prepare(job)
	e.register(job)
	err := e.workers.SubmitWait(ctx, func(ctx context.Context) error {
		e.runJob(ctx, job)
		return nil
	})
	if err != nil {
		e.drop(job.ID)
		return nil, fmt.Errorf("convert job %s: %w", job.ID, err)
	}
	view, _ := e.Job(job.ID)
	return view.Result, nil
}

// Job returns the tracked view of one job.
func (e *Engine) Job(id string) (JobView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return JobView{Job: entry.job, State: entry.state, Result: entry.result}, true
}

// Jobs lists every tracked job, newest submission first.
func (e *Engine) Jobs() []JobView {
	e.mu.RLock()
	views := make([]JobView, 0, len(e.jobs))
	for _, entry := range e.jobs {
		views = append(views, JobView{Job: entry.job, State: entry.state, Result: entry.result})
	}
	e.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		return views[i].Job.SubmitTime.After(views[j].Job.SubmitTime)
	})
	return views
}

// Availability returns the current snapshot, probing lazily on first use
// and adopting a cached snapshot when the environment fingerprint matches.
func (e *Engine) Availability(ctx context.Context) *probe.Snapshot {
	return e.currentSnapshot(ctx)
}

// RefreshAvailability discards the cached snapshot and probes again.
func (e *Engine) RefreshAvailability(ctx context.Context) *probe.Snapshot {
	if e.deps.Cache != nil {
		// Refresh means the cached snapshot is no longer trusted; drop it
		// before probing.
		if err := e.deps.Cache.Invalidate(ctx, probe.Fingerprint()); err != nil {
			e.logger.Warn("snapshot cache invalidate failed", zap.Error(err))
		}
	}
	snap := e.prober.Refresh(ctx, types.SupportedFormats())
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordProbeRefresh()
	}
	e.storeSnapshot(ctx, snap)
	e.logger.Info("availability refreshed", zap.Uint64("generation", snap.Generation))
	return snap
}

// Close stops intake, drains in-flight jobs, and releases the engine's
// background context.
func (e *Engine) Close() {
	e.workers.Close()
	e.cancel()
}

// prepare applies engine-level defaults a job did not set itself.
func (e *Engine) prepare(job *types.ConversionJob) {
	if job.Options.AttemptTimeout <= 0 {
		job.Options.AttemptTimeout = e.cfg.AttemptTimeout
	}
	if job.Options.MaterialProfile == "" {
		job.Options.MaterialProfile = e.cfg.DefaultProfile
	}
	if e.cfg.OutputDir != "" && !filepath.IsAbs(job.TargetPath) {
		job.TargetPath = filepath.Join(e.cfg.OutputDir, job.TargetPath)
	}
}

func (e *Engine) register(job *types.ConversionJob) {
	e.mu.Lock()
	e.jobs[job.ID] = &jobEntry{job: job, state: StateQueued}
	e.mu.Unlock()
}

func (e *Engine) drop(id string) {
	e.mu.Lock()
	delete(e.jobs, id)
	e.mu.Unlock()
}

func (e *Engine) setState(id string, state JobState) {
	e.mu.Lock()
	if entry, ok := e.jobs[id]; ok {
		entry.state = state
	}
	e.mu.Unlock()
}

// runJob executes the full pipeline for one job. It never returns an
// error: every outcome, including failure, lands in the tracked result.
func (e *Engine) runJob(ctx context.Context, job *types.ConversionJob) {
	ctx, span := e.tracer.Start(ctx, "engine.job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.format", string(job.Format)),
		))
	defer span.End()

	start := time.Now()
	e.setState(job.ID, StateRunning)
	if e.deps.Metrics != nil {
		e.deps.Metrics.JobStarted()
		defer e.deps.Metrics.JobFinished()
	}

	result := &types.ConversionResult{JobID: job.ID, Status: types.StatusSucceeded}
	defer func() {
		// A panic anywhere in the pipeline lands as a failed result; the
		// optimistic success status must never survive unwinding.
		if r := recover(); r != nil {
			e.logger.Error("job panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
			)
			result.Status = types.StatusFailed
			result.FailureKind = types.ErrToolError
		}
		result.Duration = time.Since(start)
		e.finish(job, result)
	}()

	e.progress(job, types.PhaseProbing, 0.05)

	if err := e.locker.Acquire(job.TargetPath, job.ID); err != nil {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordLockConflict()
		}
		e.fail(job, result, err)
		return
	}
	defer e.locker.Release(job.TargetPath)

	if job.Options.JobDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Options.JobDeadline)
		defer cancel()
	}

	snap := e.currentSnapshot(ctx)
	list := e.registry.Select(job.Format, snap)

	e.progress(job, types.PhaseConverting, 0.15)
	geo, attempts, err := e.orch.Run(ctx, job, list)
	result.Attempts = attempts
	e.recordAttempts(attempts)
	if err != nil {
		e.fail(job, result, err)
		return
	}
	result.MethodUsed = attempts[len(attempts)-1].Method

	plan := convert.PlanSamples(geo.Info, job.Options.TimeSamplePolicy, job.Options.FrameRange)

	if job.Options.ExportMaterials {
		if err := e.buildMaterials(job, geo, snap, result); err != nil {
			e.fail(job, result, err)
			return
		}
	}

	if err := e.orch.Finalize(job, geo, plan); err != nil {
		e.fail(job, result, err)
		return
	}

	if len(result.Warnings) > 0 {
		result.Degrade()
	}
}

// buildMaterials runs extraction, synthesis and validation for every raw
// material the winning attempt surfaced. Only a structural validation
// defect is job-fatal; everything else degrades to warnings.
func (e *Engine) buildMaterials(job *types.ConversionJob, geo *convert.GeometryOutput, snap *probe.Snapshot, result *types.ConversionResult) error {
	e.progress(job, types.PhaseMaterials, 0.6)

	profile, profWarnings := material.ResolveProfile(job.Options.MaterialProfile, snap)
	for _, w := range profWarnings {
		result.Warnings = append(result.Warnings, w)
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordProfileSubstitution()
		}
	}

	sourceDir := filepath.Dir(job.SourcePath)
	type built struct {
		canonical types.CanonicalMaterial
		graph     *material.ShaderGraph
	}
	pending := make([]built, 0, len(geo.RawMaterials))

	for _, raw := range geo.RawMaterials {
		canonical, warnings, err := material.Extract(job.Format, raw.Name, raw.Fields, sourceDir)
		if err != nil {
			// A malformed bag loses its fields, not the material: the
			// defaults still produce a usable shading network.
			result.AddWarning(types.ErrMaterialExtractionIncomplete, err.Error())
			canonical = types.DefaultCanonicalMaterial(raw.Name)
		}
		result.Warnings = append(result.Warnings, warnings...)

		graph, synthWarnings := material.Synthesize(canonical, profile.Name, snap)
		result.Warnings = append(result.Warnings, synthWarnings...)
		pending = append(pending, built{canonical: canonical, graph: graph})
	}

	e.progress(job, types.PhaseValidating, 0.85)
	for _, b := range pending {
		issues := material.Validate(b.graph, b.canonical)
		if material.HasFatal(issues) {
			// The fatal structural defect is always reported alone.
			return types.NewError(issues[0].Kind, issues[0].Message)
		}
		for _, issue := range issues {
			result.Warnings = append(result.Warnings, issue.Warning())
		}
		if geo.Doc != nil {
			geo.Doc.AttachMaterial(b.graph)
		}
		result.Materials = append(result.Materials, b.canonical)
	}
	return nil
}

// fail marks the result failed with the error's code. Errors without a
// recognized code are treated as tool-level failures.
func (e *Engine) fail(job *types.ConversionJob, result *types.ConversionResult, err error) {
	code := types.GetErrorCode(err)
	if code == "" {
		code = types.ErrToolError
	}
	result.Status = types.StatusFailed
	result.FailureKind = code
	e.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("failure_kind", string(code)),
		zap.Error(err),
	)
}

// finish records the terminal result everywhere it is observed: the job
// table, metrics, history, and the progress hub.
func (e *Engine) finish(job *types.ConversionJob, result *types.ConversionResult) {
	e.mu.Lock()
	if entry, ok := e.jobs[job.ID]; ok {
		entry.state = StateFinished
		entry.result = result
	}
	e.mu.Unlock()

	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordJob(string(job.Format), string(result.Status), result.Duration)
		for _, w := range result.Warnings {
			e.deps.Metrics.RecordWarning(string(w.Kind))
		}
	}
	if e.deps.History != nil {
		hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.deps.History.Record(hctx, job, result); err != nil {
			e.logger.Warn("history record failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		cancel()
	}

	e.progress(job, types.PhaseDone, 1.0)
	e.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)),
		zap.String("status", string(result.Status)),
		zap.Int("attempts", len(result.Attempts)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", result.Duration),
	)
}

func (e *Engine) recordAttempts(attempts []types.AttemptResult) {
	if e.deps.Metrics == nil {
		return
	}
	for _, a := range attempts {
		outcome := "succeeded"
		if !a.Succeeded {
			outcome = string(a.ErrorKind)
		}
		e.deps.Metrics.RecordAttempt(a.Method, outcome, a.Duration)
	}
}

func (e *Engine) progress(job *types.ConversionJob, phase string, fraction float64) {
	e.hub.Publish(ProgressEvent{
		JobID:    job.ID,
		Phase:    phase,
		Fraction: fraction,
		Time:     time.Now(),
	})
	if e.deps.OnProgress != nil {
		e.deps.OnProgress(job.ID, phase, fraction)
	}
}

// currentSnapshot returns the availability snapshot, trying the external
// cache exactly once per process before the first probe.
func (e *Engine) currentSnapshot(ctx context.Context) *probe.Snapshot {
	e.bootstrap.Do(func() {
		if e.deps.Cache == nil {
			return
		}
		snap, err := e.deps.Cache.Load(ctx, probe.Fingerprint())
		if err == nil && e.prober.Adopt(snap) {
			e.storedGen.Store(snap.Generation)
			if e.deps.Metrics != nil {
				e.deps.Metrics.RecordCacheHit()
			}
			e.logger.Info("adopted cached availability snapshot",
				zap.Uint64("generation", snap.Generation))
			return
		}
		if !errors.Is(err, snapcache.ErrMiss) && err != nil {
			e.logger.Warn("snapshot cache unavailable", zap.Error(err))
		}
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordCacheMiss()
		}
	})

	snap := e.prober.Snapshot(ctx, types.SupportedFormats())
	e.storeSnapshot(ctx, snap)
	return snap
}

// storeSnapshot pushes a snapshot to the cache once per generation.
func (e *Engine) storeSnapshot(ctx context.Context, snap *probe.Snapshot) {
	if e.deps.Cache == nil || e.storedGen.Load() == snap.Generation {
		return
	}
	if err := e.deps.Cache.Store(ctx, snap); err != nil {
		e.logger.Warn("snapshot cache write failed", zap.Error(err))
		return
	}
	e.storedGen.Store(snap.Generation)
}
