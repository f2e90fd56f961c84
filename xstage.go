// Package xstage provides a top-level convenience entry point for embedding
// the conversion engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/crisslavik/xStage"
//
//	eng := xstage.New(xstage.WithWorkers(8))
//	defer eng.Close()
//
//	result, err := xstage.ConvertFile(ctx, "chair.fbx", "chair.usda")
//
// The daemon in cmd/xstaged wires the same engine with the full config
// layer, metrics, history and the HTTP API; this package is for callers who
// just want conversions inside their own process.
package xstage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crisslavik/xStage/config"
	"github.com/crisslavik/xStage/engine"
	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/types"
)

// Option configures the engine created by [New].
type Option func(*settings)

type settings struct {
	cfg    config.EngineConfig
	deps   engine.Deps
	logger *zap.Logger
}

// WithWorkers bounds concurrent conversion jobs.
func WithWorkers(n int) Option {
	return func(s *settings) { s.cfg.Workers = n }
}

// WithDefaultProfile sets the material profile used when a job does not
// name one.
func WithDefaultProfile(profile string) Option {
	return func(s *settings) { s.cfg.DefaultProfile = profile }
}

// WithOutputDir anchors relative job target paths.
func WithOutputDir(dir string) Option {
	return func(s *settings) { s.cfg.OutputDir = dir }
}

// WithAttemptTimeout bounds each conversion attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.AttemptTimeout = d }
}

// WithLogger sets a custom zap logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithProbeConfig overrides availability detection, mainly for tests and
// sandboxed environments.
func WithProbeConfig(pc probe.Config) Option {
	return func(s *settings) { s.deps.ProbeConfig = pc }
}

// New creates a ready-to-use engine with library defaults.
func New(opts ...Option) *engine.Engine {
	s := settings{
		cfg:    config.DefaultEngineConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return engine.New(s.cfg, s.deps, s.logger)
}

// ConvertFile converts one asset synchronously on a throwaway engine.
// Expected degraded outcomes land in the result, not the error.
func ConvertFile(ctx context.Context, sourcePath, targetPath string, opts ...Option) (*types.ConversionResult, error) {
	job, err := types.NewJob(sourcePath, targetPath, types.DefaultJobOptions())
	if err != nil {
		return nil, err
	}
	eng := New(opts...)
	defer eng.Close()
	return eng.Convert(ctx, job)
}
