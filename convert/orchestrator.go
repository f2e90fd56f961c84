package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// DefaultAttemptTimeout bounds one conversion attempt unless the job says
// otherwise.
const DefaultAttemptTimeout = 5 * time.Minute

// Orchestrator executes a job's method list attempt-by-attempt, capturing
// failures without raising and stopping at the first success. Within one
// job, attempts are strictly sequential.
type Orchestrator struct {
	registry *Registry
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an orchestrator over the given method registry.
func NewOrchestrator(registry *Registry, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		logger:   logger.With(zap.String("component", "orchestrator")),
		tracer:   otel.Tracer("xstage/convert"),
	}
}

// Run drives the attempt loop. On success it returns the geometry output
// (with its pending temporary path) and the attempt records so far; the
// caller finalizes after the material stage. On failure it returns a
// job-level error (AllMethodsExhausted or JobDeadlineExceeded) alongside
// every attempt record, so operators can see each backend's failure kind.
func (o *Orchestrator) Run(ctx context.Context, job *types.ConversionJob, list MethodList) (*GeometryOutput, []types.AttemptResult, error) {
	ctx, span := o.tracer.Start(ctx, "convert.run",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.format", string(job.Format)),
			attribute.Int("job.methods", len(list)),
		))
	defer span.End()

	if len(list) == 0 {
		return nil, nil, types.NewError(types.ErrAllMethodsExhausted,
			"no conversion methods available for format "+string(job.Format))
	}

	attemptTimeout := job.Options.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	attempts := make([]types.AttemptResult, 0, len(list))
	for i, id := range list {
		if ctx.Err() != nil {
			return nil, attempts, types.NewError(types.ErrJobDeadlineExceeded,
				"job deadline exceeded before method "+id)
		}

		method, ok := o.registry.Lookup(id)
		if !ok {
			// Selection and registry share one method set; a miss here is
			// a contract violation, not a fallback case.
			return nil, attempts, fmt.Errorf("unknown method identifier %q", id)
		}

		tmpPath := tempTargetPath(job, i)
		record, geo := o.attempt(ctx, job, method, tmpPath, attemptTimeout)
		attempts = append(attempts, record)

		if record.Succeeded {
			geo.TmpPath = tmpPath
			o.logger.Info("conversion attempt succeeded",
				zap.String("job_id", job.ID),
				zap.String("method", id),
				zap.Duration("duration", record.Duration),
			)
			return geo, attempts, nil
		}

		removeIfExists(tmpPath)
		o.logger.Warn("conversion attempt failed",
			zap.String("job_id", job.ID),
			zap.String("method", id),
			zap.String("error_kind", string(record.ErrorKind)),
			zap.String("message", record.Message),
		)
		if ctx.Err() != nil {
			return nil, attempts, types.NewError(types.ErrJobDeadlineExceeded,
				"job deadline exceeded during method "+id)
		}
	}

	return nil, attempts, types.NewError(types.ErrAllMethodsExhausted,
		fmt.Sprintf("all %d conversion methods failed", len(list)))
}

// attempt invokes one method under its own deadline and classifies the
// outcome into exactly one of Succeeded, MethodUnavailable, Timeout, or
// ToolError. No attempt is retried within itself.
func (o *Orchestrator) attempt(ctx context.Context, job *types.ConversionJob, method Method, tmpPath string, timeout time.Duration) (types.AttemptResult, *GeometryOutput) {
	ctx, span := o.tracer.Start(ctx, "convert.attempt",
		trace.WithAttributes(attribute.String("method", method.ID())))
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	geo, err := method.Convert(attemptCtx, job, tmpPath)
	record := types.AttemptResult{
		Method:   method.ID(),
		Kind:     method.Kind(),
		Duration: time.Since(start),
	}

	if err == nil {
		record.Succeeded = true
		return record, geo
	}

	record.ErrorKind = classifyAttemptError(err, attemptCtx)
	record.Message = err.Error()
	return record, nil
}

// classifyAttemptError maps an attempt error onto the fallback taxonomy.
// An expired attempt deadline is a ConversionTimeout even when the method
// wrapped the context error; everything else without a recognized code is
// a ToolError.
func classifyAttemptError(err error, attemptCtx context.Context) types.ErrorCode {
	if code := types.GetErrorCode(err); types.IsFallbackTrigger(code) {
		return code
	}
	if IsTimeout(err) || attemptCtx.Err() != nil {
		return types.ErrConversionTimeout
	}
	return types.ErrToolError
}

// Finalize stamps the sample plan onto the pending document, writes it to
// the temporary location, and renames atomically onto the target. Failed
// attempts never reach here, so the final target path is only ever written
// by the attempt that succeeded.
func (o *Orchestrator) Finalize(job *types.ConversionJob, geo *GeometryOutput, plan SamplePlan) error {
	if err := os.MkdirAll(filepath.Dir(job.TargetPath), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	if geo.Doc != nil {
		stampSamplePlan(geo, plan)
		if err := geo.Doc.WriteFile(geo.TmpPath); err != nil {
			return fmt.Errorf("write temporary output: %w", err)
		}
	} else if _, err := os.Stat(geo.TmpPath); err != nil {
		return fmt.Errorf("tool output missing at temporary path: %w", err)
	}

	if err := os.Rename(geo.TmpPath, job.TargetPath); err != nil {
		removeIfExists(geo.TmpPath)
		return fmt.Errorf("rename output into place: %w", err)
	}
	return nil
}

func stampSamplePlan(geo *GeometryOutput, plan SamplePlan) {
	doc := geo.Doc
	switch plan.Mode {
	case SampleModeAnimated:
		doc.SampleTimes = plan.Frames
		doc.TimeCodes = &scene.TimeCodes{
			Start: plan.Frames[0],
			End:   plan.Frames[len(plan.Frames)-1],
			FPS:   plan.FPS,
		}
	default:
		doc.SampleTimes = []float64{plan.Time}
		doc.TimeCodes = nil
	}
}

func tempTargetPath(job *types.ConversionJob, attempt int) string {
	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s.tmp-%s-%d", job.TargetPath, short, attempt)
}

func removeIfExists(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}
