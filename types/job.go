package types

import (
	"time"

	"github.com/google/uuid"
)

// UpAxis is the target up-axis convention for the output scene.
type UpAxis string

const (
	UpAxisX UpAxis = "X"
	UpAxisY UpAxis = "Y"
	UpAxisZ UpAxis = "Z"
)

// TimeSamplePolicy controls whether animated source data keeps its frame
// range or is flattened to one representative sample.
type TimeSamplePolicy string

const (
	SamplePreserve TimeSamplePolicy = "preserve"
	SampleFlatten  TimeSamplePolicy = "flatten"
)

// FrameRange bounds the output timeline when the preserve policy is active.
type FrameRange struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	FPS   float64 `json:"fps" yaml:"fps"`
}

// JobOptions carries the per-job conversion configuration.
type JobOptions struct {
	// Scale is the uniform geometric scale factor applied at output.
	Scale float64 `json:"scale" yaml:"scale" validate:"gt=0"`

	// UpAxis is the target up-axis convention.
	UpAxis UpAxis `json:"up_axis" yaml:"up_axis" validate:"oneof=X Y Z"`

	// FlipAxes lists axes to invert at output.
	FlipAxes []UpAxis `json:"flip_axes,omitempty" yaml:"flip_axes"`

	// MetersPerUnit is stamped on the output document.
	MetersPerUnit float64 `json:"meters_per_unit" yaml:"meters_per_unit" validate:"gt=0"`

	// ExportMaterials gates the extractor/synthesizer/validator stages.
	ExportMaterials bool `json:"export_materials" yaml:"export_materials"`

	// MaterialProfile selects the target shader profile. "auto" defers to
	// the synthesizer's capability-based fallback.
	MaterialProfile string `json:"material_profile" yaml:"material_profile" validate:"oneof=generic karma nuke blender auto"`

	// TimeSamplePolicy selects preserve or flatten.
	TimeSamplePolicy TimeSamplePolicy `json:"time_sample_policy" yaml:"time_sample_policy" validate:"oneof=preserve flatten"`

	// FrameRange is consulted only when TimeSamplePolicy is preserve.
	FrameRange FrameRange `json:"frame_range" yaml:"frame_range"`

	// AttemptTimeout bounds each conversion attempt. Zero means the
	// engine default.
	AttemptTimeout time.Duration `json:"attempt_timeout,omitempty" yaml:"attempt_timeout"`

	// JobDeadline bounds the whole job across all attempts. Zero means
	// no outer deadline.
	JobDeadline time.Duration `json:"job_deadline,omitempty" yaml:"job_deadline"`
}

// DefaultJobOptions returns the documented option defaults.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Scale:            1.0,
		UpAxis:           UpAxisY,
		MetersPerUnit:    1.0,
		ExportMaterials:  true,
		MaterialProfile:  "auto",
		TimeSamplePolicy: SamplePreserve,
		FrameRange:       FrameRange{Start: 0, End: 100, FPS: 24},
	}
}

// ConversionJob is one unit of conversion work. It is immutable once
// submitted and consumed exactly once by the orchestrator.
type ConversionJob struct {
	ID         string       `json:"id"`
	SourcePath string       `json:"source_path"`
	TargetPath string       `json:"target_path"`
	Format     SourceFormat `json:"format"`
	Options    JobOptions   `json:"options"`
	SubmitTime time.Time    `json:"submit_time"`
}

// NewJob builds a job for the given source and target. The format is
// derived from the source extension; unsupported extensions are a contract
// violation.
func NewJob(sourcePath, targetPath string, opts JobOptions) (*ConversionJob, error) {
	if sourcePath == "" {
		return nil, NewError(ErrInvalidJob, "source path is empty")
	}
	if targetPath == "" {
		return nil, NewError(ErrInvalidJob, "target path is empty")
	}
	format, ok := FormatFromPath(sourcePath)
	if !ok {
		return nil, NewError(ErrUnsupportedFormat, "unsupported source format: "+sourcePath)
	}
	return &ConversionJob{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		TargetPath: targetPath,
		Format:     format,
		Options:    opts,
		SubmitTime: time.Now(),
	}, nil
}
