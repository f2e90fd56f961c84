package types

import "time"

// JobStatus is the terminal status of a conversion job.
type JobStatus string

const (
	StatusSucceeded             JobStatus = "succeeded"
	StatusSucceededWithWarnings JobStatus = "succeeded_with_warnings"
	StatusFailed                JobStatus = "failed"
)

// Phase names reported through the progress callback.
const (
	PhaseProbing    = "probing"
	PhaseConverting = "converting"
	PhaseMaterials  = "materials"
	PhaseValidating = "validating"
	PhaseDone       = "done"
)

// ProgressFunc receives job progress at phase boundaries.
// fraction is in [0,1].
type ProgressFunc func(jobID, phase string, fraction float64)

// Warning is one non-fatal issue attached to a job result. Warnings keep
// their emission order.
type Warning struct {
	Kind    ErrorCode `json:"kind"`
	Message string    `json:"message"`
}

// AttemptResult records the outcome of one conversion attempt.
type AttemptResult struct {
	Method    string        `json:"method"`
	Kind      MethodKind    `json:"kind"`
	Succeeded bool          `json:"succeeded"`
	ErrorKind ErrorCode     `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ConversionResult is the single result produced for a job. Expected
// degraded paths are represented here; the engine API never returns an
// error for them.
type ConversionResult struct {
	JobID       string              `json:"job_id"`
	Status      JobStatus           `json:"status"`
	MethodUsed  string              `json:"method_used,omitempty"`
	FailureKind ErrorCode           `json:"failure_kind,omitempty"`
	Attempts    []AttemptResult     `json:"attempts"`
	Warnings    []Warning           `json:"warnings,omitempty"`
	Materials   []CanonicalMaterial `json:"materials,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

// AddWarning appends a warning, preserving order.
func (r *ConversionResult) AddWarning(kind ErrorCode, message string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Message: message})
}

// Degrade lowers a succeeded status to SucceededWithWarnings. Failed is
// never overwritten.
func (r *ConversionResult) Degrade() {
	if r.Status == StatusSucceeded {
		r.Status = StatusSucceededWithWarnings
	}
}
