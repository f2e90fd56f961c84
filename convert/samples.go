package convert

import (
	"sort"

	"github.com/crisslavik/xStage/types"
)

// SampleMode tells whether the output keeps a frame range or one sample.
type SampleMode string

const (
	SampleModeAnimated SampleMode = "animated"
	SampleModeStatic   SampleMode = "static"
)

// SamplePlan decides what the output timeline looks like.
type SamplePlan struct {
	Mode SampleMode `json:"mode"`
	// Frames lists the output sample times when Mode is animated.
	Frames []float64 `json:"frames,omitempty"`
	// Time is the single representative time when Mode is static.
	Time float64 `json:"time"`
	FPS  float64 `json:"fps"`
}

// PlanSamples combines the detected source sample times with the job's
// time-sample policy. Preserve degrades silently to a static plan when the
// source has no animation; detected times are clipped to the requested
// range, never extrapolated. Flatten always produces one sample at the
// range start.
func PlanSamples(info SourceInfo, policy types.TimeSamplePolicy, fr types.FrameRange) SamplePlan {
	fps := fr.FPS
	if fps <= 0 {
		fps = 24
	}

	if policy == types.SampleFlatten || len(info.SampleTimes) == 0 {
		return SamplePlan{Mode: SampleModeStatic, Time: fr.Start, FPS: fps}
	}

	frames := make([]float64, 0, len(info.SampleTimes))
	seen := make(map[float64]bool, len(info.SampleTimes))
	for _, t := range info.SampleTimes {
		if t < fr.Start || t > fr.End {
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		frames = append(frames, t)
	}
	if len(frames) == 0 {
		// The requested range clipped everything away.
		return SamplePlan{Mode: SampleModeStatic, Time: fr.Start, FPS: fps}
	}
	sort.Float64s(frames)
	return SamplePlan{Mode: SampleModeAnimated, Frames: frames, FPS: fps}
}

// SampleCount is the number of output time samples the plan produces.
func (p SamplePlan) SampleCount() int {
	if p.Mode == SampleModeStatic {
		return 1
	}
	return len(p.Frames)
}
