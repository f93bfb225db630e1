package scan

import (
	"fmt"
	"time"
)

// Pipeline stage names as reported in outcomes and metrics.
const (
	StageNormalize = "normalize"
	StageDecode    = "decode"
	StageDetect    = "detect"
)

// StageTiming is the measured duration of one completed stage.
type StageTiming struct {
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"-"`
	DurationMS float64       `json:"duration_ms"`
}

func (s StageTiming) String() string {
	return fmt.Sprintf("%s: %v", s.Stage, s.Duration)
}

type stageTimer struct {
	stage string
	start time.Time
}

func startStage(stage string) stageTimer {
	return stageTimer{stage: stage, start: time.Now()}
}

// stop records the elapsed time in the stage histogram.
func (t stageTimer) stop() StageTiming {
	d := time.Since(t.start)
	stageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return StageTiming{
		Stage:      t.stage,
		Duration:   d,
		DurationMS: float64(d.Microseconds()) / 1000,
	}
}
