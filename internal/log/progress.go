// Package log provides step-by-step progress logging for pipeline runs.
package log

import (
	"time"

	"github.com/rs/zerolog/log"
)

// StepLogger tracks named pipeline steps and logs their timings.
type StepLogger struct {
	name      string
	steps     []string
	current   int
	startTime time.Time
	stepStart time.Time
	stepTimes []time.Duration
}

// NewStepLogger creates a step logger for a named pipeline.
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		name:      name,
		steps:     steps,
		current:   -1,
		startTime: time.Now(),
		stepTimes: make([]time.Duration, len(steps)),
	}
}

// StartStep begins the named step.
func (sl *StepLogger) StartStep(stepName string) {
	idx := -1
	for i, s := range sl.steps {
		if s == stepName {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn().Str("pipeline", sl.name).Str("step", stepName).Msg("Unknown pipeline step")
		return
	}

	sl.current = idx
	sl.stepStart = time.Now()

	log.Info().
		Str("pipeline", sl.name).
		Str("step", stepName).
		Int("step_number", idx+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting pipeline step")
}

// CompleteStep marks the current step as done and records its duration.
func (sl *StepLogger) CompleteStep() {
	if sl.current < 0 {
		return
	}
	d := time.Since(sl.stepStart)
	sl.stepTimes[sl.current] = d

	log.Info().
		Str("pipeline", sl.name).
		Str("step", sl.steps[sl.current]).
		Dur("duration", d).
		Msg("Pipeline step completed")
}

// Finish logs the total duration and per-step timing summary.
func (sl *StepLogger) Finish() {
	total := time.Since(sl.startTime)

	ev := log.Info().Str("pipeline", sl.name).Dur("total_duration", total)
	for i, step := range sl.steps {
		ev = ev.Dur(step, sl.stepTimes[i])
	}
	ev.Msg("Pipeline completed")
}

// Fail logs which step the pipeline died in.
func (sl *StepLogger) Fail(reason string) {
	step := "unknown"
	if sl.current >= 0 && sl.current < len(sl.steps) {
		step = sl.steps[sl.current]
	}
	log.Error().
		Str("pipeline", sl.name).
		Str("failed_step", step).
		Str("reason", reason).
		Msg("Pipeline failed")
}
