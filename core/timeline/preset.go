package timeline

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoPhases        = errors.New("at least one phase is required")
	ErrInvalidDuration = errors.New("phase duration must be at least 1 day")
)

// PresetResult is a materialized preset: its phases and the deadline they imply.
type PresetResult struct {
	Phases []Phase
	Due    time.Time
}

func (r PresetResult) Window() ProjectWindow {
	if len(r.Phases) == 0 {
		return ProjectWindow{Due: r.Due}
	}
	return ProjectWindow{Start: r.Phases[0].Start, Due: r.Due}
}

// Stored returns the phases as a project with deadline r.Due holds them: the last breathe window
// becomes elastic and closes one minute before the deadline.
func (r PresetResult) Stored(policy BufferPolicy) []Phase {
	return AttachWindows(r.Phases, policy, r.Due)
}

// ApplyPreset lays out one phase of `durationDays` per label from `start`.
// The deadline is not known until every phase is placed, so every breathe window has its fixed length
// and the deadline is then taken from the last one.
func ApplyPreset(labels []string, durationDays int, start time.Time, policy BufferPolicy) (PresetResult, error) {
	if len(labels) == 0 {
		return PresetResult{}, ErrNoPhases
	}
	if durationDays < 1 {
		return PresetResult{}, ErrInvalidDuration
	}
	if err := policy.Validate(); err != nil {
		return PresetResult{}, err
	}
	if start.IsZero() {
		return PresetResult{}, &MissingDateError{Index: ProjectLevel, Field: FieldStart}
	}

	phases := materializePreset(labels, durationDays, Naive(start), policy)
	due := phases[len(phases)-1].BreatheWindow.End

	// the buffers fit before `due` by construction: only sequencing is re-checked
	if err := ValidateTimeline(phases, ProjectWindow{Start: Naive(start)}, policy); err != nil {
		return PresetResult{}, err
	}
	return PresetResult{Phases: phases, Due: due}, nil
}

// materializePreset places the phases back to back, the deadline being unknown.
func materializePreset(labels []string, durationDays int, start time.Time, policy BufferPolicy) []Phase {
	phases := make([]Phase, 0, len(labels))
	current := start
	for i, label := range labels {
		end := AddMinutes(AddDays(current, durationDays), -1)
		ph := Phase{Index: i, Name: label, Start: current, End: end}
		ph.EvaluationWindow, ph.BreatheWindow = ComputeWindows(end, policy, i == len(labels)-1, time.Time{})
		phases = append(phases, ph)
		current = AddMinutes(ph.BreatheWindow.End, 1)
	}
	return phases
}
