package timeline

import (
	"fmt"
	"math"
	"time"
)

// Allocate partitions `window` into spacing.NumberOfPhases sequential phases, each followed by its buffers.
// With AutoSpacePhases the days left once buffers are reserved are split evenly (floored);
// the last phase always ends so that its buffers close at the deadline.
func Allocate(window ProjectWindow, policy BufferPolicy, spacing SpacingPolicy) ([]Phase, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := spacing.Validate(); err != nil {
		return nil, err
	}
	if err := checkWindow(window); err != nil {
		return nil, err
	}

	start := Naive(window.Start)
	rawDue := Naive(window.Due)
	due := NormalizeDueDate(rawDue)

	n := spacing.NumberOfPhases
	totalDays := DaysBetween(start, due)
	bufferDays := policy.BufferDays()
	totalBuffer := float64(n * bufferDays)
	available := totalDays - totalBuffer
	if available <= 0 {
		return nil, &InsufficientTimelineError{
			Phases:             n,
			BufferDaysPerPhase: bufferDays,
			DaysNeeded:         totalBuffer,
			DaysAvailable:      totalDays,
		}
	}

	duration := spacing.PhaseDurationDays
	if spacing.AutoSpacePhases {
		duration = int(math.Floor(available / float64(n)))
	}
	if duration <= 0 {
		return nil, &InsufficientTimelineError{
			Phases:             n,
			BufferDaysPerPhase: bufferDays,
			DaysNeeded:         float64(n * (1 + bufferDays)),
			DaysAvailable:      totalDays,
		}
	}
	if needed := float64(n * (duration + bufferDays)); !spacing.AutoSpacePhases && needed > totalDays {
		return nil, &InsufficientTimelineError{
			Phases:             n,
			BufferDaysPerPhase: bufferDays,
			DaysNeeded:         needed,
			DaysAvailable:      totalDays,
		}
	}

	phases := make([]Phase, 0, n)
	current := start
	for i := 0; i < n; i++ {
		isLast := i == n-1

		var end time.Time
		if isLast {
			end = MaxLastPhaseEnd(rawDue, policy)
		} else {
			end = EndOfDay(AddDays(current, duration))
		}
		// earlier phases rounded up to whole days can leave no room for this one
		if !end.After(current) {
			return nil, &InsufficientTimelineError{
				Phases:             n,
				BufferDaysPerPhase: bufferDays,
				DaysNeeded:         DaysBetween(start, current) + float64((n-i)*(1+bufferDays)),
				DaysAvailable:      totalDays,
			}
		}

		ph := Phase{Index: i, Name: fmt.Sprintf("Phase %d", i+1), Start: current, End: end}
		ph.EvaluationWindow, ph.BreatheWindow = ComputeWindows(end, policy, isLast, rawDue)
		phases = append(phases, ph)

		current = StartOfDay(AddMinutes(ph.BreatheWindow.End, 1))
	}

	if err := ValidateTimeline(phases, ProjectWindow{Start: start, Due: rawDue}, policy); err != nil {
		return nil, err
	}
	return phases, nil
}

// checkWindow reports missing dates and a due date not after the start.
func checkWindow(window ProjectWindow) error {
	var errs ValidationErrors
	if window.Start.IsZero() {
		errs = append(errs, &MissingDateError{Index: ProjectLevel, Field: FieldStart})
	}
	if window.Due.IsZero() {
		errs = append(errs, &MissingDateError{Index: ProjectLevel, Field: FieldDue})
	}
	if len(errs) == 0 && !window.Due.After(window.Start) {
		errs = append(errs, &DegenerateWindowError{Index: ProjectLevel, Field: FieldDue, Start: window.Start, End: window.Due})
	}
	return errs.errOrNil()
}
