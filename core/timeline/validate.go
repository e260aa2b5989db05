package timeline

import "time"

// ValidateTimeline re-checks a whole phase list: every phase ends after it starts, phases follow each other
// with their buffers in between, and when the deadline is known the last buffers fit before it.
func ValidateTimeline(phases []Phase, window ProjectWindow, policy BufferPolicy) error {
	var errs ValidationErrors
	for i, ph := range phases {
		if ph.Start.IsZero() {
			errs = append(errs, &MissingDateError{Index: i, Field: FieldStart})
		}
		if ph.End.IsZero() {
			errs = append(errs, &MissingDateError{Index: i, Field: FieldEnd})
		}
		if ph.Start.IsZero() || ph.End.IsZero() {
			continue
		}

		if !ph.End.After(ph.Start) {
			errs = append(errs, &DegenerateWindowError{Index: i, Field: FieldEnd, Start: ph.Start, End: ph.End})
		}

		if i == 0 {
			if !window.Start.IsZero() && ph.Start.Before(window.Start) {
				errs = append(errs, &SequencingViolationError{Index: i, Field: FieldStart, Bound: window.Start})
			}
		} else if prev := phases[i-1]; !prev.End.IsZero() {
			if minStart := MinimumNextStart(prev, policy.EvaluationDays, policy.BreatheDays); ph.Start.Before(minStart) {
				errs = append(errs, &SequencingViolationError{Index: i, Field: FieldStart, Bound: minStart})
			}
		}

		if i == len(phases)-1 && window.HasDue() {
			if maxEnd := lastPhaseEndLimit(window.Due, policy); ph.End.After(maxEnd) {
				errs = append(errs, &SequencingViolationError{Index: i, Field: FieldEnd, Bound: maxEnd, Max: true})
			}
		}
	}
	return errs.errOrNil()
}

// ValidateProjectWindow rejects project dates in the past and a deadline that is not after the start.
// An unknown due date is accepted.
func ValidateProjectWindow(window ProjectWindow, now time.Time) error {
	var errs ValidationErrors
	now = Naive(now)

	if window.Start.IsZero() {
		errs = append(errs, &MissingDateError{Index: ProjectLevel, Field: FieldStart})
	} else if window.Start.Before(now) {
		errs = append(errs, &PastDateError{Index: ProjectLevel, Field: FieldStart, Value: window.Start, Now: now})
	}

	if window.HasDue() {
		if window.Due.Before(now) {
			errs = append(errs, &PastDateError{Index: ProjectLevel, Field: FieldDue, Value: window.Due, Now: now})
		}
		if !window.Start.IsZero() && !window.Due.After(window.Start) {
			errs = append(errs, &DegenerateWindowError{Index: ProjectLevel, Field: FieldDue, Start: window.Start, End: window.Due})
		}
	}
	return errs.errOrNil()
}
