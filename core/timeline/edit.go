package timeline

import (
	"time"

	"github.com/pkg/errors"
)

var ErrIndexOutOfRange = errors.New("phase index out of range")

func checkIndex(phases []Phase, index int) error {
	if index < 0 || index >= len(phases) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d of %d phases", index, len(phases))
	}
	return nil
}

// ValidatePhaseEdit checks proposed dates for phases[index], reporting every violation found:
// end after start, neither date in the past, and start no earlier than the previous phase allows.
func ValidatePhaseEdit(phases []Phase, index int, start, end time.Time, policy BufferPolicy, now time.Time) error {
	if err := checkIndex(phases, index); err != nil {
		return err
	}
	now = Naive(now)

	var errs ValidationErrors
	if start.IsZero() {
		errs = append(errs, &MissingDateError{Index: index, Field: FieldStart})
	}
	if end.IsZero() {
		errs = append(errs, &MissingDateError{Index: index, Field: FieldEnd})
	}
	if len(errs) > 0 {
		return errs
	}

	if !end.After(start) {
		errs = append(errs, &DegenerateWindowError{Index: index, Field: FieldEnd, Start: start, End: end})
	}
	if start.Before(now) {
		errs = append(errs, &PastDateError{Index: index, Field: FieldStart, Value: start, Now: now})
	}
	if end.Before(now) {
		errs = append(errs, &PastDateError{Index: index, Field: FieldEnd, Value: end, Now: now})
	}
	if index > 0 {
		if minStart := MinimumNextStart(phases[index-1], policy.EvaluationDays, policy.BreatheDays); start.Before(minStart) {
			errs = append(errs, &SequencingViolationError{Index: index, Field: FieldStart, Bound: minStart})
		}
	}
	return errs.errOrNil()
}

// ApplyPhaseEdit returns a copy of `phases` with new dates for phases[index] and every window recomputed.
// It does not validate: call ValidatePhaseEdit first.
func ApplyPhaseEdit(phases []Phase, index int, start, end time.Time, policy BufferPolicy, due time.Time) ([]Phase, error) {
	if err := checkIndex(phases, index); err != nil {
		return nil, err
	}
	out := Clone(phases)
	out[index].Start, out[index].End = Naive(start), Naive(end)
	return AttachWindows(out, policy, due), nil
}

// EarliestStart is the earliest start phases[index] may have: the project start for the first phase.
func EarliestStart(phases []Phase, index int, window ProjectWindow, policy BufferPolicy) (time.Time, error) {
	if err := checkIndex(phases, index); err != nil {
		return time.Time{}, err
	}
	if index == 0 {
		return window.Start, nil
	}
	return MinimumNextStart(phases[index-1], policy.EvaluationDays, policy.BreatheDays), nil
}

// PropagateBreatheChange slides the start of every phase after the first to the earliest instant allowed
// by `newBreatheDays`, then recomputes all windows. Ends are left alone and the input is not modified.
func PropagateBreatheChange(phases []Phase, window ProjectWindow, policy BufferPolicy, newBreatheDays int) []Phase {
	policy.BreatheDays = newBreatheDays
	out := Clone(phases)
	for i := 1; i < len(out); i++ {
		out[i].Start = MinimumNextStart(out[i-1], policy.EvaluationDays, policy.BreatheDays)
	}
	return AttachWindows(out, policy, window.Due)
}

// AppendPhase adds a phase after the last one. A zero Start defaults to the earliest allowed start.
// The previous last phase loses its elastic breathe window.
func AppendPhase(phases []Phase, window ProjectWindow, policy BufferPolicy, ph Phase) ([]Phase, error) {
	if ph.End.IsZero() {
		return nil, &MissingDateError{Index: len(phases), Field: FieldEnd}
	}
	if ph.Start.IsZero() {
		if len(phases) == 0 {
			ph.Start = window.Start
		} else {
			ph.Start = MinimumNextStart(phases[len(phases)-1], policy.EvaluationDays, policy.BreatheDays)
		}
	}
	ph.Start, ph.End = Naive(ph.Start), Naive(ph.End)

	out := make([]Phase, 0, len(phases)+1)
	out = append(out, phases...)
	out = append(out, ph)
	return AttachWindows(out, policy, window.Due), nil
}

// TruncatePhases keeps the first `keep` phases and returns the removed ones.
// The new last phase gets the elastic breathe window.
func TruncatePhases(phases []Phase, keep int, window ProjectWindow, policy BufferPolicy) (kept, removed []Phase) {
	if keep < 0 {
		keep = 0
	}
	if keep >= len(phases) {
		return AttachWindows(phases, policy, window.Due), nil
	}
	removed = Clone(phases[keep:])
	return AttachWindows(phases[:keep], policy, window.Due), removed
}
