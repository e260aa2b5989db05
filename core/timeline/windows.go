package timeline

import "time"

// ComputeWindows derives the evaluation & breathe windows following a phase ending at `end`.
// `due` is only consulted for the last phase; pass the zero time when it is not known yet.
func ComputeWindows(end time.Time, policy BufferPolicy, isLast bool, due time.Time) (evaluation, breathe Window) {
	evaluation = evaluationWindow(end, policy.EvaluationDays)
	switch {
	case policy.BreatheDays == 0:
		breathe = evaluation
	case isLast && !due.IsZero():
		breathe = elasticBreatheWindow(evaluation, due)
	default:
		breathe = fixedBreatheWindow(evaluation, policy.BreatheDays)
	}
	return evaluation, breathe
}

func evaluationWindow(end time.Time, days int) Window {
	start := AddMinutes(end, 1)
	return Window{Start: start, End: AddMinutes(AddDays(start, days), -1)}
}

func fixedBreatheWindow(evaluation Window, days int) Window {
	start := AddMinutes(evaluation.End, 1)
	return Window{Start: start, End: AddMinutes(AddDays(start, days), -1)}
}

// elasticBreatheWindow stretches the last phase's rest up to the deadline instead of
// lasting BreatheDays. This is the only place where the last phase is treated differently.
func elasticBreatheWindow(evaluation Window, due time.Time) Window {
	return Window{Start: AddMinutes(evaluation.End, 1), End: AddMinutes(due, -1)}
}

// MinimumNextStart is the earliest instant the phase following `previous` may start,
// using fixed-length buffers whatever the position of `previous`.
func MinimumNextStart(previous Phase, evaluationDays, breatheDays int) time.Time {
	// with no breathe days, the breathe window is the evaluation window
	_, breathe := ComputeWindows(previous.End, BufferPolicy{EvaluationDays: evaluationDays, BreatheDays: breatheDays}, false, time.Time{})
	return AddMinutes(breathe.End, 1)
}

// AttachWindows returns a copy of `phases` with re-indexed phases and freshly derived windows.
func AttachWindows(phases []Phase, policy BufferPolicy, due time.Time) []Phase {
	out := Clone(phases)
	for i := range out {
		out[i].Index = i
		out[i].EvaluationWindow, out[i].BreatheWindow = ComputeWindows(out[i].End, policy, i == len(out)-1, due)
	}
	return out
}

// MaxLastPhaseEnd is the latest end the last phase may have while leaving room for its buffers before `due`.
// Without breathe days the evaluation window must itself close by due - 1m.
func MaxLastPhaseEnd(due time.Time, policy BufferPolicy) time.Time {
	latest := EndOfDay(AddDays(NormalizeDueDate(due), -policy.BufferDays()))
	if limit := AddDays(AddMinutes(due, -1), -policy.EvaluationDays); limit.Before(latest) {
		return limit
	}
	return latest
}

// lastPhaseEndLimit is the latest end ValidateTimeline accepts for the last phase.
// Without breathe days the evaluation window may close at the deadline itself,
// which is where a preset puts its deadline.
func lastPhaseEndLimit(due time.Time, policy BufferPolicy) time.Time {
	limit := MaxLastPhaseEnd(due, policy)
	if policy.BreatheDays > 0 {
		return limit
	}
	if atDue := AddDays(due, -policy.EvaluationDays); atDue.After(limit) {
		return atDue
	}
	return limit
}

// MinProjectDue is the earliest due date leaving room for the buffers of the last phase.
func MinProjectDue(phases []Phase, policy BufferPolicy) time.Time {
	if len(phases) == 0 {
		return time.Time{}
	}
	return EndOfDay(AddDays(phases[len(phases)-1].End, policy.BufferDays()))
}

// ProjectEvaluationWindow is the project-level peer evaluation period: the last phase's evaluation window.
func ProjectEvaluationWindow(phases []Phase) Window {
	if len(phases) == 0 {
		return Window{}
	}
	return phases[len(phases)-1].EvaluationWindow
}
