package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cadence/core"
)

// ProjectLevel is the Index of errors about the project window rather than a phase.
const ProjectLevel = -1

// field names
const (
	FieldStart = "start_date"
	FieldEnd   = "end_date"
	FieldDue   = "due_date"
)

// FieldError is implemented by every scheduler error: Message is user-facing, FieldKey locates it.
type FieldError interface {
	error
	Message() string
	FieldKey() string
}

func fieldKey(index int, field string) string {
	if index == ProjectLevel {
		return field
	}
	return fmt.Sprintf("phases[%d].%s", index, field)
}

func prefixed(index int, msg string) string {
	if index == ProjectLevel {
		return msg
	}
	return fmt.Sprintf("phase %d: %s", index+1, strings.ToLower(msg[:1])+msg[1:])
}

func fieldLabel(index int, field string) string {
	switch field {
	case FieldStart:
		if index == ProjectLevel {
			return "Project start date"
		}
		return "Start date"
	case FieldDue:
		return "Project deadline"
	default:
		return "End date"
	}
}

// InsufficientTimelineError reports that the requested phases and buffers cannot fit in the project window.
type InsufficientTimelineError struct {
	Phases             int
	BufferDaysPerPhase int
	DaysNeeded         float64
	DaysAvailable      float64
}

func (e *InsufficientTimelineError) Shortfall() float64 { return e.DaysNeeded - e.DaysAvailable }

func (e *InsufficientTimelineError) Message() string {
	return fmt.Sprintf(
		"Timeline too short: %d phases with %d buffer days each need %.1f days but only %.1f are available",
		e.Phases, e.BufferDaysPerPhase, e.DaysNeeded, e.DaysAvailable,
	)
}

func (e *InsufficientTimelineError) FieldKey() string { return FieldDue }
func (e *InsufficientTimelineError) Error() string    { return e.Message() }

// SequencingViolationError reports a boundary crossing a neighbour's.
// Bound is the earliest legal value, or the latest when Max is set.
type SequencingViolationError struct {
	Index int
	Field string
	Bound time.Time
	Max   bool
}

func (e *SequencingViolationError) Message() string {
	if e.Max {
		return fmt.Sprintf(
			"%s must be on or before %s to leave room for the evaluation and breathe periods before the deadline",
			fieldLabel(e.Index, e.Field), FormatInstant(e.Bound),
		)
	}
	return fmt.Sprintf(
		"%s must be on or after %s, once the previous phase's evaluation and breathe periods are over",
		fieldLabel(e.Index, e.Field), FormatInstant(e.Bound),
	)
}

func (e *SequencingViolationError) FieldKey() string { return fieldKey(e.Index, e.Field) }
func (e *SequencingViolationError) Error() string    { return prefixed(e.Index, e.Message()) }

type PastDateError struct {
	Index int
	Field string
	Value time.Time
	Now   time.Time
}

func (e *PastDateError) Message() string {
	return fieldLabel(e.Index, e.Field) + " cannot be in the past"
}

func (e *PastDateError) FieldKey() string { return fieldKey(e.Index, e.Field) }
func (e *PastDateError) Error() string    { return prefixed(e.Index, e.Message()) }

// DegenerateWindowError reports an interval whose end is not after its start.
type DegenerateWindowError struct {
	Index int
	Field string
	Start time.Time
	End   time.Time
}

func (e *DegenerateWindowError) Message() string {
	if e.Index == ProjectLevel {
		return "Due date must be after start date"
	}
	return "End date must be after start date"
}

func (e *DegenerateWindowError) FieldKey() string { return fieldKey(e.Index, e.Field) }
func (e *DegenerateWindowError) Error() string    { return prefixed(e.Index, e.Message()) }

type MissingDateError struct {
	Index int
	Field string
}

func (e *MissingDateError) Message() string  { return fieldLabel(e.Index, e.Field) + " is required" }
func (e *MissingDateError) FieldKey() string { return fieldKey(e.Index, e.Field) }
func (e *MissingDateError) Error() string    { return prefixed(e.Index, e.Message()) }

// ValidationErrors collects every violation found by one check.
type ValidationErrors []error

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (errs ValidationErrors) Unwrap() []error { return errs }

// errOrNil avoids returning a typed nil.
func (errs ValidationErrors) errOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// FieldErrors flattens scheduler errors into field errors, in order.
func FieldErrors(err error) []core.FieldError {
	if err == nil {
		return nil
	}
	var errs ValidationErrors
	if errors.As(err, &errs) {
		var flds []core.FieldError
		for _, e := range errs {
			flds = append(flds, FieldErrors(e)...)
		}
		return flds
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return []core.FieldError{{Field: fe.FieldKey(), Error: fe.Message()}}
	}
	return nil
}

// AsValidationError turns scheduler errors into a *core.ValidationError; other errors are returned as is.
func AsValidationError(err error) error {
	flds := FieldErrors(err)
	if len(flds) == 0 {
		return err
	}
	return core.NewValidationError(err, flds...)
}

// IsSchedulingError reports whether err (or any error it holds) is a scheduler violation.
func IsSchedulingError(err error) bool {
	return len(FieldErrors(err)) > 0
}
