package timeline

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/cadence/core"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     FieldError
		key     string
		message string
		text    string
	}{
		{
			name:    "past phase start",
			err:     &PastDateError{Index: 1, Field: FieldStart},
			key:     "phases[1].start_date",
			message: "Start date cannot be in the past",
			text:    "phase 2: start date cannot be in the past",
		},
		{
			name:    "past project start",
			err:     &PastDateError{Index: ProjectLevel, Field: FieldStart},
			key:     "start_date",
			message: "Project start date cannot be in the past",
			text:    "Project start date cannot be in the past",
		},
		{
			name:    "degenerate phase",
			err:     &DegenerateWindowError{Index: 0, Field: FieldEnd},
			key:     "phases[0].end_date",
			message: "End date must be after start date",
			text:    "phase 1: end date must be after start date",
		},
		{
			name:    "sequencing",
			err:     &SequencingViolationError{Index: 2, Field: FieldStart, Bound: date(2025, 2, 10, 0, 0)},
			key:     "phases[2].start_date",
			message: "Start date must be on or after 2025-02-10T00:00:00.000, once the previous phase's evaluation and breathe periods are over",
		},
		{
			name:    "insufficient",
			err:     &InsufficientTimelineError{Phases: 30, BufferDaysPerPhase: 3, DaysNeeded: 90, DaysAvailable: 58.9993},
			key:     "due_date",
			message: "Timeline too short: 30 phases with 3 buffer days each need 90.0 days but only 59.0 are available",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.FieldKey(); got != tt.key {
				t.Errorf("FieldKey() = %q, want %q", got, tt.key)
			}
			if got := tt.err.Message(); got != tt.message {
				t.Errorf("Message() = %q, want %q", got, tt.message)
			}
			if tt.text != "" && tt.err.Error() != tt.text {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.text)
			}
		})
	}
}

func TestAsValidationError(t *testing.T) {
	errs := ValidationErrors{
		&PastDateError{Index: 0, Field: FieldStart},
		&DegenerateWindowError{Index: 0, Field: FieldEnd},
	}
	err := AsValidationError(errs)
	verr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("AsValidationError() = %T, want *core.ValidationError", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0].Field != "phases[0].start_date" || verr.Fields[1].Field != "phases[0].end_date" {
		t.Errorf("AsValidationError() fields = %v", verr.Fields)
	}
	if !IsSchedulingError(errs) {
		t.Error("IsSchedulingError() = false, want true")
	}

	other := errors.New("boom")
	if got := AsValidationError(other); got != other {
		t.Errorf("AsValidationError() = %v, want %v", got, other)
	}
	if IsSchedulingError(other) || IsSchedulingError(nil) {
		t.Error("IsSchedulingError() = true, want false")
	}
}
