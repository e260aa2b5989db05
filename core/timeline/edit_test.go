package timeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func allocated(t *testing.T, n int, policy BufferPolicy) ([]Phase, ProjectWindow) {
	t.Helper()
	window := ProjectWindow{Start: date(2025, 1, 1, 0, 0), Due: date(2025, 3, 1, 0, 0)}
	phases, err := Allocate(window, policy, SpacingPolicy{NumberOfPhases: n, AutoSpacePhases: true})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	return phases, window
}

func TestPropagateBreatheChange(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, window := allocated(t, 2, policy)
	before := Clone(phases)

	got := PropagateBreatheChange(phases, window, policy, 5)

	if !reflect.DeepEqual(phases, before) {
		t.Fatal("PropagateBreatheChange() modified its input")
	}
	if !got[0].Start.Equal(phases[0].Start) || !got[0].End.Equal(phases[0].End) {
		t.Errorf("phase 1 moved: [%v, %v]", got[0].Start, got[0].End)
	}
	if shift := got[1].Start.Sub(phases[1].Start); shift != 4*Day {
		t.Errorf("phase 2 shifted by %v, want %v", shift, 4*Day)
	}
	if !got[1].End.Equal(phases[1].End) {
		t.Errorf("phase 2 end = %v, want %v", got[1].End, phases[1].End)
	}
	if want := date(2025, 2, 3, 23, 59); !got[0].BreatheWindow.End.Equal(want) {
		t.Errorf("phase 1 breathe end = %v, want %v", got[0].BreatheWindow.End, want)
	}
	// the last breathe window still stretches to the deadline
	if want := AddMinutes(window.Due, -1); !got[1].BreatheWindow.End.Equal(want) {
		t.Errorf("phase 2 breathe end = %v, want %v", got[1].BreatheWindow.End, want)
	}
}

func TestPropagateBreatheChangeIsIdempotent(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 1, BreatheDays: 1}
	phases, window := allocated(t, 4, policy)

	once := PropagateBreatheChange(phases, window, policy, 3)
	twice := PropagateBreatheChange(once, window, BufferPolicy{EvaluationDays: 1, BreatheDays: 3}, 3)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("PropagateBreatheChange() is not idempotent:\n%v\n%v", once, twice)
	}
}

func TestPropagateBreatheChangeNeverMovesStartsBack(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 1, BreatheDays: 1}
	phases, window := allocated(t, 3, policy)

	prev := phases
	for breathe := 2; breathe <= 6; breathe++ {
		next := PropagateBreatheChange(prev, window, policy, breathe)
		for i := 1; i < len(next); i++ {
			if next[i].Start.Before(prev[i].Start) {
				t.Errorf("breathe=%d: phase %d start moved back from %v to %v", breathe, i, prev[i].Start, next[i].Start)
			}
		}
		prev = next
	}
}

func TestValidatePhaseEdit(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, _ := allocated(t, 3, policy)
	beforeStart := date(2024, 12, 31, 0, 0)

	tests := []struct {
		name       string
		index      int
		start, end time.Time
		now        time.Time
		wantKeys   []string
	}{
		{
			name: "valid", index: 1,
			start: date(2025, 2, 1, 0, 0), end: date(2025, 2, 6, 23, 59), now: beforeStart,
		},
		{
			name: "first phase is only bound by now", index: 0,
			start: date(2024, 12, 31, 12, 0), end: date(2025, 1, 17, 23, 59), now: beforeStart,
		},
		{
			name: "end before start", index: 1,
			start: date(2025, 2, 6, 0, 0), end: date(2025, 2, 1, 0, 0), now: beforeStart,
			wantKeys: []string{"phases[1].end_date"},
		},
		{
			name: "overlaps previous buffers", index: 1,
			start: date(2025, 1, 19, 0, 0), end: date(2025, 2, 6, 23, 59), now: beforeStart,
			wantKeys: []string{"phases[1].start_date"},
		},
		{
			name: "start in the past", index: 1,
			start: date(2025, 1, 21, 0, 0), end: date(2025, 2, 6, 23, 59), now: date(2025, 1, 25, 0, 0),
			wantKeys: []string{"phases[1].start_date"},
		},
		{
			name: "everything wrong", index: 2,
			start: date(2025, 2, 5, 0, 0), end: date(2025, 2, 4, 0, 0), now: date(2025, 2, 20, 0, 0),
			wantKeys: []string{"phases[2].end_date", "phases[2].start_date", "phases[2].end_date", "phases[2].start_date"},
		},
		{
			name: "missing dates", index: 0,
			now:      beforeStart,
			wantKeys: []string{"phases[0].start_date", "phases[0].end_date"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhaseEdit(phases, tt.index, tt.start, tt.end, policy, tt.now)
			var keys []string
			for _, fe := range FieldErrors(err) {
				keys = append(keys, fe.Field)
			}
			if !reflect.DeepEqual(keys, tt.wantKeys) {
				t.Errorf("ValidatePhaseEdit() error keys = %v, want %v (err = %v)", keys, tt.wantKeys, err)
			}
		})
	}
}

func TestValidatePhaseEditReportsBound(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, _ := allocated(t, 3, policy)

	err := ValidatePhaseEdit(phases, 1, date(2025, 1, 19, 0, 0), date(2025, 2, 6, 23, 59), policy, date(2024, 12, 31, 0, 0))
	var seqErr *SequencingViolationError
	if !errors.As(err, &seqErr) {
		t.Fatalf("ValidatePhaseEdit() error = %v, want *SequencingViolationError", err)
	}
	if seqErr.Index != 1 || !seqErr.Bound.Equal(date(2025, 1, 21, 0, 0)) || seqErr.Max {
		t.Errorf("ValidatePhaseEdit() = %+v", seqErr)
	}

	if err := ValidatePhaseEdit(phases, 3, time.Time{}, time.Time{}, policy, time.Time{}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("ValidatePhaseEdit() error = %v, want %v", err, ErrIndexOutOfRange)
	}
}

func TestApplyPhaseEdit(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, window := allocated(t, 3, policy)

	got, err := ApplyPhaseEdit(phases, 1, date(2025, 1, 22, 9, 0), date(2025, 2, 4, 17, 0), policy, window.Due)
	if err != nil {
		t.Fatalf("ApplyPhaseEdit() error = %v", err)
	}
	if want := (Window{date(2025, 2, 4, 17, 1), date(2025, 2, 6, 17, 0)}); got[1].EvaluationWindow != want {
		t.Errorf("evaluation window = %v, want %v", got[1].EvaluationWindow, want)
	}
	if phases[1].Start.Equal(got[1].Start) {
		t.Error("ApplyPhaseEdit() modified its input")
	}
	if err := ValidateTimeline(got, window, policy); err != nil {
		t.Errorf("ValidateTimeline() error = %v", err)
	}
	if _, err := ApplyPhaseEdit(phases, -1, time.Time{}, time.Time{}, policy, window.Due); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("ApplyPhaseEdit() error = %v, want %v", err, ErrIndexOutOfRange)
	}
}

func TestEarliestStart(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, window := allocated(t, 3, policy)

	tests := []struct {
		index int
		want  time.Time
	}{
		{index: 0, want: window.Start},
		{index: 1, want: date(2025, 1, 21, 0, 0)},
		{index: 2, want: date(2025, 2, 10, 0, 0)},
	}
	for _, tt := range tests {
		got, err := EarliestStart(phases, tt.index, window, policy)
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("EarliestStart(%d) = %v, %v, want %v", tt.index, got, err, tt.want)
		}
	}
}

func TestAppendAndTruncatePhases(t *testing.T) {
	policy := BufferPolicy{EvaluationDays: 1, BreatheDays: 2}
	window := ProjectWindow{Start: date(2025, 1, 1, 0, 0)}

	phases, err := AppendPhase(nil, window, policy, Phase{Name: "Design", End: date(2025, 1, 7, 23, 59)})
	if err != nil {
		t.Fatalf("AppendPhase() error = %v", err)
	}
	phases, err = AppendPhase(phases, window, policy, Phase{Name: "Build", End: date(2025, 1, 20, 23, 59)})
	if err != nil {
		t.Fatalf("AppendPhase() error = %v", err)
	}
	if got, want := phases[1].Start, date(2025, 1, 11, 0, 0); !got.Equal(want) {
		t.Errorf("second phase start = %v, want %v", got, want)
	}
	if phases[1].Index != 1 || !phases[0].Start.Equal(window.Start) {
		t.Errorf("AppendPhase() = %+v", phases)
	}
	if _, err := AppendPhase(phases, window, policy, Phase{Name: "Ship"}); err == nil {
		t.Error("AppendPhase() without end, want an error")
	}

	window.Due = date(2025, 2, 1, 0, 0)
	kept, removed := TruncatePhases(phases, 1, window, policy)
	if len(kept) != 1 || len(removed) != 1 || removed[0].Name != "Build" {
		t.Fatalf("TruncatePhases() = %v, %v", kept, removed)
	}
	// the remaining phase now stretches to the deadline
	if want := date(2025, 1, 31, 23, 59); !kept[0].BreatheWindow.End.Equal(want) {
		t.Errorf("breathe end = %v, want %v", kept[0].BreatheWindow.End, want)
	}

	kept, removed = TruncatePhases(phases, 5, window, policy)
	if len(kept) != 2 || removed != nil {
		t.Errorf("TruncatePhases() beyond length = %v, %v", kept, removed)
	}
}
