package timeline

import (
	"encoding/json"
	"time"

	"github.com/trezcool/cadence/core"
)

type (
	// ProjectWindow is the outer interval phases are allocated in. A zero Due means "not yet known".
	ProjectWindow struct {
		Start time.Time
		Due   time.Time
	}

	// BufferPolicy is applied uniformly after every phase, the last one included.
	BufferPolicy struct {
		EvaluationDays int `json:"evaluation_days" validate:"gte=0,lte=365"`
		BreatheDays    int `json:"breathe_days" validate:"gte=0,lte=365"`
	}

	// SpacingPolicy drives Allocate. PhaseDurationDays is ignored when AutoSpacePhases is set.
	SpacingPolicy struct {
		NumberOfPhases    int  `json:"number_of_phases" validate:"gte=1,lte=100"`
		PhaseDurationDays int  `json:"phase_duration_days" validate:"gte=0,lte=365"`
		AutoSpacePhases   bool `json:"auto_space_phases"`
	}

	Window struct {
		Start time.Time
		End   time.Time
	}

	Phase struct {
		Index            int
		Name             string
		Description      string
		Start            time.Time
		End              time.Time
		EvaluationWindow Window
		BreatheWindow    Window
	}
)

func (w ProjectWindow) HasDue() bool { return !w.Due.IsZero() }

func (p BufferPolicy) Validate() error { return core.CheckStruct(p) }

func (p SpacingPolicy) Validate() error {
	if err := core.CheckStruct(p); err != nil {
		return err
	}
	if !p.AutoSpacePhases && p.PhaseDurationDays < 1 {
		return core.NewValidationError(core.ErrInvalidInput, core.FieldError{
			Field: "phase_duration_days",
			Error: "phase_duration_days must be 1 or greater",
		})
	}
	return nil
}

// BufferDays is the number of buffer days following each phase.
func (p BufferPolicy) BufferDays() int { return p.EvaluationDays + p.BreatheDays }

func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Contains reports whether t is within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// BufferEnd is the instant after which the next phase may start (minus one minute).
func (p Phase) BufferEnd() time.Time {
	if p.BreatheWindow.IsZero() {
		return p.EvaluationWindow.End
	}
	return p.BreatheWindow.End
}

// Clone returns a copy of `phases` that can be modified freely.
func Clone(phases []Phase) []Phase {
	if phases == nil {
		return nil
	}
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

type windowJSON struct {
	Start Instant `json:"start"`
	End   Instant `json:"end"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: NewInstant(w.Start), End: NewInstant(w.End)})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var wj windowJSON
	if err := json.Unmarshal(data, &wj); err != nil {
		return err
	}
	w.Start, w.End = wj.Start.Time, wj.End.Time
	return nil
}

type phaseJSON struct {
	Index            int     `json:"index"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Start            Instant `json:"start_date"`
	End              Instant `json:"end_date"`
	EvaluationWindow Window  `json:"evaluation_window"`
	BreatheWindow    Window  `json:"breathe_window"`
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(phaseJSON{
		Index:            p.Index,
		Name:             p.Name,
		Description:      p.Description,
		Start:            NewInstant(p.Start),
		End:              NewInstant(p.End),
		EvaluationWindow: p.EvaluationWindow,
		BreatheWindow:    p.BreatheWindow,
	})
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var pj phaseJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	*p = Phase{
		Index:            pj.Index,
		Name:             pj.Name,
		Description:      pj.Description,
		Start:            pj.Start.Time,
		End:              pj.End.Time,
		EvaluationWindow: pj.EvaluationWindow,
		BreatheWindow:    pj.BreatheWindow,
	}
	return nil
}
