package project

import (
	"encoding/json"
	"time"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/timeline"
)

type Project struct {
	ID                  string
	CourseCode          string
	Title               string
	Description         string
	StartDate           time.Time // naive wall clock
	DueDate             time.Time // naive wall clock
	EvaluationPhaseDays int
	BreathePhaseDays    int
	Phases              []timeline.Phase
	NotifyEmails        []string
	CreatedAt           time.Time // UTC
	UpdatedAt           time.Time // UTC
}

func (p Project) Window() timeline.ProjectWindow {
	return timeline.ProjectWindow{Start: p.StartDate, Due: p.DueDate}
}

func (p Project) Policy() timeline.BufferPolicy {
	return timeline.BufferPolicy{EvaluationDays: p.EvaluationPhaseDays, BreatheDays: p.BreathePhaseDays}
}

// EvaluationWindow is the project-wide peer evaluation period, held during the last phase's evaluation.
func (p Project) EvaluationWindow() timeline.Window {
	return timeline.ProjectEvaluationWindow(p.Phases)
}

type projectJSON struct {
	ID                  string           `json:"id"`
	CourseCode          string           `json:"course_code"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	StartDate           timeline.Instant `json:"start_date"`
	DueDate             timeline.Instant `json:"due_date"`
	MinDueDate          timeline.Instant `json:"min_due_date"`
	EvaluationPhaseDays int              `json:"evaluation_phase_days"`
	BreathePhaseDays    int              `json:"breathe_phase_days"`
	EvaluationWindow    timeline.Window  `json:"evaluation_window"`
	Phases              []timeline.Phase `json:"phases"`
	NotifyEmails        []string         `json:"notify_emails"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func (p Project) MarshalJSON() ([]byte, error) {
	phases := p.Phases
	if phases == nil {
		phases = []timeline.Phase{}
	}
	return json.Marshal(projectJSON{
		ID:                  p.ID,
		CourseCode:          p.CourseCode,
		Title:               p.Title,
		Description:         p.Description,
		StartDate:           timeline.NewInstant(p.StartDate),
		DueDate:             timeline.NewInstant(p.DueDate),
		MinDueDate:          timeline.NewInstant(timeline.MinProjectDue(p.Phases, p.Policy())),
		EvaluationPhaseDays: p.EvaluationPhaseDays,
		BreathePhaseDays:    p.BreathePhaseDays,
		EvaluationWindow:    p.EvaluationWindow(),
		Phases:              phases,
		NotifyEmails:        p.NotifyEmails,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	})
}

// NewPhase contains information needed to add a phase by hand.
type NewPhase struct {
	Name        string           `json:"name" validate:"notblank,max=100"`
	Description string           `json:"description" validate:"max=1000"`
	StartDate   timeline.Instant `json:"start_date"`
	EndDate     timeline.Instant `json:"end_date"`
}

func (np *NewPhase) Validate() error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	return core.Validate.Struct(np)
}

func (np NewPhase) phase() timeline.Phase {
	return timeline.Phase{
		Name:        np.Name,
		Description: np.Description,
		Start:       timeline.Naive(np.StartDate.Time),
		End:         timeline.Naive(np.EndDate.Time),
	}
}

// PresetChoice picks a preset of the project's course.
type PresetChoice struct {
	Title             string `json:"title" validate:"notblank"`
	PhaseDurationDays int    `json:"phase_duration_days" validate:"gte=0,lte=365"`
}

// NewProject contains information needed to create a new Project.
// Its phases come from exactly one of Phases, AutoSet or Preset.
type NewProject struct {
	CourseCode          string                  `json:"course_code" validate:"required,coursecode"`
	Title               string                  `json:"title" validate:"notblank,max=200"`
	Description         string                  `json:"description" validate:"max=5000"`
	StartDate           timeline.Instant        `json:"start_date"`
	DueDate             timeline.Instant        `json:"due_date"`
	EvaluationPhaseDays *int                    `json:"evaluation_phase_days" validate:"omitempty,gte=0,lte=365"`
	BreathePhaseDays    *int                    `json:"breathe_phase_days" validate:"omitempty,gte=0,lte=365"`
	Phases              []NewPhase              `json:"phases" validate:"dive"`
	AutoSet             *timeline.SpacingPolicy `json:"auto_set"`
	Preset              *PresetChoice           `json:"preset"`
	NotifyEmails        []string                `json:"notify_emails" validate:"omitempty,dive,email"`
}

func (np *NewProject) Validate() error {
	np.CourseCode = core.CleanString(np.CourseCode)
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	for i := range np.Phases {
		np.Phases[i].Name = core.CleanString(np.Phases[i].Name)
		np.Phases[i].Description = core.CleanString(np.Phases[i].Description)
	}
	for i := range np.NotifyEmails {
		np.NotifyEmails[i] = core.CleanString(np.NotifyEmails[i], true /* lower */)
	}

	if err := core.Validate.Struct(np); err != nil {
		return err
	}

	var sources int
	if len(np.Phases) > 0 {
		sources++
	}
	if np.AutoSet != nil {
		sources++
		if err := np.AutoSet.Validate(); err != nil {
			return err
		}
	}
	if np.Preset != nil {
		sources++
	}
	if sources != 1 {
		return core.NewValidationError(core.ErrInvalidInput, core.FieldError{
			Field: "phases",
			Error: "provide exactly one of phases, auto_set or preset",
		})
	}
	return nil
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	Title        string           `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string          `json:"description" validate:"omitempty,max=5000"`
	StartDate    timeline.Instant `json:"start_date"`
	DueDate      timeline.Instant `json:"due_date"`
	NotifyEmails []string         `json:"notify_emails" validate:"omitempty,dive,email"`
}

func (up *UpdateProject) Validate() error {
	up.Title = core.CleanString(up.Title)
	return core.Validate.Struct(up)
}

// UpdatePhase edits one phase; zero values keep the current ones.
type UpdatePhase struct {
	Name        string           `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	StartDate   timeline.Instant `json:"start_date"`
	EndDate     timeline.Instant `json:"end_date"`
}

func (up *UpdatePhase) Validate() error {
	up.Name = core.CleanString(up.Name)
	return core.Validate.Struct(up)
}

// UpdateBufferPolicy changes the evaluation and/or breathe days of every phase.
type UpdateBufferPolicy struct {
	EvaluationPhaseDays *int `json:"evaluation_phase_days" validate:"omitempty,gte=0,lte=365"`
	BreathePhaseDays    *int `json:"breathe_phase_days" validate:"omitempty,gte=0,lte=365"`
}

func (ub UpdateBufferPolicy) Validate() error {
	if ub.EvaluationPhaseDays == nil && ub.BreathePhaseDays == nil {
		return core.NewValidationError(core.ErrInvalidInput, core.FieldError{
			Field: "breathe_phase_days",
			Error: "one of evaluation_phase_days or breathe_phase_days is required",
		})
	}
	return core.Validate.Struct(ub)
}

// AutoSetRequest previews an allocation without storing anything.
type AutoSetRequest struct {
	StartDate              timeline.Instant `json:"start_date"`
	DueDate                timeline.Instant `json:"due_date"`
	timeline.BufferPolicy  `json:"buffers"`
	timeline.SpacingPolicy `json:"spacing"`
}

func (r AutoSetRequest) Validate() error {
	if err := r.BufferPolicy.Validate(); err != nil {
		return err
	}
	return r.SpacingPolicy.Validate()
}

// PresetRequest previews a preset without storing anything.
type PresetRequest struct {
	CourseCode            string           `json:"course_code" validate:"required,coursecode"`
	Title                 string           `json:"title" validate:"notblank"`
	StartDate             timeline.Instant `json:"start_date"`
	PhaseDurationDays     int              `json:"phase_duration_days" validate:"gte=0,lte=365"`
	timeline.BufferPolicy `json:"buffers"`
}

func (r *PresetRequest) Validate() error {
	r.CourseCode = core.CleanString(r.CourseCode)
	if err := core.Validate.Struct(r); err != nil {
		return err
	}
	return r.BufferPolicy.Validate()
}

// ValidateEditRequest checks an edit of a phase list held by the client.
type ValidateEditRequest struct {
	Phases                []timeline.Phase `json:"phases" validate:"min=1"`
	Index                 int              `json:"index" validate:"gte=0"`
	StartDate             timeline.Instant `json:"start_date"`
	EndDate               timeline.Instant `json:"end_date"`
	timeline.BufferPolicy `json:"buffers"`
}

func (r ValidateEditRequest) Validate() error {
	if err := core.Validate.Struct(r); err != nil {
		return err
	}
	return r.BufferPolicy.Validate()
}

// PropagateRequest recomputes a phase list held by the client for new breathe days.
type PropagateRequest struct {
	Phases                []timeline.Phase `json:"phases" validate:"min=1"`
	StartDate             timeline.Instant `json:"start_date"`
	DueDate               timeline.Instant `json:"due_date"`
	NewBreatheDays        int              `json:"new_breathe_days" validate:"gte=0,lte=365"`
	timeline.BufferPolicy `json:"buffers"`
}

func (r PropagateRequest) Validate() error {
	if err := core.Validate.Struct(r); err != nil {
		return err
	}
	return r.BufferPolicy.Validate()
}

type QueryFilter struct {
	Search     string `query:"search"`
	CourseCode string `query:"course_code"`
	Ordering   string `query:"ordering"`
}

// OrderingFields are the fields projects may be sorted by.
var OrderingFields = []string{"title", "course_code", "start_date", "due_date", "created_at"}

func (f QueryFilter) Orderings() []core.DBOrdering {
	ords := core.ParseOrdering(f.Ordering, OrderingFields...)
	if len(ords) == 0 {
		return []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return ords
}
