package project

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/core/timeline"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound       = errors.New("project not found")
	ErrPhaseNotFound  = errors.New("phase not found")
	ErrLastPhase      = errors.New("a project needs at least one phase")
	ErrPresetNotFound = errors.New("preset not found")
)

const publishedTemplate = "timeline_published"

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project) (Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		// QueryProjects applies AND on the QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Project.Title or Project.Description.
		QueryProjects(ctx context.Context, filter QueryFilter) ([]Project, error)
		// UpdateProject replaces the project and all of its phases.
		UpdateProject(ctx context.Context, p Project) (Project, error)
		DeleteProjectsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		mailer   core.EmailService
		catalog  preset.Catalog
		defaults core.SchedulerConfig

		// one read-validate-write at a time per project
		locksMu sync.Mutex
		locks   map[string]*projectLock
	}

	// projectLock is dropped from Service.locks once nobody holds or waits for it.
	projectLock struct {
		sync.Mutex
		refs int
	}
)

func NewService(repo Repository, mailer core.EmailService, catalog preset.Catalog, defaults core.SchedulerConfig) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		catalog:  catalog,
		defaults: defaults,
		locks:    make(map[string]*projectLock),
	}
}

// now is the naive wall clock used for past-date checks.
func now() time.Time {
	return timeline.Naive(nowFunc())
}

func (svc *Service) lock(id string) func() {
	svc.locksMu.Lock()
	l, ok := svc.locks[id]
	if !ok {
		l = new(projectLock)
		svc.locks[id] = l
	}
	l.refs++
	svc.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		svc.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(svc.locks, id)
		}
		svc.locksMu.Unlock()
	}
}

// edit loads the project, lets `fn` change it and stores the result.
func (svc *Service) edit(ctx context.Context, id string, fn func(p *Project) error) (Project, error) {
	defer svc.lock(id)()

	p, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := fn(&p); err != nil {
		return Project{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, p)
}

func (svc *Service) policy(evaluationDays, breatheDays *int) timeline.BufferPolicy {
	policy := timeline.BufferPolicy{
		EvaluationDays: svc.defaults.EvaluationDays,
		BreatheDays:    svc.defaults.BreatheDays,
	}
	if evaluationDays != nil {
		policy.EvaluationDays = *evaluationDays
	}
	if breatheDays != nil {
		policy.BreatheDays = *breatheDays
	}
	return policy
}

func (svc *Service) findPreset(courseCode, title string) (preset.Preset, error) {
	p, err := svc.catalog.Find(courseCode, title)
	if err != nil {
		if errors.Is(err, preset.ErrCourseNotFound) || errors.Is(err, preset.ErrPresetNotFound) {
			return preset.Preset{}, core.NewValidationError(ErrPresetNotFound, core.FieldError{
				Field: "preset.title",
				Error: err.Error(),
			})
		}
		return preset.Preset{}, err
	}
	return p, nil
}

// checkTimeline validates the project dates against `now` and the phases against the project, all errors at once.
func checkTimeline(p Project, checkDates bool) error {
	var errs timeline.ValidationErrors
	if checkDates {
		if err := timeline.ValidateProjectWindow(p.Window(), now()); err != nil {
			errs = append(errs, err.(timeline.ValidationErrors)...)
		}
	}
	if err := timeline.ValidateTimeline(p.Phases, p.Window(), p.Policy()); err != nil {
		errs = append(errs, err.(timeline.ValidationErrors)...)
	}
	if len(errs) == 0 {
		return nil
	}
	return timeline.AsValidationError(errs)
}

func (svc *Service) Create(ctx context.Context, np NewProject) (Project, error) {
	policy := svc.policy(np.EvaluationPhaseDays, np.BreathePhaseDays)
	p := Project{
		ID:                  uuid.NewString(),
		CourseCode:          np.CourseCode,
		Title:               np.Title,
		Description:         np.Description,
		StartDate:           timeline.Naive(np.StartDate.Time),
		DueDate:             timeline.Naive(np.DueDate.Time),
		EvaluationPhaseDays: policy.EvaluationDays,
		BreathePhaseDays:    policy.BreatheDays,
		NotifyEmails:        np.NotifyEmails,
	}

	switch {
	case np.Preset != nil:
		chosen, err := svc.findPreset(np.CourseCode, np.Preset.Title)
		if err != nil {
			return Project{}, err
		}
		duration := np.Preset.PhaseDurationDays
		if duration == 0 {
			duration = svc.defaults.PresetPhaseDuration
		}
		res, err := chosen.Apply(duration, p.StartDate, policy)
		if err != nil {
			return Project{}, timeline.AsValidationError(err)
		}
		p.Phases, p.DueDate = res.Stored(policy), res.Due
		if p.Description == "" {
			p.Description = chosen.Description
		}

	case np.AutoSet != nil:
		phases, err := timeline.Allocate(p.Window(), policy, *np.AutoSet)
		if err != nil {
			return Project{}, timeline.AsValidationError(err)
		}
		p.Phases = phases

	default:
		phases := make([]timeline.Phase, 0, len(np.Phases))
		for _, ph := range np.Phases {
			phases = append(phases, ph.phase())
		}
		p.Phases = timeline.AttachWindows(phases, policy, p.DueDate)
	}

	if err := checkTimeline(p, true); err != nil {
		return Project{}, err
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p, err := svc.repo.CreateProject(ctx, p)
	if err != nil {
		return Project{}, err
	}
	svc.notify(p)
	return p, nil
}

func (svc *Service) notify(p Project) {
	if svc.mailer == nil || len(p.NotifyEmails) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(p.NotifyEmails))
	for _, email := range p.NotifyEmails {
		to = append(to, mail.Address{Address: email})
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "Timeline published: " + p.Title,
		TemplateName: publishedTemplate,
		TemplateData: p,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Project, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.CourseCode = core.CleanString(filter.CourseCode)
	return svc.repo.QueryProjects(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteProjectsByID(ctx, ids...)
}

// Update changes the project details. New dates are checked against now and the existing phases.
func (svc *Service) Update(ctx context.Context, id string, up UpdateProject) (Project, error) {
	return svc.edit(ctx, id, func(p *Project) error {
		if up.Title != "" {
			p.Title = up.Title
		}
		if up.Description != nil {
			p.Description = core.CleanString(*up.Description)
		}
		if up.NotifyEmails != nil {
			p.NotifyEmails = up.NotifyEmails
		}

		var datesChanged bool
		if !up.StartDate.IsZero() && !up.StartDate.Equal(p.StartDate) {
			p.StartDate, datesChanged = timeline.Naive(up.StartDate.Time), true
		}
		if !up.DueDate.IsZero() && !up.DueDate.Equal(p.DueDate) {
			p.DueDate, datesChanged = timeline.Naive(up.DueDate.Time), true
		}
		if !datesChanged {
			return nil
		}
		p.Phases = timeline.AttachWindows(p.Phases, p.Policy(), p.DueDate)
		return checkTimeline(*p, true)
	})
}

// EditPhase changes one phase. New dates must pass ValidatePhaseEdit, then the whole timeline is re-checked.
func (svc *Service) EditPhase(ctx context.Context, id string, index int, up UpdatePhase) (Project, error) {
	return svc.edit(ctx, id, func(p *Project) error {
		if index < 0 || index >= len(p.Phases) {
			return ErrPhaseNotFound
		}
		ph := p.Phases[index]
		start, end := ph.Start, ph.End
		if !up.StartDate.IsZero() {
			start = timeline.Naive(up.StartDate.Time)
		}
		if !up.EndDate.IsZero() {
			end = timeline.Naive(up.EndDate.Time)
		}

		if !start.Equal(ph.Start) || !end.Equal(ph.End) {
			if err := timeline.ValidatePhaseEdit(p.Phases, index, start, end, p.Policy(), now()); err != nil {
				return timeline.AsValidationError(err)
			}
			phases, err := timeline.ApplyPhaseEdit(p.Phases, index, start, end, p.Policy(), p.DueDate)
			if err != nil {
				return err
			}
			p.Phases = phases
		}

		if up.Name != "" {
			p.Phases[index].Name = up.Name
		}
		if up.Description != nil {
			p.Phases[index].Description = core.CleanString(*up.Description)
		}
		return checkTimeline(*p, false)
	})
}

// ChangeBufferPolicy applies new evaluation and/or breathe days to every phase.
// A breathe change slides the following phases; an evaluation change only recomputes the windows.
func (svc *Service) ChangeBufferPolicy(ctx context.Context, id string, ub UpdateBufferPolicy) (Project, error) {
	return svc.edit(ctx, id, func(p *Project) error {
		policy := p.Policy()
		if ub.EvaluationPhaseDays != nil {
			policy.EvaluationDays = *ub.EvaluationPhaseDays
		}
		newBreathe := policy.BreatheDays
		if ub.BreathePhaseDays != nil {
			newBreathe = *ub.BreathePhaseDays
		}

		if newBreathe != policy.BreatheDays {
			p.Phases = timeline.PropagateBreatheChange(p.Phases, p.Window(), policy, newBreathe)
			policy.BreatheDays = newBreathe
		} else {
			p.Phases = timeline.AttachWindows(p.Phases, policy, p.DueDate)
		}
		p.EvaluationPhaseDays, p.BreathePhaseDays = policy.EvaluationDays, policy.BreatheDays
		return checkTimeline(*p, false)
	})
}

// AppendPhase adds a phase at the end of the project.
func (svc *Service) AppendPhase(ctx context.Context, id string, np NewPhase) (Project, error) {
	return svc.edit(ctx, id, func(p *Project) error {
		phases, err := timeline.AppendPhase(p.Phases, p.Window(), p.Policy(), np.phase())
		if err != nil {
			return timeline.AsValidationError(err)
		}
		last := len(phases) - 1
		if err := timeline.ValidatePhaseEdit(phases, last, phases[last].Start, phases[last].End, p.Policy(), now()); err != nil {
			return timeline.AsValidationError(err)
		}
		p.Phases = phases
		return checkTimeline(*p, false)
	})
}

// TruncatePhases keeps the first `keep` phases and returns the removed ones.
func (svc *Service) TruncatePhases(ctx context.Context, id string, keep int) (Project, []timeline.Phase, error) {
	if keep < 1 {
		return Project{}, nil, ErrLastPhase
	}
	var removed []timeline.Phase
	p, err := svc.edit(ctx, id, func(p *Project) error {
		p.Phases, removed = timeline.TruncatePhases(p.Phases, keep, p.Window(), p.Policy())
		return checkTimeline(*p, false)
	})
	if err != nil {
		return Project{}, nil, err
	}
	return p, removed, nil
}

// MinimumStart is the earliest start phase `index` may be moved to.
func (svc *Service) MinimumStart(ctx context.Context, id string, index int) (time.Time, error) {
	p, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	start, err := timeline.EarliestStart(p.Phases, index, p.Window(), p.Policy())
	if errors.Is(err, timeline.ErrIndexOutOfRange) {
		return time.Time{}, ErrPhaseNotFound
	}
	return start, err
}

// PreviewAutoSet allocates phases for the given dates without storing anything.
func (svc *Service) PreviewAutoSet(req AutoSetRequest) ([]timeline.Phase, error) {
	window := timeline.ProjectWindow{Start: timeline.Naive(req.StartDate.Time), Due: timeline.Naive(req.DueDate.Time)}
	phases, err := timeline.Allocate(window, req.BufferPolicy, req.SpacingPolicy)
	if err != nil {
		return nil, timeline.AsValidationError(err)
	}
	return phases, nil
}

// PreviewPreset materializes a preset without storing anything.
func (svc *Service) PreviewPreset(req PresetRequest) (timeline.PresetResult, error) {
	chosen, err := svc.findPreset(req.CourseCode, req.Title)
	if err != nil {
		return timeline.PresetResult{}, err
	}
	duration := req.PhaseDurationDays
	if duration == 0 {
		duration = svc.defaults.PresetPhaseDuration
	}
	res, err := chosen.Apply(duration, req.StartDate.Time, req.BufferPolicy)
	if err != nil {
		return timeline.PresetResult{}, timeline.AsValidationError(err)
	}
	return res, nil
}

// ValidateEdit checks an edit of a phase list held by the client.
func (svc *Service) ValidateEdit(req ValidateEditRequest) error {
	err := timeline.ValidatePhaseEdit(req.Phases, req.Index, timeline.Naive(req.StartDate.Time), timeline.Naive(req.EndDate.Time), req.BufferPolicy, now())
	if errors.Is(err, timeline.ErrIndexOutOfRange) {
		return core.NewValidationError(err, core.FieldError{Field: "index", Error: err.Error()})
	}
	return timeline.AsValidationError(err)
}

// Propagate recomputes a phase list held by the client for new breathe days.
func (svc *Service) Propagate(req PropagateRequest) []timeline.Phase {
	window := timeline.ProjectWindow{Start: timeline.Naive(req.StartDate.Time), Due: timeline.Naive(req.DueDate.Time)}
	return timeline.PropagateBreatheChange(req.Phases, window, req.BufferPolicy, req.NewBreatheDays)
}
