package project_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
	"github.com/trezcool/cadence/fs"
	"github.com/trezcool/cadence/services/email"
	"github.com/trezcool/cadence/services/logger"
	"github.com/trezcool/cadence/storage/database/inmem"
)

func date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func intPtr(i int) *int { return &i }

func setup(t *testing.T) (*project.Service, *emailsvc.ConsoleServiceMock) {
	t.Helper()
	t.Cleanup(project.SetNow(date(2024, 12, 1, 9, 0)))

	conf := &core.Config{AppName: "Cadence", Scheduler: core.SchedulerConfig{EvaluationDays: 1, BreatheDays: 0, PresetPhaseDuration: 7}}
	tmpls, err := core.ParseTemplates(appfs.FS, appfs.EmailTemplatesDir, "https://cadence.test", true)
	require.NoError(t, err)
	mailer := emailsvc.NewConsoleServiceMock(conf, tmpls, logsvc.WrapZap(zap.NewNop()))

	catalog, err := preset.Default()
	require.NoError(t, err)

	db, err := inmemdb.Open()
	require.NoError(t, err)
	return project.NewService(inmemdb.NewProjectRepository(db), mailer, catalog, conf.Scheduler), mailer
}

// scenario creates the 3 auto-spaced phases of Jan 1 - Mar 1 2025 with 2 evaluation days and 1 breathe day.
func scenario(t *testing.T, svc *project.Service) project.Project {
	t.Helper()
	p, err := svc.Create(context.Background(), project.NewProject{
		CourseCode:          "FOPR111",
		Title:               "Calculator",
		StartDate:           timeline.NewInstant(date(2025, 1, 1, 0, 0)),
		DueDate:             timeline.NewInstant(date(2025, 3, 1, 0, 0)),
		EvaluationPhaseDays: intPtr(2),
		BreathePhaseDays:    intPtr(1),
		AutoSet:             &timeline.SpacingPolicy{NumberOfPhases: 3, AutoSpacePhases: true},
		NotifyEmails:        []string{"class@test.cd"},
	})
	require.NoError(t, err)
	return p
}

func fieldMap(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.Truef(t, ok, "error = %v (%T), want *core.ValidationError", err, err)
	return verr.FieldMap()
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("auto set", func(t *testing.T) {
		svc, mailer := setup(t)
		p := scenario(t, svc)

		require.Len(t, p.Phases, 3)
		assert.True(t, p.Phases[0].End.Equal(date(2025, 1, 17, 23, 59)))
		assert.True(t, p.Phases[1].Start.Equal(date(2025, 1, 21, 0, 0)))
		assert.True(t, p.Phases[2].End.Equal(date(2025, 2, 25, 23, 59)))
		assert.NotEmpty(t, p.ID)

		got, err := svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Title, got.Title)

		sent := mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].TextContent, "Calculator")
		assert.Equal(t, "class@test.cd", sent[0].To[0].Address)
	})

	t.Run("preset", func(t *testing.T) {
		svc, _ := setup(t)
		p, err := svc.Create(ctx, project.NewProject{
			CourseCode:          "FOPR111",
			Title:               "Calculator",
			StartDate:           timeline.NewInstant(date(2025, 1, 6, 8, 0)),
			EvaluationPhaseDays: intPtr(1),
			BreathePhaseDays:    intPtr(1),
			Preset:              &project.PresetChoice{Title: "basic calculator app"},
		})
		require.NoError(t, err)
		require.Len(t, p.Phases, 3)
		assert.Equal(t, "Implementation phase for Basic Calculator App", p.Phases[1].Description)
		assert.True(t, p.DueDate.Equal(date(2025, 2, 2, 7, 59)), "due = %v", p.DueDate)
		assert.NotEmpty(t, p.Description)

		// the stored deadline is the one previewed; the last rest closes a minute before it
		preview, err := svc.PreviewPreset(project.PresetRequest{
			CourseCode:   "FOPR111",
			Title:        "Basic Calculator App",
			StartDate:    timeline.NewInstant(date(2025, 1, 6, 8, 0)),
			BufferPolicy: timeline.BufferPolicy{EvaluationDays: 1, BreatheDays: 1},
		})
		require.NoError(t, err)
		assert.True(t, p.DueDate.Equal(preview.Due), "due = %v, previewed %v", p.DueDate, preview.Due)
		assert.True(t, p.Phases[2].BreatheWindow.End.Equal(date(2025, 2, 2, 7, 58)), "breathe end = %v", p.Phases[2].BreatheWindow.End)
	})

	t.Run("manual phases", func(t *testing.T) {
		svc, _ := setup(t)
		p, err := svc.Create(ctx, project.NewProject{
			CourseCode: "FOPR111",
			Title:      "Calculator",
			StartDate:  timeline.NewInstant(date(2025, 1, 1, 0, 0)),
			DueDate:    timeline.NewInstant(date(2025, 2, 1, 0, 0)),
			Phases: []project.NewPhase{
				{Name: "Design", StartDate: timeline.NewInstant(date(2025, 1, 1, 0, 0)), EndDate: timeline.NewInstant(date(2025, 1, 10, 23, 59))},
				{Name: "Build", StartDate: timeline.NewInstant(date(2025, 1, 12, 0, 0)), EndDate: timeline.NewInstant(date(2025, 1, 25, 23, 59))},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Phases[1].Index)
		assert.False(t, p.Phases[1].BreatheWindow.IsZero())
	})

	tests := []struct {
		name      string
		np        project.NewProject
		wantField string
	}{
		{
			name: "start in the past",
			np: project.NewProject{
				StartDate: timeline.NewInstant(date(2024, 11, 1, 0, 0)),
				DueDate:   timeline.NewInstant(date(2025, 3, 1, 0, 0)),
				AutoSet:   &timeline.SpacingPolicy{NumberOfPhases: 2, AutoSpacePhases: true},
			},
			wantField: "start_date",
		},
		{
			name: "timeline too short",
			np: project.NewProject{
				StartDate:           timeline.NewInstant(date(2025, 1, 1, 0, 0)),
				DueDate:             timeline.NewInstant(date(2025, 1, 5, 0, 0)),
				EvaluationPhaseDays: intPtr(2),
				BreathePhaseDays:    intPtr(1),
				AutoSet:             &timeline.SpacingPolicy{NumberOfPhases: 3, AutoSpacePhases: true},
			},
			wantField: "due_date",
		},
		{
			name: "overlapping phases",
			np: project.NewProject{
				StartDate: timeline.NewInstant(date(2025, 1, 1, 0, 0)),
				Phases: []project.NewPhase{
					{Name: "Design", StartDate: timeline.NewInstant(date(2025, 1, 1, 0, 0)), EndDate: timeline.NewInstant(date(2025, 1, 10, 23, 59))},
					{Name: "Build", StartDate: timeline.NewInstant(date(2025, 1, 10, 0, 0)), EndDate: timeline.NewInstant(date(2025, 1, 25, 23, 59))},
				},
			},
			wantField: "phases[1].start_date",
		},
		{
			name: "unknown preset",
			np: project.NewProject{
				CourseCode: "FOPR111",
				StartDate:  timeline.NewInstant(date(2025, 1, 1, 0, 0)),
				Preset:     &project.PresetChoice{Title: "Payroll"},
			},
			wantField: "preset.title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mailer := setup(t)
			tt.np.Title = "Calculator"
			if tt.np.CourseCode == "" {
				tt.np.CourseCode = "FOPR111"
			}
			_, err := svc.Create(ctx, tt.np)
			assert.Contains(t, fieldMap(t, err), tt.wantField)
			assert.Empty(t, mailer.SentMessages())
		})
	}
}

func TestServiceEditPhase(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p := scenario(t, svc)

	minStart, err := svc.MinimumStart(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, minStart.Equal(date(2025, 1, 21, 0, 0)))

	_, err = svc.MinimumStart(ctx, p.ID, 5)
	assert.Equal(t, project.ErrPhaseNotFound, err)

	_, err = svc.EditPhase(ctx, p.ID, 1, project.UpdatePhase{StartDate: timeline.NewInstant(date(2025, 1, 19, 0, 0))})
	assert.Contains(t, fieldMap(t, err), "phases[1].start_date")

	desc := "Build it"
	edited, err := svc.EditPhase(ctx, p.ID, 0, project.UpdatePhase{
		Name:        "Design",
		Description: &desc,
		EndDate:     timeline.NewInstant(date(2025, 1, 16, 23, 59)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Design", edited.Phases[0].Name)
	assert.Equal(t, "Build it", edited.Phases[0].Description)
	assert.True(t, edited.Phases[0].EvaluationWindow.End.Equal(date(2025, 1, 18, 23, 59)))

	_, err = svc.EditPhase(ctx, p.ID, 3, project.UpdatePhase{Name: "Nope"})
	assert.Equal(t, project.ErrPhaseNotFound, err)
	_, err = svc.EditPhase(ctx, "unknown", 0, project.UpdatePhase{Name: "Nope"})
	assert.Equal(t, project.ErrNotFound, err)
}

func TestServiceLocksArePruned(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p := scenario(t, svc)

	_, err := svc.EditPhase(ctx, "unknown", 0, project.UpdatePhase{Name: "Nope"})
	assert.Equal(t, project.ErrNotFound, err)
	assert.Equal(t, 0, project.HeldLocks(svc))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.EditPhase(ctx, p.ID, 0, project.UpdatePhase{Name: fmt.Sprintf("Design %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, project.HeldLocks(svc))

	// a waiter keeps the entry alive until it is done
	unlock := project.Lock(svc, p.ID)
	acquired := make(chan func())
	go func() { acquired <- project.Lock(svc, p.ID) }()
	assert.Equal(t, 1, project.HeldLocks(svc))
	unlock()
	(<-acquired)()
	assert.Equal(t, 0, project.HeldLocks(svc))

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.EditPhase(ctx, p.ID, 0, project.UpdatePhase{Name: "Gone"})
	assert.Equal(t, project.ErrNotFound, err)
	assert.Equal(t, 0, project.HeldLocks(svc))
}

func TestServiceChangeBufferPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p := scenario(t, svc)

	// the last phase would no longer leave room for its buffers
	_, err := svc.ChangeBufferPolicy(ctx, p.ID, project.UpdateBufferPolicy{BreathePhaseDays: intPtr(2)})
	assert.Contains(t, fieldMap(t, err), "phases[2].end_date")

	got, err := svc.ChangeBufferPolicy(ctx, p.ID, project.UpdateBufferPolicy{BreathePhaseDays: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, got.BreathePhaseDays)
	assert.True(t, got.Phases[1].Start.Equal(date(2025, 1, 20, 0, 0)), "phase 2 start = %v", got.Phases[1].Start)
	assert.True(t, got.Phases[2].Start.Equal(date(2025, 2, 9, 0, 0)), "phase 3 start = %v", got.Phases[2].Start)

	got, err = svc.ChangeBufferPolicy(ctx, p.ID, project.UpdateBufferPolicy{EvaluationPhaseDays: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, got.EvaluationPhaseDays)
	assert.True(t, got.Phases[1].Start.Equal(date(2025, 1, 20, 0, 0)), "evaluation changes do not move phases")
	assert.True(t, got.Phases[0].EvaluationWindow.End.Equal(date(2025, 1, 18, 23, 59)))
}

func TestServiceAppendAndTruncate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p := scenario(t, svc)

	_, _, err := svc.TruncatePhases(ctx, p.ID, 0)
	assert.Equal(t, project.ErrLastPhase, err)

	got, removed, err := svc.TruncatePhases(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Len(t, got.Phases, 2)
	require.Len(t, removed, 1)
	assert.True(t, got.Phases[1].BreatheWindow.End.Equal(date(2025, 2, 28, 23, 59)), "new last phase gets the elastic breathe window")

	got, err = svc.AppendPhase(ctx, p.ID, project.NewPhase{Name: "Polish", EndDate: timeline.NewInstant(date(2025, 2, 20, 23, 59))})
	require.NoError(t, err)
	require.Len(t, got.Phases, 3)
	assert.True(t, got.Phases[2].Start.Equal(date(2025, 2, 10, 0, 0)))

	_, err = svc.AppendPhase(ctx, p.ID, project.NewPhase{Name: "Late", EndDate: timeline.NewInstant(date(2025, 2, 27, 23, 59))})
	assert.Error(t, err)
}

func TestServiceUpdateAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p := scenario(t, svc)

	_, err := svc.Update(ctx, p.ID, project.UpdateProject{DueDate: timeline.NewInstant(date(2025, 2, 20, 0, 0))})
	assert.Contains(t, fieldMap(t, err), "phases[2].end_date")

	desc := "Build a calculator"
	got, err := svc.Update(ctx, p.ID, project.UpdateProject{
		Title:       "Scientific Calculator",
		Description: &desc,
		DueDate:     timeline.NewInstant(date(2025, 3, 10, 0, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Scientific Calculator", got.Title)
	assert.True(t, got.Phases[2].BreatheWindow.End.Equal(date(2025, 3, 9, 23, 59)))

	found, err := svc.Query(ctx, project.QueryFilter{Search: " SCIENTIFIC "})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = svc.Query(ctx, project.QueryFilter{CourseCode: "OOPR211"})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.Equal(t, project.ErrNotFound, err)
}

func TestServicePreviews(t *testing.T) {
	svc, _ := setup(t)

	phases, err := svc.PreviewAutoSet(project.AutoSetRequest{
		StartDate:     timeline.NewInstant(date(2025, 1, 1, 0, 0)),
		DueDate:       timeline.NewInstant(date(2025, 3, 1, 0, 0)),
		BufferPolicy:  timeline.BufferPolicy{EvaluationDays: 2, BreatheDays: 1},
		SpacingPolicy: timeline.SpacingPolicy{NumberOfPhases: 3, AutoSpacePhases: true},
	})
	require.NoError(t, err)
	assert.Len(t, phases, 3)

	res, err := svc.PreviewPreset(project.PresetRequest{
		CourseCode:   "FOPR111",
		Title:        "Basic Calculator App",
		StartDate:    timeline.NewInstant(date(2025, 1, 6, 8, 0)),
		BufferPolicy: timeline.BufferPolicy{EvaluationDays: 1, BreatheDays: 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Due.Equal(date(2025, 2, 2, 7, 59)))

	err = svc.ValidateEdit(project.ValidateEditRequest{
		Phases:       phases,
		Index:        1,
		StartDate:    timeline.NewInstant(date(2025, 1, 19, 0, 0)),
		EndDate:      timeline.NewInstant(date(2025, 1, 18, 0, 0)),
		BufferPolicy: timeline.BufferPolicy{EvaluationDays: 2, BreatheDays: 1},
	})
	fields := fieldMap(t, err)
	assert.Contains(t, fields, "phases[1].start_date")
	assert.Contains(t, fields, "phases[1].end_date")

	err = svc.ValidateEdit(project.ValidateEditRequest{Phases: phases, Index: 9, StartDate: timeline.NewInstant(date(2025, 1, 19, 0, 0)), EndDate: timeline.NewInstant(date(2025, 1, 20, 0, 0))})
	assert.Contains(t, fieldMap(t, err), "index")

	shifted := svc.Propagate(project.PropagateRequest{
		Phases:         phases,
		StartDate:      timeline.NewInstant(date(2025, 1, 1, 0, 0)),
		DueDate:        timeline.NewInstant(date(2025, 3, 1, 0, 0)),
		NewBreatheDays: 5,
		BufferPolicy:   timeline.BufferPolicy{EvaluationDays: 2, BreatheDays: 1},
	})
	assert.True(t, shifted[1].Start.Equal(phases[1].Start.Add(4*timeline.Day)))
}
