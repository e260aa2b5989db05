package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
	"github.com/trezcool/cadence/tests"
)

func newRepo(t *testing.T) project.Repository {
	t.Helper()
	db, err := Open()
	require.NoError(t, err)
	return NewProjectRepository(db)
}

func sampleTimeline(t *testing.T) (timeline.ProjectWindow, timeline.BufferPolicy, []timeline.Phase) {
	t.Helper()
	window := timeline.ProjectWindow{
		Start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Due:   time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	policy := timeline.BufferPolicy{EvaluationDays: 2, BreatheDays: 1}
	phases, err := timeline.Allocate(window, policy, timeline.SpacingPolicy{NumberOfPhases: 3, AutoSpacePhases: true})
	require.NoError(t, err)
	return window, policy, phases
}

func TestProjectRepository_isolation(t *testing.T) {
	repo := newRepo(t)
	window, policy, phases := sampleTimeline(t)
	p := testutil.CreateProject(t, repo, "Calculator", window, policy, phases)

	// changing what the caller holds leaves the stored project alone
	p.Phases[0].Name = "changed"
	got, err := repo.GetProjectByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", got.Phases[0].Name)

	_, err = repo.GetProjectByID(context.Background(), "unknown")
	assert.Equal(t, project.ErrNotFound, err)
}

func TestProjectRepository_update(t *testing.T) {
	repo := newRepo(t)
	window, policy, phases := sampleTimeline(t)
	created := time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testutil.CreateProject(t, repo, "Calculator", window, policy, phases, created)

	p.Title = "Scientific Calculator"
	p.Phases = p.Phases[:2]
	p.CreatedAt = time.Now()
	got, err := repo.UpdateProject(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Scientific Calculator", got.Title)
	assert.Len(t, got.Phases, 2)
	assert.True(t, got.CreatedAt.Equal(created))

	_, err = repo.UpdateProject(context.Background(), project.Project{ID: "unknown"})
	assert.Equal(t, project.ErrNotFound, err)
}

func TestProjectRepository_QueryProjects(t *testing.T) {
	repo := newRepo(t)
	window, policy, phases := sampleTimeline(t)
	base := time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC)
	calc := testutil.CreateProject(t, repo, "Calculator", window, policy, phases, base)
	payroll := testutil.CreateProject(t, repo, "Payroll", window, policy, phases, base.Add(time.Hour))
	averages := testutil.CreateProject(t, repo, "Grade averages", window, policy, phases, base.Add(2*time.Hour))

	tests := []struct {
		name   string
		filter project.QueryFilter
		want   []string
	}{
		{name: "newest first by default", want: []string{averages.ID, payroll.ID, calc.ID}},
		{name: "by title", filter: project.QueryFilter{Ordering: "title"}, want: []string{calc.ID, averages.ID, payroll.ID}},
		{name: "by title descending", filter: project.QueryFilter{Ordering: "-title"}, want: []string{payroll.ID, averages.ID, calc.ID}},
		{name: "search", filter: project.QueryFilter{Search: "CALC"}, want: []string{calc.ID}},
		{name: "course code", filter: project.QueryFilter{CourseCode: "fopr111", Search: "pay"}, want: []string{payroll.ID}},
		{name: "no match", filter: project.QueryFilter{CourseCode: "XXXX999"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects, err := repo.QueryProjects(context.Background(), tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(projects))
			for _, p := range projects {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	require.NoError(t, repo.DeleteProjectsByID(context.Background(), calc.ID, payroll.ID))
	projects, err := repo.QueryProjects(context.Background(), project.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, averages.ID, projects[0].ID)
}
