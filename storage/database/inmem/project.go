package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
)

type projectRepository struct {
	db *projectTable
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db.project}
}

// clone keeps stored projects away from callers.
func clone(p project.Project) project.Project {
	p.Phases = timeline.Clone(p.Phases)
	if p.NotifyEmails != nil {
		p.NotifyEmails = append([]string(nil), p.NotifyEmails...)
	}
	return p
}

func (repo *projectRepository) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := clone(p)
	repo.db.table[p.ID] = &stored
	return clone(stored), nil
}

func (repo *projectRepository) GetProjectByID(_ context.Context, id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return clone(*p), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter project.QueryFilter) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	projects := make([]project.Project, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if filter.CourseCode != "" && !strings.EqualFold(p.CourseCode, filter.CourseCode) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		projects = append(projects, clone(*p))
	}

	ords := filter.Orderings()
	sort.SliceStable(projects, func(i, j int) bool {
		for _, ord := range ords {
			c := compare(projects[i], projects[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

func compare(a, b project.Project, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "course_code":
		return strings.Compare(a.CourseCode, b.CourseCode)
	case "start_date":
		return a.StartDate.Compare(b.StartDate)
	case "due_date":
		return a.DueDate.Compare(b.DueDate)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (repo *projectRepository) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[p.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	stored := clone(p)
	stored.CreatedAt = orig.CreatedAt
	repo.db.table[p.ID] = &stored
	return clone(stored), nil
}

func (repo *projectRepository) DeleteProjectsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
