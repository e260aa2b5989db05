package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
)

type (
	projectRow struct {
		ID                  string    `db:"id"`
		CourseCode          string    `db:"course_code"`
		Title               string    `db:"title"`
		Description         string    `db:"description"`
		StartDate           time.Time `db:"start_date"`
		DueDate             null.Time `db:"due_date"`
		EvaluationPhaseDays int       `db:"evaluation_phase_days"`
		BreathePhaseDays    int       `db:"breathe_phase_days"`
		NotifyEmails        string    `db:"notify_emails"`
		CreatedAt           time.Time `db:"created_at"`
		UpdatedAt           time.Time `db:"updated_at"`
	}

	phaseRow struct {
		ProjectID       string    `db:"project_id"`
		Position        int       `db:"position"`
		Name            string    `db:"name"`
		Description     string    `db:"description"`
		StartDate       time.Time `db:"start_date"`
		EndDate         time.Time `db:"end_date"`
		EvaluationStart time.Time `db:"evaluation_start"`
		EvaluationEnd   time.Time `db:"evaluation_end"`
		BreatheStart    time.Time `db:"breathe_start"`
		BreatheEnd      time.Time `db:"breathe_end"`
	}

	projectRepository struct {
		db *sqlx.DB
	}
)

var _ project.Repository = (*projectRepository)(nil)

// orderColumns maps project.OrderingFields to columns.
var orderColumns = map[string]string{
	"title":       "lower(title)",
	"course_code": "course_code",
	"start_date":  "start_date",
	"due_date":    "due_date",
	"created_at":  "created_at",
}

func NewProjectRepository(db *sql.DB) project.Repository {
	return &projectRepository{db: sqlx.NewDb(db, "postgres")}
}

func toRow(p project.Project) projectRow {
	row := projectRow{
		ID:                  p.ID,
		CourseCode:          p.CourseCode,
		Title:               p.Title,
		Description:         p.Description,
		StartDate:           p.StartDate,
		EvaluationPhaseDays: p.EvaluationPhaseDays,
		BreathePhaseDays:    p.BreathePhaseDays,
		NotifyEmails:        strings.Join(p.NotifyEmails, ","),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if !p.DueDate.IsZero() {
		row.DueDate = null.TimeFrom(p.DueDate)
	}
	return row
}

func (row projectRow) project(phases []phaseRow) project.Project {
	p := project.Project{
		ID:                  row.ID,
		CourseCode:          row.CourseCode,
		Title:               row.Title,
		Description:         row.Description,
		StartDate:           timeline.Naive(row.StartDate),
		EvaluationPhaseDays: row.EvaluationPhaseDays,
		BreathePhaseDays:    row.BreathePhaseDays,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
	if row.DueDate.Valid {
		p.DueDate = timeline.Naive(row.DueDate.Time)
	}
	if row.NotifyEmails != "" {
		p.NotifyEmails = strings.Split(row.NotifyEmails, ",")
	}

	p.Phases = make([]timeline.Phase, 0, len(phases))
	for _, ph := range phases {
		p.Phases = append(p.Phases, ph.phase())
	}
	return p
}

func toPhaseRow(projectID string, position int, ph timeline.Phase) phaseRow {
	return phaseRow{
		ProjectID:       projectID,
		Position:        position,
		Name:            ph.Name,
		Description:     ph.Description,
		StartDate:       ph.Start,
		EndDate:         ph.End,
		EvaluationStart: ph.EvaluationWindow.Start,
		EvaluationEnd:   ph.EvaluationWindow.End,
		BreatheStart:    ph.BreatheWindow.Start,
		BreatheEnd:      ph.BreatheWindow.End,
	}
}

// phase returns the stored phase with its windows as they were saved.
func (row phaseRow) phase() timeline.Phase {
	return timeline.Phase{
		Index:            row.Position,
		Name:             row.Name,
		Description:      row.Description,
		Start:            timeline.Naive(row.StartDate),
		End:              timeline.Naive(row.EndDate),
		EvaluationWindow: timeline.Window{Start: timeline.Naive(row.EvaluationStart), End: timeline.Naive(row.EvaluationEnd)},
		BreatheWindow:    timeline.Window{Start: timeline.Naive(row.BreatheStart), End: timeline.Naive(row.BreatheEnd)},
	}
}

func (repo *projectRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func insertPhases(ctx context.Context, tx *sqlx.Tx, p project.Project) error {
	for i, ph := range p.Phases {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO project_phase (project_id, position, name, description, start_date, end_date,
			                           evaluation_start, evaluation_end, breathe_start, breathe_end)
			VALUES (:project_id, :position, :name, :description, :start_date, :end_date,
			        :evaluation_start, :evaluation_end, :breathe_start, :breathe_end)`, toPhaseRow(p.ID, i, ph))
		if err != nil {
			return errors.Wrapf(err, "inserting phase %d", i)
		}
	}
	return nil
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO project (id, course_code, title, description, start_date, due_date,
			                     evaluation_phase_days, breathe_phase_days, notify_emails, created_at, updated_at)
			VALUES (:id, :course_code, :title, :description, :start_date, :due_date,
			        :evaluation_phase_days, :breathe_phase_days, :notify_emails, :created_at, :updated_at)`, toRow(p))
		if err != nil {
			return errors.Wrap(err, "inserting project")
		}
		return insertPhases(ctx, tx, p)
	})
	if err != nil {
		return project.Project{}, err
	}
	return repo.GetProjectByID(ctx, p.ID)
}

func (repo *projectRepository) phases(ctx context.Context, ids ...string) (map[string][]phaseRow, error) {
	byProject := make(map[string][]phaseRow, len(ids))
	if len(ids) == 0 {
		return byProject, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM project_phase WHERE project_id IN (?) ORDER BY project_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building phases query")
	}
	var rows []phaseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting phases")
	}
	for _, row := range rows {
		byProject[row.ProjectID] = append(byProject[row.ProjectID], row)
	}
	return byProject, nil
}

func (repo *projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var row projectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM project WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, errors.Wrap(err, "selecting project")
	}
	phases, err := repo.phases(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	return row.project(phases[id]), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CourseCode != "" {
		args = append(args, strings.ToUpper(filter.CourseCode))
		where = append(where, "course_code = ?")
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
		where = append(where, "(title ILIKE ? OR description ILIKE ?)")
	}

	q := `SELECT * FROM project`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	ords := filter.Orderings()
	orderBy := make([]string, 0, len(ords)+1)
	for _, ord := range ords {
		dir := "DESC"
		if ord.Ascending {
			dir = "ASC"
		}
		orderBy = append(orderBy, orderColumns[ord.Field]+" "+dir)
	}
	q += ` ORDER BY ` + strings.Join(append(orderBy, "id"), ", ")

	var rows []projectRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	phases, err := repo.phases(ctx, ids...)
	if err != nil {
		return nil, err
	}

	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.project(phases[row.ID]))
	}
	return projects, nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE project SET
				title = :title, description = :description, start_date = :start_date, due_date = :due_date,
				evaluation_phase_days = :evaluation_phase_days, breathe_phase_days = :breathe_phase_days,
				notify_emails = :notify_emails, updated_at = :updated_at
			WHERE id = :id`, toRow(p))
		if err != nil {
			return errors.Wrap(err, "updating project")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return project.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_phase WHERE project_id = $1`, p.ID); err != nil {
			return errors.Wrap(err, "deleting phases")
		}
		return insertPhases(ctx, tx, p)
	})
	if err != nil {
		return project.Project{}, err
	}
	return repo.GetProjectByID(ctx, p.ID)
}

func (repo *projectRepository) DeleteProjectsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM project WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	return errors.Wrap(err, "deleting projects")
}
