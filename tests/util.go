package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
	"github.com/trezcool/cadence/storage/database"
)

const postgresImage = "postgres:16-alpine"

var (
	sharedDB     *sql.DB
	sharedDBOnce sync.Once
	sharedDBErr  error
)

// PrepareDB returns a migrated PostgreSQL database shared by the whole test run, emptied for the caller.
// It needs Docker and is skipped in short mode.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	sharedDBOnce.Do(func() {
		sharedDB, sharedDBErr = startDB()
	})
	if sharedDBErr != nil {
		t.Fatalf("PrepareDB() failed: %v", sharedDBErr)
	}

	if _, err := sharedDB.Exec("TRUNCATE project CASCADE"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return sharedDB
}

func startDB() (*sql.DB, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "cadence_test",
				"POSTGRES_USER":     "cadence",
				"POSTGRES_PASSWORD": "cadence",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("getting container port: %w", err)
	}

	db, err := sql.Open("postgres", fmt.Sprintf(
		"postgres://cadence:cadence@%s:%s/cadence_test?sslmode=disable&timezone=utc", host, port.Port()))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// CreateProject stores a project with `phases` straight through `repo`, without any validation.
func CreateProject(
	t *testing.T,
	repo project.Repository,
	title string,
	window timeline.ProjectWindow,
	policy timeline.BufferPolicy,
	phases []timeline.Phase,
	createdAt ...time.Time,
) project.Project {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := project.Project{
		ID:                  uuid.NewString(),
		CourseCode:          "FOPR111",
		Title:               title,
		StartDate:           window.Start,
		DueDate:             window.Due,
		EvaluationPhaseDays: policy.EvaluationDays,
		BreathePhaseDays:    policy.BreatheDays,
		Phases:              timeline.AttachWindows(phases, policy, window.Due),
		CreatedAt:           tstamp,
		UpdatedAt:           tstamp,
	}
	p, err := repo.CreateProject(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return p
}
