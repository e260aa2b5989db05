package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/fs"
)

// schemaColumns lists the columns the project repository reads and writes, per table.
var schemaColumns = map[string][]string{
	"project": {
		"id", "course_code", "title", "description", "start_date", "due_date",
		"evaluation_phase_days", "breathe_phase_days", "notify_emails", "created_at", "updated_at",
	},
	"project_phase": {
		"project_id", "position", "name", "description", "start_date", "end_date",
		"evaluation_start", "evaluation_end", "breathe_start", "breathe_end",
	},
}

// SchemaError reports a database that is not at the schema the binaries ship with.
type SchemaError struct {
	Version int64
	Latest  int64
	Missing []string // "table.column"
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("database schema at version %d, want %d", e.Version, e.Latest)
	if len(e.Missing) > 0 {
		msg += "; missing " + strings.Join(e.Missing, ", ")
	}
	return msg + ": run `admin migrate up`"
}

// dsn builds the connection string to `dbName`, as the admin role when asked and configured.
func dsn(conf *core.Config, dbName string, admin bool) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	q := make(url.Values)
	q.Set("sslmode", "require")
	if conf.Database.DisableTLS {
		q.Set("sslmode", "disable")
	}
	// phase instants are wall-clock values: the session must not shift them
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func connect(ctx context.Context, conf *core.Config, dbName string, admin bool) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, dbName, admin))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the app database and waits for it to be ready.
func Open(conf *core.Config) (*sql.DB, error) {
	return connect(context.Background(), conf, conf.Database.Name, false)
}

// waitReady pings the database until it answers, waiting 100ms longer between each attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	const maxAttempts = 30
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, "SELECT EXISTS ("+query+")", args...).Scan(&found)
	return found, err
}

// CreateIfNotExist creates the app role (as the admin role) then the app database (as the app role).
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()

	if conf.Database.User != "" {
		admin, err := connect(ctx, conf, "postgres", true)
		if err != nil {
			return err
		}
		err = createRole(ctx, admin, conf.Database.User, conf.Database.Password)
		_ = admin.Close()
		if err != nil {
			return err
		}
	}

	db, err := connect(ctx, conf, "postgres", false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return createDatabase(ctx, db, conf.Database.Name)
}

func createRole(ctx context.Context, db *sql.DB, name, password string) error {
	found, err := exists(ctx, db, "SELECT 1 FROM pg_roles WHERE rolname = $1", name)
	if err != nil {
		return errors.Wrap(err, "checking app role")
	}
	if found {
		return nil
	}
	q := fmt.Sprintf("CREATE ROLE %s LOGIN CREATEDB ENCRYPTED PASSWORD %s", pq.QuoteIdentifier(name), pq.QuoteLiteral(password))
	_, err = db.ExecContext(ctx, q)
	return errors.Wrap(err, "creating app role")
}

func createDatabase(ctx context.Context, db *sql.DB, name string) error {
	found, err := exists(ctx, db, "SELECT 1 FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return errors.Wrap(err, "checking database")
	}
	if found {
		return nil
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	if err := goose.RunFS("up", db, appfs.FS, appfs.MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// LatestVersion is the version of the last embedded migration.
func LatestVersion() (int64, error) {
	migrations, err := goose.CollectMigrations(appfs.FS, appfs.MigrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return 0, errors.Wrap(err, "collecting migrations")
	}
	last, err := migrations.Last()
	if err != nil {
		return 0, errors.Wrap(err, "collecting migrations")
	}
	return last.Version, nil
}

// CheckSchema returns a *SchemaError when `db` lags behind the embedded migrations
// or misses a column the project repository needs.
func CheckSchema(db *sql.DB) error {
	latest, err := LatestVersion()
	if err != nil {
		return err
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return errors.Wrap(err, "reading schema version")
	}
	missing, err := missingColumns(context.Background(), db, schemaColumns)
	if err != nil {
		return err
	}
	if version < latest || len(missing) > 0 {
		return &SchemaError{Version: version, Latest: latest, Missing: missing}
	}
	return nil
}

func missingColumns(ctx context.Context, db *sql.DB, want map[string][]string) ([]string, error) {
	tables := make([]string, 0, len(want))
	for table := range want {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var missing []string
	for _, table := range tables {
		rows, err := db.QueryContext(ctx,
			"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1", table)
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s columns", table)
		}
		have := make(map[string]bool)
		for rows.Next() {
			var col string
			if err = rows.Scan(&col); err != nil {
				_ = rows.Close()
				return nil, errors.Wrapf(err, "listing %s columns", table)
			}
			have[col] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s columns", table)
		}

		for _, col := range want[table] {
			if !have[col] {
				missing = append(missing, table+"."+col)
			}
		}
	}
	return missing, nil
}
