package main

import (
	"database/sql"

	"github.com/trezcool/goose"

	"github.com/trezcool/cadence/fs"
	"github.com/trezcool/cadence/storage/database"
)

// mockable
var (
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		return goose.RunFS(command, db, appfs.FS, dir, args...)
	}
	checkSchemaFunc = database.CheckSchema
)

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.MigrationsDir, arguments...)
}
