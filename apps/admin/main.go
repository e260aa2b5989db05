package main

import (
	"fmt"
	"os"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/services/logger"
	"github.com/trezcool/cadence/storage/database"
	"github.com/trezcool/cadence/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger = logsvc.WrapZap(zl.Zap().Named("admin"))
	defer func() { _ = logger.Sync() }()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	catalog, err := preset.Default()
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:       db,
		repo:     sqlxrepos.NewProjectRepository(db),
		catalog:  catalog,
		defaults: conf.Scheduler,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
