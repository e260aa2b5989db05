package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/cadence/apps/api/echo"
	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/fs"
	"github.com/trezcool/cadence/services/email"
	"github.com/trezcool/cadence/services/logger"
	"github.com/trezcool/cadence/storage/database"
	"github.com/trezcool/cadence/storage/database/inmem"
	"github.com/trezcool/cadence/storage/database/sqlx"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		return err
	}

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return err
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer func() { _ = logger.Sync() }()
	logger.Debug("error reporting", map[string]interface{}{"rollbar": logger.Enabled()})

	tmpls, err := core.ParseTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, conf.Debug)
	if err != nil {
		return err
	}

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, tmpls, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, tmpls, logger)
	}

	catalog, err := preset.Default()
	if err != nil {
		return err
	}

	repo, closeRepo, err := setUpRepo(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	projectSvc := project.NewService(repo, mailSvc, catalog, conf.Scheduler)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:        conf.Server.Address(),
			Debug:          conf.Debug,
			DisableReqLogs: conf.Server.DisableReqLogs,
			Logger:         logger,
			Shutdown:       shutdown,
		},
		&echoapi.Deps{
			ProjectSvc: projectSvc,
			Catalog:    catalog,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address())
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

func setUpRepo(conf *core.Config) (project.Repository, func() error, error) {
	if conf.Database.Storage == "memory" {
		mem, err := inmemdb.Open()
		if err != nil {
			return nil, nil, err
		}
		return inmemdb.NewProjectRepository(mem), func() error { return nil }, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return nil, nil, err
	}
	return sqlxrepos.NewProjectRepository(db), db.Close, nil
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.CheckSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
