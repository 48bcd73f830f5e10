package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mind-engage/mindsprint/internal/bank"
	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/config"
	"github.com/mind-engage/mindsprint/internal/db"
	"github.com/mind-engage/mindsprint/internal/exam"
	syncx "github.com/mind-engage/mindsprint/internal/sync"
	"github.com/mind-engage/mindsprint/internal/users"
)

// app holds the stores and services shared by the commands.
type app struct {
	db       *sql.DB
	catalog  *catalog.SQLStore
	users    *users.SQLStore
	engine   *exam.Engine
	importer *bank.Importer
}

func openApp(ctx context.Context, cfg config.Config, lggr *zap.Logger) (*app, error) {
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	cat := catalog.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh, string(cfg.Mode))
	return &app{
		db:       dbh,
		catalog:  cat,
		users:    users.NewSQLStore(dbh),
		engine:   exam.NewEngine(exam.NewSQLStore(dbh, events), cat, exam.WithLogger(lggr.Named("exam"))),
		importer: bank.NewImporter(cat, lggr),
	}, nil
}

func (a *app) Close() error { return a.db.Close() }
