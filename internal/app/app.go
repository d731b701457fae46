// Package app wires configuration, storage and services together for the
// server and the CLI.
package app

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/logger"
	"club-reconciliation-backend/internal/services/importer"
	"club-reconciliation-backend/internal/services/ingest"
	"club-reconciliation-backend/internal/services/reconciliation"
)

type App struct {
	Config         *config.App
	DB             *gorm.DB
	Log            zerolog.Logger
	Reconciliation *reconciliation.ReconciliationService
	History        *importer.HistoryImporter

	ownsDB bool
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *config.Log) zerolog.Logger {
	if cfg.Format == "json" {
		return logger.NewJSON(cfg.Level)
	}
	return logger.New(cfg.Level)
}

// New opens the configured database and builds the services on top of it.
func New(cfg *config.App) (*App, error) {
	log := NewLogger(cfg.Log)
	db, err := config.InitDB(cfg.DB)
	if err != nil {
		return nil, err
	}
	a, err := NewWithDB(cfg, db, log)
	if err != nil {
		return nil, err
	}
	a.ownsDB = true
	return a, nil
}

// NewWithDB builds the services on an already opened database, which the
// caller keeps ownership of.
func NewWithDB(cfg *config.App, db *gorm.DB, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Bookkeeping.Location()
	if err != nil {
		return nil, err
	}
	format, err := cfg.Bookkeeping.Format()
	if err != nil {
		return nil, err
	}
	parser, err := ingest.NewParser(*format, loc, cfg.Bookkeeping.Importer)
	if err != nil {
		return nil, fmt.Errorf("building %s parser: %w", format.Name, err)
	}

	return &App{
		Config:         cfg,
		DB:             db,
		Log:            log,
		Reconciliation: reconciliation.NewReconciliationService(db, ingest.NewIngestor(parser, log), log),
		History:        importer.NewHistoryImporter(db, log),
	}, nil
}

// Close releases the database connection opened by New.
func (a *App) Close() error {
	if !a.ownsDB {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
