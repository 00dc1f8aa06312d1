package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"account-portal/internal/backup"
	"account-portal/internal/config"
	"account-portal/internal/metrics"
	"account-portal/internal/repository"
	"account-portal/internal/repository/memory"
	"account-portal/internal/repository/postgres"
	"account-portal/internal/repository/sqlite"
)

// stores bundles the repositories of the configured database driver.
type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	health   metrics.HealthCheck
	migrate  func(ctx context.Context) error
	// snapshot is nil for drivers that cannot be backed up.
	snapshot backup.SnapshotFunc
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("path", cfg.Database.Path).Wrap(err)
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return &stores{
			users:    sqlite.NewUserRepository(db),
			sessions: sqlite.NewSessionRepository(db),
			health:   db.PingContext,
			migrate:  func(context.Context) error { return sqlite.Migrate(db) },
			snapshot: func(ctx context.Context, dest string) error { return sqlite.Snapshot(ctx, db, dest) },
			close:    func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
		}
		logger.Info("using postgres database")
		dsn := cfg.Database.DSN
		return &stores{
			users:    postgres.NewUserRepository(pool),
			sessions: postgres.NewSessionRepository(pool),
			health:   pool.Ping,
			migrate:  func(context.Context) error { return postgres.Migrate(dsn) },
			close:    pool.Close,
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, accounts are lost on restart")
		return &stores{
			users:    memory.NewUserRepository(),
			sessions: memory.NewSessionRepository(),
			health:   func(context.Context) error { return nil },
			migrate:  func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	return nil, oops.Code("CONFIG_INVALID").Errorf("unknown database driver %q", cfg.Database.Driver)
}
