package database

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// RunMigrations applies every pending goose migration found in dir.
func RunMigrations(db *dbpg.DB, dir string) error {
	if db == nil || db.Master == nil {
		return fmt.Errorf("run migrations: no master connection")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	before, err := goose.GetDBVersion(db.Master)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("could not read schema version, assuming empty database")
	}
	if err := goose.Up(db.Master, dir); err != nil {
		return fmt.Errorf("apply migrations from %s: %w", dir, err)
	}
	after, err := goose.GetDBVersion(db.Master)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	zlog.Logger.Info().
		Str("dir", dir).
		Int64("from_version", before).
		Int64("to_version", after).
		Msg("Database migrations applied")
	return nil
}
