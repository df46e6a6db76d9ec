package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config")

const (
	defaultConnectRetries = 15
	defaultConnectDelay   = 3 * time.Second
)

// Connect opens the master and any comma-separated slaves from cfg, retrying
// until the master answers a ping.
func Connect(cfg *config.DatabaseConfig) (*dbpg.DB, error) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	delay := time.Duration(cfg.ConnectRetryDelaySec) * time.Second
	if delay <= 0 {
		delay = defaultConnectDelay
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
	}
	return connectWithRetries(cfg.DSN, slaveDSNs(cfg.Slaves), opts, retries, delay)
}

// slaveDSNs parses the comma-separated slave list, skipping blank entries.
func slaveDSNs(list string) []string {
	var dsns []string
	for _, dsn := range strings.Split(list, ",") {
		if dsn = strings.TrimSpace(dsn); dsn != "" {
			dsns = append(dsns, dsn)
		}
	}
	return dsns
}

func connectWithRetries(masterDSN string, slaves []string, opts *dbpg.Options, retries int, delay time.Duration) (*dbpg.DB, error) {
	var (
		database *dbpg.DB
		err      error
	)
	for i := 0; i < retries; i++ {
		zlog.Logger.Info().Msgf("Database connection attempt %d/%d", i+1, retries)

		database, err = dbpg.New(masterDSN, slaves, opts)
		switch {
		case err != nil:
			zlog.Logger.Warn().Err(err).Msgf("dbpg.New failed on attempt %d/%d", i+1, retries)
		case database.Master == nil:
			err = fmt.Errorf("database.Master is nil")
			zlog.Logger.Warn().Err(err).Msgf("nil master connection on attempt %d/%d", i+1, retries)
		default:
			if err = database.Master.Ping(); err == nil {
				zlog.Logger.Info().Int("slaves", len(slaves)).Msg("Database connection established successfully")
				return database, nil
			}
			zlog.Logger.Warn().Err(err).Msgf("db ping failed on attempt %d/%d", i+1, retries)
			Close(database)
		}

		if i < retries-1 {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d retries: %w", retries, err)
}

// Close closes the master and every slave connection.
func Close(database *dbpg.DB) {
	if database == nil {
		return
	}
	if database.Master != nil {
		if err := database.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("closing db master failed")
		}
	}
	for i, s := range database.Slaves {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave_index", i).Msg("closing db slave failed")
		}
	}
}
