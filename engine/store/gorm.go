// Package store implements the relational persistence layer on gorm.
// Repositories hold plain structs with explicit foreign-key ids; callers
// resolve relationships through repository lookups, never implicit traversal.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRecordNotFound is returned when a row does not exist.
var ErrRecordNotFound = errors.New("record not found")

// DBConfig is the subset of configuration needed to open the database.
type DBConfig struct {
	Type     string
	Hostname string
	Port     int
	Name     string
	User     string
	Password string
}

// InitDB opens a gorm handle for the configured dialect. "pgsql" selects
// postgres; anything else opens Name as a sqlite file (":memory:" for tests).
func InitDB(cfg DBConfig, log *slog.Logger) (*gorm.DB, error) {
	var dia gorm.Dialector
	if cfg.Type == "pgsql" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d dbname=%s",
			cfg.Hostname, cfg.User, cfg.Password, cfg.Port, cfg.Name)
		dia = postgres.Open(dsn)
	} else {
		dia = sqlite.Open(cfg.Name)
	}

	gormLog := logger.New(slogWriter{log: log}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})

	db, err := gorm.Open(dia, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("configure connections: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Channel{},
		&VehicleChannel{},
		&RawComment{},
		&ProductFeature{},
		&ProcessedComment{},
		&ProcessingJob{},
		&TaskResult{},
	)
}

// Ping verifies database connectivity.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// slogWriter adapts slog to gorm's logger.Writer interface.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}
