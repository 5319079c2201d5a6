package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sqliteDialect = "sqlite3"
	migrationsDir = "sql"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// gooseLogger routes goose output through zerolog. A nil logger means the
// global zerolog logger at the time of the call.
type gooseLogger struct {
	log *zerolog.Logger
}

func (l gooseLogger) logger() *zerolog.Logger {
	if l.log != nil {
		return l.log
	}
	return &log.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger().Info().Str("component", "migrations").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger().Fatal().Str("component", "migrations").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// SetLogger sends goose progress output to logger.
func SetLogger(logger zerolog.Logger) {
	goose.SetLogger(gooseLogger{log: &logger})
}

func init() {
	goose.SetLogger(gooseLogger{})
}

// Up runs all pending SQL migrations embedded in the binary.
func Up(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)

	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}

// Version reports the schema version currently applied to db.
func Version(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrationFS)

	if err := goose.SetDialect(sqliteDialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}

	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read goose db version: %w", err)
	}
	return v, nil
}
