package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/avstrong/slotbooking/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrateURL rewrites a postgres DSN for the golang-migrate pgx/v5 driver.
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}

	return dsn
}

// Migrate applies the embedded schema migrations.
func Migrate(l *logger.Logger, dsn string) (err error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run up migrations: %w", err)
	}

	version, dirty, vErr := m.Version()
	if vErr == nil {
		l.LogInfo("Postgres schema at version %d (dirty: %v)", version, dirty)
	}

	return nil
}
