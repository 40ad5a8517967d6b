package persistence

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spounge-ai/blitzfind/internal/infra/config"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateDirection selects which way Migrate moves the schema.
type MigrateDirection int

const (
	MigrateUp MigrateDirection = iota
	MigrateDown
)

func (d MigrateDirection) String() string {
	if d == MigrateDown {
		return "down"
	}
	return "up"
}

// ParseMigrateDirection accepts "up" or "down".
func ParseMigrateDirection(s string) (MigrateDirection, error) {
	switch s {
	case "up":
		return MigrateUp, nil
	case "down":
		return MigrateDown, nil
	default:
		return MigrateUp, fmt.Errorf("unknown migration direction %q", s)
	}
}

// Migrate applies the embedded migrations for the configured driver.
// It opens its own connection so closing the migrator never touches the store pool.
func Migrate(cfg config.PersistenceConfig, direction MigrateDirection, logger *slog.Logger) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	switch direction {
	case MigrateDown:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", verr)
	}
	logger.Info("schema migrated", "driver", cfg.Driver, "version", version, "dirty", dirty, "changed", err == nil)
	return nil
}

func newMigrator(cfg config.PersistenceConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		m, err := migrate.NewWithSourceInstance("iofs", src, pgxMigrateURL(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
		return m, nil
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", SQLiteDSN(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{DatabaseName: SQLitePath(cfg.URL)})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create sqlite migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			_ = drv.Close()
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// pgxMigrateURL rewrites a postgres URL to the scheme the pgx/v5 migrate driver registers.
func pgxMigrateURL(url string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}
