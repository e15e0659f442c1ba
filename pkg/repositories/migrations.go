package repositories

import (
	"embed"
	"errors"
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// MigratePostgres applies all pending Postgres migrations.
// databaseURL must use the postgres:// or postgresql:// scheme.
func MigratePostgres(databaseURL string) error {
	source, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("Postgres schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %v", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %v", err)
	}
	log.Info("Postgres schema migrated to version %d", version)
	return nil
}
