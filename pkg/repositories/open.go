package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Open picks the repository implementation from the URL scheme:
// sqlite://<path> or postgres(ql)://<dsn>.
func Open(ctx context.Context, databaseURL string, clock clockwork.Clock) (Repository, error) {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return nil, fmt.Errorf("failed to parse database url %q: missing scheme", databaseURL)
	}

	switch scheme {
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("sqlite url needs a path")
		}
		return NewSQLiteRepository(ctx, rest, clock)
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, databaseURL, clock)
	default:
		return nil, fmt.Errorf("unknown database type %s", scheme)
	}
}

// Migrate brings the schema behind databaseURL up to date. SQLite
// databases are migrated when opened, so only Postgres needs this.
func Migrate(ctx context.Context, databaseURL string) error {
	scheme, _, _ := strings.Cut(databaseURL, "://")
	switch scheme {
	case "postgres", "postgresql":
		return MigratePostgres(databaseURL)
	case "sqlite":
		repo, err := Open(ctx, databaseURL, nil)
		if err != nil {
			return err
		}
		return repo.Close(ctx)
	default:
		return fmt.Errorf("unknown database type %s", scheme)
	}
}
