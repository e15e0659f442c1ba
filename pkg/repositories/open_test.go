package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "sqlite://:memory:", nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close(ctx))

	tests := []struct {
		name string
		url  string
	}{
		{name: "no scheme", url: "cardroom.db"},
		{name: "empty sqlite path", url: "sqlite://"},
		{name: "unknown scheme", url: "mysql://localhost/cardroom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.url, nil)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_sqliteFile(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "cardroom.db")

	require.NoError(t, Migrate(ctx, url))
	// a second run finds nothing to do
	require.NoError(t, Migrate(ctx, url))
	assert.Error(t, Migrate(ctx, "mysql://localhost/cardroom"))
}
