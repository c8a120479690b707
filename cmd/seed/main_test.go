package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/db"
)

func seedEnv(t *testing.T, appEnv string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.db")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", appEnv)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func TestRun_RefusesProduction(t *testing.T) {
	seedEnv(t, "production")

	err := run(db.SeedOptions{Users: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestRun_SeedsAndClosesDatabase(t *testing.T) {
	seedEnv(t, "development")

	require.NoError(t, run(db.SeedOptions{Users: 3, SwipesPerUser: 1}))

	database, err := db.NewDB(config.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	var users int64
	require.NoError(t, database.Model(&db.User{}).Count(&users).Error)
	assert.Equal(t, int64(3), users)
}
