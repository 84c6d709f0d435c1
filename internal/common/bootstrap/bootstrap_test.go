package bootstrap

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "community-test-secret-0123456789abcdef"

func TestNewCommunityApp_MemoryTransportWithoutDirectory(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GROUP_TRANSPORT", "memory")

	app, err := NewCommunityApp(context.Background())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.UserRepo)
	assert.Nil(t, app.Redis)
	assert.Equal(t, "memory", app.Transport.Name())
	assert.Empty(t, app.HealthChecks())
}

func TestNewCommunityApp_SQLiteDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE accounts_user (id INTEGER PRIMARY KEY, username TEXT NOT NULL, is_active BOOLEAN NOT NULL DEFAULT 1)`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "sqlite://"+path)
	t.Setenv("GROUP_TRANSPORT", "memory")

	app, err := NewCommunityApp(context.Background())
	require.NoError(t, err)

	require.NotNil(t, app.UserRepo)
	checks := app.HealthChecks()
	require.Len(t, checks, 1)
	assert.Equal(t, "database", checks[0].Name)
	assert.NoError(t, checks[0].Check(context.Background()))
	assert.NoError(t, app.Close())
}

func TestNewCommunityApp_InvalidConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("GROUP_TRANSPORT", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := NewCommunityApp(context.Background())
	assert.Error(t, err)
}

func TestNewCommunityApp_UnreachableRedis(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GROUP_TRANSPORT", "redis")
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1/0")

	_, err := NewCommunityApp(context.Background())
	assert.Error(t, err)
}
