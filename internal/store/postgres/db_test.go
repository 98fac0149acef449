package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStatementTimeoutMS_ConfigOverride(t *testing.T) {
	resolved, err := resolveStatementTimeoutMS(Config{
		StatementTimeoutMS: 45000,
	})

	require.NoError(t, err)
	assert.Equal(t, 45000, resolved)
}

func TestResolveStatementTimeoutMS_ConfigInvalidValue(t *testing.T) {
	_, err := resolveStatementTimeoutMS(Config{
		StatementTimeoutMS: -1,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of allowed range")
}

func TestResolveStatementTimeoutMS_EnvFallback(t *testing.T) {
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "45000")

	resolved, err := resolveStatementTimeoutMS(Config{})
	require.NoError(t, err)
	assert.Equal(t, 45000, resolved)
}

func TestResolveStatementTimeoutMS_EnvInvalidValue(t *testing.T) {
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "invalid")

	_, err := resolveStatementTimeoutMS(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_STATEMENT_TIMEOUT_MS")
}

func TestResolveStatementTimeoutMS_EnvOutOfRange(t *testing.T) {
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "3600001")

	_, err := resolveStatementTimeoutMS(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be within")
}

func TestResolveStatementTimeoutMS_Default(t *testing.T) {
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "")

	resolved, err := resolveStatementTimeoutMS(Config{})
	require.NoError(t, err)
	assert.Equal(t, dbStatementTimeoutDefaultMS, resolved)
}

func TestAppendStatementTimeout(t *testing.T) {
	assert.Equal(t,
		"postgres://u:p@h/db?options=-c%20statement_timeout%3D5000",
		appendStatementTimeout("postgres://u:p@h/db", 5000))
	assert.Equal(t,
		"postgres://u:p@h/db?sslmode=disable&options=-c%20statement_timeout%3D5000",
		appendStatementTimeout("postgres://u:p@h/db?sslmode=disable", 5000))
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_pool_snapshots.up.sql", files[0])

	content, err := fs.ReadFile(Migrations(), files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS pool_snapshots")
	assert.Contains(t, string(content), "NUMERIC(78,0)")
}
