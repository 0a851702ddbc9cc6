package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erp/reconciliation/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reception index", "add_reception_index"},
		{"Add-Reception-Index", "add_reception_index"},
		{"add__reception__index", "add_reception_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterHighestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_init.up.sql", "000001_init.down.sql", "000007_gap.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- x"), 0o644))
	}

	mf, err := CreateMigration(dir, "Add reception notes", "notes column")
	require.NoError(t, err)
	assert.Equal(t, "000008", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000008_add_reception_notes.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000008_add_reception_notes.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add_reception_notes")
	assert.Contains(t, string(up), "notes column")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(down), "-- Rollback of add_reception_notes"))
}

func TestCreateMigration_CreatesDirectoryAndRejectsEmptyName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "first", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	_, err = CreateMigration(dir, "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"000002_receptions.up.sql", "000002_receptions.down.sql",
		"000001_orders.up.sql", "000001_orders.down.sql",
		"README.md", ".gitkeep",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.up.sql"), 0o755))

	got, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_orders", "000002_receptions"}, got)

	missing, err := ListMigrations(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEmbeddedSchemaIsPaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrations.FS, down)
		assert.NoError(t, err, "missing rollback for %s", up)
	}

	var schema strings.Builder
	for _, up := range ups {
		body, err := fs.ReadFile(migrations.FS, up)
		require.NoError(t, err)
		schema.Write(body)
	}
	for _, table := range []string{"purchase_orders", "purchase_order_lines", "receptions", "reception_lines", "sequence_counters"} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
