package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"add owner index":    "add_owner_index",
		"Add-Owner--Index":   "add_owner_index",
		"  trim__me_  ":      "trim_me",
		"debts: v2 (legacy)": "debts_v2_legacy",
		"!!!":                "",
	}
	for input, want := range tests {
		assert.Equal(t, want, sanitizeName(input), input)
	}
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_debts.up.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_debts.down.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "embed.go"), nil, 0o644))

	mf, err := CreateMigration(dir, "Add payment index")
	require.NoError(t, err)

	assert.Equal(t, uint(2), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_payment_index.up.sql"), mf.UpPath)
	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)

	content, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "add_payment_index (rollback)")

	files, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "create_debts", files[0].Name)
	assert.Equal(t, uint(2), files[1].Version)
}

func TestCreateMigration_EmptyDirStartsAtOne(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")

	mf, err := CreateMigration(dir, "init")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)
}

func TestCreateMigration_RejectsUnusableName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "???")
	assert.Error(t, err)
}

func TestListMigrations_MissingDir(t *testing.T) {
	files, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
