// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"os"
	"testing"

	"codeberg.org/oliverandrich/newsletter/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db interface {
	Get(dest any, query string, args ...any) error
}, name string) bool {
	t.Helper()
	var count int64
	err := db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", name)
	require.NoError(t, err)
	return count == 1
}

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	require.NoError(t, err)
}

func TestOpen_DefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	db, err := database.Open("")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	for _, table := range []string{"users", "subscriptions", "subscription_tokens"} {
		assert.True(t, tableExists(t, db, table), "table %s missing", table)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var enabled int
	require.NoError(t, db.Get(&enabled, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, enabled)
}

func TestOpen_WithExistingParams(t *testing.T) {
	db, err := database.Open(":memory:?_pragma=busy_timeout(1000)")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()

	var timeout int
	require.NoError(t, db.Get(&timeout, "PRAGMA busy_timeout"))
	assert.Equal(t, 1000, timeout)
}

func TestOpen_FileDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/subdir/test.db"

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	assert.True(t, tableExists(t, db, "subscriptions"))

	var journalMode string
	require.NoError(t, db.Get(&journalMode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrateReset(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	version, err := database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	require.NoError(t, database.MigrateReset(db.DB))
	assert.False(t, tableExists(t, db, "subscriptions"))

	require.NoError(t, database.RunMigrations(db.DB))
	assert.True(t, tableExists(t, db, "subscriptions"))
}

func TestConnect_LeavesSchemaAlone(t *testing.T) {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	assert.False(t, tableExists(t, db, "subscriptions"))

	require.NoError(t, database.RunMigrations(db.DB))
	assert.True(t, tableExists(t, db, "subscription_tokens"))
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateDown(db.DB))

	version, err := database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.False(t, tableExists(t, db, "subscription_tokens"))
	assert.True(t, tableExists(t, db, "subscriptions"))
}
