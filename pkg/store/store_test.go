package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "papyrus-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()

	s, err := New(Config{DSN: "file:" + tmpFile.Name() + "?mode=rwc"})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
		os.Remove(tmpFile.Name())
	})
	return s
}

func TestStore_InitSchema(t *testing.T) {
	s := setupTestStore(t)

	var count int
	err := s.conn.Get(&count, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name IN ('feeds', 'articles')
	`)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(nil))
	assert.False(t, isLockError(assert.AnError))
	assert.True(t, isLockError(errString("database is locked")))
	assert.True(t, isLockError(errString("SQLITE_BUSY: db busy")))
}

type errString string

func (e errString) Error() string { return string(e) }
