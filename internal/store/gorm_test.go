// ABOUTME: Tests for the gorm store using gorm's sqlite dialect
// ABOUTME: Runs the shared conformance suite against the same models Postgres uses

package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func setupGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", filepath.Join(t.TempDir(), "gorm.db"))

	store, err := NewGormStore(sqlite.Open(dsn), nil)
	require.NoError(t, err)

	sqlDB, err := store.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestGormStore_Conformance(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) ConversationStore {
		return setupGormStore(t)
	})
}
