// Package testutil holds helpers shared by database-backed tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/models"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Per-test in-memory database so tests do not see each other's rows.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// SeedMember stores a member with the given number.
func SeedMember(t *testing.T, db *gorm.DB, number int, name string) *models.Member {
	t.Helper()
	m := &models.Member{ID: uuid.New(), Number: number, Name: name}
	require.NoError(t, db.Create(m).Error)
	return m
}

// SeedDebitor stores a debitor with two literal tokens.
func SeedDebitor(t *testing.T, db *gorm.DB, name, token1, token2 string) *models.Debitor {
	t.Helper()
	d := &models.Debitor{ID: uuid.New(), Name: name, Token1: token1, Token2: token2}
	require.NoError(t, db.Create(d).Error)
	return d
}
