// Package storetest opens migrated in-memory databases for tests
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter atomic.Int64

// Open returns a fresh migrated SQLite database private to the test
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", counter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, store.AutoMigrate(db))
	return db
}

// SeedProfile inserts an active profile with the given id
func SeedProfile(t *testing.T, db *gorm.DB, id string, mutate ...func(*store.Profile)) *store.Profile {
	t.Helper()

	p := &store.Profile{
		ID:                id,
		Email:             id + "@example.com",
		FirstName:         "Giulia",
		PreferredLanguage: "it",
		ReportFormat:      "both",
		IsActive:          true,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedSubscription inserts an active subscription holding balance minutes
func SeedSubscription(t *testing.T, db *gorm.DB, userID string, balance int, mutate ...func(*store.Subscription)) *store.Subscription {
	t.Helper()

	s := &store.Subscription{
		UserID:             userID,
		Plan:               "premium",
		Status:             store.SubscriptionActive,
		LunaMinutesBalance: balance,
	}
	for _, m := range mutate {
		m(s)
	}
	require.NoError(t, db.Create(s).Error)
	return s
}
